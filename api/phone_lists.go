package api

import (
	"net/http"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type phoneListCreate struct {
	Name   *string  `json:"name" binding:"required"`
	Phones []string `json:"phones" binding:"required"`
}

type phoneListUpdate struct {
	Name   *string   `json:"name"`
	Phones *[]string `json:"phones"`
}

func (h *Handler) CreatePhoneListHandler(c *gin.Context) {
	var payload phoneListCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	phoneList := models.PhoneList{
		Name:   *payload.Name,
		Phones: payload.Phones,
		UserID: currentUser(c).ID,
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Create(&phoneList), "create phone list") {
		return
	}
	c.JSON(http.StatusOK, phoneList)
}

func (h *Handler) ListPhoneListsHandler(c *gin.Context) {
	phoneLists, ok := listOwned[models.PhoneList](c, h.DB)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, phoneLists)
}

func (h *Handler) GetPhoneListHandler(c *gin.Context) {
	phoneList, ok := findOwned[models.PhoneList](c, h.DB, "Phone list")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, phoneList)
}

func (h *Handler) UpdatePhoneListHandler(c *gin.Context) {
	phoneList, ok := findOwned[models.PhoneList](c, h.DB, "Phone list")
	if !ok {
		return
	}

	var payload phoneListUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	set(&phoneList.Name, payload.Name)
	set(&phoneList.Phones, payload.Phones)
	if !persist(c, h.DB.WithContext(c.Request.Context()).Save(phoneList), "update phone list") {
		return
	}
	c.JSON(http.StatusOK, phoneList)
}

func (h *Handler) DeletePhoneListHandler(c *gin.Context) {
	phoneList, ok := findOwned[models.PhoneList](c, h.DB, "Phone list")
	if !ok {
		return
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Delete(phoneList), "delete phone list") {
		return
	}
	c.Status(http.StatusNoContent)
}
