package api

import (
	"net/http"
	"time"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
)

const clockLayout = "15:04:05"

type companyCreate struct {
	Name        *string            `json:"name" binding:"required"`
	ComLimit    *int               `json:"com_limit" binding:"required"`
	DayLimit    *int               `json:"day_limit" binding:"required"`
	SoundFileID *uint              `json:"sound_file_id" binding:"required"`
	Status      *int               `json:"status" binding:"required"`
	StartTime   *string            `json:"start_time" binding:"required"`
	EndTime     *string            `json:"end_time" binding:"required"`
	Days        []int              `json:"days" binding:"required"`
	Reaction    map[string]*string `json:"reaction" binding:"required"`
	PhonesID    *uint              `json:"phones_id" binding:"required"`
}

// companyUpdate applies only the fields present in the body.
type companyUpdate struct {
	Name        *string             `json:"name"`
	ComLimit    *int                `json:"com_limit"`
	DayLimit    *int                `json:"day_limit"`
	SoundFileID *uint               `json:"sound_file_id"`
	Status      *int                `json:"status"`
	StartTime   *string             `json:"start_time"`
	EndTime     *string             `json:"end_time"`
	Days        *[]int              `json:"days"`
	Reaction    *map[string]*string `json:"reaction"`
	PhonesID    *uint               `json:"phones_id"`
}

func (u *companyUpdate) apply(company *models.Company) {
	set(&company.Name, u.Name)
	set(&company.ComLimit, u.ComLimit)
	set(&company.DayLimit, u.DayLimit)
	set(&company.SoundFileID, u.SoundFileID)
	set(&company.Status, u.Status)
	set(&company.StartTime, u.StartTime)
	set(&company.EndTime, u.EndTime)
	set(&company.Days, u.Days)
	set(&company.Reaction, u.Reaction)
	set(&company.PhonesID, u.PhonesID)
}

func validClock(values ...*string) bool {
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, err := time.Parse(clockLayout, *v); err != nil {
			return false
		}
	}
	return true
}

func (h *Handler) CreateCompanyHandler(c *gin.Context) {
	var payload companyCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if !validClock(payload.StartTime, payload.EndTime) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "start_time and end_time must be HH:MM:SS"})
		return
	}

	company := models.Company{
		Name:        *payload.Name,
		ComLimit:    *payload.ComLimit,
		DayLimit:    *payload.DayLimit,
		SoundFileID: *payload.SoundFileID,
		Status:      *payload.Status,
		StartTime:   *payload.StartTime,
		EndTime:     *payload.EndTime,
		Days:        payload.Days,
		Reaction:    payload.Reaction,
		PhonesID:    *payload.PhonesID,
		UserID:      currentUser(c).ID,
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Create(&company), "create company") {
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) ListCompaniesHandler(c *gin.Context) {
	companies, ok := listOwned[models.Company](c, h.DB)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, companies)
}

func (h *Handler) GetCompanyHandler(c *gin.Context) {
	company, ok := findOwned[models.Company](c, h.DB, "Company")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) UpdateCompanyHandler(c *gin.Context) {
	company, ok := findOwned[models.Company](c, h.DB, "Company")
	if !ok {
		return
	}

	var payload companyUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if !validClock(payload.StartTime, payload.EndTime) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "start_time and end_time must be HH:MM:SS"})
		return
	}

	payload.apply(company)
	if !persist(c, h.DB.WithContext(c.Request.Context()).Save(company), "update company") {
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) DeleteCompanyHandler(c *gin.Context) {
	company, ok := findOwned[models.Company](c, h.DB, "Company")
	if !ok {
		return
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Delete(company), "delete company") {
		return
	}
	c.Status(http.StatusNoContent)
}
