package models

import "time"

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	IsSuperuser    bool      `gorm:"default:false" json:"is_superuser"`
	IsVerified     bool      `gorm:"default:false" json:"is_verified"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`

	OAuthAccounts []OAuthAccount `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type OAuthAccount struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	OAuthName    string `gorm:"column:oauth_name;index;not null"`
	AccessToken  string
	ExpiresAt    *time.Time
	RefreshToken string
	AccountID    string `gorm:"index;not null"`
	AccountEmail string
}
