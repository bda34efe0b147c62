package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          string  `gorm:"primaryKey;size:128" json:"id"`
	PhoneNumber string  `gorm:"size:32;not null;uniqueIndex" json:"phone_number"`
	Nickname    string  `gorm:"size:64" json:"nickname"`
	Password    *string `json:"-"`
	Gender      *string `gorm:"size:16" json:"gender,omitempty"`
	Bio         *string `gorm:"type:text" json:"bio,omitempty"`

	Coins int64 `gorm:"not null;default:0" json:"coins"`

	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
