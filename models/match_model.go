package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Match struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:128;not null;index"`
	TargetUserID string `gorm:"size:128;not null;index"`
	Status       string `gorm:"size:20;not null;default:'pending'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
