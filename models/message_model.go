package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID         string `gorm:"primaryKey;size:36"`
	SenderID   string `gorm:"size:128;not null;index"`
	ReceiverID string `gorm:"size:128;not null;index"`
	Content    string `gorm:"type:text;not null"`
	ReadAt     *time.Time

	CreatedAt time.Time
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
