package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a community board entry.
type Post struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:128;not null;index"`
	Content   string `gorm:"type:text;not null"`
	ImageURL  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
