package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfirmEmailToken activates an account registered with the matching email.
type ConfirmEmailToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Key       string    `gorm:"column:key;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *ConfirmEmailToken) BeforeCreate(*gorm.DB) error { return assignID(&t.ID) }
