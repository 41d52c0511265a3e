package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contact is a delivery address and phone owned by a user.
type Contact struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	City      string    `gorm:"column:city;not null"`
	Street    string    `gorm:"column:street;not null"`
	House     string    `gorm:"column:house;not null;default:''"`
	Structure string    `gorm:"column:structure;not null;default:''"`
	Building  string    `gorm:"column:building;not null;default:''"`
	Apartment string    `gorm:"column:apartment;not null;default:''"`
	Phone     string    `gorm:"column:phone;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Contact) BeforeCreate(*gorm.DB) error { return assignID(&c.ID) }
