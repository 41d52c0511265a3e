package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop is the storefront owned by a single shop-type user.
type Shop struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Name       string     `gorm:"column:name;not null"`
	URL        *string    `gorm:"column:url"`
	State      bool       `gorm:"column:state;not null;default:true"`
	Categories []Category `gorm:"many2many:shop_categories"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error { return assignID(&s.ID) }

// Category is shared across shops and deduplicated by name.
type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null;uniqueIndex"`
}

func (c *Category) BeforeCreate(*gorm.DB) error { return assignID(&c.ID) }

// ShopCategory links shops to the categories they sell in.
type ShopCategory struct {
	ShopID     uuid.UUID `gorm:"column:shop_id;type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;primaryKey"`
}

func (ShopCategory) TableName() string { return "shop_categories" }
