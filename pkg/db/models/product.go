package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog item identified by name within a category.
type Product struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;not null"`
	Category   *Category `gorm:"foreignKey:CategoryID"`
}

func (p *Product) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }

// ProductInfo is one shop's listing of a product. Every partner import
// replaces the shop's live listings; those already on an order are retired
// rather than deleted so the order keeps its lines.
type ProductInfo struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	ShopID     uuid.UUID          `gorm:"column:shop_id;type:uuid;not null;index"`
	ExternalID int64              `gorm:"column:external_id;not null"`
	Model      string             `gorm:"column:model;not null;default:''"`
	Price      decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	PriceRRC   decimal.Decimal    `gorm:"column:price_rrc;type:numeric(12,2);not null"`
	Quantity   int                `gorm:"column:quantity;not null;default:0"`
	Product    *Product           `gorm:"foreignKey:ProductID"`
	Shop       *Shop              `gorm:"foreignKey:ShopID"`
	Parameters []ProductParameter `gorm:"foreignKey:ProductInfoID"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	RetiredAt  *time.Time         `gorm:"column:retired_at"`
}

func (p *ProductInfo) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }

// Parameter is a free-form attribute name such as "Color".
type Parameter struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null;uniqueIndex"`
}

func (p *Parameter) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }

// ProductParameter holds the value of a parameter for one listing.
type ProductParameter struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductInfoID uuid.UUID  `gorm:"column:product_info_id;type:uuid;not null"`
	ParameterID   uuid.UUID  `gorm:"column:parameter_id;type:uuid;not null"`
	Value         string     `gorm:"column:value;not null"`
	Parameter     *Parameter `gorm:"foreignKey:ParameterID"`
}

func (p *ProductParameter) BeforeCreate(*gorm.DB) error { return assignID(&p.ID) }
