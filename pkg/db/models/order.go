package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Order doubles as the basket while Status is basket. Placing it attaches a
// contact and stamps PlacedAt.
type Order struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'basket'"`
	ContactID *uuid.UUID        `gorm:"column:contact_id;type:uuid"`
	Contact   *Contact          `gorm:"foreignKey:ContactID"`
	PlacedAt  *time.Time        `gorm:"column:placed_at"`
	Items     []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error { return assignID(&o.ID) }

// OrderItem is a listing and quantity inside an order.
type OrderItem struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID    `gorm:"column:order_id;type:uuid;not null"`
	ProductInfoID uuid.UUID    `gorm:"column:product_info_id;type:uuid;not null"`
	Quantity      int          `gorm:"column:quantity;not null"`
	ProductInfo   *ProductInfo `gorm:"foreignKey:ProductInfoID"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error { return assignID(&i.ID) }
