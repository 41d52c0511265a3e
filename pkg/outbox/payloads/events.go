package payloads

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRegisteredEvent hands the confirmation key to the mailer.
type UserRegisteredEvent struct {
	UserID       uuid.UUID      `json:"user_id"`
	Email        string         `json:"email"`
	FirstName    string         `json:"first_name"`
	Type         enums.UserType `json:"type"`
	ConfirmToken string         `json:"confirm_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// OrderPlacedEvent is emitted when a basket becomes a new order.
type OrderPlacedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	ContactID uuid.UUID       `json:"contact_id"`
	ShopIDs   []uuid.UUID     `json:"shop_ids"`
	ItemCount int             `json:"item_count"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// OrderStatusChangedEvent is emitted for every shop-driven transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	BuyerID   uuid.UUID         `json:"buyer_id"`
	ShopID    uuid.UUID         `json:"shop_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// PartnerCatalogImportedEvent summarizes a completed price-list import.
type PartnerCatalogImportedEvent struct {
	ShopID     uuid.UUID `json:"shop_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	ShopName   string    `json:"shop_name"`
	SourceURL  string    `json:"source_url"`
	Categories int       `json:"categories"`
	Listings   int       `json:"listings"`
	ImportedAt time.Time `json:"imported_at"`
}
