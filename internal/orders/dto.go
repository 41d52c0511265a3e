package orders

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/basket"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceOrderRequest is the body of POST /order.
type PlaceOrderRequest struct {
	Contact string `json:"contact" validate:"required"`
}

// StatusRequest is the body of POST /partner/orders/{orderId}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListParams configures cursor pagination for order lists.
type ListParams struct {
	Limit  int
	Cursor string
}

// OrderSummary is one row of an order list.
type OrderSummary struct {
	ID            uuid.UUID         `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	PlacedAt      *time.Time        `json:"placed_at,omitempty"`
	TotalQuantity int               `json:"total_quantity"`
	Total         decimal.Decimal   `json:"total"`
	CreatedAt     time.Time         `json:"created_at"`
}

// OrderDetail is an order with its lines, totals and delivery contact.
type OrderDetail struct {
	basket.View
	PlacedAt      *time.Time           `json:"placed_at,omitempty"`
	Contact       *contacts.ContactDTO `json:"contact,omitempty"`
	AllowedStatus []enums.OrderStatus  `json:"allowed_status"`
}

// TransitionResult reports an applied status change.
type TransitionResult struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

func summaryFromModel(order models.Order, items []models.OrderItem) OrderSummary {
	view := basket.BuildView(&order, items)
	return OrderSummary{
		ID:            order.ID,
		Status:        order.Status,
		PlacedAt:      order.PlacedAt,
		TotalQuantity: view.TotalQuantity,
		Total:         view.Total,
		CreatedAt:     order.CreatedAt,
	}
}

func detailFromModel(order models.Order, items []models.OrderItem) OrderDetail {
	detail := OrderDetail{
		View:          basket.BuildView(&order, items),
		PlacedAt:      order.PlacedAt,
		AllowedStatus: order.Status.AllowedTransitions(),
	}
	if order.Contact != nil {
		contact := contacts.FromModel(*order.Contact)
		detail.Contact = &contact
	}
	return detail
}
