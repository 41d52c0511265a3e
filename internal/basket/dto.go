package basket

import (
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddItemsRequest is the body of POST /basket. The whole batch is applied or
// none of it is.
type AddItemsRequest struct {
	Items []AddItem `json:"items" validate:"required,min=1,dive"`
}

type AddItem struct {
	ProductInfoID string `json:"product_info" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
}

// UpdateItemsRequest is the body of PUT /basket.
type UpdateItemsRequest struct {
	Items []UpdateItem `json:"items" validate:"required,min=1,dive"`
}

type UpdateItem struct {
	ID       string `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// RemoveItemsRequest carries a comma separated list of basket line ids.
type RemoveItemsRequest struct {
	Items string `json:"items" validate:"required"`
}

// ShopRef is the compact shop shown on a line.
type ShopRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Line is one order item priced at the listing's current price.
type Line struct {
	ID            uuid.UUID         `json:"id"`
	ProductInfoID uuid.UUID         `json:"product_info"`
	Name          string            `json:"name"`
	Category      string            `json:"category"`
	Model         string            `json:"model"`
	Shop          ShopRef           `json:"shop"`
	Price         decimal.Decimal   `json:"price"`
	PriceRRC      decimal.Decimal   `json:"price_rrc"`
	Quantity      int               `json:"quantity"`
	Sum           decimal.Decimal   `json:"sum"`
	Parameters    map[string]string `json:"parameters,omitempty"`
}

// View is a basket, or an order, with its lines and totals.
type View struct {
	ID            *uuid.UUID        `json:"id,omitempty"`
	Status        enums.OrderStatus `json:"status"`
	Items         []Line            `json:"items"`
	TotalQuantity int               `json:"total_quantity"`
	Total         decimal.Decimal   `json:"total"`
}

// LineFromModel expects ProductInfo with Product.Category, Shop and
// Parameters.Parameter preloaded.
func LineFromModel(item models.OrderItem) Line {
	line := Line{
		ID:            item.ID,
		ProductInfoID: item.ProductInfoID,
		Quantity:      item.Quantity,
		Price:         decimal.Zero,
		PriceRRC:      decimal.Zero,
		Sum:           decimal.Zero,
	}
	info := item.ProductInfo
	if info == nil {
		return line
	}
	line.Model = info.Model
	line.Price = info.Price
	line.PriceRRC = info.PriceRRC
	line.Sum = info.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	if info.Product != nil {
		line.Name = info.Product.Name
		if info.Product.Category != nil {
			line.Category = info.Product.Category.Name
		}
	}
	line.Shop.ID = info.ShopID
	if info.Shop != nil {
		line.Shop.Name = info.Shop.Name
	}
	if len(info.Parameters) > 0 {
		line.Parameters = make(map[string]string, len(info.Parameters))
		for _, p := range info.Parameters {
			if p.Parameter != nil {
				line.Parameters[p.Parameter.Name] = p.Value
			}
		}
	}
	return line
}

// BuildView totals the lines of an order. A nil order renders an empty basket.
func BuildView(order *models.Order, items []models.OrderItem) View {
	view := View{
		Status: enums.OrderStatusBasket,
		Items:  make([]Line, 0, len(items)),
		Total:  decimal.Zero,
	}
	if order != nil {
		id := order.ID
		view.ID = &id
		view.Status = order.Status
	}
	for _, item := range items {
		line := LineFromModel(item)
		view.Items = append(view.Items, line)
		view.TotalQuantity += line.Quantity
		view.Total = view.Total.Add(line.Sum)
	}
	return view
}
