package catalog

import (
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ShopDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	URL   *string   `json:"url,omitempty"`
	State bool      `json:"state"`
}

// ShopRef is the compact shop embedded in listings.
type ShopRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ProductDTO is one shop's listing of a product.
type ProductDTO struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"product_id"`
	Name       string            `json:"name"`
	Category   CategoryDTO       `json:"category"`
	Shop       ShopRef           `json:"shop"`
	ExternalID int64             `json:"external_id"`
	Model      string            `json:"model"`
	Price      decimal.Decimal   `json:"price"`
	PriceRRC   decimal.Decimal   `json:"price_rrc"`
	Quantity   int               `json:"quantity"`
	Parameters map[string]string `json:"parameters"`
}

// ProductFilter narrows the product listing. Nil fields are ignored.
type ProductFilter struct {
	ShopID     *uuid.UUID
	CategoryID *uuid.UUID
	// Search matches a case-insensitive substring of the product name.
	Search string
}

// ShopStateRequest toggles whether the caller's shop accepts orders.
type ShopStateRequest struct {
	State *bool `json:"state" validate:"required"`
}

func categoryFromModel(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name}
}

func shopFromModel(s models.Shop) ShopDTO {
	return ShopDTO{ID: s.ID, Name: s.Name, URL: s.URL, State: s.State}
}

// ProductFromModel expects Product.Category, Shop and Parameters.Parameter
// to be preloaded.
func ProductFromModel(info models.ProductInfo) ProductDTO {
	dto := ProductDTO{
		ID:         info.ID,
		ProductID:  info.ProductID,
		ExternalID: info.ExternalID,
		Model:      info.Model,
		Price:      info.Price,
		PriceRRC:   info.PriceRRC,
		Quantity:   info.Quantity,
		Parameters: make(map[string]string, len(info.Parameters)),
	}
	if info.Product != nil {
		dto.Name = info.Product.Name
		dto.Category.ID = info.Product.CategoryID
		if info.Product.Category != nil {
			dto.Category.Name = info.Product.Category.Name
		}
	}
	if info.Shop != nil {
		dto.Shop = ShopRef{ID: info.Shop.ID, Name: info.Shop.Name}
	} else {
		dto.Shop.ID = info.ShopID
	}
	for _, p := range info.Parameters {
		if p.Parameter != nil {
			dto.Parameters[p.Parameter.Name] = p.Value
		}
	}
	return dto
}
