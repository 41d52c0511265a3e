package router

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/analytics/types"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Each builder maps one payload onto the shared marketplace_events row. The
// payload's own timestamp wins over the envelope's when present.

func orderPlacedRow(env types.Envelope, e *payloads.OrderPlacedEvent) types.MarketplaceEventRow {
	shops := make([]string, 0, len(e.ShopIDs))
	for _, id := range e.ShopIDs {
		shops = append(shops, id.String())
	}
	return types.MarketplaceEventRow{
		EventID:    env.EventID,
		EventType:  string(env.EventType),
		OccurredAt: occurredAt(env, e.PlacedAt),
		OrderID:    optionalID(e.OrderID),
		BuyerID:    optionalID(e.BuyerID),
		ShopIDs:    shops,
		Status:     optional(string(enums.OrderStatusNew)),
		ItemCount:  count(e.ItemCount),
		Quantity:   count(e.Quantity),
		Total:      e.Total.Rat(),
	}
}

func orderPlacedFields(e *payloads.OrderPlacedEvent) map[string]any {
	return map[string]any{"order_id": e.OrderID.String(), "user_id": e.BuyerID.String()}
}

func orderStatusChangedRow(env types.Envelope, e *payloads.OrderStatusChangedEvent) types.MarketplaceEventRow {
	return types.MarketplaceEventRow{
		EventID:        env.EventID,
		EventType:      string(env.EventType),
		OccurredAt:     occurredAt(env, e.ChangedAt),
		OrderID:        optionalID(e.OrderID),
		BuyerID:        optionalID(e.BuyerID),
		ShopID:         optionalID(e.ShopID),
		Status:         optional(string(e.To)),
		PreviousStatus: optional(string(e.From)),
	}
}

func orderStatusChangedFields(e *payloads.OrderStatusChangedEvent) map[string]any {
	return map[string]any{"order_id": e.OrderID.String(), "from": e.From, "to": e.To}
}

func catalogImportedRow(env types.Envelope, e *payloads.PartnerCatalogImportedEvent) types.MarketplaceEventRow {
	return types.MarketplaceEventRow{
		EventID:    env.EventID,
		EventType:  string(env.EventType),
		OccurredAt: occurredAt(env, e.ImportedAt),
		ShopID:     optionalID(e.ShopID),
		Listings:   count(e.Listings),
	}
}

func catalogImportedFields(e *payloads.PartnerCatalogImportedEvent) map[string]any {
	return map[string]any{"shop_id": e.ShopID.String(), "listings": e.Listings}
}

func occurredAt(env types.Envelope, fromPayload time.Time) time.Time {
	if fromPayload.IsZero() {
		return env.OccurredAt
	}
	return fromPayload.UTC()
}

// optional maps blank strings to NULL columns.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalID(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return optional(id.String())
}

func count(n int) *int64 {
	v := int64(n)
	return &v
}
