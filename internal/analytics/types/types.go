// Package types holds the shapes passed between the analytics worker, its
// event router and the BigQuery writer.
package types

import (
	"encoding/json"
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Envelope is one decoded Pub/Sub delivery: the routing attributes set by
// the outbox publisher merged with the stored payload envelope. Payload is
// the event-specific body, still undecoded.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	Version       int                       `json:"version"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema. Order
// and catalog events share the table; columns that do not apply stay NULL.
type MarketplaceEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrderID        *string            `bigquery:"order_id"`
	BuyerID        *string            `bigquery:"buyer_id"`
	ShopID         *string            `bigquery:"shop_id"`
	ShopIDs        []string           `bigquery:"shop_ids"`
	Status         *string            `bigquery:"status"`
	PreviousStatus *string            `bigquery:"previous_status"`
	ItemCount      *int64             `bigquery:"item_count"`
	Quantity       *int64             `bigquery:"quantity"`
	Total          *big.Rat           `bigquery:"total"`
	Listings       *int64             `bigquery:"listings"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
