// Package router turns decoded outbox events into marketplace_events rows.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/marketplace-backend/internal/analytics/writer"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers rows to BigQuery.
type Writer interface {
	InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type Router struct {
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter registers a row handler per analytics event. overrides replace
// a default handler; they cannot add event types.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced: &rowHandler[payloads.OrderPlacedEvent]{
			writer: writer, logg: logg, build: orderPlacedRow, fields: orderPlacedFields,
		},
		enums.EventOrderStatusChanged: &rowHandler[payloads.OrderStatusChangedEvent]{
			writer: writer, logg: logg, build: orderStatusChangedRow, fields: orderStatusChangedFields,
		},
		enums.EventPartnerCatalogImported: &rowHandler[payloads.PartnerCatalogImportedEvent]{
			writer: writer, logg: logg, build: catalogImportedRow, fields: catalogImportedFields,
		},
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; ok && custom != nil {
			handlers[event] = custom
		}
	}
	return &Router{handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: %s", registry.ErrEmptyPayload, envelope.EventType)
	}
	payload, err := registry.DecodePayload(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return err
	}
	return handler.Handle(ctx, envelope, payload)
}

// rowHandler writes one row per event of payload type T. The decoded
// payload is kept verbatim in the row's JSON column.
type rowHandler[T any] struct {
	writer Writer
	logg   *logger.Logger
	build  func(types.Envelope, *T) types.MarketplaceEventRow
	fields func(*T) map[string]any
}

func (h *rowHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok || event == nil {
		return fmt.Errorf("%w: unexpected %T for %s", registry.ErrMalformedPayload, payload, envelope.EventType)
	}
	ctx = h.logg.WithFields(ctx, h.fields(event))

	row := h.build(envelope, event)
	raw, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", envelope.EventType, err)
	}
	row.Payload = raw

	if err := h.writer.InsertMarketplace(ctx, row); err != nil {
		h.logg.Error(ctx, "marketplace row insert failed", err)
		return err
	}
	h.logg.Debug(ctx, "marketplace row inserted")
	return nil
}
