package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/analytics/router"
	"github.com/angelmondragon/marketplace-backend/internal/analytics/types"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

type outcome string

const (
	outcomeHandled   outcome = "handled"
	outcomeDuplicate outcome = "duplicate"
	outcomeSkipped   outcome = "skipped"
	outcomeInvalid   outcome = "invalid"
	outcomeRetry     outcome = "retry"
)

// nack reports whether Pub/Sub should redeliver the message.
func (o outcome) nack() bool { return o == outcomeRetry }

type ServiceParams struct {
	Subscription receiver
	Handler      Handler
	Idempotency  idempotencyChecker
	Logger       *logger.Logger
	Metrics      *metrics.AnalyticsMetrics
	// Flusher, when set, is drained after Receive returns.
	Flusher flusher
}

// Service consumes outbox events from the analytics subscription. Invalid
// and unsupported messages are acked so they never loop; handler failures
// release the idempotency key and nack.
type Service struct {
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
	metrics      *metrics.AnalyticsMetrics
	flusher      flusher
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case params.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case params.Idempotency == nil:
		return nil, errors.New("idempotency manager is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: params.Subscription,
		handler:      params.Handler,
		manager:      params.Idempotency,
		logg:         params.Logger,
		metrics:      params.Metrics,
		flusher:      params.Flusher,
	}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	err := s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg).nack() {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if s.flusher != nil {
		if flushErr := s.flusher.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			s.logg.Error(ctx, "final analytics flush failed", flushErr)
		}
	}
	return err
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) outcome {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return s.record(msg.Attributes["event_type"], outcomeInvalid)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})
	eventType := string(envelope.EventType)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "invalid event id")
		return s.record(eventType, outcomeInvalid)
	}

	seen, err := s.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency check failed", err)
		return s.record(eventType, outcomeRetry)
	}
	if seen {
		s.logg.Info(ctx, "event already processed")
		return s.record(eventType, outcomeDuplicate)
	}

	err = s.handler.Handle(ctx, *envelope)
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "analytics event type not handled")
		return s.record(eventType, outcomeSkipped)
	case registry.IsPayloadError(err):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "undecodable analytics payload")
		return s.record(eventType, outcomeInvalid)
	case err != nil:
		s.logg.Error(ctx, "handler error", err)
		if delErr := s.manager.Delete(ctx, consumerName, eventID); delErr != nil {
			s.logg.Error(ctx, "release idempotency key failed", delErr)
		}
		return s.record(eventType, outcomeRetry)
	}
	s.logg.Info(ctx, "analytics event handled")
	return s.record(eventType, outcomeHandled)
}

func (s *Service) record(eventType string, o outcome) outcome {
	s.metrics.IncConsumed(eventType, string(o))
	return o
}

// decodeEnvelope combines the stored payload envelope with the routing
// attributes the publisher sets on every message.
func decodeEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr(outbox.AttrEventType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", outbox.AttrEventType, err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(outbox.AttrAggregateType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", outbox.AttrAggregateType, err)
	}
	aggregateID := attr(outbox.AttrAggregateID)
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := stored.EventID
	if eventID == "" {
		eventID = attr(outbox.AttrEventID)
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr(outbox.AttrCreatedAt)); err == nil {
			occurredAt = parsed
		}
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
