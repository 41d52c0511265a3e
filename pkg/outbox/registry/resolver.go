package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

// ResolvedEvent is an outbox row checked against its schema and ready to publish.
type ResolvedEvent struct {
	EventType enums.OutboxEventType
	Topic     string
	Envelope  outbox.PayloadEnvelope
	Payload   any
}

// NonRetryableError marks a row that will never publish, however often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// Resolver routes outbox rows to their Pub/Sub topic.
type Resolver struct {
	topics map[enums.OutboxEventType]string
}

// NewResolver fails when any known event would have no topic to go to.
func NewResolver(cfg config.PubSubConfig) (*Resolver, error) {
	r := &Resolver{topics: make(map[enums.OutboxEventType]string, len(schemas))}
	var errs []error
	for eventType, s := range schemas {
		topic := topicFor(cfg, s.stream)
		if topic == "" {
			errs = append(errs, fmt.Errorf("no topic configured for %s", eventType))
			continue
		}
		r.topics[eventType] = topic
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve validates the row against its schema and decodes the payload.
// Every failure is non-retryable: a malformed row never gets better.
func (r *Resolver) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	aggregate, ok := AggregateFor(event.EventType)
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s", ErrUnknownEvent, event.EventType))
	}
	if aggregate != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch for %s: expected %s got %s", event.EventType, aggregate, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload, err := DecodePayload(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	return &ResolvedEvent{
		EventType: event.EventType,
		Topic:     r.topics[event.EventType],
		Envelope:  envelope,
		Payload:   payload,
	}, nil
}
