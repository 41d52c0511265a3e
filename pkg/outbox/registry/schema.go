// Package registry knows every outbox event: which aggregate emits it, which
// topic carries it and which payload struct its data decodes into.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// CurrentVersion is the payload version producers write today.
const CurrentVersion = 1

var (
	ErrUnknownEvent       = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("unsupported payload version")
	ErrEmptyPayload       = errors.New("event payload is empty")
	ErrMalformedPayload   = errors.New("malformed event payload")
)

type stream int

const (
	streamAccounts stream = iota
	streamOrders
	streamCatalog
)

type schema struct {
	aggregate enums.OutboxAggregateType
	stream    stream
	// versions maps a payload version to a constructor for its struct.
	versions map[int]func() any
}

var schemas = map[enums.OutboxEventType]schema{
	enums.EventUserRegistered: {
		aggregate: enums.AggregateUser,
		stream:    streamAccounts,
		versions:  map[int]func() any{1: func() any { return &payloads.UserRegisteredEvent{} }},
	},
	enums.EventOrderPlaced: {
		aggregate: enums.AggregateOrder,
		stream:    streamOrders,
		versions:  map[int]func() any{1: func() any { return &payloads.OrderPlacedEvent{} }},
	},
	enums.EventOrderStatusChanged: {
		aggregate: enums.AggregateOrder,
		stream:    streamOrders,
		versions:  map[int]func() any{1: func() any { return &payloads.OrderStatusChangedEvent{} }},
	},
	enums.EventPartnerCatalogImported: {
		aggregate: enums.AggregateShop,
		stream:    streamCatalog,
		versions:  map[int]func() any{1: func() any { return &payloads.PartnerCatalogImportedEvent{} }},
	},
}

// DecodePayload decodes envelope data into the payload struct registered for
// eventType at version, returned as a pointer. Version 0 means CurrentVersion.
func DecodePayload(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	s, ok := schemas[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	if version == 0 {
		version = CurrentVersion
	}
	newPayload, ok := s.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrUnsupportedVersion, eventType, version)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, eventType)
	}
	payload := newPayload()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, fmt.Errorf("%w: %s@v%d: %w", ErrMalformedPayload, eventType, version, err)
	}
	return payload, nil
}

// IsPayloadError reports whether err comes from decoding a payload that can
// never succeed, so redelivering it is pointless.
func IsPayloadError(err error) bool {
	return errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrUnsupportedVersion) ||
		errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrMalformedPayload)
}

// AggregateFor returns the aggregate type that emits eventType.
func AggregateFor(eventType enums.OutboxEventType) (enums.OutboxAggregateType, bool) {
	s, ok := schemas[eventType]
	return s.aggregate, ok
}

func topicFor(cfg config.PubSubConfig, st stream) string {
	switch st {
	case streamAccounts:
		return cfg.AccountsTopic
	case streamOrders:
		return cfg.OrdersTopic
	case streamCatalog:
		return cfg.CatalogTopic
	}
	return ""
}
