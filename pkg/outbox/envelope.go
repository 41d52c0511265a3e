package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pub/Sub attribute names the publisher sets on every message.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// ActorRef names the account whose action produced an event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Type   string    `json:"type,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body. Data is the versioned event payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a stored or received envelope. A missing event id is
// tolerated here; callers that dedupe on it fall back to the message attribute.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	if env.Version < 0 {
		return PayloadEnvelope{}, errors.New("payload envelope version must not be negative")
	}
	env.EventID = strings.TrimSpace(env.EventID)
	return env, nil
}
