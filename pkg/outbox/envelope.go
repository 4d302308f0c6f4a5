package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// EnvelopeVersion is written on every new row. Readers accept any version up to it.
const EnvelopeVersion = 1

// ActorRef is the user behind an event. Webhook-driven events carry none.
type ActorRef struct {
	UserID uuid.UUID      `json:"userId"`
	Role   enums.UserRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// sent verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var (
	errEmptyEnvelopeData = errors.New("envelope data is empty")
	errMissingEventID    = errors.New("envelope event id is missing")
)

func encodeEnvelope(eventID string, event DomainEvent) (json.RawMessage, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	version := event.Version
	if version == 0 {
		version = EnvelopeVersion
	}
	return json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    eventID,
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	})
}

// DecodeEnvelope parses a stored payload and rejects documents a consumer
// could not act on: unknown versions, no event id, or null data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, errMissingEventID
	}
	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return PayloadEnvelope{}, errEmptyEnvelopeData
	}
	return env, nil
}
