package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every envelope. Decoders reject newer versions.
const SchemaVersion = 1

var (
	ErrUnknownEventType   = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// Envelope is the wire format of every message on the bus.
type Envelope struct {
	Version   int             `json:"version"`
	Type      EventType       `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode wraps ev into a fresh envelope and serializes it.
func Encode(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{
		Version:   SchemaVersion,
		Type:      ev.EventType(),
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// Decode parses an envelope and returns its payload as the matching Event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	var (
		ev  Event
		err error
	)
	switch env.Type {
	case TypeDataEvent:
		ev, err = decodePayload[DataEvent](env.Payload)
	case TypeDomainEventChangedString:
		ev, err = decodePayload[DomainEventChangedString](env.Payload)
	case TypeDomainEventChangedStringUUID:
		ev, err = decodePayload[DomainEventChangedStringUUID](env.Payload)
	case TypeSagaEvent:
		ev, err = decodePayload[SagaEvent](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}

func decodePayload[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
