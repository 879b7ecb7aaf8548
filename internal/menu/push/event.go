// Package push delivers catalog change notifications to registered listeners.
//
// A Hub owns the listener registry. Sources (websocket, Redis pub/sub) own a
// connection and its reconnect policy and feed decoded envelopes into the Hub
// in arrival order.
package push

import (
	"encoding/json"
	"fmt"

	"menuboard/pkg/platform/sentinel"
)

// Kind names a push event type as it appears on the wire.
type Kind string

const (
	KindItemUpserted  Kind = "productUpdate"
	KindItemRemoved   Kind = "productDelete"
	KindExtraUpserted Kind = "extraUpdate"
	KindExtraRemoved  Kind = "extraDelete"
)

// Kinds lists every event kind the sync core listens to.
func Kinds() []Kind {
	return []Kind{KindItemUpserted, KindItemRemoved, KindExtraUpserted, KindExtraRemoved}
}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindItemUpserted, KindItemRemoved, KindExtraUpserted, KindExtraRemoved:
		return true
	}
	return false
}

// Envelope is the wire frame: {"type": "<kind>", "payload": <json>}.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives the raw payload of one event. Payload decoding is the
// listener's concern so a malformed payload only affects that listener.
type Handler func(payload json.RawMessage)

// Subscriber is the registration capability consumed by the sync core.
type Subscriber interface {
	Subscribe(kind Kind, h Handler) (unsubscribe func())
}

// DecodeEnvelope parses a wire frame. Unknown kinds are reported as bad data.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode envelope: %v", sentinel.ErrBadData, err)
	}
	if !env.Type.IsValid() {
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", sentinel.ErrBadData, env.Type)
	}
	return env, nil
}

// NewEnvelope encodes payload into an envelope of the given kind.
func NewEnvelope(kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{Type: kind, Payload: raw}, nil
}
