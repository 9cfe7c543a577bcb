// Package event defines the immutable domain events emitted by the
// card-actions service. Events are value records: every field is assigned by
// the constructor and is not meant to change afterwards. JSON field names are
// lowerCamelCase and empty optional fields are omitted from the wire form.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event type tags, derived from the concrete variant names.
const (
	TypeCardActionsRetrieved = "CardActionsRetrievedEvent"
	TypeCardNotFound         = "CardNotFoundEvent"
	TypeCardAccessDenied     = "CardAccessDeniedEvent"
)

// DefaultAttemptedFrom is the origin recorded on access-denied events when
// the caller does not supply one.
const DefaultAttemptedFrom = "API"

// Base carries the fields shared by every event variant.
type Base struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	At      time.Time `json:"occurredAt"`
	Version int       `json:"schemaVersion"`
}

func newBase(eventType string, version int) Base {
	return Base{
		ID:      uuid.NewString(),
		Type:    eventType,
		At:      time.Now().UTC(),
		Version: version,
	}
}

func (b Base) EventID() string       { return b.ID }
func (b Base) EventType() string     { return b.Type }
func (b Base) OccurredAt() time.Time { return b.At }
func (b Base) SchemaVersion() int    { return b.Version }

// CardActionsRetrievedEvent records a successful action lookup.
type CardActionsRetrievedEvent struct {
	Base
	UserID         string   `json:"userId"`
	CardNumber     string   `json:"cardNumber"`
	CardType       string   `json:"cardType"`
	CardStatus     string   `json:"cardStatus"`
	AllowedActions []string `json:"allowedActions"`
	TraceID        string   `json:"traceId,omitempty"`
}

// NewCardActionsRetrieved constructs a fully-populated retrieval event.
// AllowedActions keeps the caller's order.
func NewCardActionsRetrieved(
	userID, cardNumber, cardType, cardStatus string,
	allowedActions []string,
	traceID string,
) *CardActionsRetrievedEvent {
	actions := make([]string, len(allowedActions))
	copy(actions, allowedActions)

	return &CardActionsRetrievedEvent{
		Base:           newBase(TypeCardActionsRetrieved, 1),
		UserID:         userID,
		CardNumber:     cardNumber,
		CardType:       cardType,
		CardStatus:     cardStatus,
		AllowedActions: actions,
		TraceID:        traceID,
	}
}

// CardNotFoundEvent records a lookup for a card the store does not know.
type CardNotFoundEvent struct {
	Base
	UserID     string `json:"userId"`
	CardNumber string `json:"cardNumber"`
	TraceID    string `json:"traceId,omitempty"`
}

// NewCardNotFound constructs a not-found event.
func NewCardNotFound(userID, cardNumber, traceID string) *CardNotFoundEvent {
	return &CardNotFoundEvent{
		Base:       newBase(TypeCardNotFound, 1),
		UserID:     userID,
		CardNumber: cardNumber,
		TraceID:    traceID,
	}
}

// CardAccessDeniedEvent records a lookup for a card owned by someone else.
// Schema version 2: version 1 lacked the attemptedFrom field.
type CardAccessDeniedEvent struct {
	Base
	UserID        string `json:"userId"`
	CardNumber    string `json:"cardNumber"`
	Reason        string `json:"reason"`
	TraceID       string `json:"traceId,omitempty"`
	AttemptedFrom string `json:"attemptedFrom"`
}

// NewCardAccessDenied constructs an access-denied event. An empty
// attemptedFrom defaults to DefaultAttemptedFrom.
func NewCardAccessDenied(userID, cardNumber, reason, traceID, attemptedFrom string) *CardAccessDeniedEvent {
	if attemptedFrom == "" {
		attemptedFrom = DefaultAttemptedFrom
	}

	return &CardAccessDeniedEvent{
		Base:          newBase(TypeCardAccessDenied, 2),
		UserID:        userID,
		CardNumber:    cardNumber,
		Reason:        reason,
		TraceID:       traceID,
		AttemptedFrom: attemptedFrom,
	}
}
