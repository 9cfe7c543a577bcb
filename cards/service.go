package cards

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
	"github.com/nexacard/cardactions/event"
)

// ActionsResult is the caller-visible outcome of a successful lookup.
type ActionsResult struct {
	UserID         string     `json:"userId"`
	CardNumber     string     `json:"cardNumber"`
	CardType       CardType   `json:"cardType"`
	CardStatus     CardStatus `json:"cardStatus"`
	AllowedActions []Action   `json:"allowedActions"`
}

// Service looks up allowed actions and reports every outcome on the event
// bus. Publishing is strictly fire-and-forget: a bus failure is logged and
// never changes what the caller gets back.
type Service struct {
	store  *Store
	bus    cbus.EventBus
	logger *slog.Logger
}

// NewService wires the store and bus together. A nil logger discards logs.
func NewService(store *Store, bus cbus.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{store: store, bus: bus, logger: logger}
}

// AllowedActions returns the actions permitted on the user's card. Unknown
// cards yield ErrCardNotFound, foreign cards ErrAccessDenied; both outcomes
// still publish their event.
func (s *Service) AllowedActions(ctx context.Context, userID, cardNumber, traceID string) (*ActionsResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(cardNumber) == "" {
		return nil, fmt.Errorf("cards: userId and cardNumber are required: %w", berr.ErrInvalidInput)
	}

	card, err := s.store.Get(userID, cardNumber)

	switch {
	case errors.Is(err, ErrCardNotFound):
		s.publish(ctx, event.NewCardNotFound(userID, cardNumber, traceID))
		return nil, err
	case errors.Is(err, ErrAccessDenied):
		s.publish(ctx, event.NewCardAccessDenied(userID, cardNumber, "card belongs to another user", traceID, ""))
		return nil, err
	case err != nil:
		return nil, err
	}

	actions := ActionsFor(card)

	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	s.publish(ctx, event.NewCardActionsRetrieved(
		userID, cardNumber, string(card.Type), string(card.Status), names, traceID,
	))

	return &ActionsResult{
		UserID:         userID,
		CardNumber:     cardNumber,
		CardType:       card.Type,
		CardStatus:     card.Status,
		AllowedActions: actions,
	}, nil
}

func (s *Service) publish(ctx context.Context, e cbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, e); err != nil {
		s.logger.Error("event publish failed, lookup result unaffected",
			"eventType", e.EventType(),
			"eventId", e.EventID(),
			"error", err,
		)
	}
}
