package cards_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nexacard/cardactions/adapters/inmemory"
	"github.com/nexacard/cardactions/cards"
	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
	"github.com/nexacard/cardactions/event"
)

func newService(t *testing.T) (*cards.Service, *inmemory.Bus) {
	t.Helper()

	bus := inmemory.New()
	svc := cards.NewService(cards.NewSampleStore(2, 1), bus, nil)

	return svc, bus
}

func TestAllowedActions_Success(t *testing.T) {
	svc, bus := newService(t)

	// CARD1-0003 is User1's PREPAID/ACTIVE card
	res, err := svc.AllowedActions(context.Background(), "User1", "CARD1-0003", "trace-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if res.CardType != cards.TypePrepaid || res.CardStatus != cards.StatusActive {
		t.Fatalf("result=%+v", res)
	}

	if !slices.Contains(res.AllowedActions, cards.Action1) {
		t.Fatalf("ACTIVE card must allow ACTION1: %v", res.AllowedActions)
	}

	published := bus.EventsByType(event.TypeCardActionsRetrieved)
	if len(published) != 1 {
		t.Fatalf("published=%d", len(published))
	}

	e, ok := published[0].(*event.CardActionsRetrievedEvent)
	if !ok {
		t.Fatalf("wrong event type %T", published[0])
	}

	if e.UserID != "User1" || e.CardNumber != "CARD1-0003" || e.TraceID != "trace-1" {
		t.Fatalf("event=%+v", e)
	}

	if len(e.AllowedActions) != len(res.AllowedActions) {
		t.Fatalf("event actions=%v, result=%v", e.AllowedActions, res.AllowedActions)
	}
}

func TestAllowedActions_NotFound(t *testing.T) {
	svc, bus := newService(t)

	_, err := svc.AllowedActions(context.Background(), "User1", "CARD9-9999", "trace-2")
	if !errors.Is(err, cards.ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound, got %v", err)
	}

	published := bus.EventsByType(event.TypeCardNotFound)
	if len(published) != 1 {
		t.Fatalf("published=%d", len(published))
	}
}

func TestAllowedActions_AccessDenied(t *testing.T) {
	svc, bus := newService(t)

	_, err := svc.AllowedActions(context.Background(), "User2", "CARD1-0001", "")
	if !errors.Is(err, cards.ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}

	published := bus.EventsByType(event.TypeCardAccessDenied)
	if len(published) != 1 {
		t.Fatalf("published=%d", len(published))
	}

	e := published[0].(*event.CardAccessDeniedEvent)
	if e.AttemptedFrom != event.DefaultAttemptedFrom {
		t.Fatalf("attemptedFrom=%q", e.AttemptedFrom)
	}

	if e.SchemaVersion() != 2 {
		t.Fatalf("schemaVersion=%d", e.SchemaVersion())
	}
}

func TestAllowedActions_BlankInput(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AllowedActions(context.Background(), " ", "CARD1-0001", "")
	if !errors.Is(err, berr.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

type failingBus struct{ calls int }

func (b *failingBus) Publish(context.Context, cbus.Event) error {
	b.calls++
	return errors.New("broker down")
}

func (b *failingBus) PublishBatch(context.Context, []cbus.Event) error {
	return errors.New("broker down")
}

func (b *failingBus) Close() error { return nil }

func TestAllowedActions_PublishFailureDoesNotAffectResult(t *testing.T) {
	bus := &failingBus{}
	svc := cards.NewService(cards.NewSampleStore(1, 1), bus, nil)

	res, err := svc.AllowedActions(context.Background(), "User1", "CARD1-0003", "")
	if err != nil {
		t.Fatalf("bus failure must not surface: %v", err)
	}

	if res == nil || len(res.AllowedActions) == 0 {
		t.Fatalf("result=%+v", res)
	}

	if bus.calls != 1 {
		t.Fatalf("publish attempts=%d", bus.calls)
	}

	// the error path swallows publish failures the same way
	_, err = svc.AllowedActions(context.Background(), "User1", "CARD9-9999", "")
	if !errors.Is(err, cards.ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound, got %v", err)
	}
}
