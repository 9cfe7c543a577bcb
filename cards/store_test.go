package cards

import (
	"errors"
	"testing"
)

func TestNewSampleStore_Deterministic(t *testing.T) {
	a := NewSampleStore(2, 1)
	b := NewSampleStore(2, 1)

	// 2 users x 3 types x 7 statuses
	if a.Len() != 42 || b.Len() != 42 {
		t.Fatalf("len=%d/%d", a.Len(), b.Len())
	}

	ca, err := a.Get("User1", "CARD1-0001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	cb, err := b.Get("User1", "CARD1-0001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if ca != cb {
		t.Fatalf("generation is not deterministic: %+v vs %+v", ca, cb)
	}

	if ca.Type != TypePrepaid || ca.Status != StatusOrdered {
		t.Fatalf("first card=%+v", ca)
	}
}

func TestStore_GetUnknownCard(t *testing.T) {
	s := NewSampleStore(1, 1)

	_, err := s.Get("User1", "CARD9-9999")
	if !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound, got %v", err)
	}
}

func TestStore_GetForeignCard(t *testing.T) {
	s := NewSampleStore(2, 1)

	_, err := s.Get("User2", "CARD1-0001")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
}

func TestStore_CardsOfOrdered(t *testing.T) {
	s := NewSampleStore(3, 2)

	cards := s.CardsOf("User2")
	if len(cards) != 42 {
		t.Fatalf("len=%d", len(cards))
	}

	for i := 1; i < len(cards); i++ {
		if cards[i-1].Number >= cards[i].Number {
			t.Fatalf("not ordered: %s before %s", cards[i-1].Number, cards[i].Number)
		}

		if cards[i].Owner != "User2" {
			t.Fatalf("foreign card in listing: %+v", cards[i])
		}
	}
}
