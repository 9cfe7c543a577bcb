package cards

import (
	"fmt"
	"sort"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Lookup failures the store distinguishes.
var (
	ErrCardNotFound = berr.Code("cards.not_found")
	ErrAccessDenied = berr.Code("cards.access_denied")
)

// Store holds the generated sample cards. It is read-only after construction
// and therefore safe for concurrent use without locking.
type Store struct {
	cards map[string]Card
}

// NewSampleStore generates deterministic sample data: for User1..UserN, one
// card per (type, status) combination times cardsPerType. Card numbers are
// CARD<user>-<sequence>; every second card per user has a PIN configured.
func NewSampleStore(users, cardsPerType int) *Store {
	if users < 1 {
		users = 1
	}

	if cardsPerType < 1 {
		cardsPerType = 1
	}

	s := &Store{cards: make(map[string]Card)}

	for u := 1; u <= users; u++ {
		owner := fmt.Sprintf("User%d", u)
		seq := 0

		for _, ct := range CardTypes() {
			for _, cs := range CardStatuses() {
				for k := 0; k < cardsPerType; k++ {
					seq++
					number := fmt.Sprintf("CARD%d-%04d", u, seq)
					s.cards[number] = Card{
						Number: number,
						Owner:  owner,
						Type:   ct,
						Status: cs,
						PinSet: seq%2 == 0,
					}
				}
			}
		}
	}

	return s
}

// Get looks up a card and enforces ownership. Unknown numbers return
// ErrCardNotFound; cards owned by someone else return ErrAccessDenied.
func (s *Store) Get(userID, cardNumber string) (Card, error) {
	c, ok := s.cards[cardNumber]
	if !ok {
		return Card{}, fmt.Errorf("card %s: %w", cardNumber, ErrCardNotFound)
	}

	if c.Owner != userID {
		return Card{}, fmt.Errorf("card %s is not owned by %s: %w", cardNumber, userID, ErrAccessDenied)
	}

	return c, nil
}

// Len reports the number of cards in the store.
func (s *Store) Len() int { return len(s.cards) }

// CardsOf returns the owner's cards ordered by number.
func (s *Store) CardsOf(owner string) []Card {
	var out []Card

	for _, c := range s.cards {
		if c.Owner == owner {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	return out
}
