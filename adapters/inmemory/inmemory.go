// Package inmemory provides the in-process event bus used for local
// environments and tests. It appends published events to a thread-safe
// collection and never fails except on invalid input.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// Bus is a thread-safe in-memory implementation of cbus.EventBus.
// It retains published events for test introspection; insertion order is
// preserved per producer.
type Bus struct {
	mu     sync.Mutex
	events []cbus.Event
	closed bool
}

var (
	_ cbus.EventBus       = (*Bus)(nil)
	_ cbus.HealthReporter = (*Bus)(nil)
)

// New creates a new in-memory bus instance.
func New() *Bus { return &Bus{} }

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e == nil {
		return fmt.Errorf("in-memory publish: nil event: %w", berr.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("in-memory publish: %w", berr.ErrBusClosed)
	}

	b.events = append(b.events, e)

	return nil
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return fmt.Errorf("in-memory publish batch: empty batch: %w", berr.ErrInvalidInput)
	}

	batchErr := &berr.BatchError{}

	for i, e := range events {
		if err := b.Publish(ctx, e); err != nil {
			id := ""
			if e != nil {
				id = e.EventID()
			}

			batchErr.Append(i, id, err)
		}
	}

	return batchErr.OrNil()
}

// Close marks the bus closed. Repeat calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	return nil
}

// Health reports the bus state. The in-memory bus has no transport and is
// healthy for as long as it is open.
func (b *Bus) Health(ctx context.Context) cbus.Health {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	h := cbus.Health{Provider: "in-memory", Status: cbus.StatusHealthy, Connected: true}
	if closed {
		h.Status = cbus.StatusUnhealthy
		h.Connected = false
		h.LastError = berr.ErrCodeBusClosed
	}

	return h
}

// Events returns a snapshot of every published event in insertion order.
func (b *Bus) Events() []cbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]cbus.Event, len(b.events))
	copy(out, b.events)

	return out
}

// EventsByType returns the published events whose type tag matches eventType.
func (b *Bus) EventsByType(eventType string) []cbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []cbus.Event

	for _, e := range b.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}

	return out
}

// Replay feeds every retained event through fn in insertion order, stopping
// on the first error. fn runs outside the bus lock.
func (b *Bus) Replay(ctx context.Context, fn func(ctx context.Context, e cbus.Event) error) error {
	for _, e := range b.Events() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(ctx, e); err != nil {
			return err
		}
	}

	return nil
}

// Clear drops all retained events.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
