// Package nats publishes events to NATS subjects. The subject is the
// lowercased event type; reconnects are delegated to the NATS client, so no
// lazy connection handling is needed here.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// Header names carried alongside the JSON payload.
const (
	headerMessageID     = "message-id"
	headerEventType     = "event-type"
	headerSchemaVersion = "schema-version"
	headerPublishedAt   = "published-at"
)

// Client is a minimal NATS-like publisher interface decoupled from the
// concrete library. Tests provide fakes; nats_conn.go adapts *nats.Conn.
type Client interface {
	Publish(subject string, data []byte, headers map[string]string) error
	IsConnected() bool
	Close() error
}

// Bus is the NATS-backed event bus.
type Bus struct {
	client Client
	logger *slog.Logger
	closed atomic.Bool
}

var (
	_ cbus.EventBus       = (*Bus)(nil)
	_ cbus.HealthReporter = (*Bus)(nil)
)

// NewWithClient constructs a bus over an injected client.
func NewWithClient(client Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bus{client: client, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e == nil {
		return fmt.Errorf("nats publish: nil event: %w", berr.ErrInvalidInput)
	}

	if b.closed.Load() {
		return fmt.Errorf("nats publish: %w", berr.ErrBusClosed)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("nats publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := map[string]string{
		headerMessageID:     e.EventID(),
		headerEventType:     e.EventType(),
		headerSchemaVersion: strconv.Itoa(e.SchemaVersion()),
		headerPublishedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := b.client.Publish(Subject(e), body, headers); err != nil {
		classified := classify(err)
		b.logger.Error("nats publish failed",
			"eventType", e.EventType(),
			"eventId", e.EventID(),
			"transient", berr.IsTransient(classified),
			"error", err,
		)

		return classified
	}

	b.logger.Debug("published event",
		"provider", "nats",
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"subject", Subject(e),
	)

	return nil
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return fmt.Errorf("nats publish batch: empty batch: %w", berr.ErrInvalidInput)
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

	if len(batchErr.Failures) > 0 {
		b.logger.Warn("batch publish partially failed",
			"provider", "nats",
			"total", len(events),
			"failed", len(batchErr.Failures),
		)
	}

	return batchErr.OrNil()
}

// Close drains the client connection. Repeat calls are no-ops.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	return b.client.Close()
}

// Health reports connectivity as tracked by the NATS client.
func (b *Bus) Health(_ context.Context) cbus.Health {
	h := cbus.Health{Provider: "nats"}

	if b.closed.Load() {
		h.Status = cbus.StatusUnhealthy
		h.LastError = berr.ErrCodeBusClosed

		return h
	}

	if !b.client.IsConnected() {
		h.Status = cbus.StatusUnhealthy

		return h
	}

	h.Connected = true
	h.Status = cbus.StatusHealthy

	return h
}

// Subject derives the publish subject from an event: its type tag, lowercased.
func Subject(e cbus.Event) string { return strings.ToLower(e.EventType()) }
