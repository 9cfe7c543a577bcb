// Package kafka publishes events to a Kafka topic via franz-go. Records are
// keyed by event id; the event type travels in record headers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// Header names carried on each record.
const (
	headerEventType     = "event-type"
	headerSchemaVersion = "schema-version"
	headerPublishedAt   = "published-at"
)

// Writer is a minimal Kafka-like writer interface. Tests provide fakes;
// kgo_client.go adapts a *kgo.Client.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
	Close() error
}

// Bus is the Kafka-backed event bus.
type Bus struct {
	topic  string
	writer Writer
	logger *slog.Logger
	closed atomic.Bool
}

var _ cbus.EventBus = (*Bus)(nil)

// NewWithWriter constructs a bus over an injected writer.
func NewWithWriter(topic string, w Writer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bus{topic: topic, writer: w, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e == nil {
		return fmt.Errorf("kafka publish: nil event: %w", berr.ErrInvalidInput)
	}

	if b.closed.Load() {
		return fmt.Errorf("kafka publish: %w", berr.ErrBusClosed)
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := map[string]string{
		headerEventType:     e.EventType(),
		headerSchemaVersion: strconv.Itoa(e.SchemaVersion()),
		headerPublishedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := b.writer.Write(ctx, b.topic, []byte(e.EventID()), value, headers); err != nil {
		classified := classify(err)
		b.logger.Error("kafka publish failed",
			"eventType", e.EventType(),
			"eventId", e.EventID(),
			"topic", b.topic,
			"transient", berr.IsTransient(classified),
			"error", err,
		)

		return classified
	}

	b.logger.Debug("published event",
		"provider", "kafka",
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"topic", b.topic,
	)

	return nil
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return fmt.Errorf("kafka publish batch: empty batch: %w", berr.ErrInvalidInput)
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
			"provider", "kafka",
			"total", len(events),
			"failed", len(batchErr.Failures),
		)
	}

	return batchErr.OrNil()
}

// Close releases the underlying client. Repeat calls are no-ops.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	return b.writer.Close()
}
