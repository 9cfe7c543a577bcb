package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

const (
	exchangeType = "topic"
	contentType  = "application/json"

	headerSchemaVersion = "schema-version"
	headerPublishedAt   = "published-at"

	defaultConnTimeout = 10 * time.Second
	defaultHeartbeat   = 10 * time.Second
)

// Channel is the slice of *amqp.Channel the bus needs. A fresh transient
// channel is opened per publish and closed afterwards.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection is the shared connection handle owned by the bus.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a Connection. Tests inject fakes here; production uses the
// AMQP dialer from rabbit_conn.go.
type Dialer func(ctx context.Context, cfg Config) (Connection, error)

type connBox struct{ conn Connection }

// Bus publishes events to a durable topic exchange. One connection is shared
// per bus instance, established lazily with double-checked locking: the
// common path reads the handle lock-free, and only creation/teardown is
// serialized behind the mutex. The lock is never held during publish I/O.
type Bus struct {
	cfg    Config
	logger *slog.Logger
	dial   Dialer

	mu     sync.Mutex
	conn   atomic.Pointer[connBox]
	closed atomic.Bool

	errMu   sync.Mutex
	lastErr string
}

var (
	_ cbus.EventBus       = (*Bus)(nil)
	_ cbus.HealthReporter = (*Bus)(nil)
)

// New validates cfg and constructs a bus using the real AMQP dialer.
// Validation failures are returned immediately; no connection is attempted
// until the first publish.
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	return NewWithDialer(cfg, logger, dialAMQP)
}

// NewWithDialer is New with an injected Dialer.
func NewWithDialer(cfg Config, logger *slog.Logger, dial Dialer) (*Bus, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bus{cfg: cfg, logger: logger, dial: dial}, nil
}

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e == nil {
		return fmt.Errorf("rabbitmq publish: nil event: %w", berr.ErrInvalidInput)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	conn, err := b.ensureConn(ctx)
	if err != nil {
		return b.fail(e, "connect", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return b.fail(e, "channel", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent: declaring an existing exchange with matching properties is a no-op.
	if err := ch.ExchangeDeclare(b.cfg.Exchange, exchangeType, true, false, false, false, nil); err != nil {
		return b.fail(e, "exchange declare", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentType,
		MessageId:    e.EventID(),
		Timestamp:    e.OccurredAt(),
		Type:         e.EventType(),
		Headers: amqp.Table{
			headerSchemaVersion: int32(e.SchemaVersion()),
			headerPublishedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		Body: body,
	}

	if err := ch.PublishWithContext(ctx, b.cfg.Exchange, RoutingKey(e), false, false, msg); err != nil {
		return b.fail(e, "publish", err)
	}

	b.logger.Debug("published event",
		"provider", "rabbitmq",
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"exchange", b.cfg.Exchange,
		"routingKey", RoutingKey(e),
	)

	return nil
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return fmt.Errorf("rabbitmq publish batch: empty batch: %w", berr.ErrInvalidInput)
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
			"provider", "rabbitmq",
			"total", len(events),
			"failed", len(batchErr.Failures),
		)
	}

	return batchErr.OrNil()
}

// Close tears down the shared connection. Close is terminal: publishing
// afterwards fails with ErrBusClosed. Repeat calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Swap(true) {
		return nil
	}

	if box := b.conn.Load(); box != nil {
		b.conn.Store(nil)
		return box.conn.Close()
	}

	return nil
}

// Health probes the transport by declaring the exchange passively.
func (b *Bus) Health(ctx context.Context) cbus.Health {
	h := cbus.Health{Provider: "rabbitmq"}

	if b.closed.Load() {
		h.Status = cbus.StatusUnhealthy
		h.LastError = berr.ErrCodeBusClosed

		return h
	}

	conn, err := b.ensureConn(ctx)
	if err != nil {
		b.storeLastErr(err)

		h.Status = cbus.StatusUnhealthy
		h.LastError = b.loadLastErr()

		return h
	}

	h.Connected = true

	ch, err := conn.Channel()
	if err == nil {
		err = ch.ExchangeDeclarePassive(b.cfg.Exchange, exchangeType, true, false, false, false, nil)
		_ = ch.Close()
	}

	if err != nil {
		h.Status = cbus.StatusDegraded
		h.LastError = err.Error()

		return h
	}

	h.Status = cbus.StatusHealthy

	return h
}

// RoutingKey derives the topic routing key from an event: its type tag, lowercased.
func RoutingKey(e cbus.Event) string { return strings.ToLower(e.EventType()) }

// ensureConn returns the shared connection, establishing it lazily.
// Fast path: lock-free check of the current handle. Slow path: take the lock,
// re-check (another goroutine may have reconnected), dispose any stale handle,
// and dial a fresh connection.
func (b *Bus) ensureConn(ctx context.Context) (Connection, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("rabbitmq: %w", berr.ErrBusClosed)
	}

	if box := b.conn.Load(); box != nil && !box.conn.IsClosed() {
		return box.conn, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, fmt.Errorf("rabbitmq: %w", berr.ErrBusClosed)
	}

	if box := b.conn.Load(); box != nil {
		if !box.conn.IsClosed() {
			return box.conn, nil
		}

		_ = box.conn.Close()
		b.conn.Store(nil)
	}

	conn, err := b.dialWithContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, fmt.Errorf("rabbitmq connect %s:%d: %w", b.cfg.Host, b.cfg.Port, errors.Join(berr.ErrTransientTransport, err))
	}

	b.conn.Store(&connBox{conn: conn})

	return conn, nil
}

// dialWithContext runs the dialer in a goroutine so cancellation is honored
// while waiting. A connection that completes after cancellation is closed and
// never assigned to shared state.
func (b *Bus) dialWithContext(ctx context.Context) (Connection, error) {
	type dialResult struct {
		conn Connection
		err  error
	}

	done := make(chan dialResult, 1)

	go func() {
		conn, err := b.dial(ctx, b.cfg)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()

		return nil, ctx.Err()
	case r := <-done:
		return r.conn, r.err
	}
}

// teardown drops the shared handle so the next publish reconnects.
func (b *Bus) teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if box := b.conn.Load(); box != nil {
		_ = box.conn.Close()
		b.conn.Store(nil)
	}
}

func (b *Bus) fail(e cbus.Event, stage string, err error) error {
	classified := classify(err)

	if needsReconnect(err) {
		b.teardown()
	}

	b.storeLastErr(err)
	b.logger.Error("rabbitmq publish failed",
		"stage", stage,
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"transient", berr.IsTransient(classified),
		"error", err,
	)

	return classified
}

func (b *Bus) storeLastErr(err error) {
	b.errMu.Lock()
	b.lastErr = err.Error()
	b.errMu.Unlock()
}

func (b *Bus) loadLastErr() string {
	b.errMu.Lock()
	defer b.errMu.Unlock()

	return b.lastErr
}
