// Package ibmmq publishes events to an IBM MQ queue through a shared
// queue-manager handle. The handle is created lazily with double-checked
// locking; a fresh queue object is opened per publish call, which keeps
// per-call operations thread-safe without a publish-time lock. Connection
// level reason codes tear the shared handle down so the next publish
// reconnects. The concrete client SDK wiring lives behind the mqclient
// build tag.
package ibmmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// Message property names carried alongside the JSON payload.
const (
	PropEventType     = "EventType"
	PropSchemaVersion = "SchemaVersion"
	PropPublishedAt   = "PublishedAt"
)

// Message is the transport message built per event. The concrete client sets
// the UTF-8 character set and persistent delivery from these fields.
type Message struct {
	Body          []byte
	MessageID     string
	CorrelationID string
	Persistent    bool
	Properties    map[string]any
}

// Queue is one open queue object. Output handles are opened fresh per publish
// and closed immediately after the put; inquiry handles serve health probes.
type Queue interface {
	Put(msg Message) error
	Depth() (int, error)
	Close() error
}

// QueueManager is the shared connection handle owned by the bus.
type QueueManager interface {
	OpenQueue(name string) (Queue, error)
	OpenQueueForInquiry(name string) (Queue, error)
	Disconnect() error
}

// Connector establishes a queue-manager connection. Tests inject fakes;
// production uses the SDK connector from mq_conn.go (mqclient build tag).
type Connector func(ctx context.Context, cfg Config) (QueueManager, error)

// defaultConnector is bound by mq_conn.go (mqclient build tag) or the stub.
var defaultConnector Connector

// ReasonCodeError is implemented by client errors that carry MQ reason and
// completion codes. Classification and teardown decisions key off the
// reason code.
type ReasonCodeError interface {
	error
	ReasonCode() int32
	CompletionCode() int32
}

type qmgrBox struct{ qm QueueManager }

// Bus publishes events to the configured queue.
type Bus struct {
	cfg     Config
	logger  *slog.Logger
	connect Connector

	mu     sync.Mutex
	conn   atomic.Pointer[qmgrBox]
	closed atomic.Bool

	errMu   sync.Mutex
	lastErr string
}

var (
	_ cbus.EventBus       = (*Bus)(nil)
	_ cbus.HealthReporter = (*Bus)(nil)
)

// New validates cfg and constructs a bus using the SDK connector. No
// connection is attempted until the first publish.
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	return NewWithConnector(cfg, logger, defaultConnector)
}

// NewWithConnector is New with an injected Connector.
func NewWithConnector(cfg Config, logger *slog.Logger, connect Connector) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bus{cfg: cfg, logger: logger, connect: connect}, nil
}

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e == nil {
		return fmt.Errorf("ibmmq publish: nil event: %w", berr.ErrInvalidInput)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ibmmq publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	qm, err := b.ensureConn(ctx)
	if err != nil {
		return b.fail(e, "connect", err)
	}

	q, err := qm.OpenQueue(b.cfg.QueueName)
	if err != nil {
		return b.fail(e, "open queue", err)
	}
	defer func() { _ = q.Close() }()

	msg := Message{
		Body:          body,
		MessageID:     e.EventID(),
		CorrelationID: e.EventID(),
		Persistent:    true,
		Properties: map[string]any{
			PropEventType:     e.EventType(),
			PropSchemaVersion: e.SchemaVersion(),
			PropPublishedAt:   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := q.Put(msg); err != nil {
		return b.fail(e, "put", err)
	}

	b.logger.Debug("published event",
		"provider", "ibmmq",
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"queue", b.cfg.QueueName,
	)

	return nil
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return fmt.Errorf("ibmmq publish batch: empty batch: %w", berr.ErrInvalidInput)
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
			"provider", "ibmmq",
			"total", len(events),
			"failed", len(batchErr.Failures),
		)
	}

	return batchErr.OrNil()
}

// Close disconnects and releases the queue-manager handle. Repeat calls are
// no-ops; publishing after Close fails with ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Swap(true) {
		return nil
	}

	if box := b.conn.Load(); box != nil {
		b.conn.Store(nil)
		return box.qm.Disconnect()
	}

	return nil
}

// Health probes the transport by opening the queue for inquiry and reading
// its current depth.
func (b *Bus) Health(ctx context.Context) cbus.Health {
	h := cbus.Health{Provider: "ibmmq"}

	if b.closed.Load() {
		h.Status = cbus.StatusUnhealthy
		h.LastError = berr.ErrCodeBusClosed

		return h
	}

	qm, err := b.ensureConn(ctx)
	if err != nil {
		b.storeLastErr(err)

		h.Status = cbus.StatusUnhealthy
		h.LastError = b.loadLastErr()

		return h
	}

	h.Connected = true

	q, err := qm.OpenQueueForInquiry(b.cfg.QueueName)
	if err == nil {
		_, err = q.Depth()
		_ = q.Close()
	}

	if err != nil {
		h.Status = cbus.StatusDegraded
		h.LastError = err.Error()

		return h
	}

	h.Status = cbus.StatusHealthy

	return h
}

func (b *Bus) ensureConn(ctx context.Context) (QueueManager, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("ibmmq: %w", berr.ErrBusClosed)
	}

	if box := b.conn.Load(); box != nil {
		return box.qm, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, fmt.Errorf("ibmmq: %w", berr.ErrBusClosed)
	}

	if box := b.conn.Load(); box != nil {
		return box.qm, nil
	}

	qm, err := b.connectWithContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, classify(fmt.Errorf("ibmmq connect %s@%s:%d: %w", b.cfg.QueueManager, b.cfg.Host, b.cfg.Port, err))
	}

	b.conn.Store(&qmgrBox{qm: qm})

	return qm, nil
}

// connectWithContext runs the connector in a goroutine so cancellation is
// honored while waiting; a connection completing after cancellation is
// disconnected and never assigned to shared state.
func (b *Bus) connectWithContext(ctx context.Context) (QueueManager, error) {
	type connResult struct {
		qm  QueueManager
		err error
	}

	done := make(chan connResult, 1)

	go func() {
		qm, err := b.connect(ctx, b.cfg)
		done <- connResult{qm: qm, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.qm != nil {
				_ = r.qm.Disconnect()
			}
		}()

		return nil, ctx.Err()
	case r := <-done:
		return r.qm, r.err
	}
}

// teardown drops the shared handle so the next publish reconnects.
func (b *Bus) teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if box := b.conn.Load(); box != nil {
		_ = box.qm.Disconnect()
		b.conn.Store(nil)
	}
}

func (b *Bus) fail(e cbus.Event, stage string, err error) error {
	classified := classify(err)

	attrs := []any{
		"stage", stage,
		"eventType", e.EventType(),
		"eventId", e.EventID(),
		"transient", berr.IsTransient(classified),
		"error", err,
	}

	var rce ReasonCodeError
	if errors.As(err, &rce) {
		attrs = append(attrs, "reasonCode", rce.ReasonCode(), "completionCode", rce.CompletionCode())

		if connectionReasonCodes[rce.ReasonCode()] {
			b.teardown()
		}
	}

	b.storeLastErr(err)
	b.logger.Error("ibmmq publish failed", attrs...)

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
