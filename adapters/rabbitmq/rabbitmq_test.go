package rabbitmq_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nexacard/cardactions/adapters/rabbitmq"
	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
	"github.com/nexacard/cardactions/event"
)

type fakeChannel struct {
	mu        sync.Mutex
	declares  []string
	published []amqp.Publishing
	keys      []string

	declareErr error
	publishErr func(n int) error
	calls      int
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !durable || kind != "topic" {
		return errors.New("exchange must be a durable topic")
	}

	c.declares = append(c.declares, name)

	return c.declareErr
}

func (c *fakeChannel) ExchangeDeclarePassive(string, string, bool, bool, bool, bool, amqp.Table) error {
	return c.declareErr
}

func (c *fakeChannel) PublishWithContext(
	_ context.Context, _, key string, _, _ bool, msg amqp.Publishing,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.publishErr != nil {
		if err := c.publishErr(c.calls); err != nil {
			return err
		}
	}

	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)

	return nil
}

func (c *fakeChannel) Close() error { return nil }

type fakeConn struct {
	ch     *fakeChannel
	closed bool
}

func (c *fakeConn) Channel() (rabbitmq.Channel, error) { return c.ch, nil }
func (c *fakeConn) IsClosed() bool                     { return c.closed }
func (c *fakeConn) Close() error                       { c.closed = true; return nil }

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	ch    *fakeChannel
}

func (d *fakeDialer) dial(context.Context, rabbitmq.Config) (rabbitmq.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}

	ch := d.ch
	if ch == nil {
		ch = &fakeChannel{}
	}

	conn := &fakeConn{ch: ch}
	d.conns = append(d.conns, conn)

	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.conns)
}

func validConfig() rabbitmq.Config {
	return rabbitmq.Config{
		Host:        "localhost",
		Port:        5672,
		Username:    "guest",
		Password:    "guest",
		VirtualHost: "/",
		Exchange:    "card-events",
	}
}

func newBus(t *testing.T, d *fakeDialer) *rabbitmq.Bus {
	t.Helper()

	b, err := rabbitmq.NewWithDialer(validConfig(), nil, d.dial)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	return b
}

func TestNew_ValidationFailsFast(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*rabbitmq.Config)
	}{
		{"empty host", func(c *rabbitmq.Config) { c.Host = "" }},
		{"whitespace host", func(c *rabbitmq.Config) { c.Host = "   " }},
		{"empty username", func(c *rabbitmq.Config) { c.Username = "" }},
		{"empty password", func(c *rabbitmq.Config) { c.Password = "" }},
		{"empty vhost", func(c *rabbitmq.Config) { c.VirtualHost = "" }},
		{"empty exchange", func(c *rabbitmq.Config) { c.Exchange = "" }},
		{"port zero", func(c *rabbitmq.Config) { c.Port = 0 }},
		{"port too high", func(c *rabbitmq.Config) { c.Port = 70000 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			d := &fakeDialer{}

			_, err := rabbitmq.NewWithDialer(cfg, nil, d.dial)
			if !errors.Is(err, berr.ErrConfiguration) {
				t.Fatalf("want ErrConfiguration, got %v", err)
			}

			if d.dials() != 0 {
				t.Fatalf("construction must not connect")
			}
		})
	}
}

func TestPublish_NilEvent_NoDial(t *testing.T) {
	d := &fakeDialer{}
	b := newBus(t, d)

	if err := b.Publish(context.Background(), nil); !errors.Is(err, berr.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}

	if d.dials() != 0 {
		t.Fatalf("nil event must not touch the transport")
	}
}

func TestPublish_WireFormat(t *testing.T) {
	ch := &fakeChannel{}
	d := &fakeDialer{ch: ch}
	b := newBus(t, d)

	e := event.NewCardNotFound("User1", "CARD1", "t-1")

	if err := b.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(ch.keys) != 1 || ch.keys[0] != "cardnotfoundevent" {
		t.Fatalf("routing key=%v", ch.keys)
	}

	if len(ch.declares) != 1 || ch.declares[0] != "card-events" {
		t.Fatalf("declares=%v", ch.declares)
	}

	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode=%d", msg.DeliveryMode)
	}

	if msg.ContentType != "application/json" {
		t.Fatalf("content type=%q", msg.ContentType)
	}

	if msg.MessageId != e.EventID() {
		t.Fatalf("message id=%q", msg.MessageId)
	}

	if !msg.Timestamp.Equal(e.OccurredAt()) {
		t.Fatalf("timestamp=%v", msg.Timestamp)
	}

	if msg.Type != event.TypeCardNotFound {
		t.Fatalf("type=%q", msg.Type)
	}

	if v, ok := msg.Headers["schema-version"].(int32); !ok || v != 1 {
		t.Fatalf("schema-version header=%v", msg.Headers["schema-version"])
	}

	if _, ok := msg.Headers["published-at"].(string); !ok {
		t.Fatalf("published-at header=%v", msg.Headers["published-at"])
	}
}

func TestPublish_RepeatedDeclareIsIdempotent(t *testing.T) {
	ch := &fakeChannel{}
	d := &fakeDialer{ch: ch}
	b := newBus(t, d)

	for i := 0; i < 2; i++ {
		if err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", "")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	if len(ch.declares) != 2 {
		t.Fatalf("declares=%d", len(ch.declares))
	}

	if d.dials() != 1 {
		t.Fatalf("connection must be shared, dials=%d", d.dials())
	}
}

func TestPublish_ConnectionClosedRecovery(t *testing.T) {
	ch := &fakeChannel{publishErr: func(n int) error {
		if n == 1 {
			return amqp.ErrClosed
		}
		return nil
	}}
	d := &fakeDialer{ch: ch}
	b := newBus(t, d)

	err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", ""))
	if !berr.IsTransient(err) {
		t.Fatalf("closed connection must classify transient, got %v", err)
	}

	if !d.conns[0].closed {
		t.Fatalf("stale handle must be torn down")
	}

	if err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", "")); err != nil {
		t.Fatalf("publish after teardown: %v", err)
	}

	if d.dials() != 2 {
		t.Fatalf("next publish must reconnect, dials=%d", d.dials())
	}
}

func TestPublish_PermanentErrorKeepsConnection(t *testing.T) {
	ch := &fakeChannel{publishErr: func(int) error {
		return &amqp.Error{Code: amqp.AccessRefused, Reason: "access refused"}
	}}
	d := &fakeDialer{ch: ch}
	b := newBus(t, d)

	err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", ""))
	if !errors.Is(err, berr.ErrPermanentTransport) {
		t.Fatalf("want permanent classification, got %v", err)
	}

	if berr.IsTransient(err) {
		t.Fatalf("access refused must not be transient")
	}

	_ = b.Publish(context.Background(), event.NewCardNotFound("u", "c", ""))

	if d.dials() != 1 {
		t.Fatalf("permanent error must not tear down the connection, dials=%d", d.dials())
	}
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: func(n int) error {
		if n == 2 {
			return &amqp.Error{Code: amqp.NotFound, Reason: "no exchange"}
		}
		return nil
	}}
	d := &fakeDialer{ch: ch}
	b := newBus(t, d)

	events := []cbus.Event{
		event.NewCardNotFound("u", "c1", ""),
		event.NewCardNotFound("u", "c2", ""),
		event.NewCardNotFound("u", "c3", ""),
	}

	err := b.PublishBatch(context.Background(), events)

	var batchErr *berr.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("want BatchError, got %v", err)
	}

	if len(batchErr.Failures) != 1 {
		t.Fatalf("failures=%d", len(batchErr.Failures))
	}

	f := batchErr.Failures[0]
	if f.Index != 1 || f.EventID != events[1].EventID() {
		t.Fatalf("failure=%+v", f)
	}

	// every event attempted despite the middle failure
	if ch.calls != 3 {
		t.Fatalf("attempts=%d", ch.calls)
	}
}

func TestPublishBatch_Empty(t *testing.T) {
	b := newBus(t, &fakeDialer{})

	if err := b.PublishBatch(context.Background(), nil); !errors.Is(err, berr.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestClose_TerminalAndIdempotent(t *testing.T) {
	d := &fakeDialer{}
	b := newBus(t, d)

	if err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", "")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if !d.conns[0].closed {
		t.Fatalf("close must release the connection")
	}

	err := b.Publish(context.Background(), event.NewCardNotFound("u", "c", ""))
	if !errors.Is(err, berr.ErrBusClosed) {
		t.Fatalf("want ErrBusClosed, got %v", err)
	}

	if d.dials() != 1 {
		t.Fatalf("publish after close must not reconnect")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	d := &fakeDialer{}
	b := newBus(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Publish(ctx, event.NewCardNotFound("u", "c", ""))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if d.dials() != 0 {
		t.Fatalf("canceled publish must not connect")
	}
}

func TestHealth(t *testing.T) {
	d := &fakeDialer{}
	b := newBus(t, d)

	if h := b.Health(context.Background()); h.Status != cbus.StatusHealthy || !h.Connected {
		t.Fatalf("health=%+v", h)
	}

	_ = b.Close()

	if h := b.Health(context.Background()); h.Status != cbus.StatusUnhealthy {
		t.Fatalf("health after close=%+v", h)
	}
}

func TestHealth_Unreachable(t *testing.T) {
	d := &fakeDialer{err: errors.New("dial tcp: connection refused")}
	b := newBus(t, d)

	if h := b.Health(context.Background()); h.Status != cbus.StatusUnhealthy || h.Connected {
		t.Fatalf("health=%+v", h)
	}
}

func TestRoutingKey(t *testing.T) {
	e := event.NewCardNotFound("u", "c", "")

	if got := rabbitmq.RoutingKey(e); got != "cardnotfoundevent" {
		t.Fatalf("routing key=%q", got)
	}
}
