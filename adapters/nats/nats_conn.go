package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Concrete NATS connection-backed Client and constructor.

// Config holds NATS connection settings.
type Config struct {
	URL           string        `mapstructure:"url" validate:"required"`
	Name          string        `mapstructure:"name"`
	ConnTimeout   time.Duration `mapstructure:"connTimeout"`
	MaxReconnects int           `mapstructure:"maxReconnects"`
}

// Validate checks the structural invariants.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("nats: url must not be empty: %w", berr.ErrConfiguration)
	}

	return nil
}

type natsClient struct{ nc *nats.Conn }

func (c natsClient) Publish(subject string, data []byte, headers map[string]string) error {
	msg := &nats.Msg{Subject: subject, Data: data}

	if len(headers) > 0 {
		h := nats.Header{}
		for k, v := range headers {
			h.Add(k, v)
		}

		msg.Header = h
	}

	if err := c.nc.PublishMsg(msg); err != nil {
		return err
	}

	return c.nc.Flush()
}

func (c natsClient) IsConnected() bool { return c.nc.IsConnected() }

func (c natsClient) Close() error {
	if c.nc.IsClosed() {
		return nil
	}

	err := c.nc.Drain()
	c.nc.Close()

	return err
}

// New validates cfg, connects, and returns the bus. The client reconnects on
// its own after transient outages.
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", errors.Join(berr.ErrTransientTransport, err))
	}

	return NewWithClient(natsClient{nc: nc}, logger), nil
}

// classify wraps err with its retry classification.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, berr.ErrTransientTransport) || errors.Is(err, berr.ErrPermanentTransport) {
		return err
	}

	if errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) {
		return fmt.Errorf("nats: %w", errors.Join(berr.ErrTransientTransport, err))
	}

	return fmt.Errorf("nats: %w", errors.Join(berr.ErrPermanentTransport, err))
}
