package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Concrete franz-go based constructor and writer wrapper.

// Config holds Kafka connection and publishing settings.
type Config struct {
	Brokers  []string `mapstructure:"brokers" validate:"required,min=1"`
	ClientID string   `mapstructure:"clientId"`
	Topic    string   `mapstructure:"topic" validate:"required"`
}

// Validate checks the structural invariants.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: brokers must not be empty: %w", berr.ErrConfiguration)
	}

	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("kafka: topic must not be empty: %w", berr.ErrConfiguration)
	}

	return nil
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}

	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return w.cl.ProduceSync(ctx, rec).FirstErr()
}

func (w kgoWriter) Close() error {
	w.cl.Close()
	return nil
}

// New validates cfg, builds the franz-go client, and returns the bus.
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client init: %w", errors.Join(berr.ErrConfiguration, err))
	}

	return NewWithWriter(cfg.Topic, kgoWriter{cl: cl}, logger), nil
}

// classify wraps err with its retry classification. Broker error codes carry
// their own retriable flag.
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

	var ke *kerr.Error
	if errors.As(err, &ke) {
		if ke.Retriable {
			return fmt.Errorf("kafka broker error %d: %w", ke.Code, errors.Join(berr.ErrTransientTransport, err))
		}

		return fmt.Errorf("kafka broker error %d: %w", ke.Code, errors.Join(berr.ErrPermanentTransport, err))
	}

	if errors.Is(err, kgo.ErrClientClosed) {
		return fmt.Errorf("kafka: %w", errors.Join(berr.ErrPermanentTransport, err))
	}

	return fmt.Errorf("kafka: %w", errors.Join(berr.ErrTransientTransport, err))
}
