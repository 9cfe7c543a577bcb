// Package eventbus assembles a ready-to-use event bus from configuration:
// the configured provider wrapped in the retry decorator, plus a cleanup
// function that closes it.
package eventbus

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nexacard/cardactions/adapters/ibmmq"
	"github.com/nexacard/cardactions/adapters/inmemory"
	"github.com/nexacard/cardactions/adapters/kafka"
	natsbus "github.com/nexacard/cardactions/adapters/nats"
	"github.com/nexacard/cardactions/adapters/rabbitmq"
	"github.com/nexacard/cardactions/config"
	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
	"github.com/nexacard/cardactions/resilient"
)

// New builds the bus selected by cfg and returns it with a cleanup function
// that closes it. The returned bus retries transient publish failures; see
// the resilient package for the policy.
func New(cfg config.EventBusConfig, logger *slog.Logger) (cbus.EventBus, func(), error) { //nolint:ireturn
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	provider := cfg.Normalized()

	inner, err := newProvider(provider, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("event bus ready", "provider", provider)

	bus := resilient.Wrap(inner, logger)
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("event bus close", "provider", provider, "error", err)
		}
	}

	return bus, cleanup, nil
}

func newProvider(provider string, cfg config.EventBusConfig, logger *slog.Logger) (cbus.EventBus, error) { //nolint:ireturn
	switch provider {
	case config.ProviderInMemory:
		return inmemory.New(), nil
	case config.ProviderRabbitMQ:
		if cfg.RabbitMQ == nil {
			return nil, missingSection("eventbus.rabbitmq", provider)
		}

		return rabbitmq.New(*cfg.RabbitMQ, logger)
	case config.ProviderIBMMQ:
		if cfg.IBMMQ == nil {
			return nil, missingSection("eventbus.ibmmq", provider)
		}

		return ibmmq.New(*cfg.IBMMQ, logger)
	case config.ProviderNATS:
		if cfg.NATS == nil {
			return nil, missingSection("eventbus.nats", provider)
		}

		return natsbus.New(*cfg.NATS, logger)
	case config.ProviderKafka:
		if cfg.Kafka == nil {
			return nil, missingSection("eventbus.kafka", provider)
		}

		return kafka.New(*cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("eventbus: unknown provider %q: %w", provider, berr.ErrConfiguration)
	}
}

func missingSection(section, provider string) error {
	return fmt.Errorf("eventbus: %s required when provider is %q: %w", section, provider, berr.ErrConfiguration)
}
