// Package config loads and validates service configuration. Values layer in
// the usual order: built-in defaults, then an optional YAML file, then
// CARDACTIONS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/nexacard/cardactions/adapters/ibmmq"
	"github.com/nexacard/cardactions/adapters/kafka"
	natsbus "github.com/nexacard/cardactions/adapters/nats"
	"github.com/nexacard/cardactions/adapters/rabbitmq"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// Provider names accepted for eventbus.provider. Matching is case-insensitive.
const (
	ProviderInMemory = "in-memory"
	ProviderRabbitMQ = "rabbitmq"
	ProviderIBMMQ    = "ibmmq"
	ProviderNATS     = "nats"
	ProviderKafka    = "kafka"
)

const envPrefix = "CARDACTIONS"

// Config is the root of the service configuration tree.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	EventBus EventBusConfig `mapstructure:"eventbus"`
	Cards    CardsConfig    `mapstructure:"cards"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"min=0"`
}

// EventBusConfig selects a publishing provider and carries its settings.
// Only the sub-config of the selected provider is required; the provider
// packages validate their own fields.
type EventBusConfig struct {
	Provider string `mapstructure:"provider"`

	RabbitMQ *rabbitmq.Config `mapstructure:"rabbitmq" validate:"-"`
	IBMMQ    *ibmmq.Config    `mapstructure:"ibmmq" validate:"-"`
	NATS     *natsbus.Config  `mapstructure:"nats" validate:"-"`
	Kafka    *kafka.Config    `mapstructure:"kafka" validate:"-"`
}

// CardsConfig sizes the generated sample card data.
type CardsConfig struct {
	Users        int `mapstructure:"users" validate:"min=1"`
	CardsPerType int `mapstructure:"cardsPerType" validate:"min=1"`
}

// Normalized returns the provider name folded to lower case, defaulting to
// in-memory when unset.
func (c EventBusConfig) Normalized() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderInMemory
	}

	return p
}

// Load reads configuration from path (or ./config.yaml when path is empty,
// which may be absent) plus the environment, then validates the result.
// Invalid configuration fails here so startup can abort early.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdownTimeout", "10s")
	v.SetDefault("eventbus.provider", ProviderInMemory)
	v.SetDefault("cards.users", 5)
	v.SetDefault("cards.cardsPerType", 1)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, errors.Join(berr.ErrConfiguration, err))
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", errors.Join(berr.ErrConfiguration, err))
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", errors.Join(berr.ErrConfiguration, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the structural pass, then the selected provider's own
// validation. A selected provider without its sub-config is an error naming
// the missing section.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", errors.Join(berr.ErrConfiguration, err))
	}

	switch p := c.EventBus.Normalized(); p {
	case ProviderInMemory:
		return nil
	case ProviderRabbitMQ:
		if c.EventBus.RabbitMQ == nil {
			return missingSection("eventbus.rabbitmq", p)
		}

		return c.EventBus.RabbitMQ.Validate()
	case ProviderIBMMQ:
		if c.EventBus.IBMMQ == nil {
			return missingSection("eventbus.ibmmq", p)
		}

		return c.EventBus.IBMMQ.Validate()
	case ProviderNATS:
		if c.EventBus.NATS == nil {
			return missingSection("eventbus.nats", p)
		}

		return c.EventBus.NATS.Validate()
	case ProviderKafka:
		if c.EventBus.Kafka == nil {
			return missingSection("eventbus.kafka", p)
		}

		return c.EventBus.Kafka.Validate()
	default:
		return fmt.Errorf("config: unknown event bus provider %q: %w", c.EventBus.Provider, berr.ErrConfiguration)
	}
}

func missingSection(section, provider string) error {
	return fmt.Errorf("config: %s required when provider is %q: %w", section, provider, berr.ErrConfiguration)
}
