package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nexacard/cardactions/adapters/rabbitmq"
	"github.com/nexacard/cardactions/config"
	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
	"github.com/nexacard/cardactions/event"
	"github.com/nexacard/cardactions/eventbus"
)

func TestNew_InMemoryDefault(t *testing.T) {
	bus, cleanup, err := eventbus.New(config.EventBusConfig{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	if err := bus.Publish(context.Background(), event.NewCardNotFound("u", "c", "")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	hr, ok := bus.(cbus.HealthReporter)
	if !ok {
		t.Fatalf("bus must report health")
	}

	if h := hr.Health(context.Background()); h.Provider != "in-memory" || h.Status != cbus.StatusHealthy {
		t.Fatalf("health=%+v", h)
	}
}

func TestNew_RabbitMQIsLazy(t *testing.T) {
	cfg := config.EventBusConfig{
		Provider: "RABBITMQ",
		RabbitMQ: &rabbitmq.Config{
			Host:        "localhost",
			Port:        5672,
			Username:    "guest",
			Password:    "guest",
			VirtualHost: "/",
			Exchange:    "card-events",
		},
	}

	// no broker is running; construction must still succeed
	bus, cleanup, err := eventbus.New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if bus == nil {
		t.Fatalf("nil bus")
	}

	cleanup()
}

func TestNew_UnknownProvider(t *testing.T) {
	_, _, err := eventbus.New(config.EventBusConfig{Provider: "zeromq"}, nil)
	if !errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestNew_MissingProviderSection(t *testing.T) {
	_, _, err := eventbus.New(config.EventBusConfig{Provider: "nats"}, nil)
	if !errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestNew_InvalidProviderConfig(t *testing.T) {
	cfg := config.EventBusConfig{
		Provider: "rabbitmq",
		RabbitMQ: &rabbitmq.Config{Port: 5672},
	}

	_, _, err := eventbus.New(cfg, nil)
	if !errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}
