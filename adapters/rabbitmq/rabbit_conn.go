package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Concrete AMQP connection wiring behind the Connection/Channel interfaces.

type amqpConnection struct{ conn *amqp.Connection }

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

func (c amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c amqpConnection) Close() error   { return c.conn.Close() }

// dialAMQP opens a connection with a bounded connect timeout and a heartbeat
// interval. Cancellation while dialing is handled by the bus; see
// Bus.dialWithContext.
func dialAMQP(_ context.Context, cfg Config) (Connection, error) {
	conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
		Heartbeat:  cfg.Heartbeat,
		Locale:     "en_US",
		Properties: amqp.Table{"product": "cardactions"},
		Dial:       amqp.DefaultDial(cfg.ConnTimeout),
	})
	if err != nil {
		return nil, err
	}

	return amqpConnection{conn: conn}, nil
}
