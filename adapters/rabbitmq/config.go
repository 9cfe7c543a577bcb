package rabbitmq

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Config holds RabbitMQ connection and publishing settings.
type Config struct {
	Host        string        `mapstructure:"host" validate:"required"`
	Port        int           `mapstructure:"port" validate:"min=1,max=65535"`
	Username    string        `mapstructure:"username" validate:"required"`
	Password    string        `mapstructure:"password" validate:"required"`
	VirtualHost string        `mapstructure:"vhost" validate:"required"`
	Exchange    string        `mapstructure:"exchange" validate:"required"`
	ConnTimeout time.Duration `mapstructure:"connTimeout"`
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
}

func (c *Config) applyDefaults() {
	if c.ConnTimeout <= 0 {
		c.ConnTimeout = defaultConnTimeout
	}

	if c.Heartbeat <= 0 {
		c.Heartbeat = defaultHeartbeat
	}
}

// Validate checks the structural invariants, naming the offending field.
// Construction fails fast on violation; nothing is validated again at publish time.
func (c Config) Validate() error {
	for field, v := range map[string]string{
		"host":     c.Host,
		"username": c.Username,
		"password": c.Password,
		"vhost":    c.VirtualHost,
		"exchange": c.Exchange,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("rabbitmq: %s must not be empty: %w", field, berr.ErrConfiguration)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("rabbitmq: port %d out of range [1,65535]: %w", c.Port, berr.ErrConfiguration)
	}

	return nil
}

// URL renders the amqp:// connection string.
func (c Config) URL() string {
	vhost := c.VirtualHost
	if vhost == "/" {
		vhost = ""
	}

	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + vhost,
	}

	return u.String()
}
