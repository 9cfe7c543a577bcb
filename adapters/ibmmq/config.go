package ibmmq

import (
	"fmt"
	"strings"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Config holds IBM MQ connection and publishing settings.
type Config struct {
	QueueManager string `mapstructure:"queueManager" validate:"required"`
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"min=1,max=65535"`
	Channel      string `mapstructure:"channel" validate:"required"`
	QueueName    string `mapstructure:"queueName" validate:"required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SSLEnabled   bool   `mapstructure:"sslEnabled"`
	CipherSpec   string `mapstructure:"cipherSpec"`
}

// Validate checks the structural invariants, naming the offending field.
// Construction fails fast on violation.
func (c Config) Validate() error {
	for field, v := range map[string]string{
		"host":         c.Host,
		"queueManager": c.QueueManager,
		"channel":      c.Channel,
		"queueName":    c.QueueName,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("ibmmq: %s must not be empty: %w", field, berr.ErrConfiguration)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("ibmmq: port %d out of range [1,65535]: %w", c.Port, berr.ErrConfiguration)
	}

	if c.SSLEnabled && strings.TrimSpace(c.CipherSpec) == "" {
		return fmt.Errorf("ibmmq: cipherSpec required when SSL is enabled: %w", berr.ErrConfiguration)
	}

	return nil
}

// ConnectionName renders the host(port) form the client channel definition expects.
func (c Config) ConnectionName() string {
	return fmt.Sprintf("%s(%d)", c.Host, c.Port)
}
