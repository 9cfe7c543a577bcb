package bus

import "context"

// Status is the coarse health classification reported by a provider.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Health is a point-in-time snapshot of a provider's transport state.
type Health struct {
	Provider  string `json:"provider"`
	Status    Status `json:"status"`
	Connected bool   `json:"connected"`
	LastError string `json:"lastError,omitempty"`
}

// HealthReporter is implemented by providers that can probe their transport.
// RabbitMQ health means the exchange can be declared passively; IBM MQ health
// means the queue can be opened for inquiry and its depth read. The in-memory
// provider is always healthy.
type HealthReporter interface {
	Health(ctx context.Context) Health
}
