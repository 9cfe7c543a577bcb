package bus

import "context"

// EventBus is the capability contract shared by every provider.
// Implementations must be safe for concurrent use by multiple goroutines.
//
// Publish delivers a single event. A nil event is rejected with
// errors.ErrInvalidInput before any I/O. Transport failures are classified
// as transient or permanent by the concrete provider (see contract/errors).
//
// PublishBatch delivers a non-empty ordered sequence of events, expected to
// share one event type. Events are published sequentially and non-atomically:
// every element is attempted even when an earlier one failed, and any
// failures are returned as a *errors.BatchError naming each failed event.
// The batch is a convenience loop over Publish, not a transactional unit;
// which events succeeded is observable only through logging.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error

	// Close releases the provider's connection, if any. After Close,
	// Publish and PublishBatch fail fast with errors.ErrBusClosed.
	Close() error
}
