package bus

import "time"

// Event is the read surface every domain event exposes to the bus.
// Concrete events are immutable value records; all fields are assigned at
// construction and never change afterwards.
type Event interface {
	// EventID is a globally unique identifier assigned at construction.
	EventID() string
	// EventType is the string tag derived from the concrete variant name.
	// Providers derive routing keys / subjects / properties from it.
	EventType() string
	// OccurredAt is the UTC construction timestamp.
	OccurredAt() time.Time
	// SchemaVersion is the wire schema revision, 1 unless a variant overrides it.
	SchemaVersion() int
}
