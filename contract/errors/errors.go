package errors

import "errors"

// Error codes for the bus contracts. Keep stable; used across adapters,
// the resilient decorator, and the orchestrating service.
const (
	ErrCodeInvalidInput        = "eventbus.invalid_input"
	ErrCodeConfiguration       = "eventbus.invalid_configuration"
	ErrCodeTransientTransport  = "eventbus.transient_transport"
	ErrCodePermanentTransport  = "eventbus.permanent_transport"
	ErrCodeSerializationFailed = "eventbus.serialization_failed"
	ErrCodeBusClosed           = "eventbus.bus_closed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	// ErrInvalidInput marks a nil event or an empty batch, rejected before any I/O.
	ErrInvalidInput = Code(ErrCodeInvalidInput)
	// ErrConfiguration marks missing or invalid provider configuration. Fatal at startup.
	ErrConfiguration = Code(ErrCodeConfiguration)
	// ErrTransientTransport marks failures expected to succeed on retry
	// (broker unreachable, connection interrupted or closed).
	ErrTransientTransport = Code(ErrCodeTransientTransport)
	// ErrPermanentTransport marks failures retrying cannot fix
	// (authorization, unknown exchange/queue, malformed request).
	ErrPermanentTransport = Code(ErrCodePermanentTransport)
	// ErrSerializationFailed marks an event that could not be encoded.
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
	// ErrBusClosed marks a publish attempted after the bus was closed.
	ErrBusClosed = Code(ErrCodeBusClosed)
)

// IsTransient reports whether err (or anything it wraps) carries the
// transient-transport classification. The resilient decorator retries only
// errors for which this returns true.
func IsTransient(err error) bool { return errors.Is(err, ErrTransientTransport) }
