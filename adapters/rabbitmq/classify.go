package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Transient/permanent policy as a data table over AMQP reply codes, so the
// retry classification is testable in isolation.
var transientAMQPCodes = map[int]bool{
	amqp.ContentTooLarge:    false,
	amqp.AccessRefused:      false,
	amqp.NotFound:           false,
	amqp.ResourceLocked:     false,
	amqp.PreconditionFailed: false,

	amqp.ConnectionForced: true,
	amqp.FrameError:       true,
	amqp.SyntaxError:      false,
	amqp.CommandInvalid:   false,
	amqp.ChannelError:     true,
	amqp.UnexpectedFrame:  true,
	amqp.ResourceError:    true,
	amqp.NotAllowed:       false,
	amqp.NotImplemented:   false,
	amqp.InternalError:    true,
}

// Reply codes that indicate the shared connection is unusable and must be
// torn down so the next publish reconnects.
var connectionAMQPCodes = map[int]bool{
	amqp.ConnectionForced: true,
	amqp.InvalidPath:      true,
	amqp.FrameError:       true,
	amqp.SyntaxError:      true,
	amqp.CommandInvalid:   true,
	amqp.ChannelError:     true,
	amqp.UnexpectedFrame:  true,
	amqp.ResourceError:    true,
	amqp.InternalError:    true,
}

// classify wraps err with its retry classification. Context errors and
// already-classified errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, berr.ErrTransientTransport) ||
		errors.Is(err, berr.ErrPermanentTransport) ||
		errors.Is(err, berr.ErrBusClosed) ||
		errors.Is(err, berr.ErrInvalidInput) {
		return err
	}

	if errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("rabbitmq connection closed: %w", errors.Join(berr.ErrTransientTransport, err))
	}

	var ae *amqp.Error
	if errors.As(err, &ae) {
		if transientAMQPCodes[ae.Code] {
			return fmt.Errorf("rabbitmq broker error %d: %w", ae.Code, errors.Join(berr.ErrTransientTransport, err))
		}

		return fmt.Errorf("rabbitmq broker error %d: %w", ae.Code, errors.Join(berr.ErrPermanentTransport, err))
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("rabbitmq broker unreachable: %w", errors.Join(berr.ErrTransientTransport, err))
	}

	return fmt.Errorf("rabbitmq: %w", errors.Join(berr.ErrPermanentTransport, err))
}

// needsReconnect reports whether err invalidates the shared connection.
func needsReconnect(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}

	var ae *amqp.Error
	if errors.As(err, &ae) {
		return connectionAMQPCodes[ae.Code]
	}

	return false
}
