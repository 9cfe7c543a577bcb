package ibmmq

import (
	"context"
	"errors"
	"fmt"
	"net"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// MQ reason codes the bus reacts to. Kept as local constants so the core
// adapter does not depend on the cgo client package.
const (
	rcConnectionBroken = 2009 // MQRC_CONNECTION_BROKEN
	rcNotAuthorized    = 2035 // MQRC_NOT_AUTHORIZED
	rcQMgrNotAvailable = 2059 // MQRC_Q_MGR_NOT_AVAILABLE
	rcQMgrQuiescing    = 2161 // MQRC_Q_MGR_QUIESCING
	rcConnectionError  = 2273 // MQRC_CONNECTION_ERROR
)

// connectionReasonCodes name the connection-level failures that invalidate
// the shared queue-manager handle. Not-authorized invalidates the handle too
// but stays classified permanent.
var connectionReasonCodes = map[int32]bool{
	rcConnectionBroken: true,
	rcNotAuthorized:    true,
	rcQMgrNotAvailable: true,
	rcQMgrQuiescing:    true,
	rcConnectionError:  true,
}

// transientReasonCodes is the retry policy as data: failures expected to
// succeed once the queue manager is reachable again. Authorization failures
// are not retried.
var transientReasonCodes = map[int32]bool{
	rcConnectionBroken: true,
	rcQMgrNotAvailable: true,
	rcQMgrQuiescing:    true,
	rcConnectionError:  true,
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

	var rce ReasonCodeError
	if errors.As(err, &rce) {
		if transientReasonCodes[rce.ReasonCode()] {
			return fmt.Errorf("ibmmq reason %d: %w", rce.ReasonCode(), errors.Join(berr.ErrTransientTransport, err))
		}

		return fmt.Errorf("ibmmq reason %d: %w", rce.ReasonCode(), errors.Join(berr.ErrPermanentTransport, err))
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("ibmmq queue manager unreachable: %w", errors.Join(berr.ErrTransientTransport, err))
	}

	return fmt.Errorf("ibmmq: %w", errors.Join(berr.ErrPermanentTransport, err))
}
