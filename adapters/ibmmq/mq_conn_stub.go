//go:build !mqclient

package ibmmq

import (
	"context"
	"fmt"

	berr "github.com/nexacard/cardactions/contract/errors"
)

// Without the mqclient build tag the SDK (and its cgo dependency on the MQ
// client libraries) is not linked in; connecting reports a configuration
// error instead.

func stubConnector(_ context.Context, _ Config) (QueueManager, error) {
	return nil, fmt.Errorf("ibmmq: binary built without IBM MQ client support (mqclient build tag): %w", berr.ErrConfiguration)
}

func init() { defaultConnector = stubConnector }
