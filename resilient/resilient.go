// Package resilient decorates any EventBus with retry-with-backoff around
// transient transport failures. The wrapped bus supplies the classification;
// this package only decides whether and when to try again.
package resilient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the first
	// failure (four attempts total).
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the first retry delay; it doubles per attempt.
	DefaultBaseDelay = 200 * time.Millisecond
)

// Option configures a Bus.
type Option func(*Bus)

// WithMaxRetries overrides the retry limit.
func WithMaxRetries(n uint64) Option { return func(b *Bus) { b.maxRetries = n } }

// WithBaseDelay overrides the initial backoff delay.
func WithBaseDelay(d time.Duration) Option { return func(b *Bus) { b.baseDelay = d } }

// Bus wraps an inner EventBus and retries transient failures with
// exponential backoff. Errors outside the transient classification propagate
// immediately without retry.
//
// PublishBatch is retried as a single unit: a retried batch re-publishes
// every event in it, including ones that succeeded in a prior attempt. That
// duplicate risk is the documented at-least-once tradeoff of batch retry.
type Bus struct {
	inner      cbus.EventBus
	logger     *slog.Logger
	maxRetries uint64
	baseDelay  time.Duration
}

var _ cbus.EventBus = (*Bus)(nil)

// Wrap decorates inner with the retry policy.
func Wrap(inner cbus.EventBus, logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Bus{
		inner:      inner,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Bus) Publish(ctx context.Context, e cbus.Event) error {
	return b.retry(ctx, "publish", func() error {
		return b.inner.Publish(ctx, e)
	})
}

func (b *Bus) PublishBatch(ctx context.Context, events []cbus.Event) error {
	return b.retry(ctx, "publish batch", func() error {
		return b.inner.PublishBatch(ctx, events)
	})
}

// Close passes through; closing is never retried.
func (b *Bus) Close() error { return b.inner.Close() }

// Health passes through when the inner bus reports it.
func (b *Bus) Health(ctx context.Context) cbus.Health {
	if hr, ok := b.inner.(cbus.HealthReporter); ok {
		return hr.Health(ctx)
	}

	return cbus.Health{Provider: "unknown", Status: cbus.StatusHealthy, Connected: true}
}

func (b *Bus) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0

	policy := b.newPolicy(ctx)

	notify := func(err error, delay time.Duration) {
		attempt++
		b.logger.Warn("retrying after transient publish failure",
			"operation", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if !berr.IsTransient(err) {
			return backoff.Permanent(err)
		}

		return err
	}, policy, notify)
}

// newPolicy builds a deterministic doubling schedule: baseDelay, 2x, 4x, ...
// capped at maxRetries additional attempts and bounded by ctx.
func (b *Bus) newPolicy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = b.baseDelay << b.maxRetries
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, b.maxRetries), ctx)
}

// String describes the policy, useful in startup logs.
func (b *Bus) String() string {
	return fmt.Sprintf("resilient(maxRetries=%d, baseDelay=%s)", b.maxRetries, b.baseDelay)
}
