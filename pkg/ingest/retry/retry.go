// Package retry provides the retry strategies wrapped around remote calls.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// Policy runs fn until it succeeds, the policy gives up, or ctx is done.
type Policy interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

// None runs fn exactly once.
type None struct{}

func (None) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Exponential retries with exponential backoff and jitter.
type Exponential struct {
	MaxAttempts     int           // total attempts including the first (default: 3)
	InitialInterval time.Duration // default: 500ms
	MaxInterval     time.Duration // default: 10s
	Multiplier      float64       // default: 2
	Retryable       func(error) bool
	Logger          *slog.Logger
}

// NewExponential returns an Exponential policy with the given attempt count
// and initial interval and defaults for everything else.
func NewExponential(maxAttempts int, initial time.Duration) *Exponential {
	return &Exponential{
		MaxAttempts:     maxAttempts,
		InitialInterval: initial,
	}
}

func (p *Exponential) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := p.newBackOff()
	bctx := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying remote call", "op", op, "attempt", attempt, "wait", wait, "err", err)
	}

	return backoff.RetryNotify(operation, bctx, notify)
}

func (p *Exponential) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxInterval = 10 * time.Second
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	// attempts bound the policy, not elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// DefaultRetryable retries errors marked temporary and network timeouts.
// Context cancellation is never retried.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ingest.IsTemporary(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
