// Package resilience wraps external-dependency call sites (object store,
// mail, DB insert) with retry and circuit-breaker policies as ordinary
// higher-order functions, wrapping calls directly at the site that makes
// them rather than through a middleware framework.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/icct/registration/internal/apierrors"
)

// RetryPolicy configures exponential backoff with jitter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (p RetryPolicy) backoffFor(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.25 // +/-25% jitter
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// permanent wraps an error so backoff.Retry stops immediately instead of
// exhausting the attempt budget on a non-transient failure.
func permanent(err error) error { return backoff.Permanent(err) }

// Retry runs fn up to policy.MaxAttempts times with exponential backoff,
// returning the last error if every attempt fails. fn should return a
// backoff.PermanentError (wrap with backoff.Permanent) for errors that retrying
// cannot fix.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return backoff.Retry(fn, policy.backoffFor(ctx))
}

// Breaker is a named circuit breaker over one external dependency, opening
// after a configured number of consecutive failures, half-opening after
// the cool-off to probe once.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker constructs a breaker. thresholdFailures consecutive failures
// trip it open for coolOff before a single half-open probe is allowed.
func NewBreaker(name string, thresholdFailures uint32, coolOff time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: coolOff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= thresholdFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A short-circuited call surfaces as
// apierrors.ErrCircuitOpen so callers can map it straight to a 503.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return nil, apierrors.ErrCircuitOpen
	}
	return result, err
}

// Call is a convenience wrapper combining retry and breaker for a
// void-returning external call, the shape upload/mail/DB-insert call sites
// actually need.
func Call(ctx context.Context, b *Breaker, policy RetryPolicy, fn func() error) error {
	_, err := b.Execute(func() (any, error) {
		return nil, Retry(ctx, policy, fn)
	})
	return err
}

// Permanent marks err as non-retryable for use inside a Retry/Call callback.
func Permanent(err error) error { return permanent(err) }
