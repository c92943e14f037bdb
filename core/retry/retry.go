// Package retry provides a declarative retry policy for external calls.
//
// Instead of ad hoc loops at every call site, a Policy bundles the maximum
// attempt count, the backoff curve and the predicate that decides which
// errors are worth retrying. The pull loop and the matcher attach a policy
// each; both stop early when the context is cancelled.
package retry

import (
	"context"
	"time"

	"catalog-sync/core/catalog"
)

// Policy describes how an external call is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Each further
	// attempt doubles it, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil means "transient errors only".
	Retryable func(error) bool
}

// Config is the operator-facing shape of a Policy.
type Config struct {
	// MaxAttempts bounds attempts per call per cycle.
	MaxAttempts int `mapstructure:"max_attempts" default:"3"`
	// InitialBackoff is the first retry delay, doubling each attempt.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"2s"`
	// MaxBackoff caps the backoff curve.
	MaxBackoff time.Duration `mapstructure:"max_backoff" default:"30s"`
}

// FromConfig builds a transient-only policy from configuration.
func FromConfig(cfg Config) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// Do runs op until it succeeds, exhausts the attempt budget, hits a
// non-retryable error, or the context is cancelled. The last error is
// returned unwrapped so callers can still classify it.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = catalog.IsTransient
	}

	backoff := p.InitialBackoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
