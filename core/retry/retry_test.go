package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalog-sync/core/catalog"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return catalog.Transient("test", errors.New("boom"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	fatal := errors.New("bad record")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return catalog.Transient("test", errors.New("still down"))
	})

	assert.True(t, catalog.IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(context.Context) error {
		calls++
		return catalog.Transient("test", errors.New("down"))
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoCustomPredicate(t *testing.T) {
	target := errors.New("retry me")
	p := Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return errors.Is(err, target) },
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return target
	})

	assert.ErrorIs(t, err, target)
	assert.Equal(t, 2, calls)
}
