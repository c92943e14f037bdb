package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Runner is the job the scheduler drives: one sync cycle.
type Runner interface {
	RunCycle(ctx context.Context) (*Report, error)
}

// Scheduler is the background job runner registration point: it owns the
// recurring "run sync cycle" job and the earlier retry after a failure.
// Cycles never overlap; a trigger arriving mid-cycle is deferred, and at
// most one deferral is kept.
type Scheduler struct {
	runner        Runner
	interval      time.Duration
	retryInterval time.Duration
	logger        *zap.Logger

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a Scheduler for the given runner.
func NewScheduler(runner Runner, cfg Config, logger *zap.Logger) *Scheduler {
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 || retryInterval > cfg.Interval {
		retryInterval = cfg.Interval
	}
	return &Scheduler{
		runner:        runner,
		interval:      cfg.Interval,
		retryInterval: retryInterval,
		logger:        logger,
		trigger:       make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the scheduling loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Trigger requests an extra cycle. If one is already running, the request
// is deferred; a second request while one is pending is dropped.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop shuts the loop down and waits for a running cycle to finish its
// current stage boundary.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	next := s.run(ctx)
	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.trigger:
		case <-timer.C:
		}

		next = s.run(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

// run executes one cycle and returns the delay until the next one:
// the regular interval after success, the retry interval after a failure.
func (s *Scheduler) run(ctx context.Context) time.Duration {
	_, err := s.runner.RunCycle(ctx)
	switch {
	case err == nil:
		return s.interval
	case errors.Is(err, ErrCycleInProgress):
		// A manual trigger raced a running cycle; nothing to reschedule.
		return s.interval
	case ctx.Err() != nil:
		return s.interval
	default:
		s.logger.Warn("cycle failed, scheduling early retry",
			zap.Duration("retry_in", s.retryInterval), zap.Error(err))
		return s.retryInterval
	}
}
