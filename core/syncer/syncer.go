package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/diff"
	"catalog-sync/core/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCycleInProgress is returned when a cycle is triggered while another
// one is still running.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// Orchestrator owns the cycle state machine and drives one cycle at a time.
type Orchestrator struct {
	cfg      Config
	source   PullSource
	matcher  Matcher
	store    Store
	archiver Archiver // nil disables archival
	logger   *zap.Logger

	stage atomic.Int32

	mu          sync.Mutex
	lastFailure *Failure
	resume      *resumeState
}

// resumeState keeps a failed cycle's work so the retry re-enters at the
// failed stage instead of pulling the whole catalog again.
type resumeState struct {
	result *CycleResult
	report *Report
	stage  Stage
}

// New creates an Orchestrator. archiver may be nil.
func New(cfg Config, source PullSource, matcher Matcher, store Store, archiver Archiver, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		source:   source,
		matcher:  matcher,
		store:    store,
		archiver: archiver,
		logger:   logger,
	}
}

// Stage returns the current cycle stage.
func (o *Orchestrator) Stage() Stage {
	return Stage(o.stage.Load())
}

// LastFailure returns the most recent cycle failure, or nil.
func (o *Orchestrator) LastFailure() *Failure {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastFailure
}

// RunCycle executes one pull → diff → match → persist cycle. Only one
// cycle may run at a time; concurrent calls get ErrCycleInProgress.
// The context is honored between stages; in-flight external calls finish
// or time out on their own rather than being hard-aborted.
//
// A cycle that failed past the pull stage leaves its work behind; the next
// RunCycle re-enters at the failed stage with the already pulled data
// instead of starting over.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Report, error) {
	if !o.stage.CompareAndSwap(int32(StageIdle), int32(StagePulling)) {
		return nil, ErrCycleInProgress
	}
	defer o.stage.Store(int32(StageIdle))

	started := time.Now()

	o.mu.Lock()
	pending := o.resume
	o.resume = nil
	o.mu.Unlock()

	var (
		result *CycleResult
		report *Report
		log    *zap.Logger
	)
	from := StageDiffing

	if pending != nil {
		result, report = pending.result, pending.report
		from = pending.stage
		log = o.logger.With(zap.String("cycle_id", result.CycleID))
		log.Info("resuming failed cycle", zap.Stringer("stage", from))
	} else {
		cycleID := uuid.NewString()
		log = o.logger.With(zap.String("cycle_id", cycleID))
		log.Info("cycle started")

		var err error
		result, report, err = o.pull(ctx, cycleID, log)
		if err != nil {
			return nil, o.fail(cycleID, StagePulling, err, log)
		}
	}

	if from <= StageDiffing {
		if err := o.advance(ctx, StageDiffing); err != nil {
			return nil, o.failResumable(result, report, StageDiffing, err, log)
		}
		if err := o.diffStage(ctx, result, log); err != nil {
			return nil, o.failResumable(result, report, StageDiffing, err, log)
		}
		report.Events = len(result.Events)
	}

	if from <= StageMatching {
		if err := o.advance(ctx, StageMatching); err != nil {
			return nil, o.failResumable(result, report, StageMatching, err, log)
		}
		o.matchStage(ctx, result, report, log)
	}

	if err := o.advance(ctx, StagePersisting); err != nil {
		return nil, o.failResumable(result, report, StagePersisting, err, log)
	}
	if err := o.store.CommitCycle(ctx, result); err != nil {
		if errors.Is(err, catalog.ErrConsistency) {
			// Re-running the same commit cannot clear a consistency breach;
			// the next cycle starts from a fresh pull.
			log.Error("consistency violation, cycle aborted without commit", zap.Error(err))
			return nil, o.fail(result.CycleID, StagePersisting, err, log)
		}
		return nil, o.failResumable(result, report, StagePersisting, err, log)
	}

	// Complete cycles retire products that no pull has seen for too long.
	if result.Complete && o.cfg.DeactivateAfter > 0 {
		n, err := o.store.DeactivateUnseen(ctx, result.PulledAt.Add(-o.cfg.DeactivateAfter))
		if err != nil {
			log.Warn("deactivation pass failed", zap.Error(err))
		} else {
			report.Deactivated = n
		}
	}

	if o.archiver != nil && len(result.Raw) > 0 {
		// Best effort: a lost archive never fails a committed cycle.
		if err := o.archiver.Store(ctx, result.CycleID, result.Raw); err != nil {
			log.Warn("pull archive failed", zap.Error(err))
		}
	}

	o.mu.Lock()
	o.lastFailure = nil
	o.mu.Unlock()

	report.Duration = time.Since(started)
	log.Info("cycle committed",
		zap.Bool("partial", report.Partial),
		zap.Int("pulled", report.Pulled),
		zap.Int("events", report.Events),
		zap.Int("matched", report.Matched),
		zap.Int("ambiguous", report.Ambiguous),
		zap.Int("match_errors", report.MatchErrors),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// pull fetches the full catalog category by category. A category that
// fails after retries marks the cycle partial instead of aborting it; the
// cycle only fails when nothing could be pulled at all.
func (o *Orchestrator) pull(ctx context.Context, cycleID string, log *zap.Logger) (*CycleResult, *Report, error) {
	policy := retry.FromConfig(o.cfg.Pull)
	products := make(map[string]catalog.Product)
	var pulledCategories []string
	var raw bytes.Buffer
	partial := false

	for _, category := range o.source.Categories() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := o.pullCategory(ctx, policy, category, products, &raw); err != nil {
			log.Warn("category pull failed, cycle is partial",
				zap.String("category", category), zap.Error(err))
			partial = true
			continue
		}
		pulledCategories = append(pulledCategories, category)
	}

	if len(pulledCategories) == 0 {
		return nil, nil, catalog.Transient("retailer.pull", errors.New("no category could be pulled"))
	}

	result := &CycleResult{
		CycleID:    cycleID,
		PulledAt:   time.Now(),
		Complete:   !partial,
		Categories: pulledCategories,
		Products:   products,
		Matches:    make(map[string]catalog.MatchResult),
		Raw:        raw.Bytes(),
	}
	report := &Report{CycleID: cycleID, Partial: partial, Pulled: len(products)}
	return result, report, nil
}

func (o *Orchestrator) pullCategory(ctx context.Context, policy retry.Policy, category string, products map[string]catalog.Product, raw *bytes.Buffer) error {
	page := 0
	totalPages := 1
	for page < totalPages {
		var pulled Page
		err := policy.Do(ctx, func(ctx context.Context) error {
			var err error
			pulled, err = o.source.PullPage(ctx, category, page)
			return err
		})
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		for _, p := range pulled.Products {
			products[p.ID] = p
		}
		if len(pulled.Raw) > 0 {
			raw.Write(pulled.Raw)
			raw.WriteByte('\n')
		}

		if pulled.TotalPages > 0 {
			totalPages = pulled.TotalPages
		}
		page++
	}
	return nil
}

// diffStage compares the pull against the last complete snapshot, scoped
// to the categories that actually pulled.
func (o *Orchestrator) diffStage(ctx context.Context, result *CycleResult, log *zap.Logger) error {
	previous, err := o.store.LastCompleteSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("loading diff baseline: %w", err)
	}

	result.Events = diff.Diff(previous, result.Products, diff.Options{
		PriceEpsilon: o.cfg.PriceEpsilon,
		Scope:        result.Categories,
		PulledAt:     result.PulledAt,
	})
	if previous == nil {
		log.Info("no prior complete snapshot, whole pull is new")
	}
	return nil
}

// matchStage fans matching out over a bounded worker pool. One product's
// failure never blocks the others; failures are logged, counted and left
// for the next cycle.
func (o *Orchestrator) matchStage(ctx context.Context, result *CycleResult, report *Report, log *zap.Logger) {
	queue, err := o.store.MatchQueue(ctx, result.Products, o.cfg.RelinkAfter, o.cfg.MatchBudget)
	if err != nil {
		// Matching is skippable: the cycle still commits its snapshot and
		// events, and matching catches up next round.
		log.Warn("match queue unavailable, skipping matching this cycle", zap.Error(err))
		report.MatchErrors++
		return
	}

	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, candidate := range queue {
		candidate := candidate
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			res, err := o.matcher.Match(gctx, candidate.Product, candidate.PriorExternalID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.MatchErrors++
				log.Warn("match failed, will retry next cycle",
					zap.String("product_id", candidate.Product.ID), zap.Error(err))
				return nil
			}
			result.Matches[candidate.Product.ID] = res
			switch res.Decision {
			case catalog.DecisionLinked:
				report.Matched++
			case catalog.DecisionAmbiguous:
				report.Ambiguous++
			case catalog.DecisionUnmatched:
				report.Unmatched++
			}
			return nil
		})
	}
	_ = g.Wait()
}

// advance moves the state machine to the next stage, honoring cancellation
// between stages.
func (o *Orchestrator) advance(ctx context.Context, next Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.stage.Store(int32(next))
	return nil
}

// fail records the failed stage and returns the error. The next cycle
// starts from scratch.
func (o *Orchestrator) fail(cycleID string, stage Stage, err error, log *zap.Logger) error {
	o.mu.Lock()
	o.lastFailure = &Failure{CycleID: cycleID, Stage: stage, Err: err, At: time.Now()}
	o.mu.Unlock()

	log.Error("cycle failed", zap.Stringer("stage", stage), zap.Error(err))
	return fmt.Errorf("cycle %s failed during %s: %w", cycleID, stage, err)
}

// failResumable records the failure and keeps the cycle's pulled work so
// the next run picks up at the failed stage.
func (o *Orchestrator) failResumable(result *CycleResult, report *Report, stage Stage, err error, log *zap.Logger) error {
	o.mu.Lock()
	o.resume = &resumeState{result: result, report: report, stage: stage}
	o.lastFailure = &Failure{CycleID: result.CycleID, Stage: stage, Err: err, At: time.Now()}
	o.mu.Unlock()

	log.Error("cycle failed, retry resumes here", zap.Stringer("stage", stage), zap.Error(err))
	return fmt.Errorf("cycle %s failed during %s: %w", result.CycleID, stage, err)
}
