package syncer

import (
	"context"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/retry"
)

// Stage is a state of the cycle state machine.
type Stage int32

const (
	StageIdle Stage = iota
	StagePulling
	StageDiffing
	StageMatching
	StagePersisting
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePulling:
		return "pulling"
	case StageDiffing:
		return "diffing"
	case StageMatching:
		return "matching"
	case StagePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// Config holds the orchestrator's tunables.
type Config struct {
	// Interval is the regular cycle cadence.
	Interval time.Duration `mapstructure:"interval" default:"1h"`

	// RetryInterval is the earlier-than-usual delay after a failed cycle.
	RetryInterval time.Duration `mapstructure:"retry_interval" default:"10m"`

	// Workers bounds the concurrent matching fan-out. All workers share
	// one rate-limit budget regardless of this number.
	Workers int `mapstructure:"workers" default:"4"`

	// MatchBudget caps how many products are matched per cycle, keeping
	// one cycle from consuming the whole external-call budget.
	MatchBudget int `mapstructure:"match_budget" default:"50"`

	// PriceEpsilon is the negligible price delta passed to the differ.
	PriceEpsilon float64 `mapstructure:"price_epsilon" default:"0.5"`

	// RelinkAfter is how long a link may go unreaffirmed before its
	// product is queued for re-matching.
	RelinkAfter time.Duration `mapstructure:"relink_after" default:"168h"`

	// DeactivateAfter marks products unavailable when no pull has seen
	// them for this long. Applied only after complete cycles.
	DeactivateAfter time.Duration `mapstructure:"deactivate_after" default:"336h"`

	// Pull is the retry policy for catalog page pulls.
	Pull retry.Config `mapstructure:"pull"`
}

// Page is one page of a category pull.
type Page struct {
	Products   []catalog.Product
	TotalPages int
	Raw        []byte
}

// PullSource supplies the retailer catalog page by page. Implementations
// normalize upstream records and skip malformed ones.
type PullSource interface {
	Categories() []string
	PullPage(ctx context.Context, category string, page int) (Page, error)
}

// Matcher decides the link for one product. Errors are retryable lookup
// failures; definitive negatives come back as an Unmatched decision.
type Matcher interface {
	Match(ctx context.Context, p catalog.Product, priorExternalID string) (catalog.MatchResult, error)
}

// MatchCandidate is a product due for matching together with its
// previously confirmed external id, if any.
type MatchCandidate struct {
	Product catalog.Product

	// PriorExternalID enables the matcher's exact-id short-circuit.
	PriorExternalID string
}

// Store is the engine's persistence boundary. CommitCycle must be atomic
// with respect to one cycle: either all of the cycle's product, link,
// snapshot and event writes become visible, or none do.
type Store interface {
	// LastCompleteSnapshot returns the diff baseline, or nil when no
	// complete cycle has ever committed.
	LastCompleteSnapshot(ctx context.Context) (*catalog.Snapshot, error)

	// MatchQueue selects up to limit products due for matching out of the
	// pulled set: never linked, stale-linked, or flagged for recheck,
	// in that priority order.
	MatchQueue(ctx context.Context, pulled map[string]catalog.Product, relinkAfter time.Duration, limit int) ([]MatchCandidate, error)

	// CommitCycle persists one cycle's output transactionally.
	CommitCycle(ctx context.Context, result *CycleResult) error

	// DeactivateUnseen marks products unavailable whose last observation
	// predates the cutoff, returning how many were affected.
	DeactivateUnseen(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver stores the raw payload a committed cycle was built from.
type Archiver interface {
	Store(ctx context.Context, cycleID string, payload []byte) error
}

// CycleResult is everything one cycle produced, handed to the store for a
// single atomic commit.
type CycleResult struct {
	CycleID  string
	PulledAt time.Time

	// Complete reports whether every category pulled fully. Partial
	// results are persisted but do not become the diff baseline.
	Complete bool

	// Categories is the successfully pulled category space.
	Categories []string

	// Products is the pulled product set keyed by product id.
	Products map[string]catalog.Product

	// Events is the cycle's change set, each distinct change at most once.
	Events []catalog.ChangeEvent

	// Matches holds the matcher's decisions keyed by product id. Products
	// whose match failed transiently are absent and retried next cycle.
	Matches map[string]catalog.MatchResult

	// Raw is the pull payload for archival.
	Raw []byte
}

// Report summarizes a finished cycle for logging and the CLI.
type Report struct {
	CycleID     string
	Partial     bool
	Pulled      int
	Events      int
	Matched     int
	Ambiguous   int
	Unmatched   int
	MatchErrors int
	Deactivated int64
	Duration    time.Duration
}

// Failure records where a cycle failed. The orchestrator keeps the failed
// cycle's work alongside it, so the scheduler's early retry re-enters at
// the recorded stage rather than restarting the pull.
type Failure struct {
	CycleID string
	Stage   Stage
	Err     error
	At      time.Time
}
