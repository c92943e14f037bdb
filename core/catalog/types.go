package catalog

import (
	"math"
	"time"
)

// Product represents a retailer catalog entry for a beer-like item.
// Identity is the retailer's stable product id. Products are never deleted,
// only marked unavailable; the retailer may reintroduce the same id later.
type Product struct {
	// ID is the retailer's stable product id.
	ID string `json:"id"`

	// Name is the retailer display name, free text.
	Name string `json:"name"`

	// Brewery is the brewery name as reported by the retailer. May be empty.
	Brewery string `json:"brewery,omitempty"`

	// Style is the retailer's style tag (e.g. sub category).
	Style string `json:"style,omitempty"`

	// Category is the retailer's top-level category the product was pulled under.
	Category string `json:"category"`

	// ABV is the alcohol percentage. Zero when the retailer omits it.
	ABV float64 `json:"abv,omitempty"`

	// Volume is the package volume in litres.
	Volume float64 `json:"volume,omitempty"`

	// Price is the retailer price in whole currency units.
	Price float64 `json:"price"`

	// PricePerLitre is derived from Price and Volume at pull time.
	PricePerLitre float64 `json:"price_per_litre,omitempty"`

	// Available reports whether the product can currently be purchased.
	Available bool `json:"available"`

	// ReleaseDate is the retailer's announced release date, when known.
	ReleaseDate *time.Time `json:"release_date,omitempty"`

	// URL is the retailer product page.
	URL string `json:"url,omitempty"`
}

// ExternalBeer represents a community-database beer record. It is read-only
// from the engine's point of view and cached locally on a slower cadence
// than products.
type ExternalBeer struct {
	// ID is the external database's stable beer id.
	ID string `json:"id"`

	// Name is the beer name as recorded externally.
	Name string `json:"name"`

	// Brewery is the producing brewery.
	Brewery string `json:"brewery,omitempty"`

	// Style is the community style tag.
	Style string `json:"style,omitempty"`

	// ABV is the alcohol percentage reported externally.
	ABV float64 `json:"abv,omitempty"`

	// Rating is the community average rating, 0-5.
	Rating float64 `json:"rating,omitempty"`

	// Checkins is the number of ratings behind Rating.
	Checkins int `json:"checkins,omitempty"`

	// URL is the external record's page.
	URL string `json:"url,omitempty"`
}

// Match methods recorded on links.
const (
	MethodExact  = "exact"
	MethodFuzzy  = "fuzzy"
	MethodManual = "manual"
)

// Link statuses. At most one link per product may be active.
const (
	StatusActive   = "active"
	StatusPending  = "pending_review"
	StatusRejected = "rejected"
)

// Link relates one product to at most one external beer.
type Link struct {
	ProductID  string `json:"product_id"`
	ExternalID string `json:"external_id"`

	// Confidence is the match score in [0,1]. Manual links carry 1.
	Confidence float64 `json:"confidence"`

	// Method is one of MethodExact, MethodFuzzy, MethodManual.
	Method string `json:"method"`

	// Status is one of StatusActive, StatusPending, StatusRejected.
	Status string `json:"status"`

	// MissedCycles counts consecutive cycles in which reaffirmation failed.
	// Reset to zero on every successful reaffirmation.
	MissedCycles int `json:"missed_cycles"`

	CreatedAt    time.Time `json:"created_at"`
	ReaffirmedAt time.Time `json:"reaffirmed_at"`
}

// Decision is the outcome class of a match attempt.
type Decision string

const (
	// DecisionLinked means a single candidate cleared the link threshold.
	DecisionLinked Decision = "linked"
	// DecisionAmbiguous means multiple candidates scored too close to call.
	// Ambiguous results are surfaced for manual review, never auto-linked.
	DecisionAmbiguous Decision = "ambiguous"
	// DecisionUnmatched means no candidate scored high enough. This is a
	// definitive negative, distinct from a retryable lookup failure.
	DecisionUnmatched Decision = "unmatched"
)

// MatchResult is the matcher's decision for one product.
type MatchResult struct {
	Decision Decision `json:"decision"`

	// Beer is set when Decision is DecisionLinked.
	Beer *ExternalBeer `json:"beer,omitempty"`

	// Confidence is the winning score when Decision is DecisionLinked.
	Confidence float64 `json:"confidence,omitempty"`

	// Method is how the link was established (exact-id reuse or fuzzy).
	Method string `json:"method,omitempty"`

	// Candidates holds the top contenders when Decision is DecisionAmbiguous.
	Candidates []ScoredCandidate `json:"candidates,omitempty"`
}

// ScoredCandidate pairs a candidate beer with its similarity score.
type ScoredCandidate struct {
	Beer  ExternalBeer `json:"beer"`
	Score float64      `json:"score"`
}

// Snapshot is an immutable record of the full product set as of one pull
// cycle. Partial cycles produce snapshots too, but only complete snapshots
// become the differ's baseline.
type Snapshot struct {
	// CycleID identifies the cycle that produced this snapshot.
	CycleID string `json:"cycle_id"`

	// PulledAt is when the pull finished.
	PulledAt time.Time `json:"pulled_at"`

	// Complete reports whether every page of every category was retrieved.
	Complete bool `json:"complete"`

	// Categories lists the category space this snapshot covers. For partial
	// cycles this is the successfully pulled subset only.
	Categories []string `json:"categories"`

	// Products indexes the product states by product id.
	Products map[string]Product `json:"products"`
}

// ChangeKind classifies a catalog difference between consecutive snapshots.
type ChangeKind string

const (
	ChangeNew          ChangeKind = "new"
	ChangeRemoved      ChangeKind = "removed"
	ChangeAvailability ChangeKind = "availability_changed"
	ChangePrice        ChangeKind = "price_changed"
)

// ChangeEvent is a derived notification of a catalog difference. A product
// with several simultaneous differences emits one event per kind.
type ChangeEvent struct {
	ProductID string     `json:"product_id"`
	Kind      ChangeKind `json:"kind"`

	// Before and After carry the changed value rendered as strings, so
	// consumers can display them without knowing the field type.
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`

	// PulledAt is the timestamp of the pull that surfaced the change.
	PulledAt time.Time `json:"pulled_at"`
}

// ValueScore computes the rating-for-money score used by the read API.
// It rewards rating super-linearly and penalises price per litre gently,
// returning 0 when either input is missing.
func ValueScore(rating, pricePerLitre float64) float64 {
	if rating <= 0 || pricePerLitre <= 0 {
		return 0
	}
	return math.Pow(rating, 4.8) / math.Pow(pricePerLitre/100, 0.32) * 0.0176
}
