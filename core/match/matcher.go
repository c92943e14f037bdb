package match

import (
	"context"
	"errors"
	"sort"
	"strings"

	"catalog-sync/core/catalog"
	"catalog-sync/core/normalize"

	"go.uber.org/zap"
)

// CandidateSource supplies external beer records. Implementations are
// responsible for acquiring rate-limit budget before any outbound call.
type CandidateSource interface {
	// LookupByBrewery returns candidates whose brewery matches the given
	// normalized name exactly or by prefix.
	LookupByBrewery(ctx context.Context, brewery string) ([]catalog.ExternalBeer, error)
	// GetByID resolves a single record, returning catalog.ErrNotFound for
	// ids that no longer exist upstream.
	GetByID(ctx context.Context, id string) (catalog.ExternalBeer, error)
}

// Matcher scores products against external candidates and decides
// link / ambiguous / unmatched. It performs no writes; the link store
// persists the decision.
type Matcher struct {
	cfg    Config
	source CandidateSource
	logger *zap.Logger
}

// New creates a Matcher.
func New(cfg Config, source CandidateSource, logger *zap.Logger) *Matcher {
	return &Matcher{cfg: cfg, source: source, logger: logger}
}

// Match decides the link for one product. priorExternalID carries the
// external id of a previously confirmed link, or "" if the product has
// never been linked.
//
// A non-nil error is always retryable (the candidate lookup failed); a
// definitive "no good candidate" is the Unmatched decision, not an error.
func (m *Matcher) Match(ctx context.Context, p catalog.Product, priorExternalID string) (catalog.MatchResult, error) {
	// Exact-id short-circuit: reaffirm a previously confirmed link unless
	// the id no longer resolves, in which case fall through to fuzzy.
	if priorExternalID != "" {
		beer, err := m.source.GetByID(ctx, priorExternalID)
		switch {
		case err == nil:
			return catalog.MatchResult{
				Decision:   catalog.DecisionLinked,
				Beer:       &beer,
				Confidence: m.Score(p, beer),
				Method:     catalog.MethodExact,
			}, nil
		case errors.Is(err, catalog.ErrNotFound):
			m.logger.Info("prior external id no longer resolves, re-matching",
				zap.String("product_id", p.ID),
				zap.String("external_id", priorExternalID))
		default:
			return catalog.MatchResult{}, catalog.Transient("beerdb.get", err)
		}
	}

	candidates, err := m.source.LookupByBrewery(ctx, m.breweryQuery(p))
	if err != nil {
		return catalog.MatchResult{}, catalog.Transient("beerdb.lookup", err)
	}
	if len(candidates) == 0 {
		return catalog.MatchResult{Decision: catalog.DecisionUnmatched}, nil
	}

	scored := make([]catalog.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, catalog.ScoredCandidate{Beer: c, Score: m.Score(p, c)})
	}
	// Sort by score, then id, so repeated invocations with the same
	// candidate set decide identically.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Beer.ID < scored[j].Beer.ID
	})

	return m.decide(scored), nil
}

// decide applies the configured thresholds to the sorted candidate list.
func (m *Matcher) decide(scored []catalog.ScoredCandidate) catalog.MatchResult {
	top := scored[0]

	if top.Score >= m.cfg.LinkThreshold {
		beer := top.Beer
		return catalog.MatchResult{
			Decision:   catalog.DecisionLinked,
			Beer:       &beer,
			Confidence: top.Score,
			Method:     catalog.MethodFuzzy,
		}
	}

	// In the ambiguity band a close runner-up means the sources genuinely
	// disagree; surface the contenders instead of guessing.
	if top.Score >= m.cfg.AmbiguityFloor && len(scored) > 1 &&
		top.Score-scored[1].Score <= m.cfg.AmbiguityMargin {
		limit := m.cfg.MaxAmbiguousCandidates
		if limit < 2 {
			limit = 2
		}
		if limit > len(scored) {
			limit = len(scored)
		}
		return catalog.MatchResult{
			Decision:   catalog.DecisionAmbiguous,
			Candidates: scored[:limit],
		}
	}

	return catalog.MatchResult{Decision: catalog.DecisionUnmatched}
}

// breweryQuery picks the lookup key that bounds the candidate set. The
// retailer's brewery field when present; otherwise the leading tokens of
// the product name, which retailer catalogs conventionally start with the
// brewery.
func (m *Matcher) breweryQuery(p catalog.Product) string {
	if q := normalize.Normalize(p.Brewery); q != "" {
		return q
	}
	tokens := normalize.Tokens(p.Name)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return strings.Join(tokens, " ")
}
