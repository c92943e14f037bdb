package match

import (
	"context"
	"errors"
	"testing"

	"catalog-sync/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is a hand-rolled CandidateSource for tests.
type fakeSource struct {
	lookupFunc func(ctx context.Context, brewery string) ([]catalog.ExternalBeer, error)
	getFunc    func(ctx context.Context, id string) (catalog.ExternalBeer, error)

	lookupCalls int
	getCalls    int
}

func (f *fakeSource) LookupByBrewery(ctx context.Context, brewery string) ([]catalog.ExternalBeer, error) {
	f.lookupCalls++
	if f.lookupFunc != nil {
		return f.lookupFunc(ctx, brewery)
	}
	return nil, nil
}

func (f *fakeSource) GetByID(ctx context.Context, id string) (catalog.ExternalBeer, error) {
	f.getCalls++
	if f.getFunc != nil {
		return f.getFunc(ctx, id)
	}
	return catalog.ExternalBeer{}, catalog.ErrNotFound
}

func testConfig() Config {
	return Config{
		LinkThreshold:          0.72,
		AmbiguityFloor:         0.55,
		AmbiguityMargin:        0.06,
		NameWeight:             0.5,
		BreweryWeight:          0.3,
		StyleWeight:            0.1,
		ABVWeight:              0.1,
		ABVTolerance:           1.5,
		MaxAmbiguousCandidates: 3,
	}
}

func product() catalog.Product {
	return catalog.Product{
		ID:      "p1",
		Name:    "Lervig Lucky Jack 0,5l",
		Brewery: "Lervig",
		Style:   "Pale Ale",
		ABV:     4.7,
	}
}

func luckyJack() catalog.ExternalBeer {
	return catalog.ExternalBeer{
		ID:      "42",
		Name:    "Lucky Jack",
		Brewery: "Lervig",
		Style:   "Pale Ale - American",
		ABV:     4.7,
	}
}

func TestMatchLinksObviousCandidate(t *testing.T) {
	src := &fakeSource{
		lookupFunc: func(_ context.Context, brewery string) ([]catalog.ExternalBeer, error) {
			assert.Equal(t, "lervig", brewery)
			return []catalog.ExternalBeer{
				luckyJack(),
				{ID: "99", Name: "Konrads Stout", Brewery: "Lervig", Style: "Stout", ABV: 10.4},
			}, nil
		},
	}
	m := New(testConfig(), src, zap.NewNop())

	res, err := m.Match(context.Background(), product(), "")
	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionLinked, res.Decision)
	require.NotNil(t, res.Beer)
	assert.Equal(t, "42", res.Beer.ID)
	assert.Equal(t, catalog.MethodFuzzy, res.Method)
	assert.GreaterOrEqual(t, res.Confidence, 0.72)
}

func TestMatchIsDeterministic(t *testing.T) {
	candidates := []catalog.ExternalBeer{
		{ID: "b", Name: "Lucky Jack", Brewery: "Lervig", ABV: 4.7},
		{ID: "a", Name: "Lucky Jack", Brewery: "Lervig", ABV: 4.7},
	}
	src := &fakeSource{
		lookupFunc: func(context.Context, string) ([]catalog.ExternalBeer, error) {
			return candidates, nil
		},
	}
	m := New(testConfig(), src, zap.NewNop())

	first, err := m.Match(context.Background(), product(), "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Match(context.Background(), product(), "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Identical scores tie-break on id.
	if first.Decision == catalog.DecisionLinked {
		assert.Equal(t, "a", first.Beer.ID)
	}
}

func TestMatchExactIDShortCircuit(t *testing.T) {
	src := &fakeSource{
		getFunc: func(_ context.Context, id string) (catalog.ExternalBeer, error) {
			assert.Equal(t, "42", id)
			return luckyJack(), nil
		},
	}
	m := New(testConfig(), src, zap.NewNop())

	res, err := m.Match(context.Background(), product(), "42")
	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionLinked, res.Decision)
	assert.Equal(t, catalog.MethodExact, res.Method)
	assert.Equal(t, 0, src.lookupCalls, "exact reuse must not spend lookup budget")
}

func TestMatchFallsThroughWhenPriorIDGone(t *testing.T) {
	src := &fakeSource{
		getFunc: func(context.Context, string) (catalog.ExternalBeer, error) {
			return catalog.ExternalBeer{}, catalog.ErrNotFound
		},
		lookupFunc: func(context.Context, string) ([]catalog.ExternalBeer, error) {
			return []catalog.ExternalBeer{luckyJack()}, nil
		},
	}
	m := New(testConfig(), src, zap.NewNop())

	res, err := m.Match(context.Background(), product(), "gone")
	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionLinked, res.Decision)
	assert.Equal(t, catalog.MethodFuzzy, res.Method)
	assert.Equal(t, 1, src.lookupCalls)
}

// Lookup failures must surface as retryable errors, never as Unmatched.
func TestMatchLookupFailureIsTransient(t *testing.T) {
	src := &fakeSource{
		lookupFunc: func(context.Context, string) ([]catalog.ExternalBeer, error) {
			return nil, errors.New("rate limited")
		},
	}
	m := New(testConfig(), src, zap.NewNop())

	_, err := m.Match(context.Background(), product(), "")
	require.Error(t, err)
	assert.True(t, catalog.IsTransient(err))
}

func TestMatchNoCandidatesIsUnmatched(t *testing.T) {
	m := New(testConfig(), &fakeSource{}, zap.NewNop())

	res, err := m.Match(context.Background(), product(), "")
	require.NoError(t, err)
	assert.Equal(t, catalog.DecisionUnmatched, res.Decision)
}

func TestDecideThresholds(t *testing.T) {
	m := New(testConfig(), &fakeSource{}, zap.NewNop())
	beerA := catalog.ExternalBeer{ID: "a"}
	beerB := catalog.ExternalBeer{ID: "b"}

	tests := []struct {
		name     string
		scored   []catalog.ScoredCandidate
		expected catalog.Decision
	}{
		{
			name:     "above link threshold",
			scored:   []catalog.ScoredCandidate{{Beer: beerA, Score: 0.85}},
			expected: catalog.DecisionLinked,
		},
		{
			name: "band with close runner-up is ambiguous",
			scored: []catalog.ScoredCandidate{
				{Beer: beerA, Score: 0.65},
				{Beer: beerB, Score: 0.62},
			},
			expected: catalog.DecisionAmbiguous,
		},
		{
			name: "band with distant runner-up is unmatched",
			scored: []catalog.ScoredCandidate{
				{Beer: beerA, Score: 0.65},
				{Beer: beerB, Score: 0.40},
			},
			expected: catalog.DecisionUnmatched,
		},
		{
			name:     "band with single candidate is unmatched",
			scored:   []catalog.ScoredCandidate{{Beer: beerA, Score: 0.65}},
			expected: catalog.DecisionUnmatched,
		},
		{
			name:     "below ambiguity floor is unmatched",
			scored:   []catalog.ScoredCandidate{{Beer: beerA, Score: 0.3}, {Beer: beerB, Score: 0.29}},
			expected: catalog.DecisionUnmatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.decide(tt.scored)
			assert.Equal(t, tt.expected, res.Decision)
			if tt.expected == catalog.DecisionAmbiguous {
				assert.NotEmpty(t, res.Candidates)
				assert.Nil(t, res.Beer, "ambiguous results are never auto-linked")
			}
		})
	}
}

func TestScoreRewardsAgreement(t *testing.T) {
	m := New(testConfig(), &fakeSource{}, zap.NewNop())
	p := product()

	good := m.Score(p, luckyJack())
	bad := m.Score(p, catalog.ExternalBeer{
		ID: "x", Name: "Espresso Stout", Brewery: "Wiper and True", Style: "Stout", ABV: 9.1,
	})

	assert.Greater(t, good, 0.72)
	assert.Less(t, bad, 0.4)
	assert.Greater(t, good, bad)
}
