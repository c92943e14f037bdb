// Package ratelimit bounds the outbound call rate to upstream services.
//
// One Guard is shared by everything that talks to the outside world: the
// retailer pull loop and every concurrent matching worker acquire budget
// from the same per-source bucket before making a call, so the observed
// rate never exceeds the configured budget regardless of worker count.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Well-known source names.
const (
	SourceRetailer = "retailer"
	SourceBeerDB   = "beerdb"
)

// Config holds the per-source call budgets.
type Config struct {
	// RetailerPerSecond is the retailer pull budget in calls per second.
	RetailerPerSecond float64 `mapstructure:"retailer_per_second" default:"2"`
	// BeerDBPerSecond is the community-database budget in calls per second.
	BeerDBPerSecond float64 `mapstructure:"beerdb_per_second" default:"1"`
	// Burst is the maximum burst size allowed above the steady rate.
	Burst int `mapstructure:"burst" default:"1"`
}

// Guard is the shared outbound-call limiter. It is the single point of
// mutual exclusion between concurrent workers hitting the same upstream.
type Guard struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// New creates a Guard with one bucket per configured source.
func New(cfg Config) *Guard {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Guard{
		buckets: map[string]*rate.Limiter{
			SourceRetailer: rate.NewLimiter(rate.Limit(cfg.RetailerPerSecond), burst),
			SourceBeerDB:   rate.NewLimiter(rate.Limit(cfg.BeerDBPerSecond), burst),
		},
	}
}

// Wait blocks until the named source's bucket grants one call, or the
// context is cancelled. Unknown sources are rejected rather than silently
// unlimited.
func (g *Guard) Wait(ctx context.Context, source string) error {
	g.mu.RLock()
	bucket, ok := g.buckets[source]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ratelimit: unknown source %q", source)
	}
	return bucket.Wait(ctx)
}

// Allow reports whether one call for the named source could proceed right
// now, without blocking or consuming budget on unknown sources.
func (g *Guard) Allow(source string) bool {
	g.mu.RLock()
	bucket, ok := g.buckets[source]
	g.mu.RUnlock()
	return ok && bucket.Allow()
}

// SetBudget replaces the budget of a source at runtime.
func (g *Guard) SetBudget(source string, perSecond float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	g.mu.Lock()
	g.buckets[source] = rate.NewLimiter(rate.Limit(perSecond), burst)
	g.mu.Unlock()
}
