package retailer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"catalog-sync/core/catalog"
	"catalog-sync/core/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLimiter() *ratelimit.Guard {
	return ratelimit.New(ratelimit.Config{RetailerPerSecond: 1000, BeerDBPerSecond: 1000, Burst: 100})
}

func newAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL,
		Categories: []string{"beer"},
		PageSize:   50,
	}, testLimiter(), zap.NewNop())
}

func TestPullPageParsesProducts(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "beer", r.URL.Query().Get("category"))
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, `{
			"totalPages": 3,
			"products": [
				{"id": 12345, "name": "Nøgne Ø IPA", "brewery": "Nøgne Ø",
				 "style": "IPA", "abv": "6,5", "volume": 0.5, "price": 89.9,
				 "available": true, "url": "/p/12345", "releaseDate": "2026-09-01"},
				{"id": "67890", "name": "Plain Pils", "price": 45, "available": "1"}
			]
		}`)
	})

	page, err := adapter.PullPage(context.Background(), "beer", 0)
	require.NoError(t, err)

	assert.Equal(t, 3, page.TotalPages)
	assert.NotEmpty(t, page.Raw)
	require.Len(t, page.Products, 2)

	p := page.Products[0]
	assert.Equal(t, "12345", p.ID, "numeric ids become strings")
	assert.Equal(t, "Nøgne Ø IPA", p.Name)
	assert.Equal(t, "beer", p.Category)
	assert.Equal(t, 6.5, p.ABV, "comma decimals are handled")
	assert.InDelta(t, 179.8, p.PricePerLitre, 0.001)
	assert.True(t, p.Available)
	require.NotNil(t, p.ReleaseDate)
	assert.Equal(t, "2026-09-01", p.ReleaseDate.Format("2006-01-02"))

	q := page.Products[1]
	assert.True(t, q.Available, "string booleans are handled")
	assert.Zero(t, q.PricePerLitre, "no volume means no per-litre price")
	assert.Nil(t, q.ReleaseDate)
}

func TestPullPageSkipsMalformedRecords(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"totalPages": 1,
			"products": [
				{"name": "no id here", "price": 10},
				{"id": "1", "price": 10},
				{"id": "2", "name": "Survivor", "price": 10, "available": true}
			]
		}`)
	})

	page, err := adapter.PullPage(context.Background(), "beer", 0)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "2", page.Products[0].ID)
}

func TestPullPageServerErrorIsTransient(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := adapter.PullPage(context.Background(), "beer", 0)
	require.Error(t, err)
	assert.True(t, catalog.IsTransient(err))
}

func TestPullPageTooManyRequestsIsTransient(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := adapter.PullPage(context.Background(), "beer", 0)
	assert.True(t, catalog.IsTransient(err))
}

func TestPullPageClientErrorIsDataShape(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := adapter.PullPage(context.Background(), "beer", 0)
	require.Error(t, err)
	assert.False(t, catalog.IsTransient(err), "4xx must not be retried")
	assert.True(t, catalog.IsDataShape(err))
}

func TestPullPageUndecodableBodyIsDataShape(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	})

	_, err := adapter.PullPage(context.Background(), "beer", 0)
	assert.True(t, catalog.IsDataShape(err))
}

func TestPullPageHonoursRateLimiter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"totalPages":1,"products":[]}`)
	}))
	t.Cleanup(srv.Close)

	limiter := testLimiter()
	limiter.SetBudget(ratelimit.SourceRetailer, 1, 1)
	adapter := New(Config{BaseURL: srv.URL, Categories: []string{"beer"}}, limiter, zap.NewNop())

	// Burn the budget, then a cancelled context must fail in Wait before
	// the request is sent.
	_, err := adapter.PullPage(context.Background(), "beer", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = adapter.PullPage(ctx, "beer", 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
