package beerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/models"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config holds configuration for the community beer database.
type Config struct {
	// BaseURL is the API root.
	BaseURL string `mapstructure:"base_url" default:"http://localhost:9090/v4"`
	// ClientID authenticates API calls.
	ClientID string `mapstructure:"client_id" default:""`
	// ClientSecret authenticates API calls.
	ClientSecret string `mapstructure:"client_secret" default:""`
	// CacheTTL is how long a cached record satisfies GetByID.
	CacheTTL time.Duration `mapstructure:"cache_ttl" default:"168h"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

// Client resolves external beer records, fronting the upstream API with a
// database cache.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Guard
	db      *gorm.DB
	logger  *zap.Logger
	group   singleflight.Group
}

// New creates a Client.
func New(cfg Config, db *gorm.DB, limiter *ratelimit.Guard, logger *zap.Logger) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 168 * time.Hour
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: limiter,
		db:      db,
		logger:  logger,
	}
}

// GetByID resolves one record, serving from the cache while it is fresh.
// Ids the upstream no longer knows return catalog.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id string) (catalog.ExternalBeer, error) {
	var row models.ExternalBeerRow
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	switch {
	case err == nil && time.Since(row.FetchedAt) < c.cfg.CacheTTL:
		return row.ToDomain(), nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return catalog.ExternalBeer{}, fmt.Errorf("reading beer cache: %w", err)
	}

	v, err, _ := c.group.Do("beer:"+id, func() (any, error) {
		beer, err := c.fetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache(ctx, beer)
		return beer, nil
	})
	if err != nil {
		return catalog.ExternalBeer{}, err
	}
	return v.(catalog.ExternalBeer), nil
}

// LookupByBrewery searches the upstream for candidates of one brewery.
// Results are folded into the cache so subsequent GetByID calls stay local.
func (c *Client) LookupByBrewery(ctx context.Context, brewery string) ([]catalog.ExternalBeer, error) {
	if brewery == "" {
		return nil, nil
	}
	v, err, _ := c.group.Do("search:"+brewery, func() (any, error) {
		beers, err := c.search(ctx, brewery)
		if err != nil {
			return nil, err
		}
		for _, b := range beers {
			c.cache(ctx, b)
		}
		return beers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]catalog.ExternalBeer), nil
}

func (c *Client) fetchByID(ctx context.Context, id string) (catalog.ExternalBeer, error) {
	body, status, err := c.get(ctx, "/beer/info/"+url.PathEscape(id), nil)
	if err != nil {
		return catalog.ExternalBeer{}, err
	}
	if status == http.StatusNotFound {
		return catalog.ExternalBeer{}, catalog.ErrNotFound
	}
	if status != http.StatusOK {
		return catalog.ExternalBeer{}, c.statusError(status)
	}

	var payload struct {
		Beer map[string]any `json:"beer"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Beer == nil {
		return catalog.ExternalBeer{}, catalog.BadShape("beerdb", "undecodable beer record for %s", id)
	}
	beer, err := parseBeer(payload.Beer)
	if err != nil {
		return catalog.ExternalBeer{}, err
	}
	return beer, nil
}

func (c *Client) search(ctx context.Context, query string) ([]catalog.ExternalBeer, error) {
	body, status, err := c.get(ctx, "/search/beer", url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.statusError(status)
	}

	var payload struct {
		Beers []map[string]any `json:"beers"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, catalog.BadShape("beerdb", "undecodable search response: %v", err)
	}

	beers := make([]catalog.ExternalBeer, 0, len(payload.Beers))
	for _, record := range payload.Beers {
		beer, err := parseBeer(record)
		if err != nil {
			c.logger.Warn("skipping malformed beer record", zap.Error(err))
			continue
		}
		beers = append(beers, beer)
	}
	return beers, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx, ratelimit.SourceBeerDB); err != nil {
		return nil, 0, err
	}

	if query == nil {
		query = url.Values{}
	}
	if c.cfg.ClientID != "" {
		query.Set("client_id", c.cfg.ClientID)
		query.Set("client_secret", c.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building beerdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, catalog.Transient("beerdb.get", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, catalog.Transient("beerdb.get", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) statusError(status int) error {
	if status >= 500 || status == http.StatusTooManyRequests {
		return catalog.Transient("beerdb.get", fmt.Errorf("beerdb returned %d", status))
	}
	return catalog.BadShape("beerdb", "unexpected status %d", status)
}

// cache upserts a record. Cache writes are best effort.
func (c *Client) cache(ctx context.Context, beer catalog.ExternalBeer) {
	row := models.ExternalBeerRowFrom(beer, time.Now())
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		c.logger.Warn("beer cache write failed",
			zap.String("beer_id", beer.ID), zap.Error(err))
	}
}

func parseBeer(record map[string]any) (catalog.ExternalBeer, error) {
	id := utils.ToString(record["id"])
	name := utils.ToString(record["name"])
	if id == "" || id == "<nil>" || name == "" || name == "<nil>" {
		return catalog.ExternalBeer{}, catalog.BadShape("beerdb", "record without id or name")
	}
	return catalog.ExternalBeer{
		ID:       id,
		Name:     name,
		Brewery:  optString(record, "brewery"),
		Style:    optString(record, "style"),
		ABV:      utils.ToFloat(record["abv"]),
		Rating:   utils.ToFloat(record["rating"]),
		Checkins: utils.ToInt(record["checkins"]),
		URL:      optString(record, "url"),
	}, nil
}

func optString(record map[string]any, key string) string {
	if record[key] == nil {
		return ""
	}
	return utils.ToString(record[key])
}
