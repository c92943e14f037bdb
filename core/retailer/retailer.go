package retailer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/syncer"
	"catalog-sync/core/utils"

	"go.uber.org/zap"
)

// Config holds configuration for the retailer API.
type Config struct {
	// BaseURL is the product search endpoint.
	BaseURL string `mapstructure:"base_url" default:"http://localhost:9080/api/products"`
	// Categories lists the top-level categories to pull, comma separated
	// in the environment.
	Categories []string `mapstructure:"categories" default:"beer,cider,mead"`
	// PageSize is the number of products requested per page.
	PageSize int `mapstructure:"page_size" default:"100"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

// Adapter implements the pull side of the sync cycle against the retailer.
type Adapter struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Guard
	logger  *zap.Logger
}

// New creates an Adapter.
func New(cfg Config, limiter *ratelimit.Guard, logger *zap.Logger) *Adapter {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: limiter,
		logger:  logger,
	}
}

// Categories returns the configured category list.
func (a *Adapter) Categories() []string {
	return a.cfg.Categories
}

// PullPage fetches one page of one category. Malformed records are skipped
// and logged; a malformed page shape fails the page.
func (a *Adapter) PullPage(ctx context.Context, category string, page int) (syncer.Page, error) {
	if err := a.limiter.Wait(ctx, ratelimit.SourceRetailer); err != nil {
		return syncer.Page{}, err
	}

	query := url.Values{}
	query.Set("category", category)
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(a.cfg.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return syncer.Page{}, fmt.Errorf("building retailer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return syncer.Page{}, catalog.Transient("retailer.pull", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return syncer.Page{}, catalog.Transient("retailer.pull", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return syncer.Page{}, catalog.Transient("retailer.pull",
			fmt.Errorf("retailer returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return syncer.Page{}, catalog.BadShape("retailer", "unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		TotalPages int              `json:"totalPages"`
		Products   []map[string]any `json:"products"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return syncer.Page{}, catalog.BadShape("retailer", "undecodable page: %v", err)
	}

	products := make([]catalog.Product, 0, len(payload.Products))
	for _, record := range payload.Products {
		p, err := a.parseProduct(record, category)
		if err != nil {
			a.logger.Warn("skipping malformed product record",
				zap.String("category", category), zap.Int("page", page), zap.Error(err))
			continue
		}
		products = append(products, p)
	}

	return syncer.Page{
		Products:   products,
		TotalPages: payload.TotalPages,
		Raw:        body,
	}, nil
}

// parseProduct maps one loosely typed record to a Product. Id and name are
// mandatory; everything else degrades to its zero value.
func (a *Adapter) parseProduct(record map[string]any, category string) (catalog.Product, error) {
	id := utils.ToString(record["id"])
	name := utils.ToString(record["name"])
	if id == "" || id == "<nil>" {
		return catalog.Product{}, catalog.BadShape("retailer", "record without id")
	}
	if name == "" || name == "<nil>" {
		return catalog.Product{}, catalog.BadShape("retailer", "record %s without name", id)
	}

	p := catalog.Product{
		ID:        id,
		Name:      name,
		Brewery:   stringField(record, "brewery"),
		Style:     stringField(record, "style"),
		Category:  category,
		ABV:       utils.ToFloat(record["abv"]),
		Volume:    utils.ToFloat(record["volume"]),
		Price:     utils.ToFloat(record["price"]),
		Available: utils.ToBool(record["available"]),
		URL:       stringField(record, "url"),
	}
	if p.Volume > 0 {
		p.PricePerLitre = p.Price / p.Volume
	}
	if raw := stringField(record, "releaseDate"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			p.ReleaseDate = &t
		}
	}
	return p, nil
}

func stringField(record map[string]any, key string) string {
	if record[key] == nil {
		return ""
	}
	return utils.ToString(record[key])
}
