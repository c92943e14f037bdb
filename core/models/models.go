package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"catalog-sync/core/catalog"
)

// ProductRow is a retailer catalog product as last pulled.
type ProductRow struct {
	ID            string `gorm:"primaryKey;size:32"`
	Name          string `gorm:"size:255;not null"`
	Brewery       string `gorm:"size:255"`
	Style         string `gorm:"size:128"`
	Category      string `gorm:"size:64;index"`
	ABV           float64
	Volume        float64
	Price         float64
	PricePerLitre float64
	Available     bool
	ReleaseDate   *time.Time
	URL           string    `gorm:"size:512"`
	FirstSeenAt   time.Time `gorm:"not null"`
	LastSeenAt    time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time
}

func (ProductRow) TableName() string { return "products" }

// ToDomain converts the row to a catalog.Product.
func (r ProductRow) ToDomain() catalog.Product {
	return catalog.Product{
		ID:            r.ID,
		Name:          r.Name,
		Brewery:       r.Brewery,
		Style:         r.Style,
		Category:      r.Category,
		ABV:           r.ABV,
		Volume:        r.Volume,
		Price:         r.Price,
		PricePerLitre: r.PricePerLitre,
		Available:     r.Available,
		ReleaseDate:   r.ReleaseDate,
		URL:           r.URL,
	}
}

// ProductRowFrom builds a row from a domain product. seenAt stamps
// LastSeenAt; FirstSeenAt is only honored on insert.
func ProductRowFrom(p catalog.Product, seenAt time.Time) ProductRow {
	return ProductRow{
		ID:            p.ID,
		Name:          p.Name,
		Brewery:       p.Brewery,
		Style:         p.Style,
		Category:      p.Category,
		ABV:           p.ABV,
		Volume:        p.Volume,
		Price:         p.Price,
		PricePerLitre: p.PricePerLitre,
		Available:     p.Available,
		ReleaseDate:   p.ReleaseDate,
		URL:           p.URL,
		FirstSeenAt:   seenAt,
		LastSeenAt:    seenAt,
	}
}

// LinkRow is a product-to-beer link with its lifecycle state.
type LinkRow struct {
	ID           uint    `gorm:"primaryKey"`
	ProductID    string  `gorm:"size:32;not null;index:idx_links_product"`
	ExternalID   string  `gorm:"size:64;not null"`
	Confidence   float64 `gorm:"not null"`
	Method       string  `gorm:"size:16;not null"`
	Status       string  `gorm:"size:16;not null;index"`
	MissedCycles int     `gorm:"not null;default:0"`
	Recheck      bool    `gorm:"not null;default:false"`
	CreatedAt    time.Time
	ReaffirmedAt time.Time
}

func (LinkRow) TableName() string { return "links" }

// ToDomain converts the row to a catalog.Link.
func (r LinkRow) ToDomain() catalog.Link {
	return catalog.Link{
		ProductID:    r.ProductID,
		ExternalID:   r.ExternalID,
		Confidence:   r.Confidence,
		Method:       r.Method,
		Status:       r.Status,
		MissedCycles: r.MissedCycles,
		CreatedAt:    r.CreatedAt,
		ReaffirmedAt: r.ReaffirmedAt,
	}
}

// ExternalBeerRow caches a beer database record to cut repeat lookups.
type ExternalBeerRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	Brewery   string `gorm:"size:255;index"`
	Style     string `gorm:"size:128"`
	ABV       float64
	Rating    float64
	Checkins  int
	URL       string    `gorm:"size:512"`
	FetchedAt time.Time `gorm:"not null;index"`
}

func (ExternalBeerRow) TableName() string { return "external_beers" }

// ToDomain converts the row to a catalog.ExternalBeer.
func (r ExternalBeerRow) ToDomain() catalog.ExternalBeer {
	return catalog.ExternalBeer{
		ID:       r.ID,
		Name:     r.Name,
		Brewery:  r.Brewery,
		Style:    r.Style,
		ABV:      r.ABV,
		Rating:   r.Rating,
		Checkins: r.Checkins,
		URL:      r.URL,
	}
}

// ExternalBeerRowFrom builds a cache row from a domain beer.
func ExternalBeerRowFrom(b catalog.ExternalBeer, fetchedAt time.Time) ExternalBeerRow {
	return ExternalBeerRow{
		ID:        b.ID,
		Name:      b.Name,
		Brewery:   b.Brewery,
		Style:     b.Style,
		ABV:       b.ABV,
		Rating:    b.Rating,
		Checkins:  b.Checkins,
		URL:       b.URL,
		FetchedAt: fetchedAt,
	}
}

// SnapshotRow stores one cycle's pulled product set as a JSON blob.
// Only rows with Complete=true serve as diff baselines.
type SnapshotRow struct {
	CycleID    string    `gorm:"primaryKey;size:36"`
	PulledAt   time.Time `gorm:"not null;index"`
	Complete   bool      `gorm:"not null"`
	Categories string    `gorm:"size:512"`
	Products   []byte    `gorm:"type:longblob"`
	CreatedAt  time.Time
}

func (SnapshotRow) TableName() string { return "snapshots" }

// ToDomain decodes the row into a catalog.Snapshot.
func (r SnapshotRow) ToDomain() (*catalog.Snapshot, error) {
	products := make(map[string]catalog.Product)
	if len(r.Products) > 0 {
		if err := json.Unmarshal(r.Products, &products); err != nil {
			return nil, fmt.Errorf("decoding snapshot %s: %w", r.CycleID, err)
		}
	}
	var categories []string
	if r.Categories != "" {
		categories = strings.Split(r.Categories, ",")
	}
	return &catalog.Snapshot{
		CycleID:    r.CycleID,
		PulledAt:   r.PulledAt,
		Complete:   r.Complete,
		Categories: categories,
		Products:   products,
	}, nil
}

// SnapshotRowFrom encodes a domain snapshot for storage.
func SnapshotRowFrom(s *catalog.Snapshot) (SnapshotRow, error) {
	blob, err := json.Marshal(s.Products)
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("encoding snapshot %s: %w", s.CycleID, err)
	}
	return SnapshotRow{
		CycleID:    s.CycleID,
		PulledAt:   s.PulledAt,
		Complete:   s.Complete,
		Categories: strings.Join(s.Categories, ","),
		Products:   blob,
	}, nil
}

// ChangeEventRow is one catalog change detected by a cycle's diff.
type ChangeEventRow struct {
	ID        uint   `gorm:"primaryKey"`
	CycleID   string `gorm:"size:36;not null;index"`
	ProductID string `gorm:"size:32;not null;index"`
	Kind      string `gorm:"size:32;not null"`
	Before    string `gorm:"size:255"`
	After     string `gorm:"size:255"`
	PulledAt  time.Time
}

func (ChangeEventRow) TableName() string { return "change_events" }

// ToDomain converts the row to a catalog.ChangeEvent.
func (r ChangeEventRow) ToDomain() catalog.ChangeEvent {
	return catalog.ChangeEvent{
		ProductID: r.ProductID,
		Kind:      catalog.ChangeKind(r.Kind),
		Before:    r.Before,
		After:     r.After,
		PulledAt:  r.PulledAt,
	}
}

// ChangeEventRowFrom builds a row from a domain event.
func ChangeEventRowFrom(cycleID string, ev catalog.ChangeEvent) ChangeEventRow {
	return ChangeEventRow{
		CycleID:   cycleID,
		ProductID: ev.ProductID,
		Kind:      string(ev.Kind),
		Before:    ev.Before,
		After:     ev.After,
		PulledAt:  ev.PulledAt,
	}
}

// All lists every row type for schema bootstrap.
func All() []any {
	return []any{
		&ProductRow{},
		&LinkRow{},
		&ExternalBeerRow{},
		&SnapshotRow{},
		&ChangeEventRow{},
	}
}
