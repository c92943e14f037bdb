package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/linkstore"
	"catalog-sync/core/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LinkView is an active link joined with its product and beer names.
type LinkView struct {
	catalog.Link
	ProductName string  `json:"product_name"`
	BeerName    string  `json:"beer_name,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

// EnrichedProduct is one product together with its link, the linked
// community record, and the derived value score.
type EnrichedProduct struct {
	Product    catalog.Product       `json:"product"`
	Link       *catalog.Link         `json:"link,omitempty"`
	Beer       *catalog.ExternalBeer `json:"beer,omitempty"`
	ValueScore float64               `json:"value_score,omitempty"`
}

// Service reads the engine's persisted state.
type Service struct {
	db     *gorm.DB
	links  *linkstore.Store
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(db *gorm.DB, links *linkstore.Store, logger *zap.Logger) *Service {
	return &Service{db: db, links: links, logger: logger}
}

// ListActiveLinks returns every active link with display names attached.
func (s *Service) ListActiveLinks(ctx context.Context) ([]LinkView, error) {
	links, err := s.links.ActiveLinks(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	views := make([]LinkView, 0, len(links))
	for _, link := range links {
		view := LinkView{Link: link}

		var product models.ProductRow
		if err := s.db.WithContext(ctx).First(&product, "id = ?", link.ProductID).Error; err == nil {
			view.ProductName = product.Name
		}
		var beer models.ExternalBeerRow
		if err := s.db.WithContext(ctx).First(&beer, "id = ?", link.ExternalID).Error; err == nil {
			view.BeerName = beer.Name
			view.Rating = beer.Rating
		}
		views = append(views, view)
	}
	return views, nil
}

// GetEnrichedProduct returns one product with its link and community data.
// Unknown product ids return catalog.ErrNotFound.
func (s *Service) GetEnrichedProduct(ctx context.Context, productID string) (EnrichedProduct, error) {
	var row models.ProductRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", productID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return EnrichedProduct{}, catalog.ErrNotFound
	case err != nil:
		return EnrichedProduct{}, fmt.Errorf("loading product %s: %w", productID, err)
	}

	enriched := EnrichedProduct{Product: row.ToDomain()}

	link, err := s.links.ActiveLink(s.db.WithContext(ctx), productID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return enriched, nil
	case err != nil:
		return EnrichedProduct{}, err
	}
	enriched.Link = &link

	var beerRow models.ExternalBeerRow
	err = s.db.WithContext(ctx).First(&beerRow, "id = ?", link.ExternalID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Linked but not yet cached; the next matching pass fills it in.
		return enriched, nil
	case err != nil:
		return EnrichedProduct{}, fmt.Errorf("loading beer %s: %w", link.ExternalID, err)
	}

	beer := beerRow.ToDomain()
	enriched.Beer = &beer
	enriched.ValueScore = catalog.ValueScore(beer.Rating, enriched.Product.PricePerLitre)
	return enriched, nil
}

// ChangeEvents returns one cycle's change feed. An empty cycle id means the
// most recent cycle that produced events.
func (s *Service) ChangeEvents(ctx context.Context, cycleID string) ([]catalog.ChangeEvent, error) {
	if cycleID == "" {
		var latest models.ChangeEventRow
		err := s.db.WithContext(ctx).Order("pulled_at DESC").First(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return []catalog.ChangeEvent{}, nil
		case err != nil:
			return nil, fmt.Errorf("finding latest change cycle: %w", err)
		}
		cycleID = latest.CycleID
	}

	var rows []models.ChangeEventRow
	err := s.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("product_id, kind").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading change events for %s: %w", cycleID, err)
	}

	events := make([]catalog.ChangeEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.ToDomain())
	}
	return events, nil
}

// OverrideLink installs a manual link for the product.
func (s *Service) OverrideLink(ctx context.Context, productID, externalID string) error {
	var row models.ProductRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", productID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return catalog.ErrNotFound
	case err != nil:
		return fmt.Errorf("loading product %s: %w", productID, err)
	}
	s.logger.Info("manual link override",
		zap.String("product_id", productID), zap.String("external_id", externalID))
	return s.links.Override(s.db.WithContext(ctx), productID, externalID, time.Now())
}

// RejectLink marks the product's active link as a wrong match.
func (s *Service) RejectLink(ctx context.Context, productID string) error {
	s.logger.Info("manual link rejection", zap.String("product_id", productID))
	return s.links.Reject(s.db.WithContext(ctx), productID, time.Now())
}
