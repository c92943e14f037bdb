package linkstore

import (
	"errors"
	"fmt"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config holds link lifecycle tuning.
type Config struct {
	// RejectAfterFailures is how many consecutive failed reaffirmations an
	// automatic link survives before it is demoted to rejected.
	RejectAfterFailures int `mapstructure:"reject_after_failures" default:"3"`
}

// Store applies match decisions and manual curation to link rows.
type Store struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Store.
func New(cfg Config, logger *zap.Logger) *Store {
	if cfg.RejectAfterFailures <= 0 {
		cfg.RejectAfterFailures = 3
	}
	return &Store{cfg: cfg, logger: logger}
}

// ActiveLink returns the product's active link, or catalog.ErrNotFound.
func (s *Store) ActiveLink(db *gorm.DB, productID string) (catalog.Link, error) {
	var rows []models.LinkRow
	err := db.Where("product_id = ? AND status = ?", productID, catalog.StatusActive).
		Find(&rows).Error
	if err != nil {
		return catalog.Link{}, fmt.Errorf("loading active link for %s: %w", productID, err)
	}
	switch len(rows) {
	case 0:
		return catalog.Link{}, catalog.ErrNotFound
	case 1:
		return rows[0].ToDomain(), nil
	default:
		return catalog.Link{}, catalog.Consistency("product %s has %d active links", productID, len(rows))
	}
}

// ActiveLinks returns every active link ordered by product id.
func (s *Store) ActiveLinks(db *gorm.DB) ([]catalog.Link, error) {
	var rows []models.LinkRow
	err := db.Where("status = ?", catalog.StatusActive).
		Order("product_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading active links: %w", err)
	}
	links := make([]catalog.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.ToDomain())
	}
	return links, nil
}

// Apply folds one match decision into the product's link state.
//
// Linked results create or reaffirm the active link. Ambiguous results are
// parked as pending_review. Unmatched results count against the active
// link's missed cycles; the link is demoted only after the configured run
// of consecutive failures. Manual links are never replaced; a linked match
// for the same beer only completes a pending recheck.
func (s *Store) Apply(db *gorm.DB, productID string, res catalog.MatchResult, now time.Time) error {
	current, err := s.activeRow(db, productID)
	if err != nil {
		return err
	}

	if current != nil && current.Method == catalog.MethodManual {
		// Curated by hand; automatic decisions never replace it. The one
		// thing a match may do is complete a pending recheck by refreshing
		// the same beer, which takes the product back out of the queue.
		if current.Recheck && res.Decision == catalog.DecisionLinked &&
			res.Beer != nil && res.Beer.ID == current.ExternalID {
			return db.Model(current).Updates(map[string]any{
				"recheck":       false,
				"reaffirmed_at": now,
			}).Error
		}
		return nil
	}

	switch res.Decision {
	case catalog.DecisionLinked:
		return s.applyLinked(db, productID, current, res, now)
	case catalog.DecisionAmbiguous:
		if err := s.parkPending(db, productID, res, now); err != nil {
			return err
		}
		return s.miss(db, productID, current, now)
	case catalog.DecisionUnmatched:
		return s.miss(db, productID, current, now)
	default:
		return fmt.Errorf("unknown match decision %q for product %s", res.Decision, productID)
	}
}

func (s *Store) applyLinked(db *gorm.DB, productID string, current *models.LinkRow, res catalog.MatchResult, now time.Time) error {
	if res.Beer == nil {
		return catalog.BadShape("matcher", "linked decision without a beer for product %s", productID)
	}

	if current != nil && current.ExternalID == res.Beer.ID {
		// Reaffirmation: same beer, fresh confidence, failure streak reset.
		return db.Model(current).Updates(map[string]any{
			"confidence":    res.Confidence,
			"method":        res.Method,
			"missed_cycles": 0,
			"recheck":       false,
			"reaffirmed_at": now,
		}).Error
	}

	// A beer a curator rejected for this product stays rejected. The
	// deterministic matcher will keep proposing it; without this veto the
	// rejection would be undone one cycle later.
	vetoed, err := s.rejectedManually(db, productID, res.Beer.ID)
	if err != nil {
		return err
	}
	if vetoed {
		s.logger.Info("match suppressed, beer was rejected by hand",
			zap.String("product_id", productID),
			zap.String("external_id", res.Beer.ID))
		return nil
	}

	if current != nil {
		// The matcher now prefers a different beer; the old link steps aside.
		s.logger.Info("relinking product",
			zap.String("product_id", productID),
			zap.String("old_external_id", current.ExternalID),
			zap.String("new_external_id", res.Beer.ID))
		if err := db.Model(current).Updates(map[string]any{
			"status":        catalog.StatusRejected,
			"reaffirmed_at": now,
		}).Error; err != nil {
			return err
		}
	}

	// A fresh automatic link supersedes any parked review rows.
	if err := s.clearPending(db, productID); err != nil {
		return err
	}
	row := models.LinkRow{
		ProductID:    productID,
		ExternalID:   res.Beer.ID,
		Confidence:   res.Confidence,
		Method:       res.Method,
		Status:       catalog.StatusActive,
		CreatedAt:    now,
		ReaffirmedAt: now,
	}
	return db.Create(&row).Error
}

// miss records one failed reaffirmation and demotes the link once the
// streak reaches the threshold.
func (s *Store) miss(db *gorm.DB, productID string, current *models.LinkRow, now time.Time) error {
	if current == nil {
		return nil
	}
	missed := current.MissedCycles + 1
	updates := map[string]any{"missed_cycles": missed}
	if missed >= s.cfg.RejectAfterFailures {
		updates["status"] = catalog.StatusRejected
		updates["reaffirmed_at"] = now
		s.logger.Warn("link demoted after repeated failed reaffirmations",
			zap.String("product_id", productID),
			zap.String("external_id", current.ExternalID),
			zap.Int("missed_cycles", missed))
	}
	return db.Model(current).Updates(updates).Error
}

// parkPending records the ambiguity's top candidate for manual review.
// One pending row per product; repeats refresh it.
func (s *Store) parkPending(db *gorm.DB, productID string, res catalog.MatchResult, now time.Time) error {
	if len(res.Candidates) == 0 {
		return nil
	}
	top := res.Candidates[0]

	var existing models.LinkRow
	err := db.Where("product_id = ? AND status = ?", productID, catalog.StatusPending).
		First(&existing).Error
	switch {
	case err == nil:
		return db.Model(&existing).Updates(map[string]any{
			"external_id":   top.Beer.ID,
			"confidence":    top.Score,
			"reaffirmed_at": now,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.LinkRow{
			ProductID:    productID,
			ExternalID:   top.Beer.ID,
			Confidence:   top.Score,
			Method:       catalog.MethodFuzzy,
			Status:       catalog.StatusPending,
			CreatedAt:    now,
			ReaffirmedAt: now,
		}
		return db.Create(&row).Error
	default:
		return fmt.Errorf("loading pending link for %s: %w", productID, err)
	}
}

// Override installs a manual link. Manual links always win: any existing
// active link is demoted, pending rows are cleared, and the cached beer
// record is dropped so enrichment re-fetches it.
func (s *Store) Override(db *gorm.DB, productID, externalID string, now time.Time) error {
	current, err := s.activeRow(db, productID)
	if err != nil {
		return err
	}
	if current != nil {
		if err := db.Model(current).Updates(map[string]any{
			"status":        catalog.StatusRejected,
			"reaffirmed_at": now,
		}).Error; err != nil {
			return err
		}
	}
	if err := s.clearPending(db, productID); err != nil {
		return err
	}
	if err := db.Where("id = ?", externalID).
		Delete(&models.ExternalBeerRow{}).Error; err != nil {
		return err
	}
	row := models.LinkRow{
		ProductID:    productID,
		ExternalID:   externalID,
		Confidence:   1,
		Method:       catalog.MethodManual,
		Status:       catalog.StatusActive,
		Recheck:      true,
		CreatedAt:    now,
		ReaffirmedAt: now,
	}
	return db.Create(&row).Error
}

// Reject marks the product's active link as wrong. The rejected row keeps
// the external id and is stamped manual, and applyLinked consults exactly
// those rows before activating a beer, so automatic matching cannot
// reinstate the rejected pair. ClearOverride lifts the veto.
func (s *Store) Reject(db *gorm.DB, productID string, now time.Time) error {
	current, err := s.activeRow(db, productID)
	if err != nil {
		return err
	}
	if current == nil {
		return catalog.ErrNotFound
	}
	return db.Model(current).Updates(map[string]any{
		"status":        catalog.StatusRejected,
		"method":        catalog.MethodManual,
		"reaffirmed_at": now,
	}).Error
}

// ClearOverride removes every trace of manual curation for the product, both
// an active manual link and rejection vetoes, so automatic matching applies
// again from the next cycle.
func (s *Store) ClearOverride(db *gorm.DB, productID string) error {
	res := db.Where("product_id = ? AND method = ?",
		productID, catalog.MethodManual).
		Delete(&models.LinkRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// activeRow loads the single active link row, nil when there is none.
// More than one active row is a consistency breach.
func (s *Store) activeRow(db *gorm.DB, productID string) (*models.LinkRow, error) {
	var rows []models.LinkRow
	err := db.Where("product_id = ? AND status = ?", productID, catalog.StatusActive).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading active link for %s: %w", productID, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, catalog.Consistency("product %s has %d active links", productID, len(rows))
	}
}

// rejectedManually reports whether a curator rejected this exact
// product/beer pair. Automatic demotions do not count.
func (s *Store) rejectedManually(db *gorm.DB, productID, externalID string) (bool, error) {
	var count int64
	err := db.Model(&models.LinkRow{}).
		Where("product_id = ? AND external_id = ? AND status = ? AND method = ?",
			productID, externalID, catalog.StatusRejected, catalog.MethodManual).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking rejections for %s: %w", productID, err)
	}
	return count > 0, nil
}

func (s *Store) clearPending(db *gorm.DB, productID string) error {
	return db.Where("product_id = ? AND status = ?", productID, catalog.StatusPending).
		Delete(&models.LinkRow{}).Error
}
