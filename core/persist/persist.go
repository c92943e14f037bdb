package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/linkstore"
	"catalog-sync/core/models"
	"catalog-sync/core/syncer"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists cycle output. It satisfies the orchestrator's Store
// interface.
type Store struct {
	db     *gorm.DB
	links  *linkstore.Store
	logger *zap.Logger
}

// New creates a Store.
func New(db *gorm.DB, links *linkstore.Store, logger *zap.Logger) *Store {
	return &Store{db: db, links: links, logger: logger}
}

// LastCompleteSnapshot returns the most recent complete snapshot, or nil
// when no complete cycle has ever committed.
func (s *Store) LastCompleteSnapshot(ctx context.Context) (*catalog.Snapshot, error) {
	var row models.SnapshotRow
	err := s.db.WithContext(ctx).
		Where("complete = ?", true).
		Order("pulled_at DESC").
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("loading last complete snapshot: %w", err)
	}
	return row.ToDomain()
}

// MatchQueue selects up to limit pulled products due for matching:
// never-linked products first, then stale links, then manual links flagged
// for recheck. Within each class the longest-waiting product goes first.
func (s *Store) MatchQueue(ctx context.Context, pulled map[string]catalog.Product, relinkAfter time.Duration, limit int) ([]syncer.MatchCandidate, error) {
	ids := make([]string, 0, len(pulled))
	for id := range pulled {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []models.LinkRow
	err := s.db.WithContext(ctx).
		Where("product_id IN ? AND status = ?", ids, catalog.StatusActive).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading links for match queue: %w", err)
	}
	active := make(map[string]models.LinkRow, len(rows))
	for _, r := range rows {
		active[r.ProductID] = r
	}

	cutoff := time.Now().Add(-relinkAfter)
	var fresh, stale, recheck []syncer.MatchCandidate
	for _, id := range ids {
		link, linked := active[id]
		switch {
		case !linked:
			fresh = append(fresh, syncer.MatchCandidate{Product: pulled[id]})
		case link.Method == catalog.MethodManual:
			// Manual links are permanent; recheck only refreshes the
			// external record through the exact-id path.
			if link.Recheck {
				recheck = append(recheck, syncer.MatchCandidate{
					Product:         pulled[id],
					PriorExternalID: link.ExternalID,
				})
			}
		case link.ReaffirmedAt.Before(cutoff):
			stale = append(stale, syncer.MatchCandidate{
				Product:         pulled[id],
				PriorExternalID: link.ExternalID,
			})
		}
	}

	sort.SliceStable(stale, func(i, j int) bool {
		return active[stale[i].Product.ID].ReaffirmedAt.
			Before(active[stale[j].Product.ID].ReaffirmedAt)
	})

	queue := append(fresh, stale...)
	queue = append(queue, recheck...)
	if limit > 0 && len(queue) > limit {
		queue = queue[:limit]
	}
	return queue, nil
}

// CommitCycle writes one cycle's output atomically: product upserts, the
// snapshot, change events, and every link decision.
func (s *Store) CommitCycle(ctx context.Context, result *syncer.CycleResult) error {
	snapshot, err := models.SnapshotRowFrom(&catalog.Snapshot{
		CycleID:    result.CycleID,
		PulledAt:   result.PulledAt,
		Complete:   result.Complete,
		Categories: result.Categories,
		Products:   result.Products,
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(result.Products))
	for id := range result.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			row := models.ProductRowFrom(result.Products[id], result.PulledAt)
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "brewery", "style", "category", "abv", "volume",
					"price", "price_per_litre", "available", "release_date",
					"url", "last_seen_at",
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upserting product %s: %w", id, err)
			}
		}

		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("writing snapshot %s: %w", result.CycleID, err)
		}

		for _, ev := range result.Events {
			row := models.ChangeEventRowFrom(result.CycleID, ev)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("writing change event for %s: %w", ev.ProductID, err)
			}
		}

		for _, id := range ids {
			res, ok := result.Matches[id]
			if !ok {
				continue
			}
			if err := s.links.Apply(tx, id, res, result.PulledAt); err != nil {
				return fmt.Errorf("applying match for %s: %w", id, err)
			}
		}
		return nil
	})
}

// DeactivateUnseen marks available products unavailable when their last
// observation predates the cutoff.
func (s *Store) DeactivateUnseen(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.ProductRow{}).
		Where("available = ? AND last_seen_at < ?", true, cutoff).
		Update("available", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivating unseen products: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("deactivated unseen products",
			zap.Int64("count", res.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return res.RowsAffected, nil
}
