package cmd

import (
	"context"

	"catalog-sync/core/archive"
	"catalog-sync/core/beerdb"
	"catalog-sync/core/config"
	"catalog-sync/core/database"
	"catalog-sync/core/linkstore"
	"catalog-sync/core/match"
	"catalog-sync/core/models"
	"catalog-sync/core/persist"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/retailer"
	"catalog-sync/core/storage"
	"catalog-sync/core/syncer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// engine bundles everything a command needs to run sync cycles.
type engine struct {
	db           *gorm.DB
	links        *linkstore.Store
	store        *persist.Store
	orchestrator *syncer.Orchestrator
	archiver     *archive.Archiver // nil when object storage is unavailable
}

// buildEngine wires the sync engine from configuration. Object storage is
// optional: without it the engine runs with archival disabled.
func buildEngine(cfg *config.Config, logg *zap.Logger) (*engine, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Bootstrap(db, models.All()...); err != nil {
		return nil, err
	}

	var archiver *archive.Archiver
	if client, err := storage.NewClient(cfg.Storage); err != nil {
		logg.Warn("Object storage unavailable, pull archival disabled", zap.Error(err))
	} else {
		archiver = archive.New(client, cfg.Storage.Bucket, logg)
		if err := archiver.EnsureBucket(context.Background()); err != nil {
			logg.Warn("Archive bucket unavailable, pull archival disabled", zap.Error(err))
			archiver = nil
		}
	}

	limiter := ratelimit.New(cfg.RateLimit)
	source := retailer.New(cfg.Retailer, limiter, logg)
	beers := beerdb.New(cfg.BeerDB, db, limiter, logg)
	matcher := match.New(cfg.Match, beers, logg)
	links := linkstore.New(cfg.Links, logg)
	store := persist.New(db, links, logg)

	var orchestratorArchiver syncer.Archiver
	if archiver != nil {
		orchestratorArchiver = archiver
	}
	orchestrator := syncer.New(cfg.Sync, source, matcher, store, orchestratorArchiver, logg)

	return &engine{
		db:           db,
		links:        links,
		store:        store,
		orchestrator: orchestrator,
		archiver:     archiver,
	}, nil
}
