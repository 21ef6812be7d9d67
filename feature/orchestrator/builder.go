package orchestrator

import (
	"discovery-sync/core/config"
	"discovery-sync/core/discovery"
	"discovery-sync/core/metrics"
	"discovery-sync/core/reconcile"
	"discovery-sync/core/storage"
	"discovery-sync/feature/enrichment"
	"discovery-sync/feature/inventory"
	"discovery-sync/feature/relationships"
	"discovery-sync/feature/retired"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Build wires the feature services of a run from configuration. store may be nil
// when archiving is disabled.
func Build(cfg *config.Config, db *gorm.DB, client *discovery.Client, store storage.Client, logger *zap.Logger) *Service {
	namespace := cfg.Database.Schema
	upserter := reconcile.NewUpserter(db, namespace, reconcile.Options{
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay,
	}, logger).WithObserver(metrics.Writes{})

	extractor := relationships.NewExtractor(client, upserter, relationships.Options{
		Focus:              cfg.Sync.FocusFacets,
		AllowedTargetKinds: cfg.Sync.AllowedTargetKinds,
		BatchSize:          cfg.Sync.RelationshipBatchSize,
		RetryDelay:         cfg.Sync.RetryDelay,
	}, logger).WithObserver(metrics.Edges{})

	c := Components{
		Inventory: inventory.NewService(client, db, upserter, cfg.Sync.Projections, client.Pool().Size(), logger),
		Extractor: extractor,
		Walker:    relationships.NewWalker(extractor, db, cfg.Sync.RelationshipChunkSize, logger),
		Kinds:     client,
	}
	if cfg.Sync.Enrichment {
		c.Enrichment = enrichment.NewService(client, upserter, logger)
	}
	if cfg.Sync.RetiredHosts {
		c.Retired = retired.NewService(client, db, upserter, cfg.Sync.RetiredBatchSize, logger)
	}
	if cfg.Storage.Enabled && store != nil {
		c.Archive = NewArchive(store, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.ReportRetention, logger)
	}

	return New(db, namespace, c, Options{
		Kinds:       cfg.Sync.Kinds,
		PrimaryKind: cfg.Sync.PrimaryKind,
		WalkKinds:   cfg.Sync.WalkKinds(),
		Jobs:        enrichment.DefaultJobs(),
		Retired:     cfg.Sync.RetiredHosts,
	}, logger)
}
