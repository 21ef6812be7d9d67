package relationships

import (
	"context"
	"sync"

	"discovery-sync/core/database"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Walker runs the extractor over many nodes. Nodes are processed in chunks; the
// nodes of one chunk run concurrently, each on its own database connection, and
// chunks run one after another.
type Walker struct {
	extractor *Extractor
	db        *gorm.DB
	chunkSize int
	logger    *zap.Logger
}

// NewWalker creates a Walker. db is the pool connections are taken from.
func NewWalker(extractor *Extractor, db *gorm.DB, chunkSize int, logger *zap.Logger) *Walker {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &Walker{
		extractor: extractor,
		db:        db,
		chunkSize: chunkSize,
		logger:    logger.With(zap.String("component", "relationships")),
	}
}

// Run walks every node of ids. A node that fails is logged and counted; only a
// cancelled context stops the walk. The edge table size is logged after each chunk.
func (w *Walker) Run(ctx context.Context, ids []string, cache *KindCache) (Stats, error) {
	var collector statsCollector

	for start := 0; start < len(ids); start += w.chunkSize {
		end := min(start+w.chunkSize, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ids[start:end] {
			g.Go(func() error {
				stats, err := w.syncPinned(gctx, id, cache)
				collector.add(stats)
				if err != nil && gctx.Err() != nil {
					return err
				}
				if err != nil {
					w.logger.Error("Relationship walk failed", zap.String("entity_id", id), zap.Error(err))
					collector.add(Stats{NodeFailures: 1})
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return collector.snapshot(), err
		}

		total, err := database.CountRows(ctx, w.db, w.extractor.Namespace(), Table)
		if err != nil {
			w.logger.Warn("Could not count edges", zap.Error(err))
			continue
		}
		w.logger.Info("Relationship chunk done",
			zap.Int("processed", end),
			zap.Int("nodes", len(ids)),
			zap.Int64("edges", total),
		)
	}
	return collector.snapshot(), nil
}

// syncPinned walks one node on a dedicated connection.
func (w *Walker) syncPinned(ctx context.Context, id string, cache *KindCache) (Stats, error) {
	var stats Stats
	err := w.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var err error
		stats, err = w.extractor.WithDB(conn).SyncNode(ctx, id, cache)
		return err
	})
	return stats, err
}

// statsCollector merges per-node stats from concurrent walks.
type statsCollector struct {
	mu    sync.Mutex
	stats Stats
}

func (c *statsCollector) add(s Stats) {
	c.mu.Lock()
	c.stats.Add(s)
	c.mu.Unlock()
}

func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
