package inventory

import (
	"context"
	"sync"
	"time"

	"discovery-sync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Source is the slice of the discovery client the inventory sync needs.
type Source interface {
	FetchNodeIDs(ctx context.Context, kind string) ([]string, error)
	FetchNode(ctx context.Context, id string) (map[string]any, error)
}

// KindReport describes the sync of one kind.
type KindReport struct {
	Kind           string                  `json:"kind"`
	Table          string                  `json:"table"`
	Fetched        int                     `json:"fetched"`
	Detailed       int                     `json:"detailed"`
	DetailFailures int                     `json:"detail_failures"`
	Columns        []string                `json:"columns"`
	Upsert         reconcile.Result        `json:"upsert"`
	Verification   *reconcile.Verification `json:"verification,omitempty"`
	FetchError     string                  `json:"fetch_error,omitempty"`
	Duration       time.Duration           `json:"duration"`
}

// Service mirrors every node of a kind into its own table.
type Service struct {
	source      Source
	db          *gorm.DB
	upserter    *reconcile.Upserter
	projections map[string][]string
	concurrency int
	logger      *zap.Logger
}

// NewService creates an inventory service. concurrency bounds the detail
// fetches in flight and should match the discovery fetch pool.
func NewService(source Source, db *gorm.DB, upserter *reconcile.Upserter, projections map[string][]string, concurrency int, logger *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		source:      source,
		db:          db,
		upserter:    upserter,
		projections: projections,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "inventory")),
	}
}

// FetchIDs returns the ids of every node of kind. Ids fetched before a failure
// are returned with the error.
func (s *Service) FetchIDs(ctx context.Context, kind string) ([]string, error) {
	return s.source.FetchNodeIDs(ctx, kind)
}

// SyncKind fetches all nodes of kind, projects their details and upserts them.
//
// A failed listing keeps the ids gathered so far. Nodes whose detail fetch fails
// are skipped. An empty listing is reported, not treated as an error; callers
// decide whether a kind is mandatory.
func (s *Service) SyncKind(ctx context.Context, kind string) (*KindReport, error) {
	start := time.Now()
	l := s.logger.With(zap.String("kind", kind))
	projection := ProjectionFor(kind, s.projections)
	report := &KindReport{
		Kind:    kind,
		Table:   reconcile.TableName(kind),
		Columns: projection.Columns(),
	}
	defer func() { report.Duration = time.Since(start) }()

	l.Info("Processing kind", zap.Strings("columns", projection))

	ids, err := s.source.FetchNodeIDs(ctx, kind)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.FetchError = err.Error()
		l.Error("Node listing incomplete", zap.Int("fetched", len(ids)), zap.Error(err))
	}
	report.Fetched = len(ids)
	if len(ids) == 0 {
		l.Error("No nodes found")
		return report, nil
	}

	rows, failures, err := s.fetchRows(ctx, ids, projection)
	if err != nil {
		return report, err
	}
	report.Detailed = len(rows)
	report.DetailFailures = failures
	if failures > 0 {
		l.Warn("Some node details could not be fetched", zap.Int("failed", failures))
	}

	if len(rows) > 0 {
		if err := s.upserter.Schema().EnsureTable(ctx, report.Table, ColumnID, report.Columns); err != nil {
			return report, err
		}
		res, err := s.upserter.Upsert(ctx, reconcile.Target{Table: report.Table, Key: ColumnID}, rows)
		report.Upsert = res
		if err != nil {
			return report, err
		}
		l.Info("Kind mirrored", zap.String("table", report.Table), zap.Int("written", res.Written))
	}

	v, err := reconcile.Verify(ctx, s.db, s.upserter.Schema().Namespace(), report.Table, int64(report.Fetched), l)
	if err != nil {
		l.Error("Count verification failed", zap.Error(err))
		return report, nil
	}
	report.Verification = &v
	return report, nil
}

// fetchRows fetches details concurrently and projects them in listing order.
func (s *Service) fetchRows(ctx context.Context, ids []string, projection Projection) ([]reconcile.Row, int, error) {
	projected := make([]reconcile.Row, len(ids))
	var (
		mu       sync.Mutex
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			detail, err := s.source.FetchNode(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("Node detail fetch failed", zap.String("entity_id", id), zap.Error(err))
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			projected[i] = projection.Project(id, detail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failures, err
	}

	rows := make([]reconcile.Row, 0, len(ids))
	for _, row := range projected {
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows, failures, nil
}
