package retired

import (
	"context"

	"discovery-sync/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Query lists hosts that were destroyed and are no longer current.
const Query = "Search FLAGS(include_destroyed, exclude_current) Host show name,friendlyTime(destructionTime(#)),key,#id"

// Table is the retired host table.
const Table = "retired"

// Retired table columns, in the order of the query's result cells.
const (
	ColumnName         = "name"
	ColumnFriendlyTime = "friendly_time"
	ColumnKey          = "key"
	ColumnNodeID       = "node_id"
)

// Columns lists the retired table columns.
var Columns = []string{ColumnName, ColumnFriendlyTime, ColumnKey, ColumnNodeID}

// Searcher runs search queries against the appliance.
type Searcher interface {
	Search(ctx context.Context, query string) ([][]any, error)
}

// Report describes one retired host sync.
type Report struct {
	Fetched      int                     `json:"fetched"`
	Invalid      int                     `json:"invalid"`
	Unique       int                     `json:"unique"`
	Upsert       reconcile.Result        `json:"upsert"`
	Verification *reconcile.Verification `json:"verification,omitempty"`
	FetchError   string                  `json:"fetch_error,omitempty"`
}

// Service mirrors retired hosts.
type Service struct {
	searcher Searcher
	db       *gorm.DB
	upserter *reconcile.Upserter
	logger   *zap.Logger
}

// NewService creates a retired host service. batchSize is the write batch size.
func NewService(searcher Searcher, db *gorm.DB, upserter *reconcile.Upserter, batchSize int, logger *zap.Logger) *Service {
	return &Service{
		searcher: searcher,
		db:       db,
		upserter: upserter.WithBatchSize(batchSize),
		logger:   logger.With(zap.String("component", "retired")),
	}
}

// Sync fetches the retired hosts and upserts them keyed by name. Records with
// fewer than four cells are skipped. When a name appears more than once the last
// record wins.
func (s *Service) Sync(ctx context.Context) (*Report, error) {
	report := &Report{}

	results, err := s.searcher.Search(ctx, Query)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.FetchError = err.Error()
		s.logger.Error("Retired host search incomplete", zap.Int("fetched", len(results)), zap.Error(err))
	}
	report.Fetched = len(results)
	if len(results) == 0 {
		s.logger.Warn("No retired hosts found")
		return report, nil
	}

	if err := s.upserter.Schema().EnsureTable(ctx, Table, ColumnName, Columns); err != nil {
		return report, err
	}

	rows := make([]reconcile.Row, 0, len(results))
	names := make(map[string]struct{}, len(results))
	for _, cells := range results {
		if len(cells) < len(Columns) {
			report.Invalid++
			s.logger.Warn("Skipping invalid retired record", zap.Int("cells", len(cells)))
			continue
		}
		row := make(reconcile.Row, len(Columns))
		for i, col := range Columns {
			row.Set(col, cells[i])
		}
		if name := row.Value(ColumnName); name != "" {
			names[name] = struct{}{}
		}
		rows = append(rows, row)
	}
	report.Unique = len(names)
	s.logger.Info("Retired hosts deduplicated", zap.Int("records", len(results)), zap.Int("unique", report.Unique))
	if report.Unique == 0 {
		s.logger.Warn("No valid retired records")
		return report, nil
	}

	res, err := s.upserter.Upsert(ctx, reconcile.Target{Table: Table, Key: ColumnName}, rows)
	report.Upsert = res
	if err != nil {
		return report, err
	}

	v, err := reconcile.Verify(ctx, s.db, s.upserter.Schema().Namespace(), Table, int64(res.Written), s.logger)
	if err != nil {
		s.logger.Error("Retired count verification failed", zap.Error(err))
		return report, nil
	}
	report.Verification = &v
	return report, nil
}
