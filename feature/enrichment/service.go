package enrichment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"discovery-sync/core/reconcile"

	"go.uber.org/zap"
)

const keyColumn = "id"

// ErrInvalidJob is returned for jobs without an id column.
var ErrInvalidJob = errors.New("enrichment: job has no id column")

// Searcher runs search queries against the appliance.
type Searcher interface {
	Search(ctx context.Context, query string) ([][]any, error)
}

// Report describes one job run.
type Report struct {
	Job        string           `json:"job"`
	Table      string           `json:"table"`
	Fetched    int              `json:"fetched"`
	Short      int              `json:"short"`
	Upsert     reconcile.Result `json:"upsert"`
	NullCounts map[string]int   `json:"null_counts,omitempty"`
	FetchError string           `json:"fetch_error,omitempty"`
}

// Service runs enrichment jobs.
type Service struct {
	searcher Searcher
	upserter *reconcile.Upserter
	logger   *zap.Logger
}

// NewService creates an enrichment service. Writes use batches of 500 rows.
func NewService(searcher Searcher, upserter *reconcile.Upserter, logger *zap.Logger) *Service {
	return &Service{
		searcher: searcher,
		upserter: upserter.WithBatchSize(500),
		logger:   logger.With(zap.String("component", "enrichment")),
	}
}

// Run executes job and writes its values onto the kind table, which must already exist.
func (s *Service) Run(ctx context.Context, job Job) (*Report, error) {
	if !slices.Contains(job.Columns, keyColumn) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJob, job.Name)
	}

	table := reconcile.TableName(job.Kind)
	report := &Report{Job: job.Name, Table: table}
	l := s.logger.With(zap.String("job", job.Name), zap.String("table", table))

	results, err := s.searcher.Search(ctx, job.Query)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.FetchError = err.Error()
		l.Error("Search incomplete", zap.Int("fetched", len(results)), zap.Error(err))
	}
	report.Fetched = len(results)
	if len(results) == 0 {
		l.Warn("No enrichment rows fetched")
		return report, nil
	}

	rows := make([]reconcile.Row, 0, len(results))
	for _, cells := range results {
		if len(cells) < len(job.Columns) {
			report.Short++
			continue
		}
		row := make(reconcile.Row, len(job.Columns))
		for i, col := range job.Columns {
			if col != SkipColumn {
				row.Set(col, cells[i])
			}
		}
		rows = append(rows, row)
	}
	if report.Short > 0 {
		l.Warn("Skipped short search rows", zap.Int("short", report.Short), zap.Int("expected_cells", len(job.Columns)))
	}

	written := job.written()
	if _, err := s.upserter.Schema().EnsureColumns(ctx, table, written); err != nil {
		return report, err
	}

	res, err := s.upserter.Upsert(ctx, reconcile.Target{Table: table, Key: keyColumn}, rows)
	report.Upsert = res
	if err != nil {
		return report, err
	}

	report.NullCounts = nullCounts(rows, written)
	fields := []zap.Field{zap.Int("written", res.Written)}
	for _, col := range sortedKeys(report.NullCounts) {
		fields = append(fields, zap.Int("null_"+col, report.NullCounts[col]))
	}
	l.Info("Enrichment applied", fields...)
	return report, nil
}

func nullCounts(rows []reconcile.Row, columns []string) map[string]int {
	counts := make(map[string]int)
	for _, col := range columns {
		if col == keyColumn {
			continue
		}
		n := 0
		for _, row := range rows {
			if row[col] == nil {
				n++
			}
		}
		counts[col] = n
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
