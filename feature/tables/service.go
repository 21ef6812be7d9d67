package tables

import (
	"context"
	"errors"
	"slices"

	"discovery-sync/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sample size bounds.
const (
	DefaultSampleLimit = 10
	MaxSampleLimit     = 100
)

// ErrTableNotFound is returned for tables outside the mirror schema.
var ErrTableNotFound = errors.New("tables: table not found")

// Summary is one mirror table and its size.
type Summary struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// Details describes one mirror table.
type Details struct {
	Name    string           `json:"name"`
	Rows    int64            `json:"rows"`
	Columns []string         `json:"columns"`
	Sample  []map[string]any `json:"sample"`
}

// Service inspects the mirror tables.
type Service struct {
	db        *gorm.DB
	namespace string
	logger    *zap.Logger
}

// NewService creates a table inspection service for namespace.
func NewService(db *gorm.DB, namespace string, logger *zap.Logger) *Service {
	return &Service{db: db, namespace: namespace, logger: logger}
}

// List returns every table of the mirror with its row count.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	names, err := database.ListTables(ctx, s.db, s.namespace)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		n, err := database.CountRows(ctx, s.db, s.namespace, name)
		if err != nil {
			s.logger.Warn("Failed to count rows", zap.String("table", name), zap.Error(err))
			n = -1
		}
		out = append(out, Summary{Name: name, Rows: n})
	}
	return out, nil
}

// Describe returns the columns, row count and up to limit sample rows of table.
// The limit is clamped to [1, MaxSampleLimit].
func (s *Service) Describe(ctx context.Context, table string, limit int) (*Details, error) {
	names, err := database.ListTables(ctx, s.db, s.namespace)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, table) {
		return nil, ErrTableNotFound
	}

	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	limit = min(limit, MaxSampleLimit)

	columns, err := database.GetTableColumns(ctx, s.db, s.namespace, table)
	if err != nil {
		return nil, err
	}
	rows, err := database.CountRows(ctx, s.db, s.namespace, table)
	if err != nil {
		return nil, err
	}
	sample, err := database.SampleRows(ctx, s.db, s.namespace, table, limit)
	if err != nil {
		return nil, err
	}
	return &Details{Name: table, Rows: rows, Columns: columns, Sample: sample}, nil
}
