package reconcile

import (
	"context"
	"fmt"
	"strings"

	"discovery-sync/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Schema performs additive schema changes on the mirror tables.
// It never drops or retypes a column.
type Schema struct {
	db        *gorm.DB
	namespace string
	logger    *zap.Logger
}

// NewSchema creates a Schema for tables inside namespace.
func NewSchema(db *gorm.DB, namespace string, logger *zap.Logger) *Schema {
	return &Schema{db: db, namespace: namespace, logger: logger}
}

// WithDB returns a copy bound to db, typically a pinned connection.
func (s *Schema) WithDB(db *gorm.DB) *Schema {
	cp := *s
	cp.db = db
	return &cp
}

// Namespace returns the schema the tables live in.
func (s *Schema) Namespace() string {
	return s.namespace
}

// Columns returns the live column set of table. A missing table has none.
func (s *Schema) Columns(ctx context.Context, table string) (map[string]struct{}, error) {
	names, err := database.GetTableColumns(ctx, s.db, s.namespace, table)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// EnsureTable creates table with key as its text primary key and one TEXT column
// per entry of columns. If the table already exists, missing columns are added.
func (s *Schema) EnsureTable(ctx context.Context, table, key string, columns []string) error {
	existing, err := s.Columns(ctx, table)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		_, err := s.addMissing(ctx, table, existing, columns)
		return err
	}

	qualified, err := database.QualifiedTable(s.db, s.namespace, table)
	if err != nil {
		return err
	}
	quotedKey, err := database.QuoteIdent(s.db, key)
	if err != nil {
		return err
	}

	defs := []string{quotedKey + " " + database.KeyColumnType(s.db) + " PRIMARY KEY"}
	for _, col := range s.normalize(columns) {
		if col == key {
			continue
		}
		quoted, _ := database.QuoteIdent(s.db, col)
		defs = append(defs, quoted+" TEXT")
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, strings.Join(defs, ", "))
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	s.logger.Info("Table created", zap.String("table", table), zap.Int("columns", len(defs)))
	return nil
}

// EnsureColumns adds every column of columns that table lacks and returns the
// names that were added. The table must exist.
func (s *Schema) EnsureColumns(ctx context.Context, table string, columns []string) ([]string, error) {
	existing, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return s.addMissing(ctx, table, existing, columns)
}

func (s *Schema) addMissing(ctx context.Context, table string, existing map[string]struct{}, columns []string) ([]string, error) {
	var added []string
	for _, col := range s.normalize(columns) {
		if _, ok := existing[col]; ok {
			continue
		}
		if err := s.addColumn(ctx, table, col); err != nil {
			return added, err
		}
		existing[col] = struct{}{}
		added = append(added, col)
	}
	if len(added) > 0 {
		s.logger.Info("Columns added", zap.String("table", table), zap.Strings("columns", added))
	}
	return added, nil
}

func (s *Schema) addColumn(ctx context.Context, table, column string) error {
	qualified, err := database.QualifiedTable(s.db, s.namespace, table)
	if err != nil {
		return err
	}
	quoted, err := database.QuoteIdent(s.db, column)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", qualified, quoted)
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		// another writer may have added it in the meantime
		current, lookupErr := s.Columns(ctx, table)
		if lookupErr == nil {
			if _, ok := current[column]; ok {
				return nil
			}
		}
		return fmt.Errorf("failed to add column %s to %s: %w", column, table, err)
	}
	return nil
}

// normalize shortens names, drops duplicates and skips names that cannot be quoted.
func (s *Schema) normalize(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		name := ShortenName(col)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if err := database.ValidateIdentifier(name); err != nil {
			s.logger.Warn("Skipping column with invalid name", zap.String("column", col), zap.Error(err))
			continue
		}
		out = append(out, name)
	}
	return out
}
