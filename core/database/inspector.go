package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// EnsureSchema creates the namespace for the mirrored tables if it is missing.
func EnsureSchema(ctx context.Context, db *gorm.DB, schema string) error {
	if schema == "" {
		return nil
	}
	quoted, err := QuoteIdent(db, schema)
	if err != nil {
		return err
	}

	var stmt string
	switch db.Dialector.Name() {
	case DriverPostgres:
		stmt = "CREATE SCHEMA IF NOT EXISTS " + quoted
	case DriverMySQL:
		stmt = "CREATE DATABASE IF NOT EXISTS " + quoted
	default:
		return nil
	}

	if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}

// GetTableColumns returns the column names of a table in catalog order.
// A missing table yields an empty slice.
func GetTableColumns(ctx context.Context, db *gorm.DB, schema, table string) ([]string, error) {
	var columns []string
	conn := db.WithContext(ctx)

	var err error
	switch db.Dialector.Name() {
	case DriverSQLite:
		err = conn.Raw("SELECT name FROM pragma_table_info(?) ORDER BY cid", table).Scan(&columns).Error
	case DriverMySQL:
		err = conn.Raw(
			"SELECT column_name FROM information_schema.columns WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ? ORDER BY ordinal_position",
			schema, table,
		).Scan(&columns).Error
	default:
		err = conn.Raw(
			"SELECT column_name FROM information_schema.columns WHERE table_schema = COALESCE(NULLIF(?, ''), current_schema()) AND table_name = ? ORDER BY ordinal_position",
			schema, table,
		).Scan(&columns).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
	}
	return columns, nil
}

// ListTables returns the base tables of a schema sorted by name.
func ListTables(ctx context.Context, db *gorm.DB, schema string) ([]string, error) {
	var tables []string
	conn := db.WithContext(ctx)

	var err error
	switch db.Dialector.Name() {
	case DriverSQLite:
		err = conn.Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name").Scan(&tables).Error
	case DriverMySQL:
		err = conn.Raw(
			"SELECT table_name FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_type = 'BASE TABLE' ORDER BY table_name",
			schema,
		).Scan(&tables).Error
	default:
		err = conn.Raw(
			"SELECT table_name FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), current_schema()) AND table_type = 'BASE TABLE' ORDER BY table_name",
			schema,
		).Scan(&tables).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// CountRows returns the number of rows stored in a table.
func CountRows(ctx context.Context, db *gorm.DB, schema, table string) (int64, error) {
	qualified, err := QualifiedTable(db, schema, table)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM " + qualified).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// SampleRows returns up to limit rows of a table as column/value maps.
func SampleRows(ctx context.Context, db *gorm.DB, schema, table string, limit int) ([]map[string]any, error) {
	qualified, err := QualifiedTable(db, schema, table)
	if err != nil {
		return nil, err
	}
	rows := []map[string]any{}
	if err := db.WithContext(ctx).Raw("SELECT * FROM "+qualified+" LIMIT ?", limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", table, err)
	}
	// mysql hands TEXT back as raw bytes
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
	return rows, nil
}
