package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// MaxIdentifierLength is the longest table or column name the store accepts.
// It matches the postgres NAMEDATALEN limit and is applied to every dialect.
const MaxIdentifierLength = 63

// ErrInvalidIdentifier is returned for names that cannot be safely quoted.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ValidateIdentifier checks that name can be embedded as a quoted identifier.
// "?" is rejected because gorm treats it as a bind variable in raw SQL.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case len(name) > MaxIdentifierLength:
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name, MaxIdentifierLength)
	case strings.ContainsAny(name, "\x00?"):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidIdentifier, name)
	}
	return nil
}

// QuoteIdent quotes a single identifier for the dialect of db.
// Names are quoted verbatim, dots included.
func QuoteIdent(db *gorm.DB, name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	if db.Dialector.Name() == DriverMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`", nil
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// QualifiedTable returns the quoted, schema qualified name of table.
// sqlite has no schemas, so the namespace is dropped there.
func QualifiedTable(db *gorm.DB, schema, table string) (string, error) {
	quotedTable, err := QuoteIdent(db, table)
	if err != nil {
		return "", err
	}
	if schema == "" || db.Dialector.Name() == DriverSQLite {
		return quotedTable, nil
	}
	quotedSchema, err := QuoteIdent(db, schema)
	if err != nil {
		return "", err
	}
	return quotedSchema + "." + quotedTable, nil
}

// KeyColumnType is the column type used for primary keys.
// MySQL cannot index an unbounded TEXT column.
func KeyColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == DriverMySQL {
		return "VARCHAR(255)"
	}
	return "TEXT"
}
