package reconcile

import "discovery-sync/core/utils"

// Row is one record keyed by column name. A nil value is stored as NULL.
type Row map[string]*string

// Value returns the text of a column, or "" when it is missing or NULL.
func (r Row) Value(column string) string {
	if v := r[column]; v != nil {
		return *v
	}
	return ""
}

// Set stores a decoded JSON value under column.
func (r Row) Set(column string, value any) {
	r[column] = utils.Stringify(value)
}

// Mode selects what happens when a row's key already exists.
type Mode int

const (
	// ModeUpdate overwrites the supplied columns of the existing row.
	ModeUpdate Mode = iota
	// ModeIgnore keeps the existing row untouched.
	ModeIgnore
)

// Target names the table a batch is written to.
type Target struct {
	// Table is the unqualified table name.
	Table string
	// Key is the primary key column.
	Key string
	// Mode is the conflict behaviour.
	Mode Mode
	// FixedColumns skips catalog reconciliation for tables whose columns are
	// known up front.
	FixedColumns bool
}
