package reconcile

import (
	"sort"
	"strings"

	"discovery-sync/core/database"

	"gorm.io/gorm"
)

// maxBindVars keeps every statement under the placeholder limit of all
// supported drivers (sqlite caps at 32766).
const maxBindVars = 30000

type statement struct {
	sql  string
	args []any
}

// buildStatements renders the INSERT statements for rows. Rows are grouped by
// their column set so a row that lacks a column never overwrites it with NULL.
func buildStatements(db *gorm.DB, namespace string, target Target, rows []Row) ([]statement, error) {
	qualified, err := database.QualifiedTable(db, namespace, target.Table)
	if err != nil {
		return nil, err
	}

	type group struct {
		columns []string
		rows    []Row
	}
	var order []string
	groups := make(map[string]*group)
	for _, row := range rows {
		cols := orderedColumns(row, target.Key)
		sig := strings.Join(cols, "\x00")
		g, ok := groups[sig]
		if !ok {
			g = &group{columns: cols}
			groups[sig] = g
			order = append(order, sig)
		}
		g.rows = append(g.rows, row)
	}

	mysql := db.Dialector.Name() == database.DriverMySQL
	var stmts []statement
	for _, sig := range order {
		g := groups[sig]

		quoted := make([]string, len(g.columns))
		for i, col := range g.columns {
			if quoted[i], err = database.QuoteIdent(db, col); err != nil {
				return nil, err
			}
		}
		quotedKey := quoted[0]

		head := "INSERT INTO "
		if mysql && (target.Mode == ModeIgnore || len(quoted) == 1) {
			head = "INSERT IGNORE INTO "
		}
		head += qualified + " (" + strings.Join(quoted, ", ") + ") VALUES "
		tail := conflictClause(mysql, target.Mode, quotedKey, quoted[1:])

		placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ") + ")"
		perStmt := max(1, maxBindVars/len(quoted))

		for start := 0; start < len(g.rows); start += perStmt {
			chunk := g.rows[start:min(start+perStmt, len(g.rows))]
			values := make([]string, len(chunk))
			args := make([]any, 0, len(chunk)*len(quoted))
			for i, row := range chunk {
				values[i] = placeholder
				for _, col := range g.columns {
					if v := row[col]; v != nil {
						args = append(args, *v)
					} else {
						args = append(args, nil)
					}
				}
			}
			stmts = append(stmts, statement{
				sql:  head + strings.Join(values, ", ") + tail,
				args: args,
			})
		}
	}
	return stmts, nil
}

func conflictClause(mysql bool, mode Mode, quotedKey string, quotedCols []string) string {
	if mysql {
		if mode == ModeIgnore || len(quotedCols) == 0 {
			return ""
		}
		sets := make([]string, len(quotedCols))
		for i, col := range quotedCols {
			sets[i] = col + " = VALUES(" + col + ")"
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	if mode == ModeIgnore || len(quotedCols) == 0 {
		return " ON CONFLICT (" + quotedKey + ") DO NOTHING"
	}
	sets := make([]string, len(quotedCols))
	for i, col := range quotedCols {
		sets[i] = col + " = excluded." + col
	}
	return " ON CONFLICT (" + quotedKey + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// orderedColumns returns the key column followed by the others in sorted order.
func orderedColumns(row Row, key string) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		if col != key {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return append([]string{key}, cols...)
}
