package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"discovery-sync/core/database"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	return db
}

func str(s string) *string {
	return &s
}

func newTestUpserter(db *gorm.DB, batchSize int) *Upserter {
	return NewUpserter(db, "discovery", Options{
		BatchSize:  batchSize,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
}

// injectError fails every raw statement for which fn returns an error.
func injectError(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB) error) {
	t.Helper()
	err := db.Callback().Raw().Before("gorm:raw").Register("test:inject_error", func(tx *gorm.DB) {
		if err := fn(tx); err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

func isMultiRowInsert(tx *gorm.DB) bool {
	sql := tx.Statement.SQL.String()
	return strings.HasPrefix(sql, "INSERT") && strings.Contains(sql, "), (")
}

func readValue(t *testing.T, db *gorm.DB, table, column, id string) *string {
	t.Helper()
	var v *string
	q := fmt.Sprintf(`SELECT "%s" FROM "%s" WHERE "id" = ?`, column, table)
	require.NoError(t, db.Raw(q, id).Row().Scan(&v))
	return v
}

type countingObserver struct {
	mu        sync.Mutex
	written   int
	retries   int
	fallbacks int
	failures  int
}

func (o *countingObserver) ObserveWritten(_ string, n int) { o.mu.Lock(); o.written += n; o.mu.Unlock() }
func (o *countingObserver) ObserveRetry(string)            { o.mu.Lock(); o.retries++; o.mu.Unlock() }
func (o *countingObserver) ObserveFallback(string)         { o.mu.Lock(); o.fallbacks++; o.mu.Unlock() }
func (o *countingObserver) ObserveRowFailure(string)       { o.mu.Lock(); o.failures++; o.mu.Unlock() }

func TestUpsertInsertsAndUpdates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 500)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", []string{"name", "os"}))

	target := Target{Table: "host", Key: "id"}
	res, err := up.Upsert(ctx, target, []Row{
		{"id": str("1"), "name": str("web01"), "os": str("linux")},
		{"id": str("2"), "name": str("web02"), "os": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)

	// A partial row updates only the columns it carries.
	_, err = up.Upsert(ctx, target, []Row{{"id": str("1"), "name": str("web01-renamed")}})
	require.NoError(t, err)

	assert.Equal(t, "web01-renamed", *readValue(t, db, "host", "name", "1"))
	assert.Equal(t, "linux", *readValue(t, db, "host", "os", "1"))
	assert.Nil(t, readValue(t, db, "host", "os", "2"))

	count, err := database.CountRows(ctx, db, "discovery", "host")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpsertIgnoreModeKeepsFirstWrite(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 100)
	require.NoError(t, up.Schema().EnsureTable(ctx, "relationships", "rel_id", []string{"kind"}))

	target := Target{Table: "relationships", Key: "rel_id", Mode: ModeIgnore, FixedColumns: true}
	_, err := up.Upsert(ctx, target, []Row{{"rel_id": str("r1"), "kind": str("first")}})
	require.NoError(t, err)
	res, err := up.Upsert(ctx, target, []Row{{"rel_id": str("r1"), "kind": str("second")}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	var kind string
	require.NoError(t, db.Raw(`SELECT "kind" FROM "relationships" WHERE "rel_id" = 'r1'`).Row().Scan(&kind))
	assert.Equal(t, "first", kind)
}

func TestUpsertAddsNewColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 500)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", []string{"name"}))

	_, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, []Row{
		{"id": str("1"), "name": str("web01"), "serial": str("SN-1")},
	})
	require.NoError(t, err)

	cols, err := database.GetTableColumns(ctx, db, "discovery", "host")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "serial"}, cols)
	assert.Equal(t, "SN-1", *readValue(t, db, "host", "serial", "1"))
}

func TestUpsertShortensLongColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 500)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", nil))

	long := strings.Repeat("c", 80)
	_, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, []Row{{"id": str("1"), long: str("v")}})
	require.NoError(t, err)

	short := ShortenName(long)
	require.Len(t, short, 63)
	assert.Equal(t, "v", *readValue(t, db, "host", short, "1"))
}

func TestUpsertSkipsRowsWithoutKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 500)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", []string{"name"}))

	res, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, []Row{
		{"id": str("1"), "name": str("a")},
		{"id": nil, "name": str("b")},
		{"name": str("c")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 2, res.Skipped)
}

func TestUpsertDuplicateKeysLastWins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 500)
	require.NoError(t, up.Schema().EnsureTable(ctx, "retired", "name", []string{"key"}))

	res, err := up.Upsert(ctx, Target{Table: "retired", Key: "name", FixedColumns: true}, []Row{
		{"name": str("web01"), "key": str("old")},
		{"name": str("web02"), "key": str("other")},
		{"name": str("web01"), "key": str("new")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 0, res.Fallbacks)

	var key string
	require.NoError(t, db.Raw(`SELECT "key" FROM "retired" WHERE "name" = 'web01'`).Row().Scan(&key))
	assert.Equal(t, "new", key)
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	up := newTestUpserter(db, 7)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", []string{"name"}))

	rows := make([]Row, 25)
	for i := range rows {
		rows[i] = Row{"id": str(fmt.Sprintf("h%02d", i)), "name": str(fmt.Sprintf("host-%d", i))}
	}

	for run := 0; run < 2; run++ {
		res, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, rows)
		require.NoError(t, err)
		assert.Equal(t, 25, res.Written)
		assert.Equal(t, 4, res.Batches)
	}

	count, err := database.CountRows(ctx, db, "discovery", "host")
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)
}

func TestUpsertFallsBackToSingleRowsOnDeadlock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	obs := &countingObserver{}
	up := newTestUpserter(db, 100).WithObserver(obs)
	require.NoError(t, up.Schema().EnsureTable(ctx, "relationships", "rel_id", []string{"kind"}))

	injectError(t, db, func(tx *gorm.DB) error {
		if isMultiRowInsert(tx) {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})

	rows := make([]Row, 150)
	for i := range rows {
		rows[i] = Row{"rel_id": str(fmt.Sprintf("r%03d", i)), "kind": str("Dependency")}
	}

	res, err := up.Upsert(ctx, Target{Table: "relationships", Key: "rel_id", Mode: ModeIgnore, FixedColumns: true}, rows)
	require.NoError(t, err)
	assert.Equal(t, 150, res.Written)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 2, res.Fallbacks)

	assert.Equal(t, 2, obs.fallbacks)
	assert.Equal(t, 4, obs.retries) // two backoffs per batch before giving up
	assert.Equal(t, 150, obs.written)

	count, err := database.CountRows(ctx, db, "discovery", "relationships")
	require.NoError(t, err)
	assert.Equal(t, int64(150), count)
}

func TestUpsertIsolatesFailingRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	obs := &countingObserver{}
	up := newTestUpserter(db, 100).WithObserver(obs)
	require.NoError(t, up.Schema().EnsureTable(ctx, "host", "id", []string{"name"}))

	injectError(t, db, func(tx *gorm.DB) error {
		if !strings.HasPrefix(tx.Statement.SQL.String(), "INSERT") {
			return nil
		}
		for _, v := range tx.Statement.Vars {
			if v == "poison" {
				return errors.New("value rejected")
			}
		}
		return nil
	})

	rows := make([]Row, 10)
	for i := range rows {
		rows[i] = Row{"id": str(fmt.Sprint(i)), "name": str("ok")}
	}
	rows[4]["name"] = str("poison")

	res, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Written)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Fallbacks)
	// a non-conflict error is not retried
	assert.Equal(t, 0, obs.retries)
	assert.Equal(t, 1, obs.failures)
}

func TestUpsertStopsOnCancelledContext(t *testing.T) {
	db := newTestDB(t)
	up := newTestUpserter(db, 100)
	require.NoError(t, up.Schema().EnsureTable(context.Background(), "host", "id", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := up.Upsert(ctx, Target{Table: "host", Key: "id"}, []Row{{"id": str("1")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpsertRejectsInvalidTarget(t *testing.T) {
	up := newTestUpserter(newTestDB(t), 100)
	_, err := up.Upsert(context.Background(), Target{Table: "bad?table", Key: "id"}, []Row{{"id": str("1")}})
	assert.ErrorIs(t, err, database.ErrInvalidIdentifier)
}

func TestResultAdd(t *testing.T) {
	r := Result{Rows: 1, Written: 1}
	r.Add(Result{Rows: 2, Written: 1, Failed: 1, Fallbacks: 1})
	assert.Equal(t, Result{Rows: 3, Written: 2, Failed: 1, Fallbacks: 1}, r)
}
