package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"discovery-sync/core/database"
	"discovery-sync/core/reconcile"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSearcher struct {
	rows  [][]any
	err   error
	query string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([][]any, error) {
	f.query = query
	return f.rows, f.err
}

func setup(t *testing.T, searcher Searcher) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	up := reconcile.NewUpserter(db, "discovery", reconcile.Options{MaxRetries: 3, RetryDelay: time.Millisecond}, zap.NewNop())
	return NewService(searcher, up, zap.NewNop()), db
}

func seedHosts(t *testing.T, svc *Service, ids ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.upserter.Schema().EnsureTable(ctx, "host", "id", []string{"id", "name"}))
	rows := make([]reconcile.Row, len(ids))
	for i, id := range ids {
		name := "detail-" + id
		rows[i] = reconcile.Row{"id": &id, "name": &name}
	}
	_, err := svc.upserter.Upsert(ctx, reconcile.Target{Table: "host", Key: "id"}, rows)
	require.NoError(t, err)
}

func TestRunWritesDerivedColumns(t *testing.T) {
	searcher := &fakeSearcher{rows: [][]any{
		{"web01", "h1", json.Number("12"), "2024-01-01"},
		{"web02", "h2", nil, "2024-02-01"},
		{"short", "h3"},
	}}
	svc, db := setup(t, searcher)
	seedHosts(t, svc, "h1", "h2", "h3")

	report, err := svc.Run(context.Background(), DefaultJobs()[0])
	require.NoError(t, err)

	assert.Contains(t, searcher.query, "search Host show name")
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Short)
	assert.Equal(t, 2, report.Upsert.Written)
	assert.Equal(t, 1, report.NullCounts["uptime_days"])
	assert.NotContains(t, report.NullCounts, "name")

	var name, uptime string
	require.NoError(t, db.Raw(`SELECT "name", "uptime_days" FROM "host" WHERE "id" = ?`, "h1").Row().Scan(&name, &uptime))
	assert.Equal(t, "detail-h1", name, "the search name must not replace the detail name")
	assert.Equal(t, "12", uptime)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM "host"`).Row().Scan(&count))
	assert.EqualValues(t, 3, count)
}

func TestRunRequiresExistingTable(t *testing.T) {
	svc, _ := setup(t, &fakeSearcher{rows: [][]any{{"s1", "Acme"}}})

	_, err := svc.Run(context.Background(), DefaultJobs()[1])
	assert.Error(t, err)
}

func TestRunWithoutRows(t *testing.T) {
	svc, _ := setup(t, &fakeSearcher{err: errors.New("search failed")})

	report, err := svc.Run(context.Background(), DefaultJobs()[1])
	require.NoError(t, err)
	assert.Equal(t, "search failed", report.FetchError)
	assert.Zero(t, report.Upsert.Written)
}

func TestRunRejectsJobWithoutID(t *testing.T) {
	svc, _ := setup(t, &fakeSearcher{})

	_, err := svc.Run(context.Background(), Job{Name: "broken", Kind: "Host", Columns: []string{"name"}})
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestJobsFor(t *testing.T) {
	jobs := DefaultJobs()
	assert.Len(t, JobsFor(jobs, "host"), 1)
	assert.Len(t, JobsFor(jobs, "SoftwareInstance"), 1)
	assert.Empty(t, JobsFor(jobs, "VirtualMachine"))
}

func TestRunIgnoresSkippedCells(t *testing.T) {
	searcher := &fakeSearcher{rows: [][]any{{"ignored", "h1", "Acme"}}}
	svc, db := setup(t, searcher)
	seedHosts(t, svc, "h1")

	job := Job{Name: "vendor", Kind: "Host", Columns: []string{SkipColumn, "id", "vendor"}}
	report, err := svc.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upsert.Written)

	cols, err := svc.upserter.Schema().Columns(context.Background(), "host")
	require.NoError(t, err)
	assert.Contains(t, cols, "vendor")
	assert.NotContains(t, cols, SkipColumn)

	var name, vendor string
	require.NoError(t, db.Raw(`SELECT "name", "vendor" FROM "host" WHERE "id" = ?`, "h1").Row().Scan(&name, &vendor))
	assert.Equal(t, "detail-h1", name)
	assert.Equal(t, "Acme", vendor)
}
