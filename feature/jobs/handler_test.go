package jobs_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"discovery-sync/feature/jobs"
	"discovery-sync/feature/orchestrator"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingRunner struct {
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, opts orchestrator.RunOptions) (*orchestrator.Report, error) {
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return &orchestrator.Report{RunID: opts.RunID, Status: orchestrator.StatusSucceeded, Edges: 9}, nil
}

func setupApp(t *testing.T) (*fiber.App, *jobs.Feature, *blockingRunner) {
	t.Helper()
	runner := &blockingRunner{release: make(chan struct{})}
	feature := jobs.NewFeature(runner, nil, zap.NewNop())
	t.Cleanup(feature.Service().Close)

	app := fiber.New()
	require.NoError(t, feature.Load(app))
	return app, feature, runner
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHandleStartAndConflict(t *testing.T) {
	app, feature, runner := setupApp(t)

	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"kinds":["Host"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	job := decode[jobs.Job](t, resp.Body)
	assert.Equal(t, []string{"Host"}, job.Kinds)
	assert.Equal(t, jobs.StatusRunning, job.Status)

	resp, err = app.Test(httptest.NewRequest("POST", "/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	conflict := decode[map[string]string](t, resp.Body)
	assert.Equal(t, job.ID, conflict["run_id"])

	close(runner.release)
	feature.Service().Wait()

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs/"+job.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	done := decode[jobs.Job](t, resp.Body)
	assert.Equal(t, jobs.StatusSucceeded, done.Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs/"+job.ID+"/report", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	report := decode[orchestrator.Report](t, resp.Body)
	assert.EqualValues(t, 9, report.Edges)

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs", nil))
	require.NoError(t, err)
	list := decode[[]jobs.Job](t, resp.Body)
	assert.Len(t, list, 1)
}

func TestHandleStartRejectsBadBody(t *testing.T) {
	app, _, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"kinds":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetUnknownRun(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/jobs/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs/nope/report", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
