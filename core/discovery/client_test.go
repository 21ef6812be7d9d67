package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:     srv.URL + "/api/v1.13",
		Token:       "secret",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		Concurrency: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1.13/data/nodes/abc", r.URL.Path)
		fmt.Fprint(w, `{"kind":"Host"}`)
	})

	body, err := c.Get(context.Background(), "/data/nodes/abc", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"Host"}`, string(body))
}

func TestGetRetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad gateway", http.StatusBadGateway, "gateway"},
		{"server error", http.StatusInternalServerError, "boom"},
		{"auto logout", http.StatusBadRequest, `{"message":"auto-logout"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(tt.status)
					fmt.Fprint(w, tt.body)
					return
				}
				fmt.Fprint(w, `{"ok":true}`)
			})

			body, err := c.Get(context.Background(), "/data/nodes/1", nil)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(body))
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Get(context.Background(), "/data/nodes/1", nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestGetFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no such node")
	})

	_, err := c.Get(context.Background(), "/data/nodes/missing", nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRetriesTransportErrors(t *testing.T) {
	c, err := NewClient(Config{
		BaseURL:    "http://127.0.0.1:1",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/data/nodes/1", nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestGetStripsOffsetWithoutResultsID(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Has("offset") {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"offset cannot be specified without 'results_id'"}`)
			return
		}
		fmt.Fprint(w, `[{"results":[["a"]]}]`)
	})

	params := url.Values{"delete": {"false"}, "offset": {"100"}}
	body, err := c.Get(context.Background(), "/data/kinds/Host", params)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"results":[["a"]]}]`, string(body))
	assert.Equal(t, int32(2), calls.Load())
	// the caller's parameters are left untouched
	assert.Equal(t, "100", params.Get("offset"))
}

func TestGetProtocolViolationWithResultsID(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "offset cannot be specified without 'results_id'")
	})

	params := url.Values{"offset": {"100"}, "results_id": {"r1"}}
	_, err := c.Get(context.Background(), "/data/kinds/Host", params)
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetProtocolViolationCorrectionFails(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "offset cannot be specified without 'results_id'")
	})

	_, err := c.Get(context.Background(), "/data/kinds/Host", url.Values{"offset": {"5"}})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.policy.InitialDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/data/nodes/1", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryPolicyDelay(t *testing.T) {
	rp := RetryPolicy{MaxAttempts: 3, InitialDelay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, rp.Delay(0))
	assert.Equal(t, 10*time.Second, rp.Delay(1))
	assert.Equal(t, 20*time.Second, rp.Delay(2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected outcome
	}{
		{"ok", 200, "", outcomeOK},
		{"non authoritative", 203, "", outcomeOK},
		{"no content", 204, "", outcomeOK},
		{"bad gateway", 502, "", outcomeTransient},
		{"gateway timeout", 504, "", outcomeTransient},
		{"auto logout", 400, "auto-logout", outcomeTransient},
		{"offset", 400, "offset cannot be specified without 'results_id'", outcomeOffsetWithoutResultsID},
		{"bad request", 400, "bad query", outcomeFatal},
		{"unauthorized", 401, "", outcomeFatal},
		{"not found", 404, "", outcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classify(tt.status, []byte(tt.body)))
		})
	}
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/data/nodes", endpointLabel("/data/nodes/abc/graph"))
	assert.Equal(t, "/data/kinds", endpointLabel("/data/kinds/Host"))
	assert.Equal(t, "/data/search", endpointLabel("/data/search"))
}

type recordingObserver struct {
	calls atomic.Int32
}

func (r *recordingObserver) ObserveRequest(string, int, time.Duration) {
	r.calls.Add(1)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "{}")
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c, err := NewClient(Config{BaseURL: srv.URL, RetryDelay: time.Millisecond}, zap.NewNop(), WithObserver(obs))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/data/nodes/1", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), obs.calls.Load())
}
