package discovery

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy is the exponential backoff applied to upstream requests.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// Delay returns InitialDelay * 2^attempt.
func (rp RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(float64(rp.InitialDelay) * math.Pow(2, float64(attempt)))
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeTransient
	outcomeOffsetWithoutResultsID
	outcomeFatal
)

const (
	autoLogoutMarker     = "auto-logout"
	offsetWithoutIDError = "offset cannot be specified without 'results_id'"
)

// classify maps a response to the action the client takes next.
func classify(status int, body []byte) outcome {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return outcomeOK
	case status >= 500:
		return outcomeTransient
	case status == http.StatusBadRequest && strings.Contains(string(body), offsetWithoutIDError):
		return outcomeOffsetWithoutResultsID
	case status == http.StatusBadRequest && strings.Contains(string(body), autoLogoutMarker):
		// the appliance drops sessions under load and reports it as a bad request
		return outcomeTransient
	default:
		return outcomeFatal
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
