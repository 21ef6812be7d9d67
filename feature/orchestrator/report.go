package orchestrator

import (
	"time"

	"discovery-sync/feature/enrichment"
	"discovery-sync/feature/inventory"
	"discovery-sync/feature/relationships"
	"discovery-sync/feature/retired"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Report is the outcome of one sync run. It is logged, archived and served by
// the jobs API.
type Report struct {
	RunID           string                         `json:"run_id"`
	Status          string                         `json:"status"`
	StartedAt       time.Time                      `json:"started_at"`
	FinishedAt      time.Time                      `json:"finished_at"`
	DurationSeconds float64                        `json:"duration_seconds"`
	Kinds           []*inventory.KindReport        `json:"kinds"`
	Enrichment      []*enrichment.Report           `json:"enrichment,omitempty"`
	Relationships   map[string]relationships.Stats `json:"relationships,omitempty"`
	Edges           int64                          `json:"edges"`
	Retired         *retired.Report                `json:"retired,omitempty"`
	Errors          []string                       `json:"errors,omitempty"`
}

func newReport(runID string) *Report {
	return &Report{
		RunID:         runID,
		StartedAt:     time.Now().UTC(),
		Relationships: make(map[string]relationships.Stats),
	}
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Kind returns the report of kind, or nil.
func (r *Report) Kind(kind string) *inventory.KindReport {
	for _, k := range r.Kinds {
		if k.Kind == kind {
			return k
		}
	}
	return nil
}

func (r *Report) finish(err error) {
	r.FinishedAt = time.Now().UTC()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	r.Status = StatusSucceeded
	if err != nil {
		r.Status = StatusFailed
		r.addError(err)
	}
}
