package engine

import (
	"fmt"
	"time"

	"github.com/vulnverified/watchtower/internal/inventory"
)

// StageError is a failure scoped to one program, scope or entity.
type StageError struct {
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

// StageReport summarizes one stage run. Stages collect failures here
// instead of stopping at the first one.
type StageReport struct {
	Stage     string          `json:"stage"`
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Programs  int             `json:"programs"`
	Targets   int             `json:"targets"`
	Inserted  int             `json:"inserted"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Discarded int             `json:"discarded"`
	Dangling  []DanglingCNAME `json:"dangling_cnames,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Errors    []StageError    `json:"errors,omitempty"`
}

func newReport(stage, runID string) *StageReport {
	return &StageReport{Stage: stage, RunID: runID, StartedAt: time.Now()}
}

// record counts an upsert result, or files its error under scope.
func (r *StageReport) record(scope string, outcome inventory.Outcome, err error) {
	if err != nil {
		r.fail(scope, err)
		return
	}
	switch outcome {
	case inventory.Inserted:
		r.Inserted++
	case inventory.Updated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

func (r *StageReport) fail(scope string, err error) {
	r.Errors = append(r.Errors, StageError{Scope: scope, Message: err.Error()})
}

func (r *StageReport) warnf(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	return msg
}

func (r *StageReport) finish() *StageReport {
	r.Duration = time.Since(r.StartedAt)
	return r
}

// OK reports whether the stage finished without per-entity errors.
func (r *StageReport) OK() bool {
	return len(r.Errors) == 0
}
