// Package history stores a record of every pipeline run.
package history

import (
	"context"
	"time"

	"github.com/AndreyAkinshin/qgate/internal/pipeline"
)

// Record is the persisted form of a run.
type Record struct {
	RunID       string        `json:"run_id"`
	Project     string        `json:"project"`
	Event       string        `json:"event"`
	Branch      string        `json:"branch,omitempty"`
	Revision    string        `json:"revision,omitempty"`
	Toolchain   string        `json:"toolchain,omitempty"`
	Verdict     string        `json:"verdict"`
	ExitCode    int           `json:"exit_code"`
	FailedStage string        `json:"failed_stage,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	DurationMS  int64         `json:"duration_ms"`
	LintScore   *float64      `json:"lint_score,omitempty"`
	Tests       *TestTotals   `json:"tests,omitempty"`
	Coverage    *float64      `json:"coverage_percent,omitempty"`
	CoverageURL string        `json:"coverage_url,omitempty"`
	Stages      []StageRecord `json:"stages"`
}

// Duration returns the wall-clock time of the run.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// TestTotals are the parsed test counts of a run.
type TestTotals struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// StageRecord is the persisted form of a stage result.
type StageRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Recorder persists run records.
type Recorder interface {
	Name() string
	Record(ctx context.Context, rec Record) error
}

// Reader lists recorded runs, newest first.
type Reader interface {
	Recent(ctx context.Context, project string, limit int) ([]Record, error)
}

// FromResult converts a pipeline result into a record.
func FromResult(r *pipeline.Result) Record {
	rec := Record{
		RunID:       r.RunID,
		Project:     r.Project,
		Event:       r.Event.String(),
		Branch:      r.Event.Branch,
		Revision:    r.Revision,
		Toolchain:   r.Toolchain,
		Verdict:     string(r.Verdict),
		ExitCode:    r.ExitCode(),
		StartedAt:   r.StartTime.UTC(),
		FinishedAt:  r.EndTime.UTC(),
		DurationMS:  r.Duration.Milliseconds(),
		CoverageURL: r.CoverageURL,
	}
	if fs := r.FailedStage(); fs != nil {
		rec.FailedStage = fs.Name
	}
	if r.LintScore != nil && r.LintScore.Found {
		score := r.LintScore.Score
		rec.LintScore = &score
	}
	if r.Tests != nil && r.Tests.Parsed {
		rec.Tests = &TestTotals{
			Passed:  r.Tests.Passed,
			Failed:  r.Tests.Failed,
			Skipped: r.Tests.Skipped,
			Errors:  r.Tests.Errors,
		}
	}
	if r.Coverage != nil {
		pct := r.Coverage.Percent()
		rec.Coverage = &pct
	}

	rec.Stages = make([]StageRecord, 0, len(r.Stages))
	for _, s := range r.Stages {
		sr := StageRecord{
			Name:       s.Name,
			Status:     string(s.Status),
			ExitCode:   s.ExitCode,
			DurationMS: s.Duration.Milliseconds(),
			Reason:     s.Reason,
		}
		if s.Error != nil {
			sr.Error = s.Error.Error()
		}
		rec.Stages = append(rec.Stages, sr)
	}
	return rec
}
