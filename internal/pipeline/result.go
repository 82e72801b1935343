package pipeline

import (
	"time"

	"github.com/AndreyAkinshin/qgate/internal/coverage"
	gateerrors "github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/lintscore"
	"github.com/AndreyAkinshin/qgate/internal/testparser"
	"github.com/AndreyAkinshin/qgate/internal/trigger"
)

// Verdict is the aggregate outcome of a run.
type Verdict string

const (
	VerdictSucceeded Verdict = "succeeded"
	VerdictFailed    Verdict = "failed"
	// VerdictFiltered means the trigger filter rejected the event and nothing ran.
	VerdictFiltered Verdict = "filtered"
)

// Result contains the results of a pipeline run.
type Result struct {
	RunID     string
	Project   string
	Event     trigger.Event
	Revision  string
	Toolchain string
	Stages    []*StageResult
	Verdict   Verdict
	// FilterReason explains a filtered verdict.
	FilterReason string

	Tests       *testparser.TestCounts
	LintScore   *lintscore.Verdict
	Coverage    *coverage.Summary
	CoverageURL string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Succeeded reports whether the run passed every gating stage.
func (r *Result) Succeeded() bool {
	return r.Verdict == VerdictSucceeded
}

// Stage returns the result for a stage name, or nil.
func (r *Result) Stage(name string) *StageResult {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Executed returns the names of stages that ran, in order.
func (r *Result) Executed() []string {
	var names []string
	for _, s := range r.Stages {
		if s.Status != StatusPending && s.Status != StatusSkipped {
			names = append(names, s.Name)
		}
	}
	return names
}

// FailedStage returns the gating stage that failed the run, or nil.
func (r *Result) FailedStage() *StageResult {
	for _, s := range r.Stages {
		if s.Status == StatusFailed && Gating(s.Name) {
			return s
		}
	}
	return nil
}

// Err returns the error of the failing gating stage, or nil for a passing or filtered run.
func (r *Result) Err() error {
	s := r.FailedStage()
	if s == nil {
		return nil
	}
	if s.Error != nil {
		return s.Error
	}
	return &gateerrors.GateError{Kind: s.Kind, Stage: s.Name, Message: "stage failed"}
}

// ExitCode maps the verdict to the process exit status.
func (r *Result) ExitCode() int {
	if r.Verdict != VerdictFailed {
		return gateerrors.ExitSuccess
	}
	return gateerrors.GetExitCode(r.Err())
}

func (r *Result) verdict() Verdict {
	if r.FailedStage() != nil {
		return VerdictFailed
	}
	return VerdictSucceeded
}
