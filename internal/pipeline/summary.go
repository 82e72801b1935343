package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/AndreyAkinshin/qgate/internal/output"
)

// PrintSummary prints a summary of a run.
func PrintSummary(result *Result, out *output.Writer) {
	out.SummaryHeader("Quality Gate Summary")

	if result.Verdict == VerdictFiltered {
		out.SummaryItem("Event", result.Event.String())
		out.SummaryItem("Skipped", result.FilterReason)
		out.FinalSuccess("Nothing to do: %s.", result.FilterReason)
		return
	}

	out.SummarySectionLabel("Stages:")
	for _, s := range result.Stages {
		var detail string
		switch {
		case s.Error != nil:
			detail = errorMessage(s.Error).Error()
		case s.Status == StatusSkipped:
			detail = s.Reason
		}
		duration := ""
		if s.Status != StatusSkipped && s.Status != StatusPending {
			duration = FormatDuration(s.Duration)
		}
		out.SummaryAction(Title(s.Name), statusMark(s.Status), duration, detail)
	}
	out.Println("")

	var passed, failed, errored []string
	for _, s := range result.Stages {
		switch s.Status {
		case StatusPassed:
			passed = append(passed, s.Name)
		case StatusFailed:
			failed = append(failed, s.Name)
		case StatusErrored:
			errored = append(errored, s.Name)
		}
	}
	if len(passed) > 0 {
		out.SummaryPassed("Passed", strings.Join(passed, ", "))
	}
	if len(failed) > 0 {
		out.SummaryFailed("Failed", strings.Join(failed, ", "))
	}
	if len(errored) > 0 {
		out.SummaryItem("Errored", strings.Join(errored, ", "))
	}

	out.SummaryItem("Run", result.RunID)
	out.SummaryItem("Event", result.Event.String())
	if result.Revision != "" {
		out.SummaryItem("Revision", result.Revision)
	}
	if result.LintScore != nil {
		out.SummaryItem("Lint score", result.LintScore.String())
	}
	if result.Tests != nil {
		out.SummaryItem("Tests", result.Tests.Summary())
	}
	if result.Coverage != nil {
		out.SummaryItem("Coverage", result.Coverage.String())
	}
	if result.CoverageURL != "" {
		out.SummaryItem("Uploaded", result.CoverageURL)
	}
	out.SummaryItem("Duration", FormatDuration(result.Duration))

	if result.Succeeded() {
		out.FinalSuccess("Quality gate passed.")
	} else {
		out.FinalFailure("Quality gate failed at %s.", result.FailedStage().Name)
	}
}

func statusMark(s Status) string {
	switch s {
	case StatusPassed:
		return output.MarkPassed
	case StatusFailed:
		return output.MarkFailed
	case StatusErrored:
		return output.MarkErrored
	default:
		return output.MarkSkipped
	}
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
