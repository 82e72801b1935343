package pipeline

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	gateerrors "github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/toolchain"
)

// Stage names in execution order.
const (
	StageCheckout    = "checkout"
	StageProvision   = "provision"
	StageInstall     = toolchain.StageInstall
	StageFormat      = toolchain.StageFormat
	StageImportOrder = toolchain.StageImportOrder
	StageLint        = toolchain.StageLint
	StageLintScore   = toolchain.StageLintScore
	StageTypeCheck   = toolchain.StageTypeCheck
	StageTest        = toolchain.StageTest
	StageUpload      = "upload"
)

// Order is the fixed stage sequence of every run.
var Order = []string{
	StageCheckout,
	StageProvision,
	StageInstall,
	StageFormat,
	StageImportOrder,
	StageLint,
	StageLintScore,
	StageTypeCheck,
	StageTest,
	StageUpload,
}

// StageKind returns the failure kind a stage reports.
func StageKind(stage string) gateerrors.Kind {
	switch stage {
	case StageCheckout, StageProvision, StageInstall:
		return gateerrors.KindInfrastructure
	case StageTest:
		return gateerrors.KindTest
	case StageUpload:
		return gateerrors.KindTelemetry
	default:
		return gateerrors.KindQuality
	}
}

// Gating reports whether a failure of stage fails the run.
func Gating(stage string) bool {
	return StageKind(stage).Gating()
}

var titler = cases.Title(language.English)

// Title returns the display name of a stage, e.g. "Import-Order".
func Title(stage string) string {
	return titler.String(stage)
}

// Status is the state of a stage within a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusErrored marks a non-gating stage that could not complete.
	StatusErrored Status = "errored"
)

// StageResult records the outcome of one stage.
type StageResult struct {
	Name      string
	Kind      gateerrors.Kind
	Status    Status
	ExitCode  int
	Output    string
	Error     error
	Reason    string // Why the stage was skipped
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Ran reports whether the stage executed to a pass or fail outcome.
func (s *StageResult) Ran() bool {
	return s.Status == StatusPassed || s.Status == StatusFailed
}

func (s *StageResult) start(now time.Time) {
	s.StartTime = now
}

func (s *StageResult) finish(now time.Time, status Status, err error) {
	s.Status = status
	s.Error = err
	s.EndTime = now
	s.Duration = s.EndTime.Sub(s.StartTime)
}

func (s *StageResult) skip(reason string) {
	s.Status = StatusSkipped
	s.Reason = reason
}
