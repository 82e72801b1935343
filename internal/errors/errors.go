// Package errors provides structured error types and exit codes for qgate.
//
// Every failure the pipeline can report belongs to one Kind. The kind decides
// the process exit code and whether the failure gates the run:
//
//	KindInfrastructure  checkout, provisioning, dependency installation
//	KindQuality         formatting, import order, lint, lint score, type check
//	KindTest            failing tests
//	KindTelemetry       coverage upload (never gates)
//	KindConfig          invalid configuration
//	KindValidation      configuration that parses but violates constraints
//	KindRuntime         anything else
package errors

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitSuccess             = 0 // Pipeline succeeded or was filtered out by the trigger
	ExitGateFailure         = 1 // A quality check or the test stage failed
	ExitConfigError         = 2 // Configuration error
	ExitInfrastructureError = 3 // Checkout, provisioning, or installation failed
)

// Kind represents the category of a failure.
type Kind int

const (
	KindRuntime Kind = iota
	KindInfrastructure
	KindQuality
	KindTest
	KindTelemetry
	KindConfig
	KindValidation
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInfrastructure:
		return "infrastructure"
	case KindQuality:
		return "quality"
	case KindTest:
		return "test"
	case KindTelemetry:
		return "telemetry"
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	default:
		return "runtime"
	}
}

// Gating reports whether failures of this kind fail the run.
func (k Kind) Gating() bool {
	return k != KindTelemetry
}

// GateError is the base error type for qgate.
type GateError struct {
	Kind    Kind
	Stage   string // Stage name if applicable
	Message string
	Cause   error
}

func (e *GateError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s", e.Stage, msg)
	}
	return msg
}

func (e *GateError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error.
func (e *GateError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindInfrastructure:
		return ExitInfrastructureError
	case KindTelemetry:
		return ExitSuccess
	default:
		return ExitGateFailure
	}
}

// Config creates a new configuration error.
func Config(message string) *GateError {
	return &GateError{Kind: KindConfig, Message: message}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *GateError {
	return Config(fmt.Sprintf(format, args...))
}

// Validation creates an error for configuration that violates a constraint.
func Validation(field, message string) *GateError {
	return &GateError{Kind: KindValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Infrastructure creates an infrastructure error for a stage.
func Infrastructure(stage string, cause error) *GateError {
	return &GateError{Kind: KindInfrastructure, Stage: stage, Cause: cause}
}

// Infrastructuref creates an infrastructure error with a formatted message.
func Infrastructuref(stage, format string, args ...interface{}) *GateError {
	return &GateError{Kind: KindInfrastructure, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Quality creates a quality-violation error for a stage.
func Quality(stage, message string) *GateError {
	return &GateError{Kind: KindQuality, Stage: stage, Message: message}
}

// Test creates a test failure error.
func Test(stage, message string) *GateError {
	return &GateError{Kind: KindTest, Stage: stage, Message: message}
}

// Telemetry creates a non-gating telemetry error.
func Telemetry(stage string, cause error) *GateError {
	return &GateError{Kind: KindTelemetry, Stage: stage, Cause: cause}
}

// Wrap wraps an error with additional context, keeping the kind of a wrapped GateError.
func Wrap(err error, message string) *GateError {
	kind := KindRuntime
	var ge *GateError
	if errors.As(err, &ge) {
		kind = ge.Kind
	}
	return &GateError{Kind: kind, Message: message + ": " + err.Error(), Cause: err}
}

// KindOf returns the kind of err, or KindRuntime if err is not a GateError.
func KindOf(err error) Kind {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindRuntime
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.ExitCode()
	}
	return ExitGateFailure
}
