// Package qgate provides public constants for external tools integrating with qgate.
package qgate

// Exit codes returned by the qgate CLI.
// Workflow steps and wrapper scripts can compare against these instead of magic numbers.
const (
	// ExitSuccess indicates the pipeline succeeded, or the trigger filter skipped the run.
	ExitSuccess = 0

	// ExitFailure indicates a quality check or the test stage failed.
	ExitFailure = 1

	// ExitConfigError indicates invalid or missing configuration.
	ExitConfigError = 2

	// ExitEnvError indicates an infrastructure failure (checkout, provisioning, installation).
	ExitEnvError = 3
)
