// Package executor runs stage commands on the host or inside a container.
package executor

import (
	"context"
	"io"
	"time"
)

// ExitCommandNotFound is reported when the program of a command cannot be found.
const ExitCommandNotFound = 127

// Command is one argv invocation belonging to a stage.
type Command struct {
	Stage string
	Argv  []string
	// Dir is the working directory relative to the executor's root; empty means the root.
	Dir string
	Env map[string]string
	// Stdout and Stderr receive output as it is produced. Nil writers discard it.
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes a finished command. A non-zero ExitCode is not an error:
// errors are reserved for failures to run the command at all.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs commands one at a time against a provisioned environment.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exporter copies a file produced inside the environment back to the host.
// Host executors have nothing to export.
type Exporter interface {
	Export(ctx context.Context, path, hostPath string) error
}
