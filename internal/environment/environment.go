// Package environment provisions the interpreter runtime a run executes in.
//
// Two backends exist. The host backend locates a local interpreter matching
// the pinned version and creates a fresh virtual environment per run. The
// container backend starts a dagger container from an interpreter image with
// the working tree copied in. Both hand back an executor.Executor that every
// later stage runs through, and both are torn down by Close.
package environment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/AndreyAkinshin/qgate/internal/executor"
)

// Backend names.
const (
	BackendHost      = "host"
	BackendContainer = "container"
)

// Environment is a provisioned interpreter runtime.
type Environment struct {
	Backend string
	// Python is the interpreter invocation substituted for ${python}.
	Python string
	// Version is the interpreter version reported by the runtime.
	Version  string
	Executor executor.Executor

	closeFn func() error
}

// NewEnvironment assembles an environment from an existing executor.
// closeFn may be nil.
func NewEnvironment(backend, python, version string, ex executor.Executor, closeFn func() error) *Environment {
	return &Environment{Backend: backend, Python: python, Version: version, Executor: ex, closeFn: closeFn}
}

// Close destroys the environment. It is safe to call more than once.
func (e *Environment) Close() error {
	if e == nil || e.closeFn == nil {
		return nil
	}
	fn := e.closeFn
	e.closeFn = nil
	return fn()
}

// Options configures provisioning.
type Options struct {
	Root        string // Checked-out working tree
	StateDir    string // Directory for per-run state, e.g. <root>/.qgate
	RunID       string
	Python      string // Pinned version, e.g. "3.7"
	Interpreter string // Explicit host interpreter, overrides discovery
	Image       string // Container image, overrides python:<version>-slim
	Env         map[string]string
}

// Provisioner creates environments for one backend.
type Provisioner interface {
	Provision(ctx context.Context, opts Options) (*Environment, error)
}

// New returns the provisioner for a backend name.
func New(backend string) (Provisioner, error) {
	switch backend {
	case BackendHost, "":
		return NewHostProvisioner(), nil
	case BackendContainer:
		return NewContainerProvisioner(), nil
	default:
		return nil, fmt.Errorf("unknown environment backend %q", backend)
	}
}

var versionPattern = regexp.MustCompile(`Python\s+(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the interpreter version from `python --version` output.
func ParseVersion(output string) (*semver.Version, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("unrecognized interpreter version output: %q", strings.TrimSpace(output))
	}
	return semver.NewVersion(m[1])
}

// PinConstraint turns a pinned version into a constraint. A major.minor pin
// accepts any patch release; a full pin must match exactly.
func PinConstraint(pin string) (*semver.Constraints, error) {
	if strings.Count(pin, ".") >= 2 {
		return semver.NewConstraint("=" + pin)
	}
	return semver.NewConstraint("~" + pin)
}

// CheckVersion verifies that the version reported in output satisfies pin.
func CheckVersion(output, pin string) (string, error) {
	v, err := ParseVersion(output)
	if err != nil {
		return "", err
	}
	c, err := PinConstraint(pin)
	if err != nil {
		return "", fmt.Errorf("invalid python pin %q: %w", pin, err)
	}
	if !c.Check(v) {
		return v.String(), fmt.Errorf("interpreter version %s does not satisfy pin %s", v, pin)
	}
	return v.String(), nil
}
