package environment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/AndreyAkinshin/qgate/internal/executor"
)

// HostProvisioner provisions a virtual environment from a local interpreter.
type HostProvisioner struct {
	// LookPath resolves interpreter names; defaults to exec.LookPath.
	LookPath func(string) (string, error)
	// Exec runs the interpreter during provisioning; defaults to a host executor.
	Exec executor.Executor
}

// NewHostProvisioner creates a host provisioner.
func NewHostProvisioner() *HostProvisioner {
	return &HostProvisioner{LookPath: exec.LookPath}
}

// Candidates returns the interpreter names tried for a pinned version, in order.
func Candidates(pin string) []string {
	return []string{"python" + pin, "python3", "python"}
}

// Provision finds an interpreter satisfying the pin and creates a fresh
// virtual environment under the state directory.
func (p *HostProvisioner) Provision(ctx context.Context, opts Options) (*Environment, error) {
	host := p.Exec
	if host == nil {
		host = executor.NewHost(opts.Root)
	}
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	interpreter, version, err := p.findInterpreter(ctx, host, lookPath, opts)
	if err != nil {
		return nil, err
	}

	venv := filepath.Join(opts.StateDir, "venv-"+opts.RunID)
	if err := os.MkdirAll(opts.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	res, err := host.Run(ctx, executor.Command{Stage: "provision", Argv: []string{interpreter, "-m", "venv", venv}})
	if err != nil {
		return nil, fmt.Errorf("create virtual environment: %w", err)
	}
	if !res.Success() {
		_ = os.RemoveAll(venv)
		return nil, fmt.Errorf("create virtual environment: %s -m venv exited with %d: %s", interpreter, res.ExitCode, res.Output)
	}

	bin := VenvBinDir(venv)
	ex := executor.NewHost(opts.Root)
	ex.PathPrepend = []string{bin}
	ex.Env = map[string]string{"VIRTUAL_ENV": venv}
	for k, v := range opts.Env {
		ex.Env[k] = v
	}

	return &Environment{
		Backend:  BackendHost,
		Python:   filepath.Join(bin, pythonExe()),
		Version:  version,
		Executor: ex,
		closeFn: func() error {
			return os.RemoveAll(venv)
		},
	}, nil
}

// findInterpreter tries the explicit interpreter or the candidates and returns
// the first one whose version satisfies the pin.
func (p *HostProvisioner) findInterpreter(ctx context.Context, ex executor.Executor, lookPath func(string) (string, error), opts Options) (string, string, error) {
	names := Candidates(opts.Python)
	if opts.Interpreter != "" {
		names = []string{opts.Interpreter}
	}

	var lastErr error
	for _, name := range names {
		path, err := lookPath(name)
		if err != nil {
			lastErr = fmt.Errorf("%s: not found", name)
			continue
		}
		res, err := ex.Run(ctx, executor.Command{Stage: "provision", Argv: []string{path, "--version"}})
		if err != nil {
			return "", "", err
		}
		if !res.Success() {
			lastErr = fmt.Errorf("%s --version exited with %d", path, res.ExitCode)
			continue
		}
		version, err := CheckVersion(res.Output, opts.Python)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", path, err)
			continue
		}
		return path, version, nil
	}
	return "", "", fmt.Errorf("no python %s interpreter found (last error: %v)", opts.Python, lastErr)
}

// VenvBinDir returns the directory holding a virtual environment's executables.
func VenvBinDir(venv string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts")
	}
	return filepath.Join(venv, "bin")
}

func pythonExe() string {
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python"
}
