package environment

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"dagger.io/dagger"

	"github.com/AndreyAkinshin/qgate/internal/executor"
)

// ContainerWorkdir is where the working tree is placed inside the container.
const ContainerWorkdir = "/src"

// containerExcludes are host paths not copied into the container.
var containerExcludes = []string{
	".qgate/",
	"**/__pycache__/",
	"**/*.pyc",
	".venv/",
	".mypy_cache/",
	".pytest_cache/",
}

// ContainerProvisioner provisions a dagger container from an interpreter image.
type ContainerProvisioner struct {
	// LogOutput receives engine progress; defaults to stderr.
	LogOutput io.Writer
}

// NewContainerProvisioner creates a container provisioner.
func NewContainerProvisioner() *ContainerProvisioner {
	return &ContainerProvisioner{LogOutput: os.Stderr}
}

// Image returns the container image for a pinned version.
func Image(opts Options) string {
	if opts.Image != "" {
		return opts.Image
	}
	return fmt.Sprintf("python:%s-slim", opts.Python)
}

// Provision connects to the dagger engine and prepares a container with the
// working tree copied to ContainerWorkdir.
func (p *ContainerProvisioner) Provision(ctx context.Context, opts Options) (*Environment, error) {
	logOutput := p.LogOutput
	if logOutput == nil {
		logOutput = io.Discard
	}

	client, err := dagger.Connect(ctx, dagger.WithLogOutput(logOutput))
	if err != nil {
		return nil, fmt.Errorf("connect to dagger engine: %w", err)
	}

	src := client.Host().Directory(opts.Root, dagger.HostDirectoryOpts{
		Exclude: containerExcludes,
	})

	ctr := client.Container().
		From(Image(opts)).
		WithDirectory(ContainerWorkdir, src).
		WithWorkdir(ContainerWorkdir).
		WithEnvVariable("PIP_DISABLE_PIP_VERSION_CHECK", "1").
		WithEnvVariable("QGATE_RUN_ID", opts.RunID)

	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ctr = ctr.WithEnvVariable(k, opts.Env[k])
	}

	ex := executor.NewContainer(ctr, ContainerWorkdir)

	res, err := ex.Run(ctx, executor.Command{Stage: "provision", Argv: []string{"python", "--version"}})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("start container %s: %w", Image(opts), err)
	}
	if !res.Success() {
		_ = client.Close()
		return nil, fmt.Errorf("python --version exited with %d in %s", res.ExitCode, Image(opts))
	}
	version, err := CheckVersion(res.Output, opts.Python)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Environment{
		Backend:  BackendContainer,
		Python:   "python",
		Version:  version,
		Executor: ex,
		closeFn:  client.Close,
	}, nil
}
