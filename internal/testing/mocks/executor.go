// Package mocks provides shared test doubles for qgate packages.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/AndreyAkinshin/qgate/internal/environment"
	"github.com/AndreyAkinshin/qgate/internal/executor"
)

// Response is a scripted command outcome.
type Response struct {
	ExitCode int
	Output   string
	Err      error
}

// Executor implements executor.Executor for testing.
// Responses are matched by stage first, then by program name; unmatched
// commands succeed with no output.
// Use NewExecutor() to create instances with a fluent builder API.
type Executor struct {
	byStage   map[string]Response
	byProgram map[string]Response

	// RunFunc, if set, replaces scripted responses entirely.
	RunFunc func(ctx context.Context, cmd executor.Command) (executor.Result, error)

	mu    sync.Mutex
	calls []executor.Command
}

// NewExecutor creates a mock executor where every command succeeds.
func NewExecutor() *Executor {
	return &Executor{
		byStage:   make(map[string]Response),
		byProgram: make(map[string]Response),
	}
}

// WithStage scripts the outcome of every command of a stage.
func (m *Executor) WithStage(stage string, exitCode int, output string) *Executor {
	m.byStage[stage] = Response{ExitCode: exitCode, Output: output}
	return m
}

// WithStageError makes every command of a stage fail to run.
func (m *Executor) WithStageError(stage string, err error) *Executor {
	m.byStage[stage] = Response{ExitCode: -1, Err: err}
	return m
}

// WithProgram scripts the outcome of every command running program.
func (m *Executor) WithProgram(program string, exitCode int, output string) *Executor {
	m.byProgram[program] = Response{ExitCode: exitCode, Output: output}
	return m
}

// WithRunFunc sets the function called by Run.
func (m *Executor) WithRunFunc(fn func(ctx context.Context, cmd executor.Command) (executor.Result, error)) *Executor {
	m.RunFunc = fn
	return m
}

// Run records cmd and returns its scripted response.
func (m *Executor) Run(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	if err := ctx.Err(); err != nil {
		return executor.Result{ExitCode: -1}, err
	}

	resp, ok := m.byStage[cmd.Stage]
	if !ok && len(cmd.Argv) > 0 {
		resp = m.byProgram[cmd.Argv[0]]
	}
	if resp.Output != "" && cmd.Stdout != nil {
		_, _ = io.WriteString(cmd.Stdout, resp.Output)
	}
	return executor.Result{ExitCode: resp.ExitCode, Output: resp.Output}, resp.Err
}

// Calls returns every command run so far, in order.
func (m *Executor) Calls() []executor.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]executor.Command, len(m.calls))
	copy(result, m.calls)
	return result
}

// Stages returns the stage of every command run so far, collapsing
// consecutive commands of the same stage.
func (m *Executor) Stages() []string {
	var stages []string
	for _, c := range m.Calls() {
		if len(stages) == 0 || stages[len(stages)-1] != c.Stage {
			stages = append(stages, c.Stage)
		}
	}
	return stages
}

// Reset clears recorded calls.
func (m *Executor) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// Provisioner implements environment.Provisioner by wrapping an executor.
type Provisioner struct {
	Executor executor.Executor
	Err      error

	mu          sync.Mutex
	provisioned int
	closed      int
}

// NewProvisioner creates a provisioner handing out ex.
func NewProvisioner(ex executor.Executor) *Provisioner {
	return &Provisioner{Executor: ex}
}

// Provision returns an environment backed by the mock executor.
func (p *Provisioner) Provision(_ context.Context, opts environment.Options) (*environment.Environment, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	p.provisioned++
	p.mu.Unlock()
	return environment.NewEnvironment("mock", "python"+opts.Python, opts.Python, p.Executor, func() error {
		p.mu.Lock()
		p.closed++
		p.mu.Unlock()
		return nil
	}), nil
}

// Provisioned returns how many environments were created.
func (p *Provisioner) Provisioned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisioned
}

// Closed returns how many environments were closed.
func (p *Provisioner) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
