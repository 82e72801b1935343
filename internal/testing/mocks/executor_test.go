package mocks

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/AndreyAkinshin/qgate/internal/environment"
	"github.com/AndreyAkinshin/qgate/internal/executor"
)

func TestExecutor_DefaultsToSuccess(t *testing.T) {
	t.Parallel()
	m := NewExecutor()

	res, err := m.Run(context.Background(), executor.Command{Stage: "lint", Argv: []string{"flake8"}})
	if err != nil || res.ExitCode != 0 {
		t.Errorf("Run() = %+v, %v, want success", res, err)
	}
}

func TestExecutor_StageTakesPrecedence(t *testing.T) {
	t.Parallel()
	m := NewExecutor().
		WithProgram("flake8", 2, "program").
		WithStage("lint", 1, "stage")

	res, _ := m.Run(context.Background(), executor.Command{Stage: "lint", Argv: []string{"flake8"}})
	if res.ExitCode != 1 || res.Output != "stage" {
		t.Errorf("Run() = %+v, want stage response", res)
	}

	res, _ = m.Run(context.Background(), executor.Command{Stage: "other", Argv: []string{"flake8"}})
	if res.ExitCode != 2 {
		t.Errorf("Run() = %+v, want program response", res)
	}
}

func TestExecutor_StageError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	m := NewExecutor().WithStageError("install", boom)

	if _, err := m.Run(context.Background(), executor.Command{Stage: "install", Argv: []string{"pip"}}); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestExecutor_Tracking(t *testing.T) {
	t.Parallel()
	m := NewExecutor()
	ctx := context.Background()

	for _, stage := range []string{"install", "install", "format", "lint"} {
		_, _ = m.Run(ctx, executor.Command{Stage: stage, Argv: []string{"x"}})
	}

	if len(m.Calls()) != 4 {
		t.Errorf("len(Calls()) = %d, want 4", len(m.Calls()))
	}
	if want := []string{"install", "format", "lint"}; !reflect.DeepEqual(m.Stages(), want) {
		t.Errorf("Stages() = %v, want %v", m.Stages(), want)
	}

	m.Reset()
	if len(m.Calls()) != 0 {
		t.Error("Reset() did not clear calls")
	}
}

func TestProvisioner(t *testing.T) {
	t.Parallel()
	p := NewProvisioner(NewExecutor())

	env, err := p.Provision(context.Background(), environment.Options{Python: "3.7"})
	if err != nil {
		t.Fatal(err)
	}
	if env.Python != "python3.7" {
		t.Errorf("Python = %q", env.Python)
	}
	if err := env.Close(); err != nil {
		t.Fatal(err)
	}
	_ = env.Close()
	if p.Provisioned() != 1 || p.Closed() != 1 {
		t.Errorf("provisioned=%d closed=%d, want 1/1", p.Provisioned(), p.Closed())
	}
}
