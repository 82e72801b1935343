// Package integration contains integration tests for qgate.
package integration

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/project"
	"github.com/AndreyAkinshin/qgate/internal/toolchain"
)

var (
	fixturesDirOnce sync.Once
	fixturesDirPath string
)

// fixturesDir returns the path to the test fixtures directory.
func fixturesDir() string {
	fixturesDirOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		fixturesDirPath = filepath.Join(filepath.Dir(filename), "..", "fixtures")
	})
	return fixturesDirPath
}

// noEnv keeps QGATE_* variables of the host out of configuration loading.
func noEnv(string) string { return "" }

func loadFixture(t *testing.T, name string) *project.Project {
	t.Helper()
	root := filepath.Join(fixturesDir(), filepath.FromSlash(name))
	data, err := os.ReadFile(filepath.Join(root, project.ConfigDirName, project.ConfigFileName))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	cfg, warnings, err := config.ParseAndValidate(data, noEnv)
	if err != nil {
		t.Fatalf("failed to load %s project: %v", name, err)
	}
	return &project.Project{Root: root, Config: cfg, Warnings: warnings}
}

func TestMinimalProject(t *testing.T) {
	t.Parallel()
	proj := loadFixture(t, "minimal")

	cfg := proj.Config
	if cfg.Project.Name != "minimal-project" {
		t.Errorf("project name = %q, want %q", cfg.Project.Name, "minimal-project")
	}
	if cfg.Project.Package != "minimal_project" {
		t.Errorf("package = %q, want %q", cfg.Project.Package, "minimal_project")
	}
	if cfg.Project.Tests != "tests" {
		t.Errorf("tests = %q, want %q", cfg.Project.Tests, "tests")
	}
	if cfg.Environment.Python != "3.7" || cfg.Environment.Backend != "host" {
		t.Errorf("environment = %+v, want host python 3.7", cfg.Environment)
	}
	if got := strings.Join(cfg.Trigger.Events, ","); got != "push,pull_request" {
		t.Errorf("trigger.events = %s", got)
	}
	if got := strings.Join(cfg.Trigger.Branches, ","); got != "main" {
		t.Errorf("trigger.branches = %s", got)
	}
	if cfg.Threshold() != 9.0 {
		t.Errorf("threshold = %v, want 9.0", cfg.Threshold())
	}
	if cfg.Coverage.Upload.Backend != "none" {
		t.Errorf("upload backend = %q, want none", cfg.Coverage.Upload.Backend)
	}
}

func TestFullProject(t *testing.T) {
	t.Parallel()
	proj := loadFixture(t, "full")

	cfg := proj.Config
	if cfg.Project.Package != "src/elbow" {
		t.Errorf("package = %q", cfg.Project.Package)
	}
	if cfg.Environment.Python != "3.10" {
		t.Errorf("python = %q", cfg.Environment.Python)
	}
	if cfg.Threshold() != 9.5 {
		t.Errorf("threshold = %v, want 9.5", cfg.Threshold())
	}
	if cfg.Coverage.Upload.Backend != "http" || cfg.Coverage.Upload.TokenEnv != "COVERAGE_TOKEN" {
		t.Errorf("upload = %+v", cfg.Coverage.Upload)
	}
	if len(proj.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", proj.Warnings)
	}
}

func TestLoadProjectFromDisk(t *testing.T) {
	t.Parallel()
	proj, err := project.LoadProjectFrom(filepath.Join(fixturesDir(), "minimal"))
	if err != nil {
		t.Fatalf("LoadProjectFrom() error = %v", err)
	}
	if _, err := os.Stat(proj.PackageDirectory()); err != nil {
		t.Errorf("package directory: %v", err)
	}
	if _, err := os.Stat(proj.TestsDirectory()); err != nil {
		t.Errorf("tests directory: %v", err)
	}
}

func TestPlanMinimal(t *testing.T) {
	t.Parallel()
	proj := loadFixture(t, "minimal")

	resolver, err := toolchain.NewResolver(proj.Config, proj.Root)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	plans, err := resolver.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	var stages []string
	for _, p := range plans {
		stages = append(stages, p.Stage)
	}
	if got := strings.Join(stages, " "); got != "install format import-order lint lint-score typecheck test" {
		t.Errorf("stage order = %s", got)
	}

	vars := resolver.Vars("python3.7")
	want := map[string]string{
		toolchain.StageFormat:      "black --check minimal_project tests",
		toolchain.StageImportOrder: "isort --check-only minimal_project tests",
		toolchain.StageLint:        "flake8 minimal_project tests",
		toolchain.StageLintScore:   "pylint minimal_project --fail-under=9.0",
		toolchain.StageTypeCheck:   "mypy minimal_project",
		toolchain.StageTest:        "pytest --cov=minimal_project --cov-report=xml --cov-report=term tests",
	}
	for _, p := range plans {
		w, ok := want[p.Stage]
		if !ok {
			continue
		}
		if len(p.Commands) != 1 {
			t.Errorf("%s: %d commands, want 1", p.Stage, len(p.Commands))
			continue
		}
		if got := toolchain.Join(toolchain.InterpolateArgv(p.Commands[0], vars)); got != w {
			t.Errorf("%s = %q, want %q", p.Stage, got, w)
		}
	}
}

func TestPlanFull(t *testing.T) {
	t.Parallel()
	proj := loadFixture(t, "full")

	resolver, err := toolchain.NewResolver(proj.Config, proj.Root)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	typecheck, err := resolver.Resolve(toolchain.StageTypeCheck)
	if err != nil {
		t.Fatalf("Resolve(typecheck) error = %v", err)
	}
	vars := resolver.Vars("python3.10")
	if got := toolchain.Join(toolchain.InterpolateArgv(typecheck.Commands[0], vars)); got != "mypy --strict src/elbow" {
		t.Errorf("typecheck = %q", got)
	}
	if typecheck.Timeout.Minutes() != 10 {
		t.Errorf("typecheck timeout = %v, want 10m", typecheck.Timeout)
	}

	install, err := resolver.Resolve(toolchain.StageInstall)
	if err != nil {
		t.Fatalf("Resolve(install) error = %v", err)
	}
	last := install.Commands[len(install.Commands)-1]
	if got := toolchain.Join(toolchain.InterpolateArgv(last, vars)); got != "python3.10 -m pip install .[dev,test,docs]" {
		t.Errorf("install = %q", got)
	}
}
