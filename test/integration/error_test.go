package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/project"
)

func TestProjectNotFoundError(t *testing.T) {
	_, err := project.LoadProjectFrom("/nonexistent/path")
	if err == nil {
		t.Fatal("expected error when loading from nonexistent path")
	}
	if code := errors.GetExitCode(err); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
}

func TestFindRootFromSubdirectory(t *testing.T) {
	root, err := project.FindRootFrom(filepath.Join(fixturesDir(), "full", "src", "elbow"))
	if err != nil {
		t.Fatalf("FindRootFrom() error = %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(fixturesDir(), "full"))
	if root != want {
		t.Errorf("root = %q, want %q", root, want)
	}
}

func TestConfigFileMissingError(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".qgate"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := project.LoadProjectFrom(root)
	if err == nil {
		t.Fatal("expected error when loading missing config file")
	}
	if code := errors.GetExitCode(err); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
}

func TestConfigInvalidJSONError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".qgate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{ invalid json }"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := project.LoadProjectFrom(filepath.Dir(dir))
	if err == nil {
		t.Fatal("expected error when loading invalid JSON config")
	}
	if code := errors.GetExitCode(err); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
}

func TestUnknownFieldWarning(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".qgate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := `{"project": {"name": "elbow"}, "notify": {"slack": "#ci"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	proj, err := project.LoadProjectFrom(filepath.Dir(dir))
	if err != nil {
		t.Fatalf("LoadProjectFrom() error = %v", err)
	}
	found := false
	for _, w := range proj.Warnings {
		if strings.Contains(w, `"notify"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming the unknown field", proj.Warnings)
	}
}
