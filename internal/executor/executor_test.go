package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestHost_RunSuccess(t *testing.T) {
	skipOnWindows(t)
	h := NewHost(t.TempDir())

	var live bytes.Buffer
	res, err := h.Run(context.Background(), Command{
		Stage:  "format",
		Argv:   []string{"sh", "-c", "echo hello"},
		Stdout: &live,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Output != "hello\n" {
		t.Errorf("Output = %q", res.Output)
	}
	if live.String() != "hello\n" {
		t.Errorf("live output = %q", live.String())
	}
}

func TestHost_RunNonZeroExit(t *testing.T) {
	skipOnWindows(t)
	h := NewHost(t.TempDir())

	res, err := h.Run(context.Background(), Command{Argv: []string{"sh", "-c", "echo bad >&2; exit 3"}})
	if err != nil {
		t.Fatalf("Run() error = %v, non-zero exit is not an error", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "bad") {
		t.Errorf("stderr should be captured, Output = %q", res.Output)
	}
}

func TestHost_CommandNotFound(t *testing.T) {
	h := NewHost(t.TempDir())

	res, err := h.Run(context.Background(), Command{Argv: []string{"qgate-definitely-missing-tool"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != ExitCommandNotFound {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitCommandNotFound)
	}
}

func TestHost_EmptyCommand(t *testing.T) {
	if _, err := NewHost(t.TempDir()).Run(context.Background(), Command{}); err == nil {
		t.Error("expected error for empty argv")
	}
}

func TestHost_CancelledContext(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHost(t.TempDir()).Run(ctx, Command{Argv: []string{"sh", "-c", "true"}})
	if err == nil {
		t.Error("expected context error")
	}
}

func TestHost_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "elbow"), 0755); err != nil {
		t.Fatal(err)
	}

	res, err := NewHost(root).Run(context.Background(), Command{Argv: []string{"sh", "-c", "basename $(pwd)"}, Dir: "elbow"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Output) != "elbow" {
		t.Errorf("Output = %q, want elbow", res.Output)
	}
}

func TestHost_Environ(t *testing.T) {
	h := &Host{
		PathPrepend: []string{"/venv/bin"},
		Env:         map[string]string{"A": "executor", "B": "executor"},
		Environ: func() []string {
			return []string{"PATH=/usr/bin", "A=inherited", "VIRTUAL_ENV=/other", "PYTHONHOME=/x", "KEEP=1"}
		},
	}

	env := h.environ(map[string]string{"B": "command"})
	got := map[string]string{}
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		got[k] = v
	}

	if got["A"] != "executor" {
		t.Errorf("A = %q, want executor", got["A"])
	}
	if got["B"] != "command" {
		t.Errorf("B = %q, want command", got["B"])
	}
	if got["PATH"] != "/venv/bin"+string(os.PathListSeparator)+"/usr/bin" {
		t.Errorf("PATH = %q", got["PATH"])
	}
	if _, ok := got["VIRTUAL_ENV"]; ok {
		t.Error("VIRTUAL_ENV should be filtered")
	}
	if _, ok := got["PYTHONHOME"]; ok {
		t.Error("PYTHONHOME should be filtered")
	}
	if got["KEEP"] != "1" {
		t.Error("unrelated variables should be kept")
	}
}

func TestHost_UsesPrependedPath(t *testing.T) {
	skipOnWindows(t)
	bin := t.TempDir()
	script := filepath.Join(bin, "flake8")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho from-venv\n"), 0755); err != nil {
		t.Fatal(err)
	}

	h := NewHost(t.TempDir())
	h.PathPrepend = []string{bin}

	res, err := h.Run(context.Background(), Command{Argv: []string{"flake8"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Output) != "from-venv" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestWrapScript(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"black", "--check", "elbow", "tests"}, "black --check elbow tests 2>&1; echo $? > /tmp/.qgate-exit-code"},
		{[]string{"python", "-m", "pip", "install", ".[dev,test]"}, "python -m pip install '.[dev,test]' 2>&1; echo $? > /tmp/.qgate-exit-code"},
		{[]string{"echo", "it's"}, `echo 'it'\''s' 2>&1; echo $? > /tmp/.qgate-exit-code`},
	}

	for _, tt := range tests {
		if got := WrapScript(tt.argv); got != tt.want {
			t.Errorf("WrapScript(%v) = %q, want %q", tt.argv, got, tt.want)
		}
	}
}

func TestParseExitCode(t *testing.T) {
	if code, err := ParseExitCode("0\n"); err != nil || code != 0 {
		t.Errorf("ParseExitCode(0) = %d, %v", code, err)
	}
	if code, err := ParseExitCode(" 30 \n"); err != nil || code != 30 {
		t.Errorf("ParseExitCode(30) = %d, %v", code, err)
	}
	if _, err := ParseExitCode("abc"); err == nil {
		t.Error("expected error")
	}
}
