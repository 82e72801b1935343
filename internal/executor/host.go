package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Host runs commands as local processes.
type Host struct {
	Root string
	// PathPrepend is placed in front of PATH, e.g. a virtual environment's bin directory.
	PathPrepend []string
	Env         map[string]string
	// Environ supplies the inherited environment; nil means os.Environ.
	Environ func() []string
}

// NewHost creates a host executor rooted at root.
func NewHost(root string) *Host {
	return &Host{Root: root}
}

// Run executes cmd and waits for it to exit.
func (h *Host) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{}, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	env := h.environ(cmd.Env)
	start := time.Now()

	program, err := lookPath(cmd.Argv[0], env)
	if err != nil {
		msg := cmd.Argv[0] + ": command not found\n"
		writeTo(cmd.Stderr, msg)
		return Result{ExitCode: ExitCommandNotFound, Output: msg, Duration: time.Since(start)}, nil
	}

	var captured bytes.Buffer
	shared := &lockedWriter{w: &captured}

	proc := exec.CommandContext(ctx, program, cmd.Argv[1:]...)
	proc.Dir = filepath.Join(h.Root, cmd.Dir)
	proc.Env = env
	proc.Stdout = teeWriter(shared, cmd.Stdout)
	proc.Stderr = teeWriter(shared, cmd.Stderr)

	runErr := proc.Run()
	result := Result{Output: captured.String(), Duration: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.ExitCode = 0
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, runErr
	}
	return result, nil
}

// environ builds the process environment.
// Precedence (highest to lowest): command env, executor env, inherited env.
func (h *Host) environ(cmdEnv map[string]string) []string {
	base := h.Environ
	if base == nil {
		base = os.Environ
	}
	vars := make(map[string]string)
	for _, kv := range filterPythonEnv(base()) {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	for k, v := range h.Env {
		vars[k] = v
	}
	for k, v := range cmdEnv {
		vars[k] = v
	}
	if len(h.PathPrepend) > 0 {
		parts := append([]string(nil), h.PathPrepend...)
		if p := vars["PATH"]; p != "" {
			parts = append(parts, p)
		}
		vars["PATH"] = strings.Join(parts, string(os.PathListSeparator))
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// filterPythonEnv removes variables that would make tools escape the provisioned environment.
func filterPythonEnv(environ []string) []string {
	filtered := make([]string, 0, len(environ))
	for _, kv := range environ {
		if strings.HasPrefix(kv, "PYTHONHOME=") ||
			strings.HasPrefix(kv, "VIRTUAL_ENV=") ||
			strings.HasPrefix(kv, "__PYVENV_LAUNCHER__=") {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}

// lookPath resolves program against the PATH of env rather than the current process.
func lookPath(program string, env []string) (string, error) {
	if strings.ContainsRune(program, filepath.Separator) {
		if _, err := os.Stat(program); err != nil {
			return "", err
		}
		return program, nil
	}
	for _, kv := range env {
		if path, ok := strings.CutPrefix(kv, "PATH="); ok {
			for _, dir := range filepath.SplitList(path) {
				candidate := filepath.Join(dir, program)
				if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
					return candidate, nil
				}
			}
			return "", exec.ErrNotFound
		}
	}
	return exec.LookPath(program)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func teeWriter(captured io.Writer, live io.Writer) io.Writer {
	if live == nil {
		return captured
	}
	return io.MultiWriter(captured, live)
}

func writeTo(w io.Writer, s string) {
	if w != nil {
		_, _ = io.WriteString(w, s)
	}
}
