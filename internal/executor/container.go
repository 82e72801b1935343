package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"dagger.io/dagger"
)

// exitCodeFile is where the wrapper script records the command's exit status.
const exitCodeFile = "/tmp/.qgate-exit-code"

// Container runs commands inside a dagger container. Each command starts
// from the state the previous one left behind, so packages installed by the
// install stage are visible to later stages.
type Container struct {
	mu        sync.Mutex
	container *dagger.Container
	workdir   string
}

// NewContainer wraps a prepared container whose working tree is mounted at workdir.
func NewContainer(ctr *dagger.Container, workdir string) *Container {
	return &Container{container: ctr, workdir: workdir}
}

// Run executes cmd in the container. Output is delivered once the command completes.
func (c *Container) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{}, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	ctr := c.container.WithWorkdir(path.Join(c.workdir, cmd.Dir))
	for _, k := range sortedEnvKeys(cmd.Env) {
		ctr = ctr.WithEnvVariable(k, cmd.Env[k])
	}
	ctr = ctr.WithExec([]string{"sh", "-c", WrapScript(cmd.Argv)})

	output, err := ctr.Stdout(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{ExitCode: -1, Duration: time.Since(start)}, ctxErr
		}
		return Result{ExitCode: -1, Duration: time.Since(start)}, fmt.Errorf("container exec: %w", err)
	}

	raw, err := ctr.File(exitCodeFile).Contents(ctx)
	if err != nil {
		return Result{ExitCode: -1, Output: output, Duration: time.Since(start)}, fmt.Errorf("read exit code: %w", err)
	}
	code, err := ParseExitCode(raw)
	if err != nil {
		return Result{ExitCode: -1, Output: output, Duration: time.Since(start)}, err
	}

	c.container = ctr
	writeTo(cmd.Stdout, output)

	return Result{ExitCode: code, Output: output, Duration: time.Since(start)}, nil
}

// Export copies a file from the container's working tree to the host.
func (c *Container) Export(ctx context.Context, file, hostPath string) error {
	c.mu.Lock()
	ctr := c.container
	c.mu.Unlock()

	if !path.IsAbs(file) {
		file = path.Join(c.workdir, file)
	}
	if _, err := ctr.File(file).Export(ctx, hostPath); err != nil {
		return fmt.Errorf("export %s: %w", file, err)
	}
	return nil
}

// WrapScript renders argv as a shell script that merges stderr into stdout and
// records the exit status instead of propagating it, so a failing check does
// not abort the container pipeline.
func WrapScript(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return fmt.Sprintf("%s 2>&1; echo $? > %s", strings.Join(quoted, " "), exitCodeFile)
}

// ParseExitCode parses the recorded exit status.
func ParseExitCode(raw string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1, fmt.Errorf("invalid exit code %q", strings.TrimSpace(raw))
	}
	return code, nil
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
