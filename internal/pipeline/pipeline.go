// Package pipeline runs the quality gate.
//
// A run executes a fixed sequence of stages against one checked-out revision:
// checkout, provision, install, the static checks, test, and upload. The
// first gating failure ends the run and every later gating stage is skipped.
// Upload is telemetry: it is attempted whenever the test stage executed and
// its outcome never changes the verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AndreyAkinshin/qgate/internal/checkout"
	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/coverage"
	"github.com/AndreyAkinshin/qgate/internal/environment"
	gateerrors "github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/executor"
	"github.com/AndreyAkinshin/qgate/internal/lintscore"
	"github.com/AndreyAkinshin/qgate/internal/output"
	"github.com/AndreyAkinshin/qgate/internal/project"
	"github.com/AndreyAkinshin/qgate/internal/testparser"
	"github.com/AndreyAkinshin/qgate/internal/toolchain"
	"github.com/AndreyAkinshin/qgate/internal/trigger"
	"github.com/AndreyAkinshin/qgate/internal/workspace"
)

// CheckoutFunc obtains the working tree of a run.
type CheckoutFunc func(ctx context.Context, opts checkout.Options) (*checkout.Workspace, error)

// UploaderFunc builds the coverage uploader. A nil uploader means uploads are off.
type UploaderFunc func(ctx context.Context, cfg *config.UploadConfig) (coverage.Uploader, error)

// Options configures a single run.
type Options struct {
	Event trigger.Event
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
	// Ref overrides checkout.ref.
	Ref string
}

// Pipeline executes quality-gate runs for one project.
type Pipeline struct {
	cfg  *config.Config
	root string
	out  *output.Writer

	Checkout CheckoutFunc
	// Provisioner overrides the backend selected by environment.backend.
	Provisioner environment.Provisioner
	NewUploader UploaderFunc
	Parsers     *testparser.Registry
	Now         func() time.Time
}

// New creates a pipeline for the project rooted at root.
func New(cfg *config.Config, root string, out *output.Writer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		root:     root,
		out:      out,
		Checkout: checkout.Checkout,
		NewUploader: func(ctx context.Context, c *config.UploadConfig) (coverage.Uploader, error) {
			return coverage.NewUploader(ctx, c, coverage.Deps{})
		},
		Parsers: testparser.NewRegistry(),
		Now:     time.Now,
	}
}

// Run executes the pipeline. The returned error is reserved for failures
// outside any stage; stage failures are reported through the Result.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result := &Result{
		RunID:     runID,
		Project:   p.cfg.Project.Name,
		Event:     opts.Event,
		StartTime: p.Now(),
	}
	for _, name := range Order {
		result.Stages = append(result.Stages, &StageResult{Name: name, Kind: StageKind(name), Status: StatusPending})
	}

	if ok, reason := p.filter().Matches(opts.Event); !ok {
		for _, s := range result.Stages {
			s.skip(reason)
		}
		result.Verdict = VerdictFiltered
		result.FilterReason = reason
		p.finish(result)
		return result, nil
	}

	r := &run{p: p, result: result, opts: opts}
	r.execute(ctx)
	r.cleanup()

	result.Verdict = result.verdict()
	p.finish(result)
	return result, nil
}

func (p *Pipeline) filter() trigger.Filter {
	if p.cfg.Trigger == nil {
		return trigger.Filter{Events: config.DefaultTriggerEvents, Branches: config.DefaultTriggerBranches}
	}
	return trigger.Filter{Events: p.cfg.Trigger.Events, Branches: p.cfg.Trigger.Branches}
}

func (p *Pipeline) finish(result *Result) {
	result.EndTime = p.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}

// run holds the state of one execution.
type run struct {
	p      *Pipeline
	result *Result
	opts   Options

	ws       *checkout.Workspace
	tree     *workspace.Tree
	resolver *toolchain.Resolver
	plans    map[string]toolchain.StagePlan
	env      *environment.Environment
	artifact *coverage.Artifact
	num      int
}

type stageFunc func(ctx context.Context, sr *StageResult) error

// phases names the group of stages opened by each key stage.
var phases = map[string]string{
	StageCheckout: "Setup",
	StageFormat:   "Checks",
	StageTest:     "Tests",
}

func (r *run) execute(ctx context.Context) {
	steps := []struct {
		name string
		fn   stageFunc
	}{
		{StageCheckout, r.checkout},
		{StageProvision, r.provision},
	}
	for _, stage := range toolchain.Stages {
		steps = append(steps, struct {
			name string
			fn   stageFunc
		}{stage, r.command})
	}

	failed := ""
	for _, step := range steps {
		sr := r.result.Stage(step.name)
		if failed != "" {
			sr.skip(failed + " failed")
			continue
		}
		if phase, ok := phases[step.name]; ok {
			r.p.out.PhaseHeader(phase)
		}
		r.runStage(ctx, sr, step.fn)
		if sr.Status == StatusFailed {
			failed = sr.Name
		}
	}

	sr := r.result.Stage(StageUpload)
	switch {
	case !r.result.Stage(StageTest).Ran():
		sr.skip("test stage did not run")
	case ctx.Err() != nil:
		sr.skip("run canceled")
	default:
		r.runStage(ctx, sr, r.upload)
	}
}

func (r *run) runStage(ctx context.Context, sr *StageResult, fn stageFunc) {
	out := r.p.out
	r.num++
	out.StageStart(r.num, Title(sr.Name))
	sr.start(r.p.Now())

	err := fn(ctx, sr)
	now := r.p.Now()

	switch {
	case sr.Status == StatusSkipped:
		sr.finish(now, StatusSkipped, nil)
		out.StageSkipped(sr.Name, sr.Reason)
	case err != nil && !Gating(sr.Name):
		sr.finish(now, StatusErrored, stageError(sr, err))
		out.Warning("%v", sr.Error)
	case err != nil:
		sr.finish(now, StatusFailed, stageError(sr, err))
		out.StageFailed(sr.Name, errorMessage(sr.Error))
	default:
		sr.finish(now, StatusPassed, nil)
		out.StageSuccess(sr.Name)
	}
}

// stageError attaches the stage identity to err unless it already carries one.
func stageError(sr *StageResult, err error) error {
	var ge *gateerrors.GateError
	if errors.As(err, &ge) && ge.Stage != "" {
		return err
	}
	kind := sr.Kind
	if ge != nil {
		kind = ge.Kind
	}
	return &gateerrors.GateError{Kind: kind, Stage: sr.Name, Cause: err}
}

// errorMessage strips the stage prefix already shown by the stage line.
func errorMessage(err error) error {
	var ge *gateerrors.GateError
	if errors.As(err, &ge) {
		if ge.Message != "" {
			return errors.New(ge.Message)
		}
		if ge.Cause != nil {
			return ge.Cause
		}
	}
	return err
}

func (r *run) checkout(ctx context.Context, sr *StageResult) error {
	cfg := r.p.cfg.Checkout
	if cfg == nil {
		cfg = &config.CheckoutConfig{Mode: config.DefaultCheckoutMode}
	}
	ref := r.opts.Ref
	if ref == "" {
		ref = cfg.Ref
	}

	ws, err := r.p.Checkout(ctx, checkout.Options{
		Mode:  cfg.Mode,
		Root:  r.p.root,
		URL:   cfg.URL,
		Ref:   ref,
		Depth: cfg.Depth,
		RunID: r.result.RunID,
	})
	if err != nil {
		return gateerrors.Infrastructure(sr.Name, err)
	}
	r.ws = ws
	r.tree = workspace.Open(ws.Root)
	r.result.Revision = ws.Revision

	sr.Output = fmt.Sprintf("%s at %s", ws.Root, ws.ShortRevision())
	r.p.out.Info("%s", sr.Output)

	return r.tree.RequireDirs(r.p.cfg.Project.Package, r.p.cfg.Project.Tests)
}

func (r *run) provision(ctx context.Context, sr *StageResult) error {
	resolver, err := toolchain.NewResolver(r.p.cfg, r.ws.Root)
	if err != nil {
		return gateerrors.Config(err.Error())
	}
	plans, err := resolver.Plan()
	if err != nil {
		return gateerrors.Config(err.Error())
	}
	r.resolver = resolver
	r.result.Toolchain = resolver.Toolchain().Name
	r.plans = make(map[string]toolchain.StagePlan, len(plans))
	for _, plan := range plans {
		r.plans[plan.Stage] = plan
	}

	envCfg := r.p.cfg.Environment
	if envCfg == nil {
		envCfg = &config.EnvironmentConfig{Backend: config.DefaultBackend, Python: config.DefaultPython}
	}
	prov := r.p.Provisioner
	if prov == nil {
		prov, err = environment.New(envCfg.Backend)
		if err != nil {
			return gateerrors.Config(err.Error())
		}
	}

	env, err := prov.Provision(ctx, environment.Options{
		Root:        r.ws.Root,
		StateDir:    filepath.Join(r.ws.Root, project.ConfigDirName),
		RunID:       r.result.RunID,
		Python:      envCfg.Python,
		Interpreter: envCfg.Interpreter,
		Image:       envCfg.Image,
		Env:         envCfg.Env,
	})
	if err != nil {
		return gateerrors.Infrastructure(sr.Name, err)
	}
	r.env = env

	sr.Output = fmt.Sprintf("%s %s (%s, toolchain %s)", env.Python, env.Version, env.Backend, r.result.Toolchain)
	r.p.out.Info("%s", sr.Output)
	return nil
}

// command runs the argv lists of a configurable stage in order, stopping at
// the first non-zero exit.
func (r *run) command(ctx context.Context, sr *StageResult) error {
	plan := r.plans[sr.Name]
	if plan.Disabled || len(plan.Commands) == 0 {
		sr.skip("disabled in configuration")
		return nil
	}

	if sr.Name == StageTest {
		r.removeStaleCoverage()
	}

	stageCtx := ctx
	if plan.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, plan.Timeout)
		defer cancel()
	}

	vars := r.resolver.Vars(r.env.Python)
	var combined strings.Builder
	var failedArgv []string

	for _, raw := range plan.Commands {
		argv := toolchain.InterpolateArgv(raw, vars)
		r.p.out.StageCommand(toolchain.Join(argv))

		res, err := r.env.Executor.Run(stageCtx, executor.Command{
			Stage:  sr.Name,
			Argv:   argv,
			Stdout: r.live(),
			Stderr: r.live(),
		})
		combined.WriteString(res.Output)
		sr.ExitCode = res.ExitCode
		if err != nil {
			sr.Output = combined.String()
			return interruption(stageCtx, plan.Timeout, argv, err)
		}
		if !res.Success() {
			failedArgv = argv
			break
		}
	}
	sr.Output = combined.String()

	switch sr.Name {
	case StageLintScore:
		return r.evaluateLintScore(sr)
	case StageTest:
		r.collectTestResults(sr)
		r.collectCoverage(ctx)
	}

	if failedArgv != nil {
		return r.commandFailure(sr, failedArgv)
	}
	return nil
}

func (r *run) live() io.Writer {
	if r.p.out.Quiet() {
		return nil
	}
	return r.p.out.Stdout()
}

func interruption(ctx context.Context, timeout time.Duration, argv []string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && timeout > 0:
		return fmt.Errorf("%s: timed out after %s", argv[0], timeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: interrupted", argv[0])
	default:
		return fmt.Errorf("%s: %w", argv[0], err)
	}
}

func (r *run) commandFailure(sr *StageResult, argv []string) error {
	var msg string
	switch {
	case sr.ExitCode == executor.ExitCommandNotFound:
		msg = fmt.Sprintf("%s: command not found", argv[0])
	case sr.Name == StageTest && r.result.Tests != nil && r.result.Tests.Parsed:
		msg = fmt.Sprintf("%s (exit status %d)", r.result.Tests.Summary(), sr.ExitCode)
	default:
		msg = fmt.Sprintf("%s exited with status %d", argv[0], sr.ExitCode)
	}
	switch sr.Kind {
	case gateerrors.KindInfrastructure:
		return gateerrors.Infrastructuref(sr.Name, "%s", msg)
	case gateerrors.KindTest:
		return gateerrors.Test(sr.Name, msg)
	default:
		return gateerrors.Quality(sr.Name, msg)
	}
}

func (r *run) evaluateLintScore(sr *StageResult) error {
	v := lintscore.Evaluate(sr.Output, sr.ExitCode, r.p.cfg.Threshold())
	r.result.LintScore = &v
	if v.Passed {
		r.p.out.Info("%s", v.String())
		return nil
	}
	if !v.Found {
		return gateerrors.Quality(sr.Name, fmt.Sprintf("exited with status %d and reported no score", sr.ExitCode))
	}
	return gateerrors.Quality(sr.Name, v.String())
}

func (r *run) collectTestResults(sr *StageResult) {
	parser := r.p.Parsers.GetParser(r.result.Toolchain)
	if parser == nil {
		parser = r.p.Parsers.GetParser("pytest")
	}
	if parser == nil {
		return
	}
	counts := parser.Parse(sr.Output)
	r.result.Tests = &counts
}

func (r *run) coverageReport() string {
	if r.p.cfg.Coverage == nil {
		return ""
	}
	return r.p.cfg.Coverage.Report
}

// removeStaleCoverage deletes artifacts left by an earlier run so an upload
// never sends coverage this run did not produce.
func (r *run) removeStaleCoverage() {
	if err := r.tree.Remove(coverage.Candidates(r.coverageReport())...); err != nil {
		r.p.out.Warning("could not remove stale coverage: %v", err)
	}
}

func (r *run) collectCoverage(ctx context.Context) {
	candidates := coverage.Candidates(r.coverageReport())
	if exp, ok := r.env.Executor.(executor.Exporter); ok {
		for _, c := range candidates {
			// Missing candidates are expected; Discover reports the outcome.
			_ = exp.Export(ctx, c, r.tree.Path(c))
		}
	}

	a, err := coverage.Discover(r.tree, r.coverageReport())
	if err != nil {
		r.p.out.Warning("coverage artifact: %v", err)
		return
	}
	if a == nil {
		r.p.out.Debug("no coverage artifact among %s", strings.Join(candidates, ", "))
		return
	}
	r.artifact = a
	r.result.Coverage = a.Summary
	if a.Summary != nil {
		r.p.out.Info("coverage: %s", a.Summary)
	}
}

func (r *run) upload(ctx context.Context, sr *StageResult) error {
	var cfg *config.UploadConfig
	if r.p.cfg.Coverage != nil {
		cfg = r.p.cfg.Coverage.Upload
	}

	uploader, err := r.p.NewUploader(ctx, cfg)
	if err != nil {
		return err
	}
	if uploader == nil {
		sr.skip("no upload backend configured")
		return nil
	}
	if r.artifact == nil {
		return errors.New("no coverage artifact to upload")
	}

	timeout := coverage.DefaultUploadTimeout
	if cfg != nil {
		if d, err := config.ParseTimeout(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	loc, err := uploader.Upload(ctx, r.artifact, coverage.Metadata{
		RunID:    r.result.RunID,
		Project:  r.result.Project,
		Revision: r.result.Revision,
		Branch:   r.result.Event.Branch,
		Event:    string(r.result.Event.Kind),
	})
	if err != nil {
		return gateerrors.Telemetry(sr.Name, fmt.Errorf("%s upload: %w", uploader.Name(), err))
	}

	r.result.CoverageURL = loc
	sr.Output = fmt.Sprintf("%s -> %s", r.artifact.Path, loc)
	r.p.out.Info("%s", sr.Output)
	return nil
}

func (r *run) cleanup() {
	if err := r.env.Close(); err != nil {
		r.p.out.Warning("destroy environment: %v", err)
	}
	if err := r.ws.Close(); err != nil {
		r.p.out.Warning("release workspace: %v", err)
	}
}
