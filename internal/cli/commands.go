package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/history"
	"github.com/AndreyAkinshin/qgate/internal/output"
	"github.com/AndreyAkinshin/qgate/internal/pipeline"
	"github.com/AndreyAkinshin/qgate/internal/project"
	"github.com/AndreyAkinshin/qgate/internal/toolchain"
	"github.com/AndreyAkinshin/qgate/internal/trigger"
)

// out is the shared output writer for CLI commands.
var out = output.New()

// getenv reads the process environment; tests replace it.
var getenv = os.Getenv

// configurePipeline, when set, adjusts a pipeline before it runs.
var configurePipeline func(*pipeline.Pipeline)

const defaultHistoryLimit = 10

// applyVerbosityToOutput configures the output writer based on verbosity settings.
func applyVerbosityToOutput(opts *GlobalOptions) {
	out.SetQuiet(opts.Quiet)
	out.SetVerbose(opts.Verbose)
}

// loadProject loads the project configuration and handles errors uniformly.
// Returns the project and exit code 0 on success, or nil and the exit code
// of the failure.
func loadProject() (*project.Project, int) {
	proj, err := project.LoadProject()
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, errors.GetExitCode(err)
	}
	return proj, 0
}

func printWarnings(proj *project.Project) {
	for _, w := range proj.Warnings {
		out.WarningSimple("%s", w)
	}
}

// cmdRun executes the quality gate and reports its verdict.
func cmdRun(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printRunUsage()
		return 0
	}
	if len(args) > 0 {
		out.ErrorPrefix("run: unexpected argument %q", args[0])
		return errors.ExitConfigError
	}

	proj, exitCode := loadProject()
	if proj == nil {
		return exitCode
	}
	printWarnings(proj)

	ev := trigger.FromEnv(getenv).WithOverrides(opts.Event, opts.Branch, opts.Ref)
	out.Debug("event: %s", ev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(proj.Config, proj.Root, out)
	if configurePipeline != nil {
		configurePipeline(p)
	}

	result, err := p.Run(ctx, pipeline.Options{Event: ev, RunID: opts.RunID, Ref: opts.Ref})
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	pipeline.PrintSummary(result, out)
	recordHistory(context.WithoutCancel(ctx), proj, result)

	return result.ExitCode()
}

// recordHistory stores the run with every configured recorder.
// Recorder failures are reported and never change the exit code.
func recordHistory(ctx context.Context, proj *project.Project, result *pipeline.Result) {
	set, err := history.Open(ctx, proj.Config.History, proj.Root, getenv)
	if err != nil {
		out.Warning("%v", err)
	}
	defer func() {
		if err := set.Close(); err != nil {
			out.Warning("close history: %v", err)
		}
	}()

	if err := set.Record(ctx, history.FromResult(result)); err != nil {
		out.Warning("%v", err)
	}
}

// cmdPlan prints the resolved command of every stage without running anything.
func cmdPlan(args []string) int {
	if wantsHelp(args) {
		printPlanUsage()
		return 0
	}

	proj, exitCode := loadProject()
	if proj == nil {
		return exitCode
	}
	printWarnings(proj)

	resolver, err := toolchain.NewResolver(proj.Config, proj.Root)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}
	plans, err := resolver.Plan()
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	env := proj.Config.Environment
	vars := resolver.Vars("python" + env.Python)

	out.SummaryItem("Project", proj.Config.Project.Name)
	out.SummaryItem("Toolchain", resolver.Toolchain().Name)
	out.SummaryItem("Environment", fmt.Sprintf("%s (python %s)", env.Backend, env.Python))
	out.Println("")

	var rows [][]string
	for _, plan := range plans {
		title := pipeline.Title(plan.Stage)
		if plan.Disabled || len(plan.Commands) == 0 {
			rows = append(rows, []string{title, "(disabled)"})
			continue
		}
		for i, argv := range plan.Commands {
			name := title
			if i > 0 {
				name = ""
			}
			rows = append(rows, []string{name, toolchain.Join(toolchain.InterpolateArgv(argv, vars))})
		}
	}
	rows = append(rows, []string{pipeline.Title(pipeline.StageUpload), uploadBackend(proj.Config)})
	out.Table([]string{"STAGE", "COMMAND"}, rows)
	return 0
}

func uploadBackend(cfg *config.Config) string {
	if cfg.Coverage == nil || cfg.Coverage.Upload == nil || cfg.Coverage.Upload.Backend == config.DefaultUploadBackend {
		return "(no upload backend)"
	}
	return "coverage report via " + cfg.Coverage.Upload.Backend
}

// cmdConfig handles configuration utilities.
func cmdConfig(args []string) int {
	if len(args) == 0 {
		out.ErrorPrefix("config: subcommand required (validate)")
		return errors.ExitConfigError
	}

	switch args[0] {
	case "validate":
		return cmdConfigValidate()
	case "-h", "--help":
		printConfigUsage()
		return 0
	default:
		out.ErrorPrefix("config: unknown subcommand %q", args[0])
		return errors.ExitConfigError
	}
}

func cmdConfigValidate() int {
	proj, exitCode := loadProject()
	if proj == nil {
		return exitCode
	}
	printWarnings(proj)

	resolver, err := toolchain.NewResolver(proj.Config, proj.Root)
	if err == nil {
		_, err = resolver.Plan()
	}
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	cfg := proj.Config
	for _, dir := range []string{proj.PackageDirectory(), proj.TestsDirectory()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			out.WarningSimple("%s is not a directory; the checkout stage will fail", dir)
		}
	}

	out.ValidationSuccess("Configuration is valid.")
	out.SummaryItem("Config", proj.ConfigPath())
	out.SummaryItem("Project", cfg.Project.Name)
	out.SummaryItem("Package", cfg.Project.Package)
	out.SummaryItem("Tests", cfg.Project.Tests)
	out.SummaryItem("Toolchain", resolver.Toolchain().Name)
	out.SummaryItem("Python", cfg.Environment.Python)
	out.SummaryItem("Lint threshold", toolchain.FormatThreshold(cfg.Threshold()))
	out.SummaryItem("Upload", uploadBackend(cfg))
	if len(proj.Warnings) > 0 {
		out.SummaryItem("Warnings", strconv.Itoa(len(proj.Warnings)))
	}
	return 0
}

// cmdHistory lists the most recent runs from the history database or file.
func cmdHistory(args []string) int {
	if wantsHelp(args) {
		printHistoryUsage()
		return 0
	}

	limit := defaultHistoryLimit
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n":
			if i+1 >= len(args) {
				out.ErrorPrefix("history: -n requires a value")
				return errors.ExitConfigError
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 0 {
				out.ErrorPrefix("history: invalid -n value %q", args[i+1])
				return errors.ExitConfigError
			}
			limit = n
			i++
		default:
			out.ErrorPrefix("history: unknown option %q", args[i])
			return errors.ExitConfigError
		}
	}

	proj, exitCode := loadProject()
	if proj == nil {
		return exitCode
	}

	hc := proj.Config.History
	if hc == nil || (hc.File == "" && hc.DatabaseURLEnv == "") {
		out.ErrorPrefix("history: neither history.file nor history.database_url_env is configured")
		return errors.ExitConfigError
	}

	ctx := context.Background()
	set, err := history.Open(ctx, hc, proj.Root, getenv)
	defer func() { _ = set.Close() }()
	if err != nil {
		if len(set.Recorders) == 0 {
			out.ErrorPrefix("history: %v", err)
			return errors.ExitInfrastructureError
		}
		out.Warning("%v", err)
	}

	records, source, err := set.Recent(ctx, proj.Config.Project.Name, limit)
	if err != nil {
		out.ErrorPrefix("history: %v", err)
		return errors.ExitGateFailure
	}
	out.Debug("history read from %s", source)
	if len(records) == 0 {
		out.Info("No runs recorded yet.")
		return 0
	}

	var rows [][]string
	for _, rec := range records {
		rows = append(rows, []string{
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Event,
			shortRevision(rec.Revision),
			rec.Verdict,
			rec.FailedStage,
			pipeline.FormatDuration(rec.Duration()),
		})
	}
	out.Table([]string{"STARTED", "EVENT", "REVISION", "VERDICT", "FAILED", "DURATION"}, rows)
	return 0
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func printRunUsage() {
	w := output.New()

	w.HelpTitle("qgate run - run the quality gate")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate run [options]")

	w.HelpSection("Description:")
	w.Println("  Checks out the revision, provisions a fresh interpreter, installs the")
	w.Println("  package with its dev and test extras, then runs format, import-order,")
	w.Println("  lint, lint-score, typecheck and test. The first failure stops the run.")
	w.Println("  The coverage report is uploaded whenever the tests ran.")
	w.Println("  In local checkout mode --ref switches the working tree to that revision")
	w.Println("  for the run and restores the previous HEAD afterwards.")

	w.HelpSection("Exit Codes:")
	w.HelpCommand("0", "Passed, or the trigger filter skipped the run", 4)
	w.HelpCommand("1", "A check or the test stage failed", 4)
	w.HelpCommand("2", "Configuration error", 4)
	w.HelpCommand("3", "Checkout, provisioning or installation failed", 4)

	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("qgate run", "Run locally, ignoring the trigger filter")
	w.HelpExample("qgate run --event=pull_request --branch=main", "Run as a pull request to main")
	w.HelpExample("qgate run --ref=v1.2.0", "Check out a tag before running")
	w.Println("")
}

func printPlanUsage() {
	w := output.New()

	w.HelpTitle("qgate plan - show the stage commands")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate plan")

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.Println("")
}

// printConfigUsage prints the help text for the config command.
func printConfigUsage() {
	w := output.New()

	w.HelpTitle("qgate config - configuration utilities")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate config <subcommand>")

	w.HelpSection("Subcommands:")
	w.HelpCommand("validate", "Validate the project configuration", 10)

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", 10)

	w.HelpSection("Examples:")
	w.HelpExample("qgate config validate", "Validate project configuration")
	w.Println("")
}

func printHistoryUsage() {
	w := output.New()

	w.HelpTitle("qgate history - show recorded runs")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate history [-n <count>]")

	w.HelpSection("Description:")
	w.Println("  Reads the database named by history.database_url_env when it is set,")
	w.Println("  otherwise history.file.")

	w.HelpSection("Options:")
	w.HelpFlag("-n <count>", "Number of runs to show, newest first (0 for all)", 12)
	w.HelpFlag("-h, --help", "Show this help", 12)
	w.Println("")
}
