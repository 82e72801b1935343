// Package cli provides the command-line interface for qgate.
package cli

import (
	"fmt"
	"strings"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/output"
	"github.com/AndreyAkinshin/qgate/internal/trigger"
)

// Version is set at build time.
var Version = "dev"

// commandInfo describes a top-level command for help and completion.
type commandInfo struct {
	name        string
	description string
}

var commandTable = []commandInfo{
	{"run", "Run the quality gate"},
	{"plan", "Print the commands each stage would run"},
	{"init", "Create .qgate/config.json for this repository"},
	{"config", "Configuration utilities"},
	{"github", "Generate the GitHub Actions workflow"},
	{"history", "Show recorded runs"},
	{"test-summary", "Summarize pytest output"},
	{"completion", "Generate shell completion (bash, zsh, fish)"},
	{"version", "Show version information"},
	{"help", "Show help"},
}

// wantsHelp returns true if args contain -h or --help before any -- separator.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
		if arg == "--" {
			return false
		}
	}
	return false
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 0
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return 0
	case "--version", "version":
		out.Println("qgate %s", Version)
		return 0
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	if len(remaining) == 0 {
		printUsage()
		return 0
	}
	cmd := remaining[0]
	cmdArgs := remaining[1:]

	switch cmd {
	case "run":
		return cmdRun(cmdArgs, opts)
	case "plan":
		return cmdPlan(cmdArgs)
	case "init":
		return cmdInit(cmdArgs)
	case "config":
		return cmdConfig(cmdArgs)
	case "github":
		return cmdGitHub(cmdArgs)
	case "history":
		return cmdHistory(cmdArgs)
	case "test-summary":
		return cmdTestSummary(cmdArgs)
	case "completion":
		return cmdCompletion(cmdArgs)
	default:
		out.ErrorPrefix("unknown command %q", cmd)
		out.Hint("run 'qgate help' for a list of commands")
		return errors.ExitConfigError
	}
}

// GlobalOptions holds parsed global flags.
type GlobalOptions struct {
	Quiet   bool
	Verbose bool
	// Event, Branch and Ref override the trigger read from the environment.
	Event  string
	Branch string
	Ref    string
	RunID  string
}

// valueFlags are the global flags that take a value, as "--flag v" or "--flag=v".
var valueFlags = []string{"--event", "--branch", "--ref", "--run-id"}

// parseGlobalFlags manually parses global flags from arguments.
//
// Flags may appear anywhere in the argument list, so the stdlib flag
// package is not used.
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{}
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			continue
		case arg == "-v" || arg == "--verbose":
			opts.Verbose = true
			continue
		case arg == "--":
			remaining = append(remaining, args[i:]...)
			i = len(args)
			continue
		}

		name, value, matched, err := splitValueFlag(args, &i)
		if err != nil {
			return nil, nil, err
		}
		if !matched {
			remaining = append(remaining, arg)
			continue
		}
		switch name {
		case "--event":
			opts.Event = value
		case "--branch":
			opts.Branch = value
		case "--ref":
			opts.Ref = value
		case "--run-id":
			opts.RunID = value
		}
	}

	if err := validateGlobalOptions(opts); err != nil {
		return nil, nil, err
	}

	applyVerbosityToOutput(opts)

	return opts, remaining, nil
}

// splitValueFlag recognizes args[*i] as one of valueFlags and advances *i
// past a separate value argument.
func splitValueFlag(args []string, i *int) (name, value string, matched bool, err error) {
	arg := args[*i]
	for _, flag := range valueFlags {
		if arg == flag {
			if *i+1 >= len(args) {
				return "", "", false, fmt.Errorf("%s requires a value", flag)
			}
			*i++
			return flag, args[*i], true, nil
		}
		if strings.HasPrefix(arg, flag+"=") {
			return flag, strings.TrimPrefix(arg, flag+"="), true, nil
		}
	}
	return "", "", false, nil
}

// validateGlobalOptions checks that global options are valid.
func validateGlobalOptions(opts *GlobalOptions) error {
	switch trigger.Kind(opts.Event) {
	case trigger.KindNone, trigger.KindPush, trigger.KindPullRequest:
	default:
		return fmt.Errorf("invalid --event value %q\n  valid values: %s, %s\n  example: qgate run --event=push --branch=main",
			opts.Event, trigger.KindPush, trigger.KindPullRequest)
	}

	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}

	return nil
}

// Help text alignment widths.
const (
	helpCommandWidth = 14
	helpFlagWidth    = 18
)

func printUsage() {
	w := output.New()

	w.HelpTitle("qgate - quality gate for Python packages")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate <command> [options]")

	w.HelpSection("Commands:")
	for _, c := range commandTable {
		w.HelpCommand(c.name, c.description, helpCommandWidth)
	}

	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("qgate run", "Run every stage against the working tree")
	w.HelpExample("qgate run --event=push --branch=main", "Run as if triggered by a push to main")
	w.HelpExample("qgate plan", "Show the resolved stage commands")
	w.HelpExample("qgate github", "Write .github/workflows/ci.yml")
	w.Println("")
}

func printGlobalFlags(w *output.Writer) {
	w.HelpSection("Global Flags:")
	w.HelpFlag("-q, --quiet", "Minimal output (errors only)", helpFlagWidth)
	w.HelpFlag("-v, --verbose", "Maximum detail", helpFlagWidth)
	w.HelpFlag("--event=<kind>", "Trigger kind: push or pull_request", helpFlagWidth)
	w.HelpFlag("--branch=<name>", "Branch the event targets", helpFlagWidth)
	w.HelpFlag("--ref=<ref>", "Revision to check out", helpFlagWidth)
	w.HelpFlag("--run-id=<id>", "Run identifier (default: random UUID)", helpFlagWidth)
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.HelpFlag("--version", "Show version", helpFlagWidth)

	w.HelpSection("Environment:")
	w.HelpEnvVar(trigger.EnvEventName, "Trigger kind when --event is not given", 18)
	w.HelpEnvVar(trigger.EnvRef, "Pushed ref; its branch is the event branch", 18)
	w.HelpEnvVar(trigger.EnvBaseRef, "Target branch of a pull request", 18)
	w.HelpEnvVar(trigger.EnvSHA, "Commit that triggered the run", 18)
	w.HelpEnvVar(config.EnvPython, "Overrides environment.python", 18)
	w.HelpEnvVar(config.EnvBackend, "Overrides environment.backend", 18)
}
