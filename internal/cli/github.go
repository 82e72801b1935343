package cli

import (
	"strings"

	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/output"
	"github.com/AndreyAkinshin/qgate/internal/workflow"
)

// cmdGitHub writes the GitHub Actions workflow that runs the quality gate.
func cmdGitHub(args []string) int {
	if wantsHelp(args) {
		printGitHubUsage()
		return 0
	}

	force := false
	for _, arg := range args {
		switch arg {
		case "--force":
			force = true
		default:
			out.ErrorPrefix("github: unknown option %q", arg)
			return errors.ExitConfigError
		}
	}

	proj, exitCode := loadProject()
	if proj == nil {
		return exitCode
	}

	if !force && workflow.Exists(proj.Root) {
		out.Info(".github/workflows/ci.yml already exists (use --force to overwrite)")
		return 0
	}

	created, err := workflow.Write(proj.Root, proj.Config, force)
	if err != nil {
		out.ErrorPrefix("github: %v", err)
		return errors.ExitGateFailure
	}
	if !created {
		return 0
	}

	out.Success("Created .github/workflows/ci.yml")
	trig := proj.Config.Trigger
	out.SummaryItem("Events", joinOrNone(trig.Events))
	out.SummaryItem("Branches", joinOrNone(trig.Branches))
	out.SummaryItem("Runner", workflow.RunnerFor(proj.Config.Environment.Python))

	if secrets := workflow.SecretNames(proj.Config); len(secrets) > 0 {
		out.Println("")
		out.SummarySectionLabel("Repository secrets to configure:")
		out.List(secrets)
	}
	return 0
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func printGitHubUsage() {
	w := output.New()

	w.HelpTitle("qgate github - generate the GitHub Actions workflow")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate github [--force]")

	w.HelpSection("Description:")
	w.Println("  Writes .github/workflows/ci.yml. The workflow triggers on the configured")
	w.Println("  events and branches, sets up the configured interpreter and runs")
	w.Println("  'qgate run'.")

	w.HelpSection("Options:")
	w.HelpFlag("--force", "Overwrite an existing workflow", 10)
	w.HelpFlag("-h, --help", "Show this help", 10)
	w.Println("")
}
