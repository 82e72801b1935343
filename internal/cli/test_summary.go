package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/testparser"
)

// stdin is the input of test-summary when no file is given; tests replace it.
var stdin io.Reader = os.Stdin

// cmdTestSummary parses pytest output and prints a summary.
func cmdTestSummary(args []string) int {
	if wantsHelp(args) {
		printTestSummaryUsage()
		return 0
	}

	input := stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			out.ErrorPrefix("test-summary: %v", err)
			return errors.ExitGateFailure
		}
		defer func() { _ = f.Close() }()
		input = f
	}

	data, err := io.ReadAll(input)
	if err != nil {
		out.ErrorPrefix("test-summary: %v", err)
		return errors.ExitGateFailure
	}

	parser := testparser.NewRegistry().GetParser("pytest")
	counts := parser.Parse(string(data))

	if !counts.Parsed {
		out.ErrorPrefix("test-summary: no test results found in input")
		out.Hint("hint: pass the full output of 'pytest -rfE'")
		return errors.ExitGateFailure
	}

	printTestSummary(&counts)

	if counts.Failed > 0 || counts.Errors > 0 {
		return errors.ExitGateFailure
	}
	return 0
}

// printTestSummary prints a formatted test summary.
func printTestSummary(counts *testparser.TestCounts) {
	out.Println("")
	out.SummaryHeader("Test Summary")

	out.SummaryPassed("Passed", fmt.Sprintf("%d", counts.Passed))
	if counts.Failed > 0 {
		out.SummaryFailed("Failed", fmt.Sprintf("%d", counts.Failed))
	}
	if counts.Errors > 0 {
		out.SummaryFailed("Errors", fmt.Sprintf("%d", counts.Errors))
	}
	if counts.Skipped > 0 {
		out.SummaryItem("Skipped", fmt.Sprintf("%d", counts.Skipped))
	}
	out.SummaryItem("Total", fmt.Sprintf("%d", counts.Total))

	if len(counts.FailedTests) > 0 {
		out.Println("")
		out.SummarySectionLabel("Failed Tests:")
		for _, ft := range counts.FailedTests {
			out.SummaryFailed("  "+ft.Name, ft.Reason)
		}
	}

	out.Println("")

	if counts.Failed == 0 && counts.Errors == 0 {
		out.FinalSuccess("All %d tests passed.", counts.Total)
	} else {
		out.FinalFailure("%d of %d tests failed.", counts.Failed+counts.Errors, counts.Total)
	}
}

func printTestSummaryUsage() {
	out.HelpTitle("qgate test-summary - summarize pytest output")
	out.HelpSection("Usage:")
	out.HelpUsage("pytest -rfE | qgate test-summary")
	out.HelpUsage("qgate test-summary pytest.log")
	out.HelpSection("Description:")
	out.Println("  Parses pytest output and prints a summary of the results,")
	out.Println("  listing every failed test with its reason.")
	out.Println("")
	out.HelpSection("Examples:")
	out.HelpExample("pytest -rfE | qgate test-summary", "Parse from stdin")
	out.HelpExample("qgate test-summary pytest.log", "Parse from file")
	out.Println("")
}
