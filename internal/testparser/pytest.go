package testparser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// pytestSummaryRegex matches the final "=== ... in 0.12s ===" line.
	pytestSummaryRegex = regexp.MustCompile(`(?m)^=+ (.*\d+ (?:passed|failed|skipped|errors?|deselected|xfailed|xpassed|warnings?).*) in [\d.]+s.*=+\s*$`)
	pytestCountRegex   = regexp.MustCompile(`(\d+) (passed|failed|skipped|errors?)`)
	pytestFailedRegex  = regexp.MustCompile(`(?m)^(FAILED|ERROR) (\S+)(?: - (.*))?$`)
)

// PytestParser parses Python pytest output.
type PytestParser struct{}

// Name returns the parser name.
func (p *PytestParser) Name() string {
	return "pytest"
}

// Parse extracts test counts from pytest output.
// pytest outputs summary lines like:
//
//	======= 47 passed in 0.12s =======
//	======= 45 passed, 2 failed in 0.12s =======
//	======= 1 passed, 2 failed, 3 skipped, 4 warnings in 0.12s =======
//	======= 10 passed, 2 errors in 0.12s =======
//
// and, in the short test summary, one line per failing node:
//
//	FAILED tests/test_core.py::test_split - AssertionError: assert 1 == 2
func (p *PytestParser) Parse(output string) TestCounts {
	counts := TestCounts{}

	summaries := pytestSummaryRegex.FindAllStringSubmatch(output, -1)
	if len(summaries) > 0 {
		summary := summaries[len(summaries)-1][1]
		for _, m := range pytestCountRegex.FindAllStringSubmatch(summary, -1) {
			n, _ := strconv.Atoi(m[1])
			switch m[2] {
			case "passed":
				counts.Passed = n
			case "failed":
				counts.Failed = n
			case "skipped":
				counts.Skipped = n
			case "error", "errors":
				counts.Errors = n
			}
		}
		counts.Parsed = true
		counts.Total = counts.Passed + counts.Failed + counts.Skipped + counts.Errors
	}

	for _, m := range pytestFailedRegex.FindAllStringSubmatch(output, -1) {
		counts.FailedTests = append(counts.FailedTests, FailedTest{
			Name:   m[2],
			Reason: strings.TrimSpace(m[3]),
		})
	}

	return counts
}
