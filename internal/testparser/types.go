// Package testparser extracts test results from test runner output.
package testparser

import (
	"fmt"
	"strings"
)

// FailedTest holds information about a single failed test.
type FailedTest struct {
	Name   string // Node id, e.g. "tests/test_core.py::test_split"
	Reason string // Failure reason/error message
}

// TestCounts holds parsed test result counts.
type TestCounts struct {
	Passed      int
	Failed      int
	Skipped     int
	Errors      int // Collection and fixture errors, counted apart from failures
	Total       int
	Parsed      bool         // true if counts were successfully extracted
	FailedTests []FailedTest // details of failed tests
}

// Add adds another TestCounts to this one, aggregating the counts.
// Parsed is sticky: it is true if any added TestCounts was parsed.
func (tc *TestCounts) Add(other *TestCounts) {
	if other == nil {
		return
	}
	tc.Passed += other.Passed
	tc.Failed += other.Failed
	tc.Skipped += other.Skipped
	tc.Errors += other.Errors
	tc.Total += other.Total
	tc.FailedTests = append(tc.FailedTests, other.FailedTests...)
	if other.Parsed {
		tc.Parsed = true
	}
}

// Summary renders the counts as "N passed, M failed, ..." omitting zero groups.
func (tc *TestCounts) Summary() string {
	if !tc.Parsed {
		return "no test summary"
	}
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(tc.Passed, "passed")
	add(tc.Failed, "failed")
	add(tc.Errors, "errors")
	add(tc.Skipped, "skipped")
	if len(parts) == 0 {
		return "no tests ran"
	}
	return strings.Join(parts, ", ")
}

// Parser defines the interface for test output parsers.
type Parser interface {
	// Parse extracts test counts from the test framework output.
	Parse(output string) TestCounts
	// Name returns the name of the parser.
	Name() string
}
