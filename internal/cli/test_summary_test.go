package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pytest.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestCmdTestSummary_Help(t *testing.T) {
	captureOutput(t)
	for _, args := range [][]string{{"-h"}, {"--help"}} {
		if code := cmdTestSummary(args); code != 0 {
			t.Errorf("cmdTestSummary(%v) = %d, want 0", args, code)
		}
	}
}

func TestCmdTestSummary_FileNotFound(t *testing.T) {
	captureOutput(t)
	code := cmdTestSummary([]string{"/nonexistent/path/pytest.log"})
	if code != 1 {
		t.Errorf("cmdTestSummary(nonexistent file) = %d, want 1", code)
	}
}

func TestCmdTestSummary_NoSummaryLine(t *testing.T) {
	captureOutput(t)
	code := cmdTestSummary([]string{writeLog(t, "collecting ...\n")})
	if code != 1 {
		t.Errorf("cmdTestSummary(no summary) = %d, want 1", code)
	}
}

func TestCmdTestSummary_AllPassing(t *testing.T) {
	buf := captureOutput(t)
	code := cmdTestSummary([]string{writeLog(t, "tests/test_core.py ....\n===== 4 passed in 0.12s =====\n")})
	if code != 0 {
		t.Errorf("cmdTestSummary(all passing) = %d, want 0", code)
	}
	if !strings.Contains(buf.String(), "All 4 tests passed.") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestCmdTestSummary_WithFailures(t *testing.T) {
	buf := captureOutput(t)
	log := `tests/test_core.py .F.
=========================== short test summary info ============================
FAILED tests/test_core.py::test_split - AssertionError: assert 1 == 2
===== 1 failed, 2 passed in 0.31s =====
`
	code := cmdTestSummary([]string{writeLog(t, log)})
	if code != 1 {
		t.Errorf("cmdTestSummary(with failures) = %d, want 1", code)
	}
	got := buf.String()
	if !strings.Contains(got, "tests/test_core.py::test_split") || !strings.Contains(got, "1 of 3 tests failed.") {
		t.Errorf("output:\n%s", got)
	}
}

func TestCmdTestSummary_CollectionErrors(t *testing.T) {
	captureOutput(t)
	log := "ERROR tests/test_io.py\n===== 5 passed, 1 error in 0.20s =====\n"
	if code := cmdTestSummary([]string{writeLog(t, log)}); code != 1 {
		t.Errorf("cmdTestSummary(collection error) = %d, want 1", code)
	}
}

func TestCmdTestSummary_Stdin(t *testing.T) {
	captureOutput(t)
	prev := stdin
	stdin = strings.NewReader("===== 3 passed, 1 skipped in 0.05s =====\n")
	t.Cleanup(func() { stdin = prev })

	if code := cmdTestSummary([]string{"-"}); code != 0 {
		t.Errorf("cmdTestSummary(-) = %d, want 0 (skipped tests don't fail)", code)
	}
}
