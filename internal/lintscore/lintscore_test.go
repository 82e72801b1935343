package lintscore

import (
	"strings"
	"testing"
)

func report(score string) string {
	return "************* Module elbow.core\n" +
		"elbow/core.py:12:0: C0301: Line too long (120/100) (line-too-long)\n\n" +
		"------------------------------------------------------------------\n" +
		"Your code has been rated at " + score + "/10 (previous run: 8.50/10, +0.50)\n"
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
		found  bool
	}{
		{"typical", report("9.00"), 9.0, true},
		{"perfect", report("10.00"), 10.0, true},
		{"negative", report("-3.50"), -3.5, true},
		{"integer", "Your code has been rated at 7/10", 7, true},
		{"last occurrence wins", report("5.00") + report("9.50"), 9.5, true},
		{"missing", "No config file found, using default configuration", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Parse(tt.output)
			if found != tt.found || got != tt.want {
				t.Errorf("Parse() = (%g, %v), want (%g, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		exitCode int
		want     bool
	}{
		{"exactly threshold passes", report("9.00"), 0, true},
		{"just below fails", report("8.99"), 0, false},
		{"8.9 fails", report("8.90"), 16, false},
		{"above passes despite message exit code", report("9.40"), 4, true},
		{"below fails despite zero exit code", report("8.00"), 0, false},
		{"no score falls back to success", "", 0, true},
		{"no score falls back to failure", "fatal: cannot import", 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.output, tt.exitCode, DefaultThreshold)
			if v.Passed != tt.want {
				t.Errorf("Evaluate() passed = %v, want %v (%s)", v.Passed, tt.want, v)
			}
		})
	}
}

func TestVerdict_String(t *testing.T) {
	v := Evaluate(report("8.90"), 0, 9.0)
	if got := v.String(); !strings.Contains(got, "8.90/10 < threshold 9.00") {
		t.Errorf("String() = %q", got)
	}
	v = Evaluate(report("9.00"), 0, 9.0)
	if got := v.String(); !strings.Contains(got, ">= threshold") {
		t.Errorf("String() = %q", got)
	}
	if got := (Verdict{}).String(); got != "no score reported" {
		t.Errorf("String() = %q", got)
	}
}
