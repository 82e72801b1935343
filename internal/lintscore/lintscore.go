// Package lintscore extracts the weighted lint score and evaluates it against a threshold.
package lintscore

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultThreshold is the minimum passing score. A score equal to the threshold passes.
const DefaultThreshold = 9.0

// MaxScore is the top of the scale.
const MaxScore = 10.0

var scorePattern = regexp.MustCompile(`Your code has been rated at (-?\d+(?:\.\d+)?)/10`)

// Parse returns the last reported score in output.
func Parse(output string) (float64, bool) {
	matches := scorePattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	score, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Verdict is the outcome of evaluating lint output.
type Verdict struct {
	Score     float64
	Found     bool
	Threshold float64
	Passed    bool
}

// String describes the verdict for reports.
func (v Verdict) String() string {
	if !v.Found {
		return "no score reported"
	}
	rel := ">="
	if !v.Passed {
		rel = "<"
	}
	return fmt.Sprintf("score %.2f/10 %s threshold %.2f", v.Score, rel, v.Threshold)
}

// Evaluate decides the lint-score stage. With a score present the stage
// passes iff score >= threshold, regardless of the tool's exit code. Without
// one, the exit code decides.
func Evaluate(output string, exitCode int, threshold float64) Verdict {
	score, found := Parse(output)
	v := Verdict{Score: score, Found: found, Threshold: threshold}
	if found {
		v.Passed = score >= threshold
	} else {
		v.Passed = exitCode == 0
	}
	return v
}
