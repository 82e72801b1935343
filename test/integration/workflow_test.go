package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/qgate/internal/workflow"
)

func TestWorkflowFromFullFixture(t *testing.T) {
	t.Parallel()
	proj := loadFixture(t, "full")

	data, err := workflow.Generate(proj.Config)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var wf workflow.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		t.Fatalf("generated workflow is not valid YAML: %v\n%s", err, data)
	}

	if wf.On.Push == nil || !equalStrings(wf.On.Push.Branches, []string{"main", "release"}) {
		t.Errorf("on.push = %+v, want branches [main release]", wf.On.Push)
	}
	if wf.On.PullRequest == nil {
		t.Error("on.pull_request missing")
	}

	if len(wf.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(wf.Jobs))
	}
	for _, job := range wf.Jobs {
		var runsGate bool
		for _, step := range job.Steps {
			if strings.Contains(step.Run, "qgate run") {
				runsGate = true
				if step.Env["COVERAGE_TOKEN"] != "${{ secrets.COVERAGE_TOKEN }}" {
					t.Errorf("gate step env = %v, want COVERAGE_TOKEN secret", step.Env)
				}
			}
		}
		if !runsGate {
			t.Error("no step runs 'qgate run'")
		}
	}
}

func TestWorkflowWriteIntoFixtureCopy(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, "minimal")
	proj := loadFixture(t, "minimal")

	created, err := workflow.Write(root, proj.Config, false)
	if err != nil || !created {
		t.Fatalf("Write() = %v, %v; want true, nil", created, err)
	}
	if _, err := os.Stat(filepath.Join(root, ".github", "workflows", "ci.yml")); err != nil {
		t.Fatalf("workflow file missing: %v", err)
	}

	created, err = workflow.Write(root, proj.Config, false)
	if err != nil || created {
		t.Errorf("second Write() = %v, %v; want false, nil", created, err)
	}
}
