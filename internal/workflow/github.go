// Package workflow generates the GitHub Actions workflow that runs the gate.
package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// InstallPackage is the go install path of the qgate command.
const InstallPackage = "github.com/AndreyAkinshin/qgate/cmd/qgate@latest"

// Workflow is the generated GitHub Actions workflow.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers lists the events that start the workflow.
type Triggers struct {
	Push        *Branches `yaml:"push,omitempty"`
	PullRequest *Branches `yaml:"pull_request,omitempty"`
}

// Branches is a branch filter.
type Branches struct {
	Branches []string `yaml:"branches,flow"`
}

// Job is a workflow job.
type Job struct {
	Name   string `yaml:"name"`
	RunsOn string `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

// Step is a job step.
type Step struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
}

// legacyPython matches interpreters no longer shipped on ubuntu-latest runners.
var legacyPython = mustConstraint("< 3.8")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// RunnerFor returns the runner image that still provides the pinned interpreter.
func RunnerFor(python string) string {
	v, err := semver.NewVersion(python)
	if err == nil && legacyPython.Check(v) {
		return "ubuntu-22.04"
	}
	return "ubuntu-latest"
}

// Build assembles the workflow for cfg.
func Build(cfg *config.Config) *Workflow {
	var on Triggers
	events := config.DefaultTriggerEvents
	branches := config.DefaultTriggerBranches
	if cfg.Trigger != nil {
		if len(cfg.Trigger.Events) > 0 {
			events = cfg.Trigger.Events
		}
		if len(cfg.Trigger.Branches) > 0 {
			branches = cfg.Trigger.Branches
		}
	}
	for _, e := range events {
		filter := &Branches{Branches: append([]string(nil), branches...)}
		switch e {
		case "push":
			on.Push = filter
		case "pull_request":
			on.PullRequest = filter
		}
	}

	python := config.DefaultPython
	backend := config.DefaultBackend
	if cfg.Environment != nil {
		if cfg.Environment.Python != "" {
			python = cfg.Environment.Python
		}
		if cfg.Environment.Backend != "" {
			backend = cfg.Environment.Backend
		}
	}

	steps := []Step{{Uses: "actions/checkout@v4"}}
	if backend == config.DefaultBackend {
		steps = append(steps, Step{
			Uses: "actions/setup-python@v5",
			With: map[string]string{"python-version": python},
		})
	}
	steps = append(steps,
		Step{Uses: "actions/setup-go@v5", With: map[string]string{"go-version": "stable"}},
		Step{Name: "Install qgate", Run: "go install " + InstallPackage},
		Step{Name: "Quality gate", Run: "qgate run", Env: secretEnv(cfg)},
	)

	return &Workflow{
		Name: "CI",
		On:   on,
		Jobs: map[string]Job{
			"quality-gate": {
				Name:   "Quality gate",
				RunsOn: RunnerFor(python),
				Steps:  steps,
			},
		},
	}
}

// awsCredentialEnv are read by the AWS SDK's default credential chain.
var awsCredentialEnv = []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"}

// secretEnv forwards the repository secrets named in the configuration.
func secretEnv(cfg *config.Config) map[string]string {
	var names []string
	if cfg.Coverage != nil && cfg.Coverage.Upload != nil {
		u := cfg.Coverage.Upload
		names = append(names, u.TokenEnv, u.AccessKeyEnv, u.SecretKeyEnv)
		if u.Backend == "s3" || u.TokenSecret != "" {
			names = append(names, awsCredentialEnv...)
			if u.Region == "" {
				names = append(names, "AWS_REGION")
			}
		}
	}
	if cfg.History != nil {
		names = append(names, cfg.History.DatabaseURLEnv)
	}

	env := make(map[string]string)
	for _, n := range names {
		if n != "" {
			env[n] = fmt.Sprintf("${{ secrets.%s }}", n)
		}
	}
	if len(env) == 0 {
		return nil
	}
	return env
}

// Generate renders the workflow YAML for cfg.
func Generate(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Build(cfg)); err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	return buf.Bytes(), nil
}

// Write generates and writes the workflow file.
// Returns true if the file was written, false if it already exists.
// Use force=true to overwrite an existing file.
func Write(projectRoot string, cfg *config.Config, force bool) (bool, error) {
	outputPath := Path(projectRoot)
	if !force && Exists(projectRoot) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create workflows directory: %w", err)
	}

	content, err := Generate(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to generate workflow: %w", err)
	}

	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write workflow: %w", err)
	}
	return true, nil
}

// Exists checks if the workflow file exists.
func Exists(projectRoot string) bool {
	_, err := os.Stat(Path(projectRoot))
	return err == nil
}

// Path returns the path to the workflow file.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ".github", "workflows", "ci.yml")
}

// SecretNames returns the repository secrets the workflow expects, sorted.
func SecretNames(cfg *config.Config) []string {
	env := secretEnv(cfg)
	names := make([]string, 0, len(env))
	for n := range env {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
