package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Validation patterns.
var (
	// Project name: must start with a lowercase letter, may contain lowercase, digits, hyphens, underscores.
	projectNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*([-_][a-z0-9]+)*$`)

	// Interpreter version: major.minor with an optional patch.
	pythonVersionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
)

// ConfigurableStages lists the stages whose commands can be overridden, in pipeline order.
var ConfigurableStages = []string{"install", "format", "import-order", "lint", "lint-score", "typecheck", "test"}

// Valid enumerations.
var (
	validEvents         = []string{"push", "pull_request"}
	validCheckoutModes  = []string{"local", "clone"}
	validBackends       = []string{"host", "container"}
	validUploadBackends = []string{"none", "http", "minio", "s3"}
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for non-fatal issues.
// Defaults must already be applied.
func Validate(cfg *Config) (warnings []string, err error) {
	validators := []func(*Config) error{
		validateProject,
		validateTrigger,
		validateCheckout,
		validateEnvironment,
		validateStages,
		validateLint,
		validateUpload,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Coverage.Upload.Backend == "none" {
		warnings = append(warnings, "coverage.upload.backend is \"none\": coverage will not be uploaded")
	}
	for _, name := range sortedKeys(cfg.Stages) {
		if cfg.Stages[name].Disabled {
			warnings = append(warnings, fmt.Sprintf("stage %q is disabled", name))
		}
	}

	return warnings, nil
}

func validateProject(cfg *Config) error {
	if err := ValidateProjectName(cfg.Project.Name); err != nil {
		return err
	}
	if err := validateRelativeDir("project.package", cfg.Project.Package); err != nil {
		return err
	}
	return validateRelativeDir("project.tests", cfg.Project.Tests)
}

func validateRelativeDir(field, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if filepath.IsAbs(dir) {
		return &ValidationError{Field: field, Message: "must be relative to the project root"}
	}
	clean := filepath.Clean(dir)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return &ValidationError{Field: field, Message: "must not escape the project root"}
	}
	return nil
}

func validateTrigger(cfg *Config) error {
	for i, event := range cfg.Trigger.Events {
		if !contains(validEvents, event) {
			return &ValidationError{
				Field:   fmt.Sprintf("trigger.events[%d]", i),
				Message: fmt.Sprintf("must be one of %s, got %q", strings.Join(validEvents, ", "), event),
			}
		}
	}
	for i, branch := range cfg.Trigger.Branches {
		if strings.TrimSpace(branch) == "" {
			return &ValidationError{Field: fmt.Sprintf("trigger.branches[%d]", i), Message: "must not be empty"}
		}
	}
	return nil
}

func validateCheckout(cfg *Config) error {
	c := cfg.Checkout
	if !contains(validCheckoutModes, c.Mode) {
		return &ValidationError{Field: "checkout.mode", Message: `must be "local" or "clone"`}
	}
	if c.Mode == "clone" && c.URL == "" {
		return &ValidationError{Field: "checkout.url", Message: `is required when mode is "clone"`}
	}
	if c.Depth < 0 {
		return &ValidationError{Field: "checkout.depth", Message: "must not be negative"}
	}
	return nil
}

func validateEnvironment(cfg *Config) error {
	e := cfg.Environment
	if !contains(validBackends, e.Backend) {
		return &ValidationError{Field: "environment.backend", Message: `must be "host" or "container"`}
	}
	if !pythonVersionPattern.MatchString(e.Python) {
		return &ValidationError{
			Field:   "environment.python",
			Message: fmt.Sprintf("must be a version like \"3.7\" or \"3.7.17\", got %q", e.Python),
		}
	}
	return nil
}

func validateStages(cfg *Config) error {
	for _, name := range sortedKeys(cfg.Stages) {
		stage := cfg.Stages[name]
		if !contains(ConfigurableStages, name) {
			return &ValidationError{
				Field:   fmt.Sprintf("stages.%s", name),
				Message: fmt.Sprintf("unknown stage; valid stages: %s", strings.Join(ConfigurableStages, ", ")),
			}
		}
		if name == "install" && (stage.Disabled || (stage.Run != nil && len(stage.Run) == 0)) {
			return &ValidationError{
				Field:   "stages.install",
				Message: "cannot be disabled; every check runs against the installed package",
			}
		}
		for i, argv := range stage.Run {
			if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("stages.%s.run[%d]", name, i),
					Message: "must name a program",
				}
			}
		}
		if stage.Timeout != "" {
			if _, err := parsePositiveDuration(stage.Timeout); err != nil {
				return &ValidationError{Field: fmt.Sprintf("stages.%s.timeout", name), Message: err.Error()}
			}
		}
	}
	return nil
}

func validateLint(cfg *Config) error {
	threshold := cfg.Threshold()
	if threshold < 0 || threshold > 10 {
		return &ValidationError{
			Field:   "lint.threshold",
			Message: fmt.Sprintf("must be between 0 and 10, got %g", threshold),
		}
	}
	return nil
}

func validateUpload(cfg *Config) error {
	u := cfg.Coverage.Upload
	if !contains(validUploadBackends, u.Backend) {
		return &ValidationError{
			Field:   "coverage.upload.backend",
			Message: fmt.Sprintf("must be one of %s, got %q", strings.Join(validUploadBackends, ", "), u.Backend),
		}
	}
	switch u.Backend {
	case "http":
		if u.Endpoint == "" {
			return &ValidationError{Field: "coverage.upload.endpoint", Message: `is required for backend "http"`}
		}
		if !strings.HasPrefix(u.Endpoint, "http://") && !strings.HasPrefix(u.Endpoint, "https://") {
			return &ValidationError{Field: "coverage.upload.endpoint", Message: "must be an http(s) URL"}
		}
	case "minio":
		if u.Endpoint == "" {
			return &ValidationError{Field: "coverage.upload.endpoint", Message: `is required for backend "minio"`}
		}
		if strings.Contains(u.Endpoint, "://") {
			return &ValidationError{Field: "coverage.upload.endpoint", Message: "must not include a scheme for backend \"minio\""}
		}
		fallthrough
	case "s3":
		if u.Bucket == "" {
			return &ValidationError{Field: "coverage.upload.bucket", Message: fmt.Sprintf("is required for backend %q", u.Backend)}
		}
	}
	if u.Timeout != "" {
		if _, err := parsePositiveDuration(u.Timeout); err != nil {
			return &ValidationError{Field: "coverage.upload.timeout", Message: err.Error()}
		}
	}
	return nil
}

// ValidateProjectName checks if a project name is valid.
func ValidateProjectName(name string) error {
	if name == "" {
		return &ValidationError{Field: "project.name", Message: "is required"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "project.name", Message: "must be 128 characters or less"}
	}
	if !projectNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "project.name",
			Message: "must match pattern ^[a-z][a-z0-9]*([-_][a-z0-9]+)*$",
		}
	}
	return nil
}

// ParseTimeout parses an optional duration field; empty means no timeout.
func ParseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return parsePositiveDuration(s)
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
