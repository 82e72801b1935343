package config

// Environment variables that override configuration values.
const (
	EnvPython  = "QGATE_PYTHON"
	EnvBackend = "QGATE_BACKEND"
)

// ParseAndValidate parses a configuration file, applies defaults and
// environment overrides from getenv, validates, and returns warnings.
func ParseAndValidate(data []byte, getenv func(string) string) (*Config, []string, error) {
	cfg, unknownWarnings, err := LoadWithWarnings(data)
	if err != nil {
		return nil, nil, err
	}

	applyDefaults(cfg)
	applyEnv(cfg, getenv)

	validationWarnings, err := Validate(cfg)

	allWarnings := make([]string, 0, len(unknownWarnings)+len(validationWarnings))
	allWarnings = append(allWarnings, unknownWarnings...)
	allWarnings = append(allWarnings, validationWarnings...)

	if err != nil {
		return nil, allWarnings, err
	}

	return cfg, allWarnings, nil
}

// applyEnv applies QGATE_* overrides on top of file values.
func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := getenv(EnvPython); v != "" {
		cfg.Environment.Python = v
	}
	if v := getenv(EnvBackend); v != "" {
		cfg.Environment.Backend = v
	}
}

// Threshold returns the configured lint score threshold.
func (c *Config) Threshold() float64 {
	if c.Lint == nil || c.Lint.Threshold == nil {
		return DefaultLintThreshold
	}
	return *c.Lint.Threshold
}
