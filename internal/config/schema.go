// Package config provides loading and validation for .qgate/config.json.
package config

// Config represents the complete .qgate/config.json configuration.
type Config struct {
	Schema      string                 `json:"$schema,omitempty"`
	Project     ProjectConfig          `json:"project"`
	Trigger     *TriggerConfig         `json:"trigger,omitempty"`
	Checkout    *CheckoutConfig        `json:"checkout,omitempty"`
	Environment *EnvironmentConfig     `json:"environment,omitempty"`
	Install     *InstallConfig         `json:"install,omitempty"`
	Toolchain   string                 `json:"toolchain,omitempty"`
	Stages      map[string]StageConfig `json:"stages,omitempty"`
	Lint        *LintConfig            `json:"lint,omitempty"`
	Coverage    *CoverageConfig        `json:"coverage,omitempty"`
	History     *HistoryConfig         `json:"history,omitempty"`
}

// ProjectConfig describes the package under test.
type ProjectConfig struct {
	Name    string `json:"name"`
	Package string `json:"package,omitempty"` // Package source directory, relative to the root
	Tests   string `json:"tests,omitempty"`   // Tests directory, relative to the root
}

// TriggerConfig is the declarative event filter deciding whether a run happens.
type TriggerConfig struct {
	Events   []string `json:"events,omitempty"`
	Branches []string `json:"branches,omitempty"`
}

// CheckoutConfig configures how the revision under test is obtained.
type CheckoutConfig struct {
	Mode  string `json:"mode,omitempty"` // "local" or "clone"
	URL   string `json:"url,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

// EnvironmentConfig pins the interpreter runtime.
type EnvironmentConfig struct {
	Backend     string            `json:"backend,omitempty"` // "host" or "container"
	Python      string            `json:"python,omitempty"`
	Interpreter string            `json:"interpreter,omitempty"`
	Image       string            `json:"image,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// InstallConfig configures dependency installation.
type InstallConfig struct {
	Extras     []string `json:"extras,omitempty"`
	UpgradePip *bool    `json:"upgrade_pip,omitempty"`
}

// StageConfig overrides the built-in command table for one stage.
// Run holds argv lists executed in order; Disabled turns the stage off.
type StageConfig struct {
	Run      [][]string `json:"run,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
	Timeout  string     `json:"timeout,omitempty"`
}

// LintConfig configures the lint score threshold.
type LintConfig struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

// CoverageConfig configures the coverage artifact and its upload.
type CoverageConfig struct {
	Report string        `json:"report,omitempty"`
	Upload *UploadConfig `json:"upload,omitempty"`
}

// UploadConfig selects and configures the coverage reporting integration.
type UploadConfig struct {
	Backend      string `json:"backend,omitempty"` // "none", "http", "minio", "s3"
	Endpoint     string `json:"endpoint,omitempty"`
	Bucket       string `json:"bucket,omitempty"`
	Prefix       string `json:"prefix,omitempty"`
	Region       string `json:"region,omitempty"`
	UseSSL       bool   `json:"use_ssl,omitempty"`
	Service      string `json:"service,omitempty"`
	TokenEnv     string `json:"token_env,omitempty"`
	TokenSecret  string `json:"token_secret,omitempty"`
	AccessKeyEnv string `json:"access_key_env,omitempty"`
	SecretKeyEnv string `json:"secret_key_env,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
}

// HistoryConfig configures where run records are stored.
type HistoryConfig struct {
	File           string `json:"file,omitempty"`
	DatabaseURLEnv string `json:"database_url_env,omitempty"`
}
