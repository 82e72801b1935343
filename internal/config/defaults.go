package config

// Default configuration values.
const (
	DefaultTestsDirectory = "tests"
	DefaultToolchain      = "python"
	DefaultCheckoutMode   = "local"
	DefaultBackend        = "host"
	DefaultPython         = "3.7"
	DefaultLintThreshold  = 9.0
	DefaultUploadBackend  = "none"
	DefaultUploadService  = "qgate"
)

// Trigger defaults: push and pull_request targeting main.
var (
	DefaultTriggerEvents   = []string{"push", "pull_request"}
	DefaultTriggerBranches = []string{"main"}
	DefaultExtras          = []string{"dev", "test"}
)

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyProjectDefaults(cfg)
	applyTriggerDefaults(cfg)
	applyCheckoutDefaults(cfg)
	applyEnvironmentDefaults(cfg)
	applyInstallDefaults(cfg)
	applyLintDefaults(cfg)
	applyCoverageDefaults(cfg)
	if cfg.History == nil {
		cfg.History = &HistoryConfig{}
	}
}

func applyProjectDefaults(cfg *Config) {
	if cfg.Project.Package == "" {
		// Python packages use underscores where project names use hyphens.
		cfg.Project.Package = packageFromName(cfg.Project.Name)
	}
	if cfg.Project.Tests == "" {
		cfg.Project.Tests = DefaultTestsDirectory
	}
}

func applyTriggerDefaults(cfg *Config) {
	if cfg.Trigger == nil {
		cfg.Trigger = &TriggerConfig{}
	}
	if len(cfg.Trigger.Events) == 0 {
		cfg.Trigger.Events = append([]string(nil), DefaultTriggerEvents...)
	}
	if len(cfg.Trigger.Branches) == 0 {
		cfg.Trigger.Branches = append([]string(nil), DefaultTriggerBranches...)
	}
}

func applyCheckoutDefaults(cfg *Config) {
	if cfg.Checkout == nil {
		cfg.Checkout = &CheckoutConfig{}
	}
	if cfg.Checkout.Mode == "" {
		cfg.Checkout.Mode = DefaultCheckoutMode
	}
}

func applyEnvironmentDefaults(cfg *Config) {
	if cfg.Environment == nil {
		cfg.Environment = &EnvironmentConfig{}
	}
	if cfg.Environment.Backend == "" {
		cfg.Environment.Backend = DefaultBackend
	}
	if cfg.Environment.Python == "" {
		cfg.Environment.Python = DefaultPython
	}
}

func applyInstallDefaults(cfg *Config) {
	if cfg.Install == nil {
		cfg.Install = &InstallConfig{}
	}
	if cfg.Install.Extras == nil {
		cfg.Install.Extras = append([]string(nil), DefaultExtras...)
	}
	if cfg.Install.UpgradePip == nil {
		upgrade := true
		cfg.Install.UpgradePip = &upgrade
	}
}

func applyLintDefaults(cfg *Config) {
	if cfg.Lint == nil {
		cfg.Lint = &LintConfig{}
	}
	if cfg.Lint.Threshold == nil {
		threshold := DefaultLintThreshold
		cfg.Lint.Threshold = &threshold
	}
}

func applyCoverageDefaults(cfg *Config) {
	if cfg.Coverage == nil {
		cfg.Coverage = &CoverageConfig{}
	}
	if cfg.Coverage.Upload == nil {
		cfg.Coverage.Upload = &UploadConfig{}
	}
	if cfg.Coverage.Upload.Backend == "" {
		cfg.Coverage.Upload.Backend = DefaultUploadBackend
	}
	if cfg.Coverage.Upload.Service == "" {
		cfg.Coverage.Upload.Service = DefaultUploadService
	}
}

func packageFromName(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}
