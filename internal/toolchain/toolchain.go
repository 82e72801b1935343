// Package toolchain provides the stage command table and its built-in presets.
package toolchain

import "sort"

// Configurable stage names. Checkout, provisioning and upload are driven by
// qgate itself and have no command table entry.
const (
	StageInstall     = "install"
	StageFormat      = "format"
	StageImportOrder = "import-order"
	StageLint        = "lint"
	StageLintScore   = "lint-score"
	StageTypeCheck   = "typecheck"
	StageTest        = "test"
)

// Stages lists the configurable stages in execution order.
var Stages = []string{
	StageInstall,
	StageFormat,
	StageImportOrder,
	StageLint,
	StageLintScore,
	StageTypeCheck,
	StageTest,
}

// Toolchain maps each configurable stage to the argv lists it runs.
type Toolchain struct {
	Name     string
	Commands map[string][][]string
}

// GetCommand returns the argv lists for a stage.
func (t *Toolchain) GetCommand(stage string) ([][]string, bool) {
	cmds, ok := t.Commands[stage]
	return cmds, ok
}

// pipUpgrade is the first python install command; it is dropped when install.upgrade_pip is false.
var pipUpgrade = []string{"${python}", "-m", "pip", "install", "--upgrade", "pip"}

// checks are shared by every preset.
var checks = map[string][][]string{
	StageFormat:      {{"black", "--check", "${package}", "${tests}"}},
	StageImportOrder: {{"isort", "--check-only", "${package}", "${tests}"}},
	StageLint:        {{"flake8", "${package}", "${tests}"}},
	StageLintScore:   {{"pylint", "${package}", "--fail-under=${threshold}"}},
	StageTypeCheck:   {{"mypy", "${package}"}},
	StageTest:        {{"pytest", "--cov=${package}", "--cov-report=xml", "--cov-report=term", "${tests}"}},
}

// builtinToolchains holds the presets keyed by name.
var builtinToolchains = map[string]*Toolchain{
	"python": withChecks("python", [][]string{
		pipUpgrade,
		{"${python}", "-m", "pip", "install", ".[${extras}]"},
	}),
	"uv": withChecks("uv", [][]string{
		{"uv", "pip", "install", "--python", "${python}", ".[${extras}]"},
	}),
}

func withChecks(name string, install [][]string) *Toolchain {
	cmds := map[string][][]string{StageInstall: install}
	for stage, argv := range checks {
		cmds[stage] = argv
	}
	return &Toolchain{Name: name, Commands: cmds}
}

// Get retrieves a built-in toolchain by name.
func Get(name string) (*Toolchain, bool) {
	tc, ok := builtinToolchains[name]
	return tc, ok
}

// List returns the sorted names of all built-in toolchains.
func List() []string {
	names := make([]string, 0, len(builtinToolchains))
	for name := range builtinToolchains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
