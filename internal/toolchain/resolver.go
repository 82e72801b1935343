package toolchain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// StagePlan is the resolved command list for one configurable stage.
// Commands still contain ${var} references; they are interpolated at run
// time once the interpreter path is known.
type StagePlan struct {
	Stage    string
	Commands [][]string
	Disabled bool
	Timeout  time.Duration
}

// Resolver combines a preset with configuration overrides.
type Resolver struct {
	toolchain *Toolchain
	cfg       *config.Config
	root      string
}

// NewResolver picks the toolchain for a checked-out tree. The configured
// toolchain wins; otherwise it is detected from marker files in root, falling
// back to the python preset.
func NewResolver(cfg *config.Config, root string) (*Resolver, error) {
	name := cfg.Toolchain
	if name == "" {
		if detected, ok := Detect(root); ok {
			name = detected
		} else {
			name = config.DefaultToolchain
		}
	}

	tc, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown toolchain: %q (available: %s)", name, strings.Join(List(), ", "))
	}

	return &Resolver{toolchain: tc, cfg: cfg, root: root}, nil
}

// Toolchain returns the selected preset.
func (r *Resolver) Toolchain() *Toolchain {
	return r.toolchain
}

// Plan resolves every configurable stage in execution order.
func (r *Resolver) Plan() ([]StagePlan, error) {
	plans := make([]StagePlan, 0, len(Stages))
	for _, stage := range Stages {
		p, err := r.Resolve(stage)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Resolve returns the plan for a single stage.
// A configured run list replaces the preset; an explicitly empty list disables the stage.
func (r *Resolver) Resolve(stage string) (StagePlan, error) {
	preset, ok := r.toolchain.GetCommand(stage)
	if !ok {
		return StagePlan{}, fmt.Errorf("stage %q not defined for toolchain %q", stage, r.toolchain.Name)
	}

	plan := StagePlan{Stage: stage, Commands: copyArgvs(preset)}

	if stage == StageInstall && r.cfg.Install != nil && r.cfg.Install.UpgradePip != nil && !*r.cfg.Install.UpgradePip {
		plan.Commands = dropArgv(plan.Commands, pipUpgrade)
	}

	if sc, ok := r.cfg.Stages[stage]; ok {
		if sc.Run != nil {
			plan.Commands = copyArgvs(sc.Run)
		}
		plan.Disabled = sc.Disabled || (sc.Run != nil && len(sc.Run) == 0)
		if plan.Disabled && stage == StageInstall {
			return StagePlan{}, fmt.Errorf("stages.%s: cannot be disabled", stage)
		}
		timeout, err := config.ParseTimeout(sc.Timeout)
		if err != nil {
			return StagePlan{}, fmt.Errorf("stages.%s.timeout: %w", stage, err)
		}
		plan.Timeout = timeout
	}

	return plan, nil
}

// Vars returns the interpolation variables for a run using the given interpreter.
func (r *Resolver) Vars(python string) map[string]string {
	var extras []string
	if r.cfg.Install != nil {
		extras = r.cfg.Install.Extras
	}
	return map[string]string{
		"python":    python,
		"package":   r.cfg.Project.Package,
		"tests":     r.cfg.Project.Tests,
		"threshold": FormatThreshold(r.cfg.Threshold()),
		"extras":    strings.Join(extras, ","),
		"root":      r.root,
	}
}

// FormatThreshold renders a lint threshold, keeping one decimal for whole numbers.
func FormatThreshold(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func copyArgvs(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, argv := range in {
		out[i] = append([]string(nil), argv...)
	}
	return out
}

func dropArgv(cmds [][]string, drop []string) [][]string {
	out := cmds[:0]
	for _, argv := range cmds {
		if !equalArgv(argv, drop) {
			out = append(out, argv)
		}
	}
	return out
}

func equalArgv(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
