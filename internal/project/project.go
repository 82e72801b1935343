package project

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/schema"
)

// Project represents a loaded qgate project.
type Project struct {
	Root     string
	Config   *config.Config
	Warnings []string
}

// LoadProject finds and loads a project from the current directory.
func LoadProject() (*Project, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, errors.Config(err.Error())
	}
	return LoadProjectFrom(root)
}

// LoadProjectFrom loads a project from a specified root directory.
// The raw file is checked against the embedded JSON schema before
// defaults and semantic validation are applied.
func LoadProjectFrom(root string) (*Project, error) {
	configPath := filepath.Join(root, ConfigDirName, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Configf("failed to read configuration: %v", err)
	}

	if err := schema.ValidateConfig(data); err != nil {
		return nil, errors.Configf("%s: %v", configPath, err)
	}

	cfg, warnings, err := config.ParseAndValidate(data, os.Getenv)
	if err != nil {
		return nil, errors.Wrap(asConfigError(err), "failed to load configuration")
	}

	return &Project{
		Root:     root,
		Config:   cfg,
		Warnings: warnings,
	}, nil
}

// asConfigError classifies errors from the config package as configuration errors.
func asConfigError(err error) error {
	var ve *config.ValidationError
	if stderrors.As(err, &ve) {
		verr := errors.Validation(ve.Field, ve.Message)
		verr.Cause = err
		return verr
	}
	if errors.KindOf(err) == errors.KindRuntime {
		return &errors.GateError{Kind: errors.KindConfig, Message: err.Error(), Cause: err}
	}
	return err
}

// ConfigPath returns the full path to the project configuration file.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, ConfigDirName, ConfigFileName)
}

// PackageDirectory returns the absolute path to the package source directory.
func (p *Project) PackageDirectory() string {
	return filepath.Join(p.Root, p.Config.Project.Package)
}

// TestsDirectory returns the absolute path to the tests directory.
func (p *Project) TestsDirectory() string {
	return filepath.Join(p.Root, p.Config.Project.Tests)
}

// String describes the project for diagnostics.
func (p *Project) String() string {
	return fmt.Sprintf("%s (%s)", p.Config.Project.Name, p.Root)
}
