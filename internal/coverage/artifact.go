// Package coverage locates the coverage artifact produced by the test stage,
// summarizes it, and forwards it to a reporting backend.
package coverage

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AndreyAkinshin/qgate/internal/workspace"
)

// Default artifact names, in order of preference.
const (
	XMLReport = "coverage.xml"
	DataFile  = ".coverage"
)

// Formats.
const (
	FormatCobertura = "cobertura"
	FormatData      = "coverage-data"
)

// Artifact is a coverage report read from the working tree.
type Artifact struct {
	Path        string // Tree-relative path
	Format      string
	ContentType string
	Data        []byte
	Summary     *Summary // Set for Cobertura reports
}

// Name returns the artifact's base file name.
func (a *Artifact) Name() string {
	for i := len(a.Path) - 1; i >= 0; i-- {
		if a.Path[i] == '/' || a.Path[i] == '\\' {
			return a.Path[i+1:]
		}
	}
	return a.Path
}

// Candidates returns the paths searched for an artifact. A configured report
// path is the only candidate.
func Candidates(report string) []string {
	if report != "" {
		return []string{report}
	}
	return []string{XMLReport, DataFile}
}

// Discover finds and loads the coverage artifact. It returns nil, nil when
// no artifact exists.
func Discover(tree *workspace.Tree, report string) (*Artifact, error) {
	path, found, err := tree.FindFirst(Candidates(report)...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	data, err := tree.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewArtifact(path, data)
}

// NewArtifact classifies raw artifact bytes.
func NewArtifact(path string, data []byte) (*Artifact, error) {
	mt := mimetype.Detect(data)
	a := &Artifact{
		Path:        path,
		Data:        data,
		ContentType: mt.String(),
		Format:      FormatData,
	}

	if mt.Is("text/xml") || strings.HasSuffix(path, ".xml") {
		summary, err := ParseCobertura(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		a.Format = FormatCobertura
		a.Summary = summary
	}
	return a, nil
}
