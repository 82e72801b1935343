package toolchain

import (
	"os"
	"path/filepath"
)

// MarkerFile defines a file and the toolchain it implies.
type MarkerFile struct {
	Pattern   string
	Toolchain string
}

// markerFiles defines the auto-detection order. First match wins.
var markerFiles = []MarkerFile{
	{"uv.lock", "uv"},
	{"pyproject.toml", "python"},
	{"setup.cfg", "python"},
	{"setup.py", "python"},
}

// Detect attempts to auto-detect the toolchain for a checked-out tree.
// Returns the toolchain name and true if detected, empty string and false otherwise.
func Detect(dir string) (string, bool) {
	for _, marker := range markerFiles {
		if _, err := os.Stat(filepath.Join(dir, marker.Pattern)); err == nil {
			return marker.Toolchain, true
		}
	}
	return "", false
}
