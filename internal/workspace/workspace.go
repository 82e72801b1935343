// Package workspace inspects a checked-out working tree.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Tree is a working tree rooted at Root.
type Tree struct {
	fs   billy.Filesystem
	root string
}

// Open returns a tree over the host directory root.
func Open(root string) *Tree {
	return &Tree{fs: osfs.New(root), root: root}
}

// New returns a tree over an arbitrary filesystem; root is used only for display paths.
func New(fs billy.Filesystem, root string) *Tree {
	return &Tree{fs: fs, root: root}
}

// Root returns the tree's root directory.
func (t *Tree) Root() string {
	return t.root
}

// Path returns the host path of a tree-relative path.
func (t *Tree) Path(rel string) string {
	return filepath.Join(t.root, rel)
}

// Exists reports whether rel exists.
func (t *Tree) Exists(rel string) (bool, error) {
	_, err := t.fs.Stat(rel)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", rel, err)
	}
}

// RequireDirs returns an error naming the first of dirs that is not a directory.
func (t *Tree) RequireDirs(dirs ...string) error {
	for _, dir := range dirs {
		info, err := t.fs.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("directory %q not found in %s", dir, t.root)
			}
			return fmt.Errorf("stat %q: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", dir)
		}
	}
	return nil
}

// ReadFile reads a tree-relative file.
func (t *Tree) ReadFile(rel string) ([]byte, error) {
	data, err := util.ReadFile(t.fs, rel)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rel, err)
	}
	return data, nil
}

// WriteFile writes a tree-relative file, creating parent directories.
func (t *Tree) WriteFile(rel string, data []byte) error {
	if dir := filepath.Dir(rel); dir != "." {
		if err := t.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %q: %w", dir, err)
		}
	}
	if err := util.WriteFile(t.fs, rel, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}

// FindFirst returns the first of candidates that exists as a regular file.
func (t *Tree) FindFirst(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		info, err := t.fs.Stat(c)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", false, fmt.Errorf("stat %q: %w", c, err)
		}
		if !info.IsDir() {
			return c, true, nil
		}
	}
	return "", false, nil
}

// Remove deletes the given paths if present. Missing paths are ignored.
func (t *Tree) Remove(paths ...string) error {
	for _, p := range paths {
		if err := util.RemoveAll(t.fs, p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", p, err)
		}
	}
	return nil
}
