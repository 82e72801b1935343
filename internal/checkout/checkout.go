// Package checkout obtains the exact revision a run operates on.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Modes.
const (
	ModeLocal = "local"
	ModeClone = "clone"
)

// DefaultRevision is checked out when no revision is requested.
const DefaultRevision = "HEAD"

// ErrEmptyURL is returned when clone mode has no repository URL.
var ErrEmptyURL = errors.New("checkout.url is required in clone mode")

// Options configures a checkout.
type Options struct {
	Mode string
	// Root is the project root used in local mode.
	Root string
	URL  string
	// Ref is a branch, tag, full ref or commit hash; empty means HEAD.
	Ref   string
	Depth int
	RunID string
	// CacheDir overrides the directory that holds per-run clones.
	CacheDir string
}

// Workspace is a working tree at a resolved revision.
type Workspace struct {
	Root     string
	Revision string
	Ref      string
	// Cloned reports whether Root is a per-run clone removed by Close.
	Cloned bool

	// restore puts a local repository back on the HEAD it had before the run.
	restore func() error
}

// Close removes a per-run clone, or returns a local repository to its
// original HEAD when the run checked out another revision.
func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	if w.restore != nil {
		restore := w.restore
		w.restore = nil
		return restore()
	}
	if !w.Cloned {
		return nil
	}
	return os.RemoveAll(w.Root)
}

// ShortRevision returns the abbreviated commit hash.
func (w *Workspace) ShortRevision() string {
	if len(w.Revision) > 7 {
		return w.Revision[:7]
	}
	return w.Revision
}

// RunsDir returns the directory holding per-run clones.
func RunsDir(cacheDir string) string {
	if cacheDir == "" {
		cacheDir = xdg.CacheHome
	}
	return filepath.Join(cacheDir, "qgate", "runs")
}

// Checkout produces a workspace according to opts.Mode.
func Checkout(ctx context.Context, opts Options) (*Workspace, error) {
	switch opts.Mode {
	case ModeLocal, "":
		return checkoutLocal(ctx, opts)
	case ModeClone:
		return checkoutClone(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown checkout mode %q", opts.Mode)
	}
}

func checkoutLocal(ctx context.Context, opts Options) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpenWithOptions(opts.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", opts.Root, err)
	}

	ref := refOrHead(opts.Ref)
	hash, err := resolve(repo, ref)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	ws := &Workspace{Root: opts.Root, Revision: hash.String(), Ref: ref}
	if head.Hash() != hash {
		if err := checkoutHash(repo, hash); err != nil {
			return nil, err
		}
		ws.restore = func() error { return restoreHead(repo, head) }
	}

	return ws, nil
}

func checkoutClone(ctx context.Context, opts Options) (*Workspace, error) {
	if opts.URL == "" {
		return nil, ErrEmptyURL
	}
	if opts.RunID == "" {
		return nil, errors.New("run ID is required for clone mode")
	}

	dir := filepath.Join(RunsDir(opts.CacheDir), opts.RunID)
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("create runs directory: %w", err)
	}

	ref := refOrHead(opts.Ref)
	cloneOpts := &git.CloneOptions{
		URL:  opts.URL,
		Tags: git.NoTags,
	}
	if name := referenceName(ref); name != "" {
		cloneOpts.ReferenceName = name
		cloneOpts.SingleBranch = opts.Depth > 0
		cloneOpts.Depth = opts.Depth
	} else if !plumbing.IsHash(ref) {
		cloneOpts.Depth = opts.Depth
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("clone %s: %w", opts.URL, err)
	}

	ws := &Workspace{Root: dir, Ref: ref, Cloned: true}

	hash, err := resolve(repo, ref)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	if head.Hash() != hash {
		if err := checkoutHash(repo, hash); err != nil {
			_ = ws.Close()
			return nil, err
		}
	}

	ws.Revision = hash.String()
	return ws, nil
}

// referenceName maps a branch, tag or full ref to a reference name for cloning.
// HEAD and commit hashes yield "".
func referenceName(ref string) plumbing.ReferenceName {
	switch {
	case ref == DefaultRevision || plumbing.IsHash(ref):
		return ""
	case strings.HasPrefix(ref, "refs/heads/") || strings.HasPrefix(ref, "refs/tags/"):
		return plumbing.ReferenceName(ref)
	case strings.HasPrefix(ref, "refs/"):
		return ""
	default:
		return plumbing.NewBranchReferenceName(ref)
	}
}

func resolve(repo *git.Repository, ref string) (plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %q: %w", ref, err)
	}
	return *hash, nil
}

func checkoutHash(repo *git.Repository, hash plumbing.Hash) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		return fmt.Errorf("checkout %s: %w", hash, err)
	}
	return nil
}

// restoreHead re-attaches the branch head pointed at, or detaches at its
// commit when head was already detached.
func restoreHead(repo *git.Repository, head *plumbing.Reference) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	opts := &git.CheckoutOptions{Hash: head.Hash()}
	if head.Name().IsBranch() {
		opts = &git.CheckoutOptions{Branch: head.Name()}
	}
	if err := wt.Checkout(opts); err != nil {
		return fmt.Errorf("restore %s: %w", head.Name().Short(), err)
	}
	return nil
}

func refOrHead(ref string) string {
	if ref == "" {
		return DefaultRevision
	}
	return ref
}
