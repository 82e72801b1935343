package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// Set is the group of recorders configured for a project.
type Set struct {
	Recorders []Recorder
	closers   []func() error
}

// Open builds the recorders named by cfg. A relative history file is
// resolved against root. A nil or empty cfg yields an empty set.
func Open(ctx context.Context, cfg *config.HistoryConfig, root string, getenv func(string) string) (*Set, error) {
	set := &Set{}
	if cfg == nil {
		return set, nil
	}

	if cfg.File != "" {
		set.Recorders = append(set.Recorders, &FileRecorder{Path: FilePath(root, cfg.File)})
	}

	if cfg.DatabaseURLEnv != "" {
		url := getenv(cfg.DatabaseURLEnv)
		if url == "" {
			return set, fmt.Errorf("history.database_url_env: %s is not set", cfg.DatabaseURLEnv)
		}
		pg, err := OpenPostgres(ctx, url)
		if err != nil {
			return set, fmt.Errorf("history database: %w", err)
		}
		set.Recorders = append(set.Recorders, pg)
		set.closers = append(set.closers, pg.Close)
	}
	return set, nil
}

// FilePath resolves a configured history file against the project root.
func FilePath(root, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(root, file)
}

// Record hands rec to every recorder. Failures are collected, not fatal.
func (s *Set) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range s.Recorders {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s history: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ErrNoReader is returned by Recent when no configured recorder can list runs.
var ErrNoReader = errors.New("no readable history configured")

// Recent lists runs from the last configured recorder that can read them, so
// a database takes precedence over the history file.
func (s *Set) Recent(ctx context.Context, project string, limit int) ([]Record, string, error) {
	for i := len(s.Recorders) - 1; i >= 0; i-- {
		if r, ok := s.Recorders[i].(Reader); ok {
			records, err := r.Recent(ctx, project, limit)
			return records, s.Recorders[i].Name(), err
		}
	}
	return nil, "", ErrNoReader
}

// Close releases recorder resources.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
