package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/tql"
)

// debounce coalesces the bursts of events editors emit on save.
const debounce = 100 * time.Millisecond

// Watch calls fn with the new configuration each time the file at path is
// written. Invalid files are logged to logger, or slog.Default() when nil,
// and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer w.Close()
	// Watch the directory: editors replace the file on save.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watching %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if name, err := filepath.Abs(ev.Name); err == nil && name == abs {
					timer.Reset(debounce)
				}
			}
		case <-timer.C:
			c, err := Load(abs)
			if err != nil {
				logger.Warn("config: ignoring invalid configuration", "path", abs, "error", err)
				continue
			}
			fn(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config: watch error", "path", abs, "error", err)
		}
	}
}

// Reload applies the runtime options of the configuration file at path to
// db every time the file changes. It logs to the logger of db and blocks
// until ctx is done.
func Reload(ctx context.Context, path string, db *tql.DB) error {
	return Watch(ctx, path, db.Logger(), func(c *Config) {
		db.Apply(c.Options()...)
	})
}
