package shared

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig calls onChange with the reloaded configuration whenever the file at path is written, until ctx
// is done. The parent directory is watched so editors that replace the file on save are picked up. A file that
// fails to load or validate is logged and skipped.
func WatchConfig(ctx context.Context, path string, logger *log.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = DiscardLogger()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			config, err := LoadConfig(target)
			if err != nil {
				logger.Warn("ignoring config change", "path", target, "error", err)
				continue
			}
			logger.Debug("config reloaded", "path", target)
			onChange(config)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
