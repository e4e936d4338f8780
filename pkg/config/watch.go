package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/egnor/video-play/internal/logger"
)

// Watch watches the config file and hot-reloads the logging level and
// format when it changes. Other settings require a restart and are left
// untouched.
//
// The returned stop function closes the watcher. Watching a missing file
// is an error; use it only after a successful Load with an explicit path.
func Watch(configPath string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops
	// direct file watches.
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory %q: %w", dir, err)
	}

	target := filepath.Clean(configPath)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					logger.Warn("Ignoring config change", logger.KeyPath, configPath,
						logger.KeyError, err)
					continue
				}
				logger.SetLevel(cfg.Logging.Level)
				logger.SetFormat(cfg.Logging.Format)
				logger.Info("Reloaded logging config", "level", cfg.Logging.Level,
					"format", cfg.Logging.Format)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", logger.KeyError, err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
