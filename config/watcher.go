package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"kwadrop/logger"
)

// Watch reloads the configuration whenever the .env file changes, so settings
// like the log level or resolver URL can be adjusted without a restart.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context) error {
	envPath, err := filepath.Abs(".env")
	if err != nil {
		return fmt.Errorf("failed to resolve .env path: %w", err)
	}
	if _, err := os.Stat(envPath); err != nil {
		// Nothing to watch, configuration came from the environment only.
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace .env atomically, which drops
	// the watch on the file itself.
	if err := watcher.Add(filepath.Dir(envPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != envPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Overload so edited values win over the stale process env
			// set by the initial Load.
			if err := godotenv.Overload(envPath); err != nil {
				logger.Warn("failed to re-read .env", logger.ErrorField(err))
				continue
			}
			Load()
			logger.Info("configuration reloaded", logger.String("path", envPath))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", logger.ErrorField(err))
		}
	}
}
