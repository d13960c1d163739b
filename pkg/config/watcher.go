package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces rapid write events from editors that save in
// multiple steps.
const reloadDelay = 500 * time.Millisecond

// Watcher reloads the configuration file on change and hands the fresh
// config to a callback. Reloads that fail validation are logged and
// dropped; the previous config stays in effect.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewWatcher creates a config file watcher.
func NewWatcher(path string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:   path,
		logger: logger.With().Str("component", "config-watcher").Logger(),
	}
}

// Watch starts watching the config file and triggers reloadFn on change.
// It returns once the watch is established; events are processed in the
// background until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context, reloadFn func(*Config) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.watcher = watcher
	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	go w.processEvents(ctx, reloadFn)

	w.logger.Info().Str("path", w.path).Msg("Started watching config file")
	return nil
}

// processEvents processes file system events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context, reloadFn func(*Config) error) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Config file changed")

				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, func() {
					if err := w.reload(reloadFn); err != nil {
						w.logger.Error().Err(err).Msg("Failed to reload config")
					}
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload re-reads the config file and applies it via the callback.
func (w *Watcher) reload(reloadFn func(*Config) error) error {
	cfg, err := Load(w.path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if err := reloadFn(cfg); err != nil {
		return fmt.Errorf("failed to apply reloaded config: %w", err)
	}

	w.logger.Info().Msg("Config reloaded successfully")
	return nil
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
