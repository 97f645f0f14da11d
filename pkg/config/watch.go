package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDelay debounces bursts of writes to a watched file.
const DefaultWatchDelay = 300 * time.Millisecond

// Watch calls onChange after path is written, created or renamed into place.
// The parent directory is watched so editors that replace the file are seen.
// Watching stops when ctx is done.
func Watch(ctx context.Context, path string, delay time.Duration, logger zerolog.Logger, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	logger = logger.With().Str("component", "config-watcher").Str("path", abs).Logger()
	logger.Info().Msg("watching configuration")

	go func() {
		defer watcher.Close()

		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				logger.Debug().Str("op", event.Op.String()).Msg("configuration changed")

				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(delay, func() {
					if ctx.Err() == nil {
						onChange()
					}
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error().Err(err).Msg("watcher error")
			}
		}
	}()

	return nil
}
