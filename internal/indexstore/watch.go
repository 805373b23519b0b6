package indexstore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the index whenever its file is written or created. It
// watches the parent directory so atomic rename-into-place builds are seen,
// and coalesces bursts of events within the debounce window. Watch blocks
// until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	if s.opts.Path == "" {
		return fmt.Errorf("watching index: no path configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.opts.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	s.logger.Info("watching search index for changes", "debounce", s.opts.Debounce)

	fire := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.logger.Debug("index file event", "op", event.Op.String())
			if debounce == nil {
				debounce = time.AfterFunc(s.opts.Debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(s.opts.Debounce)
			}
		case <-fire:
			if _, _, err := s.Reload(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("reload after file change failed, keeping previous index", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("file watcher error", "error", err)
		}
	}
}
