package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Editors fire several events per save, one rescan covers them all.
const watchDebounce = 500 * time.Millisecond

// Watch blocks until ctx is cancelled, rescanning the content tree when
// markdown files change. New items found by a rescan reach the OnNewItem
// subscribers.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.watchTree(watcher); err != nil {
		return err
	}
	s.log.Info("Watching content directory", "dir", s.dir)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevantEvent(event) {
				continue
			}
			// A created directory must be watched before files land in it
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						s.log.Warn("Could not watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Content watcher error", "err", err)

		case <-debounce.C:
			if err := s.Rescan(); err != nil {
				s.log.Error("Content rescan failed", "err", err)
			}
		}
	}
}

func (s *Store) watchTree(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (s *Store) relevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasSuffix(event.Name, ".md") {
		return true
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}
