package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay debounces bursts of writes to a watched file.
const DefaultReloadDelay = 500 * time.Millisecond

// Watch reloads the repository files in paths into db whenever one of them
// changes, then calls onReload with the reloaded repository. It returns once
// the watcher is running; watching stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, db *Database, paths []string, onReload func(*Repository)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors often replace files, so watch the directories.
	watched := make(map[string]bool)
	for _, path := range paths {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched[dir] = true
	}

	targets := make(map[string]bool, len(paths))
	for _, path := range paths {
		targets[filepath.Clean(path)] = true
	}

	go l.processEvents(ctx, watcher, db, targets, onReload)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching repository files")

	return nil
}

func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, db *Database, targets map[string]bool, onReload func(*Repository)) {
	defer func() { _ = watcher.Close() }()

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if !targets[path] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			l.logger.Debug().
				Str("file", path).
				Str("op", event.Op.String()).
				Msg("Repository file changed")

			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(DefaultReloadDelay, func() {
				repo, err := l.LoadFile(path)
				if err != nil {
					l.logger.Error().Err(err).Str("file", path).Msg("Failed to reload repository")
					return
				}
				db.Replace(repo)
				l.logger.Info().
					Str("repository", repo.Name()).
					Int("packages", repo.Len()).
					Msg("Repository reloaded")
				if onReload != nil {
					onReload(repo)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
