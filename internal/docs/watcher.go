package docs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/metadata"
)

// DefaultDebounce is how long the watcher waits after the last change
// before firing. Editors and git checkouts touch many files in a burst;
// one reconciliation per burst is enough.
const DefaultDebounce = 2 * time.Second

// Watch starts an fsnotify watcher on the docs root and calls onChange
// after each settled burst of markdown or metadata changes, until ctx is
// cancelled. New directories created at runtime are added to the watch
// list automatically.
//
// The callback receives the path of the last event in the burst, for
// logging only; the caller is expected to re-read the whole tree.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, onChange func(path string)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	var lastPath string

	schedule := func(path string) {
		lastPath = path
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: change burst settled", slog.String("last", lastPath))
			onChange(lastPath)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule(ev.Name)
					continue
				}
			}

			if !relevant(ev.Name) {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				rel = ev.Name
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			schedule(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether a change to name can affect the published docs.
func relevant(name string) bool {
	return strings.HasSuffix(name, ".md") || filepath.Base(name) == metadata.FileName
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
