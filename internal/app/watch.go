package app

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/buildcp/internal/ctxlog"
)

// ignoredDir is the per-project state directory; the build sources archive
// lives below it, so changes there must not trigger a re-run.
const ignoredDir = ".gradle"

// runContinuously runs the invocation, then waits for changes under the
// project directory and runs it again. Failed invocations are reported and
// do not end the loop. It returns when ctx is cancelled.
func (a *App) runContinuously(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := a.watchTree(watcher, a.config.ProjectDir); err != nil {
		return err
	}

	for {
		if _, err := a.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Invocation failed.", "error", err)
		}
		logger.Info("Waiting for changes.", "dir", a.config.ProjectDir)
		if err := a.waitForChange(ctx, watcher); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("Continuous build stopped.")
				return nil
			}
			return err
		}
	}
}

// waitForChange blocks until a relevant change is followed by a quiet
// period of the configured debounce interval.
func (a *App) waitForChange(ctx context.Context, watcher *fsnotify.Watcher) error {
	logger := ctxlog.FromContext(ctx)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if a.ignored(event.Name) {
				continue
			}
			logger.Debug("Change detected.", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := a.watchTree(watcher, event.Name); err != nil {
					logger.Warn("Cannot watch new path.", "path", event.Name, "error", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(a.config.Debounce)
				fire = timer.C
			} else {
				timer.Reset(a.config.Debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			logger.Warn("File watcher error.", "error", err)
		case <-fire:
			return nil
		}
	}
}

// watchTree adds root and every directory below it, skipping ignored ones.
func (a *App) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if a.ignored(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// ignored reports whether path is inside a state directory or the cache root.
func (a *App) ignored(path string) bool {
	if within(path, a.config.CacheDir) {
		return true
	}
	rel, err := filepath.Rel(a.config.ProjectDir, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ignoredDir {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
