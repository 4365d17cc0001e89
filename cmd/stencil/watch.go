package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 200 * time.Millisecond

// watch renders paths once and again after every change to a template or
// the data file until ctx is cancelled. Render failures are logged and do
// not stop the watch.
func (a *app) watch(ctx context.Context, paths []string, opts renderOptions, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := append([]string{}, paths...)
	if opts.dataPath != "" {
		watched = append(watched, opts.dataPath)
	}
	// Editors often replace files, so watch the parent directories and
	// filter events by name.
	names := make(map[string]bool, len(watched))
	dirs := make(map[string]bool)
	for _, p := range watched {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		names[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	var mu sync.Mutex
	rerender := func() {
		mu.Lock()
		defer mu.Unlock()
		if err := a.renderFiles(ctx, paths, opts, out); err != nil {
			a.logger.Error("render failed", slog.Any("error", err))
		}
	}

	rerender()
	a.logger.Info("watching templates", slog.Int("files", len(names)))

	var reloadTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !names[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug("template changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))

			// Debounce bursts of events from a single save.
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, rerender)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}
