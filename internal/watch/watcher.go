// Package watch reloads field-map overrides when the config file changes,
// so column renames in the source base can be followed without a restart.
package watch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vhsops/internal/config"
)

// Watcher monitors the YAML config file and hands fresh field maps to apply.
type Watcher struct {
	path  string
	log   *zap.SugaredLogger
	apply func(config.FieldMap)
}

func New(path string, log *zap.SugaredLogger, apply func(config.FieldMap)) *Watcher {
	return &Watcher{path: path, log: log, apply: apply}
}

func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "" {
		w.log.Info("config watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
					continue
				}
				fm, err := config.LoadFieldMapFile(w.path)
				if err != nil {
					w.log.Warnw("config reload failed", "path", w.path, "error", err)
					continue
				}
				w.apply(fm)
				w.log.Infow("field map reloaded", "path", w.path)
			case err := <-watcher.Errors:
				w.log.Warnw("config watcher error", "error", err)
			}
		}
	}()
	// Watch the directory: editors replace files on save, which drops a
	// watch held on the file itself.
	return watcher.Add(filepath.Dir(w.path))
}
