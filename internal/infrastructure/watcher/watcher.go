// Package watcher observes the sanctions data directory and triggers a
// repository reload when list files change on disk.  Events are debounced:
// list updates are usually written as several filesystem operations in
// quick succession, and only the last one should start a reload.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	"github.com/mkweli/amlscreen/pkg/errors"
)

// ReloadFunc is invoked after the debounce window closes.  Errors are
// logged, not propagated; the watcher keeps running.
type ReloadFunc func(ctx context.Context) error

// Watcher debounces filesystem events on one directory into reload calls.
type Watcher struct {
	dir      string
	debounce time.Duration
	reload   ReloadFunc
	logger   logging.Logger

	fsw *fsnotify.Watcher
}

func New(dir string, debounce time.Duration, reload ReloadFunc, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "cannot create filesystem watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "cannot watch data directory").
			WithDetail("dir=" + dir)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		reload:   reload,
		logger:   logger.Named("watcher"),
		fsw:      fsw,
	}, nil
}

// Run blocks until ctx is cancelled, translating debounced file events
// into reload calls.  Only XML writes count; editor temp files and the
// snapshot itself are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	w.logger.Info("watching data directory",
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("data file event",
				logging.String("file", filepath.Base(event.Name)),
				logging.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", logging.Err(err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("data directory settled, reloading")
			if err := w.reload(ctx); err != nil {
				// A rejected concurrent reload is routine here.
				if errors.IsCode(err, errors.CodeReloadInProgress) {
					w.logger.Debug("reload already running, skipping")
					continue
				}
				w.logger.Error("triggered reload failed", logging.Err(err))
			}
		}
	}
}

// relevant filters for list-file writes.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := strings.ToLower(filepath.Base(event.Name))
	return strings.HasSuffix(name, ".xml") && !strings.HasPrefix(name, ".")
}
