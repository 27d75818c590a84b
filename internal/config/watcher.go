package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/platform"
)

var configLog = logging.ForComponent(logging.CompConfig)

// Watcher watches the config file for edits and delivers re-parsed
// configs. Invalid edits are logged and skipped so a half-saved file
// never tears down a running watch.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	// onChange receives each successfully re-parsed config
	onChange func(Config)
}

// NewWatcher creates a watcher for the config file at path.
// Call Start in a goroutine to begin watching.
func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		path:     path,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
		onChange: onChange,
	}, nil
}

// Start begins watching. Editors replace files rather than rewriting
// them in place, so the parent directory is watched and events are
// filtered by name.
func (w *Watcher) Start() {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		configLog.Warn("config_watcher_add_failed",
			slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}

	// Network and 9p mounts often drop inotify events
	if warning := platform.CheckFsnotifySupport(w.path); warning != "" {
		configLog.Warn("config_watcher_unreliable_fs", slog.String("detail", warning))
	}

	// Debounce timer: coalesce rapid save events
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(200*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
		}
	}
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		configLog.Warn("config_reload_read_failed", slog.String("error", err.Error()))
		return
	}
	cfg, err := Parse(string(data))
	if err != nil {
		configLog.Warn("config_reload_invalid, keeping previous config",
			slog.String("error", err.Error()))
		return
	}

	configLog.Info("config_reloaded", slog.String("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
