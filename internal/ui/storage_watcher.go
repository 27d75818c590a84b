package ui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

var watcherLog = logging.ForComponent(logging.CompStorage)

// StorageWatcher notices event-log writes made by another process, such
// as `gh-watch once` run in a second terminal, by polling the newest
// observed_at timestamp. Polling works on every filesystem where
// inotify-style watchers are unreliable (9p, NFS, WSL).
type StorageWatcher struct {
	db        *statedb.StateDB
	reloadCh  chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	// lastActivity tracks the last seen timestamp
	lastActivity int64
	modMu        sync.Mutex

	// lastCycleTime tracks when the in-process watcher last wrote, so
	// its own cycles are ignored
	lastCycleTime time.Time
	cycleMu       sync.RWMutex
}

// ignoreWindow is the time window after NotifyCycle during which
// changes are ignored. Must be > storagePollInterval so the first poll
// after an in-process write always falls within the window.
const ignoreWindow = 3 * time.Second

// storagePollInterval is how often we check for external changes.
const storagePollInterval = 2 * time.Second

// NewStorageWatcher creates a watcher that polls the event log for
// external writes.
func NewStorageWatcher(db *statedb.StateDB) *StorageWatcher {
	if db == nil {
		return nil
	}
	last, _ := db.LastActivity()
	return &StorageWatcher{
		db:           db,
		lastActivity: last,
		reloadCh:     make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}
}

// Start begins polling for changes (non-blocking).
func (sw *StorageWatcher) Start() {
	go sw.pollLoop()
}

func (sw *StorageWatcher) pollLoop() {
	ticker := time.NewTicker(storagePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.closeCh:
			return
		case <-ticker.C:
			sw.checkAndNotify()
		}
	}
}

func (sw *StorageWatcher) checkAndNotify() {
	ts, err := sw.db.LastActivity()
	if err != nil {
		watcherLog.Debug("watcher_poll_failed", slog.String("error", err.Error()))
		return
	}

	sw.modMu.Lock()
	changed := ts > sw.lastActivity
	if changed {
		sw.lastActivity = ts
	}
	sw.modMu.Unlock()

	if !changed {
		return
	}

	sw.cycleMu.RLock()
	lastCycle := sw.lastCycleTime
	sw.cycleMu.RUnlock()

	if time.Since(lastCycle) < ignoreWindow {
		watcherLog.Debug("watcher_ignoring_own_cycle")
		return
	}

	watcherLog.Debug("watcher_db_changed", slog.Int64("timestamp", ts))

	// Non-blocking send (drop if channel full)
	select {
	case sw.reloadCh <- struct{}{}:
	default:
		watcherLog.Debug("watcher_reload_channel_full")
	}
}

// ReloadChannel returns the channel that signals when reload is needed.
func (sw *StorageWatcher) ReloadChannel() <-chan struct{} {
	return sw.reloadCh
}

// NotifyCycle should be called when the in-process watcher finishes a
// cycle, so the resulting write is not reported as external.
func (sw *StorageWatcher) NotifyCycle() {
	sw.cycleMu.Lock()
	sw.lastCycleTime = time.Now()
	sw.cycleMu.Unlock()
}

// Close stops the watcher. Safe to call multiple times.
func (sw *StorageWatcher) Close() error {
	sw.closeOnce.Do(func() {
		close(sw.closeCh)
	})
	return nil
}
