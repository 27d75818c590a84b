package watch

import (
	"context"
	"sync"
	"time"

	"github.com/asheshgoplani/gh-watch/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// Watcher runs poll cycles on an interval and serves coalesced refresh
// requests from the UI. Cycles never overlap: a refresh arriving while
// one is in flight queues a single follow-up cycle.
type Watcher struct {
	Runner   *Runner
	Interval time.Duration

	// RetentionDays prunes old timeline rows after each cycle when
	// positive.
	RetentionDays int

	// OnCycle receives every finished cycle result, e.g. to push into
	// the TUI event loop.
	OnCycle func(CycleResult)

	mu        sync.Mutex
	state     pollState
	refreshCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once

	// runnerMu serializes cycles against Reconfigure.
	runnerMu sync.Mutex
}

// NewWatcher builds a watcher around a runner.
func NewWatcher(runner *Runner, interval time.Duration) *Watcher {
	return &Watcher{
		Runner:    runner,
		Interval:  interval,
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Refresh requests an immediate cycle. Requests during a running cycle
// coalesce into one follow-up. Safe from any goroutine.
func (w *Watcher) Refresh() {
	w.mu.Lock()
	signal := w.state.requestPoll()
	w.mu.Unlock()
	if signal {
		select {
		case w.refreshCh <- struct{}{}:
		default:
		}
	}
}

// Reconfigure applies fn to the runner between cycles and schedules an
// immediate cycle with the new settings. Blocks while a cycle is in
// flight. Used for config hot reload.
func (w *Watcher) Reconfigure(fn func(*Runner)) {
	w.runnerMu.Lock()
	fn(w.Runner)
	w.runnerMu.Unlock()
	w.Refresh()
}

// Stop asks the loop to exit after the in-flight cycle completes. Use
// context cancellation instead to abort the current fetch.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Run executes cycles until the context is cancelled or Stop is
// called. The first cycle starts immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	watchLog.Info("watch loop started", "interval", w.Interval)
	for {
		w.mu.Lock()
		w.state.requestPoll()
		w.state.startPoll()
		w.mu.Unlock()

		w.runnerMu.Lock()
		result := w.Runner.RunCycle(ctx)
		w.runnerMu.Unlock()
		w.cleanup()
		if w.OnCycle != nil {
			w.OnCycle(result)
		}

		w.mu.Lock()
		runAgain := w.state.finishPollAndTakeNext()
		w.mu.Unlock()

		if err := ctx.Err(); err != nil {
			watchLog.Info("watch loop cancelled")
			return err
		}
		select {
		case <-w.stopCh:
			watchLog.Info("watch loop stopped")
			return nil
		default:
		}
		if runAgain {
			continue
		}

		select {
		case <-ctx.Done():
			watchLog.Info("watch loop cancelled")
			return ctx.Err()
		case <-w.stopCh:
			watchLog.Info("watch loop stopped")
			return nil
		case <-ticker.C:
		case <-w.refreshCh:
		}
	}
}

func (w *Watcher) cleanup() {
	if w.RetentionDays <= 0 {
		return
	}
	cutoff := w.Runner.now().AddDate(0, 0, -w.RetentionDays)
	removed, err := w.Runner.DB.CleanupOlderThan(cutoff)
	if err != nil {
		watchLog.Warn("retention cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		watchLog.Debug("retention cleanup", "removed", removed)
	}
}
