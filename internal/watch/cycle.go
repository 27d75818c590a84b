// Package watch drives poll cycles: fetch each repo's activity window,
// classify and dedup the events, advance cursors, and drain the
// notification queue. Discovery and delivery fail independently; an
// event is durable in the timeline before any delivery is attempted.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/asheshgoplani/gh-watch/internal/event"
	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/notify"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

var pollLog = logging.ForComponent(logging.CompPoll)

const fetchMaxAttempts = 3

// Backoff before fetch attempt 2 and 3.
var fetchBackoff = []time.Duration{time.Second, 2 * time.Second}

// Fetcher is the upstream activity source.
type Fetcher interface {
	FetchRepoEvents(ctx context.Context, repo string, since time.Time) ([]event.WatchEvent, error)
}

// Runner executes poll cycles against one state database.
type Runner struct {
	DB       *statedb.StateDB
	Client   Fetcher
	Filters  event.Filters
	Notifier notify.Notifier

	// Repos are polled sequentially in this order.
	Repos []string

	BootstrapLookback time.Duration
	FetchTimeout      time.Duration

	// NotificationsEnabled gates enqueueing; filtered or disabled
	// events still reach the timeline.
	NotificationsEnabled bool
	IncludeURL           bool
	MaxDeliveryAttempts  int

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// RepoOutcome is one repo's result within a cycle.
type RepoOutcome struct {
	Repo      string
	Bootstrap bool
	// NewEvents are events seen for the first time this cycle.
	NewEvents []event.WatchEvent
	Attempts  int
	Err       error
}

// CycleResult aggregates one full poll cycle.
type CycleResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Repos      []RepoOutcome
	Delivery   DrainResult
}

// Failed reports a cycle where every repo's discovery failed.
func (r CycleResult) Failed() bool {
	if len(r.Repos) == 0 {
		return false
	}
	for _, repo := range r.Repos {
		if repo.Err == nil {
			return false
		}
	}
	return true
}

// NewEventCount sums newly discovered events across repos.
func (r CycleResult) NewEventCount() int {
	n := 0
	for _, repo := range r.Repos {
		n += len(repo.NewEvents)
	}
	return n
}

// FailedRepos lists repos whose discovery failed this cycle.
func (r CycleResult) FailedRepos() []RepoOutcome {
	var failed []RepoOutcome
	for _, repo := range r.Repos {
		if repo.Err != nil {
			failed = append(failed, repo)
		}
	}
	return failed
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// RunCycle polls every configured repo sequentially, then drains the
// notification queue once. A repo failing discovery never blocks the
// others and never touches that repo's cursor.
func (r *Runner) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	log := pollLog.With("cycle", result.ID)
	log.Info("cycle started", "repos", len(r.Repos))

	for _, repo := range r.Repos {
		outcome := r.pollRepo(ctx, repo)
		result.Repos = append(result.Repos, outcome)
		if outcome.Err != nil {
			log.Warn("repo poll failed",
				"repo", repo, "attempts", outcome.Attempts, "error", outcome.Err)
			continue
		}
		log.Debug("repo polled",
			"repo", repo, "new_events", len(outcome.NewEvents), "bootstrap", outcome.Bootstrap)
	}

	result.Delivery = r.DrainQueue(ctx)
	result.FinishedAt = r.now()

	if result.Failed() {
		log.Error("cycle failed: all repos failed discovery")
	} else {
		log.Info("cycle finished",
			"new_events", result.NewEventCount(),
			"failed_repos", len(result.FailedRepos()),
			"delivered", result.Delivery.Delivered)
	}
	return result
}

// pollRepo runs discovery for one repo: window, fetch with retry,
// classify, persist, cursor advance. All state lands in one RecordBatch
// transaction so a crash mid-cycle leaves cursor and log consistent.
func (r *Runner) pollRepo(ctx context.Context, repo string) RepoOutcome {
	outcome := RepoOutcome{Repo: repo}

	pollStartedAt := r.now()
	window, err := windowFor(r.DB, repo, pollStartedAt, r.BootstrapLookback)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Bootstrap = window.Bootstrap

	fetched, attempts, err := r.fetchWithRetry(ctx, repo, window.Since)
	outcome.Attempts = attempts
	if err != nil {
		outcome.Err = fmt.Errorf("watch: poll %s: %w", repo, err)
		return outcome
	}

	kept := make([]event.WatchEvent, 0, len(fetched))
	notifyKeys := make(map[string]bool)
	for _, ev := range fetched {
		switch r.Filters.Decide(&ev) {
		case event.Drop:
			continue
		case event.Notify:
			// Bootstrap cycles record history but stay silent.
			if r.NotificationsEnabled && !window.Bootstrap {
				notifyKeys[ev.Key()] = true
			}
		}
		kept = append(kept, ev)
	}

	inserted, err := r.DB.RecordBatch(repo, window.PollStartedAt, kept, notifyKeys, r.now())
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.NewEvents = inserted
	return outcome
}

// fetchWithRetry attempts the fetch up to fetchMaxAttempts with
// per-attempt timeouts and fixed backoff between attempts.
func (r *Runner) fetchWithRetry(ctx context.Context, repo string, since time.Time) ([]event.WatchEvent, int, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if r.FetchTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		}
		events, err := r.Client.FetchRepoEvents(attemptCtx, repo, since)
		cancel()
		if err == nil {
			return events, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, attempt, lastErr
		}
		if attempt < fetchMaxAttempts {
			pollLog.Debug("fetch attempt failed, retrying",
				"repo", repo, "attempt", attempt, "error", err)
			select {
			case <-time.After(fetchBackoff[attempt-1]):
			case <-ctx.Done():
				return nil, attempt, lastErr
			}
		}
	}
	return nil, fetchMaxAttempts, lastErr
}
