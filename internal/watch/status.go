package watch

import (
	"sync"
	"time"
)

// RepoStatus is the per-repo health summary shown in the UI and by
// `gh-watch check`.
type RepoStatus struct {
	Repo        string
	LastSuccess time.Time
	LastFailure time.Time
	LastError   string
	EventsSeen  int
}

// StatusBoard aggregates cycle outcomes for read-only consumers.
// Safe for concurrent use.
type StatusBoard struct {
	mu     sync.RWMutex
	order  []string
	status map[string]*RepoStatus
}

// NewStatusBoard seeds a board with the configured repos so the UI can
// show them before the first cycle completes.
func NewStatusBoard(repos []string) *StatusBoard {
	b := &StatusBoard{status: make(map[string]*RepoStatus, len(repos))}
	for _, repo := range repos {
		b.order = append(b.order, repo)
		b.status[repo] = &RepoStatus{Repo: repo}
	}
	return b
}

// Record folds one cycle result into the board.
func (b *StatusBoard) Record(result CycleResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, outcome := range result.Repos {
		st, ok := b.status[outcome.Repo]
		if !ok {
			st = &RepoStatus{Repo: outcome.Repo}
			b.order = append(b.order, outcome.Repo)
			b.status[outcome.Repo] = st
		}
		if outcome.Err != nil {
			st.LastFailure = result.FinishedAt
			st.LastError = outcome.Err.Error()
			continue
		}
		st.LastSuccess = result.FinishedAt
		st.EventsSeen += len(outcome.NewEvents)
	}
}

// Snapshot returns repo statuses in configured order.
func (b *StatusBoard) Snapshot() []RepoStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RepoStatus, 0, len(b.order))
	for _, repo := range b.order {
		out = append(out, *b.status[repo])
	}
	return out
}
