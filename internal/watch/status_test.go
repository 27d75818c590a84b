package watch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

func TestStatusBoardSeedsConfiguredRepos(t *testing.T) {
	board := NewStatusBoard([]string{"octo/a", "octo/b"})
	snap := board.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "octo/a", snap[0].Repo)
	assert.Equal(t, "octo/b", snap[1].Repo)
	assert.True(t, snap[0].LastSuccess.IsZero())
}

func TestStatusBoardRecordsOutcomes(t *testing.T) {
	board := NewStatusBoard([]string{"octo/a", "octo/b"})
	finished := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	board.Record(CycleResult{
		FinishedAt: finished,
		Repos: []RepoOutcome{
			{Repo: "octo/a", NewEvents: []event.WatchEvent{{}, {}}},
			{Repo: "octo/b", Err: errors.New("upstream down")},
		},
	})

	snap := board.Snapshot()
	assert.Equal(t, finished, snap[0].LastSuccess)
	assert.Equal(t, 2, snap[0].EventsSeen)
	assert.Empty(t, snap[0].LastError)

	assert.True(t, snap[1].LastSuccess.IsZero())
	assert.Equal(t, finished, snap[1].LastFailure)
	assert.Equal(t, "upstream down", snap[1].LastError)
}

func TestStatusBoardSuccessAfterFailureKeepsLastError(t *testing.T) {
	board := NewStatusBoard([]string{"octo/a"})
	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	board.Record(CycleResult{
		FinishedAt: t1,
		Repos:      []RepoOutcome{{Repo: "octo/a", Err: errors.New("down")}},
	})
	board.Record(CycleResult{
		FinishedAt: t2,
		Repos:      []RepoOutcome{{Repo: "octo/a", NewEvents: []event.WatchEvent{{}}}},
	})

	snap := board.Snapshot()
	assert.Equal(t, t2, snap[0].LastSuccess)
	assert.Equal(t, t1, snap[0].LastFailure)
	assert.Equal(t, "down", snap[0].LastError)
	assert.Equal(t, 1, snap[0].EventsSeen)
}

func TestStatusBoardLearnsUnknownRepo(t *testing.T) {
	board := NewStatusBoard(nil)
	board.Record(CycleResult{
		FinishedAt: time.Now(),
		Repos:      []RepoOutcome{{Repo: "octo/new"}},
	})
	snap := board.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "octo/new", snap[0].Repo)
}

func TestBackoffAfterClamps(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoffAfter(1))
	assert.Equal(t, 2*time.Minute, backoffAfter(2))
	assert.Equal(t, 2*time.Minute, backoffAfter(7), "schedule clamps at its last step")
}
