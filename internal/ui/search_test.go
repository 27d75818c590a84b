package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/gh-watch/internal/event"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

func sampleRows() []statedb.EventRow {
	mk := func(repo, title, actor string, kind event.Kind) statedb.EventRow {
		return statedb.EventRow{
			Event: event.WatchEvent{
				Repo:         repo,
				Kind:         kind,
				SourceItemID: title,
				Actor:        actor,
				Title:        title,
				URL:          "https://github.com/" + repo + "/pull/1",
				CreatedAt:    time.Now(),
			},
		}
	}
	return []statedb.EventRow{
		mk("octo/server", "Fix flaky reconnect", "alice", event.KindPrCreated),
		mk("octo/client", "Add dark mode", "bob", event.KindIssueCreated),
		mk("octo/server", "Reconnect timeout too low", "carol", event.KindIssueCommentCreated),
	}
}

func typeString(s *Search, text string) *Search {
	for _, r := range text {
		s, _ = s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return s
}

func TestSearchEmptyQueryMatchesAllInOrder(t *testing.T) {
	s := NewSearch()
	s.SetRows(sampleRows())
	assert.Equal(t, []int{0, 1, 2}, s.Matches())
}

func TestSearchFiltersRows(t *testing.T) {
	s := NewSearch()
	s.SetRows(sampleRows())
	s.Show()

	s = typeString(s, "reconnect")
	matches := s.Matches()
	require.Len(t, matches, 2)
	for _, idx := range matches {
		assert.Contains(t, []int{0, 2}, idx)
	}
}

func TestSearchMatchesActorAndRepo(t *testing.T) {
	s := NewSearch()
	s.SetRows(sampleRows())
	s.Show()

	s = typeString(s, "bob")
	assert.Equal(t, []int{1}, s.Matches())
}

func TestSearchEscClearsFilter(t *testing.T) {
	s := NewSearch()
	s.SetRows(sampleRows())
	s.Show()
	s = typeString(s, "dark")
	require.Len(t, s.Matches(), 1)

	s, _ = s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, s.IsVisible())
	assert.Empty(t, s.Query())
	assert.Len(t, s.Matches(), 3)
}

func TestSearchEnterKeepsFilterApplied(t *testing.T) {
	s := NewSearch()
	s.SetRows(sampleRows())
	s.Show()
	s = typeString(s, "dark")

	s, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, s.IsVisible())
	assert.Equal(t, "dark", s.Query())
	assert.Len(t, s.Matches(), 1)
}
