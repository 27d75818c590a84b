package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

// Search is the timeline filter overlay. While visible it narrows the
// timeline to events fuzzy-matching the query.
type Search struct {
	input   textinput.Model
	visible bool

	rows    []statedb.EventRow
	matched []int // indices into rows, best match first
}

// NewSearch creates the filter overlay.
func NewSearch() *Search {
	ti := textinput.New()
	ti.Placeholder = "Filter events..."
	ti.CharLimit = 100
	ti.Width = 40
	return &Search{input: ti}
}

// SetRows sets the timeline rows to filter over.
func (s *Search) SetRows(rows []statedb.EventRow) {
	s.rows = rows
	s.updateMatches()
}

// Show makes the filter visible and focuses the input.
func (s *Search) Show() {
	s.visible = true
	s.input.Focus()
	s.updateMatches()
}

// Hide hides the filter and clears the query.
func (s *Search) Hide() {
	s.visible = false
	s.input.Blur()
	s.input.SetValue("")
	s.updateMatches()
}

// IsVisible returns whether the filter overlay is active.
func (s *Search) IsVisible() bool {
	return s.visible
}

// Query returns the current filter text.
func (s *Search) Query() string {
	return s.input.Value()
}

// Matches returns the indices of rows matching the current query, best
// match first. An empty query matches everything in original order.
func (s *Search) Matches() []int {
	return s.matched
}

// Update handles key input while the filter is visible.
func (s *Search) Update(msg tea.Msg) (*Search, tea.Cmd) {
	if !s.visible {
		return s, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			s.Hide()
			return s, nil
		case "enter":
			// Keep the filter applied, return focus to the list.
			s.visible = false
			s.input.Blur()
			return s, nil
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	s.updateMatches()
	return s, cmd
}

// timelineSource implements fuzzy.Source over timeline rows.
type timelineSource struct {
	rows []statedb.EventRow
}

func (src timelineSource) String(i int) string {
	ev := src.rows[i].Event
	return ev.Repo + " " + string(ev.Kind) + " " + ev.Title + " " + ev.Actor
}

func (src timelineSource) Len() int {
	return len(src.rows)
}

func (s *Search) updateMatches() {
	query := strings.TrimSpace(s.input.Value())
	if query == "" {
		s.matched = make([]int, len(s.rows))
		for i := range s.rows {
			s.matched[i] = i
		}
		return
	}
	matches := fuzzy.FindFrom(query, timelineSource{rows: s.rows})
	s.matched = make([]int, len(matches))
	for i, m := range matches {
		s.matched[i] = m.Index
	}
}

// View renders the inline filter bar shown above the timeline.
func (s *Search) View() string {
	if !s.visible && s.Query() == "" {
		return ""
	}
	prompt := SearchPromptStyle.Render("/")
	return SearchBoxStyle.Render(prompt + " " + s.input.View())
}
