package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/gh-watch/internal/clipboard"
	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
	"github.com/asheshgoplani/gh-watch/internal/watch"
)

var uiLog = logging.ForComponent(logging.CompUI)

const (
	// tickInterval drives relative timestamps and error auto-dismiss.
	tickInterval = 2 * time.Second

	// errDisplayDuration is how long transient errors stay in the header.
	errDisplayDuration = 8 * time.Second

	minTerminalWidth  = 40
	minTerminalHeight = 10

	// Below this width the repo panel is hidden.
	layoutBreakpointDual = 80

	repoPanelWidth = 32
)

type focusArea int

const (
	focusTimeline focusArea = iota
	focusRepos
)

// Messages

// CycleMsg carries a finished poll cycle into the UI. The watch loop
// sends it through Program.Send.
type CycleMsg struct {
	Result watch.CycleResult
}

type timelineMsg struct {
	rows []statedb.EventRow
}

type timelineErrMsg struct {
	err error
}

type tickMsg time.Time

type themeChangedMsg bool

type storageChangedMsg struct{}

type actionErrMsg struct {
	err error
}

// Home is the main application model: a timeline of watched activity
// with a repo health sidebar.
type Home struct {
	width  int
	height int

	db            *statedb.StateDB
	watcher       *watch.Watcher
	board         *watch.StatusBoard
	themeWatcher  *ThemeWatcher
	storageWatch  *StorageWatcher
	timelineLimit int
	interval      time.Duration

	rows   []statedb.EventRow
	search *Search

	cursor     int
	viewOffset int
	repoCursor int
	focus      focusArea

	lastCycle *watch.CycleResult
	err       error
	errTime   time.Time
	now       time.Time
}

// NewHome builds the root model. watcher may be nil for a read-only
// view of an existing state database.
func NewHome(db *statedb.StateDB, watcher *watch.Watcher, board *watch.StatusBoard, timelineLimit int, interval time.Duration) *Home {
	return &Home{
		db:            db,
		watcher:       watcher,
		board:         board,
		search:        NewSearch(),
		timelineLimit: timelineLimit,
		interval:      interval,
		now:           time.Now(),
	}
}

// SetThemeWatcher attaches an OS theme watcher. Call before Init.
func (m *Home) SetThemeWatcher(tw *ThemeWatcher) {
	m.themeWatcher = tw
}

// SetStorageWatcher attaches an external-change watcher. Call before Init.
func (m *Home) SetStorageWatcher(sw *StorageWatcher) {
	m.storageWatch = sw
}

func (m *Home) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadTimeline(), tickCmd()}
	if m.themeWatcher != nil {
		cmds = append(cmds, waitForTheme(m.themeWatcher))
	}
	if m.storageWatch != nil {
		m.storageWatch.Start()
		cmds = append(cmds, waitForStorage(m.storageWatch))
	}
	return tea.Batch(cmds...)
}

// Commands

func (m *Home) loadTimeline() tea.Cmd {
	db, limit := m.db, m.timelineLimit
	return func() tea.Msg {
		rows, err := db.RecentTimeline(limit)
		if err != nil {
			return timelineErrMsg{err: err}
		}
		return timelineMsg{rows: rows}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForTheme(tw *ThemeWatcher) tea.Cmd {
	return func() tea.Msg {
		isDark, ok := <-tw.ChangeChannel()
		if !ok {
			return nil
		}
		return themeChangedMsg(isDark)
	}
}

func waitForStorage(sw *StorageWatcher) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-sw.ReloadChannel(); !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}

func (m *Home) markReadCmd(key string) tea.Cmd {
	db := m.db
	return func() tea.Msg {
		if err := db.MarkRead(key, time.Now().UTC()); err != nil {
			return actionErrMsg{err: err}
		}
		rows, err := db.RecentTimeline(m.timelineLimit)
		if err != nil {
			return timelineErrMsg{err: err}
		}
		return timelineMsg{rows: rows}
	}
}

func (m *Home) markAllReadCmd() tea.Cmd {
	db := m.db
	return func() tea.Msg {
		if _, err := db.MarkAllRead(time.Now().UTC()); err != nil {
			return actionErrMsg{err: err}
		}
		rows, err := db.RecentTimeline(m.timelineLimit)
		if err != nil {
			return timelineErrMsg{err: err}
		}
		return timelineMsg{rows: rows}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if err := OpenURL(url); err != nil {
			return actionErrMsg{err: fmt.Errorf("open %s: %w", url, err)}
		}
		return nil
	}
}

func yankURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		method, err := clipboard.Copy(url)
		if err != nil {
			return actionErrMsg{err: fmt.Errorf("copy %s: %w", url, err)}
		}
		uiLog.Debug("url_copied", "method", method, "url", url)
		return nil
	}
}

// Update

func (m *Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case timelineMsg:
		m.rows = msg.rows
		m.search.SetRows(msg.rows)
		m.clampCursor()
		return m, nil

	case timelineErrMsg:
		m.setErr(msg.err)
		return m, nil

	case actionErrMsg:
		m.setErr(msg.err)
		return m, nil

	case CycleMsg:
		m.lastCycle = &msg.Result
		if m.board != nil {
			m.board.Record(msg.Result)
		}
		if m.storageWatch != nil {
			m.storageWatch.NotifyCycle()
		}
		return m, m.loadTimeline()

	case tickMsg:
		m.now = time.Time(msg)
		if m.err != nil && m.now.Sub(m.errTime) > errDisplayDuration {
			m.err = nil
		}
		return m, tickCmd()

	case themeChangedMsg:
		if bool(msg) {
			InitTheme("dark")
		} else {
			InitTheme("light")
		}
		uiLog.Debug("theme_changed", "dark", bool(msg))
		return m, waitForTheme(m.themeWatcher)

	case storageChangedMsg:
		return m, tea.Batch(m.loadTimeline(), waitForStorage(m.storageWatch))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Home) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.search.IsVisible() {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.cursor = 0
		m.viewOffset = 0
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-m.timelineHeight())
	case "pgdown":
		m.moveCursor(m.timelineHeight())
	case "g", "home":
		m.cursor = 0
		m.viewOffset = 0
	case "G", "end":
		m.cursor = len(m.visibleRows()) - 1
		m.clampCursor()

	case "tab":
		if m.focus == focusTimeline {
			m.focus = focusRepos
		} else {
			m.focus = focusTimeline
		}

	case "/":
		m.search.Show()
		m.cursor = 0
		m.viewOffset = 0

	case "esc":
		if m.search.Query() != "" {
			m.search.Hide()
			m.cursor = 0
			m.viewOffset = 0
		}

	case "R":
		if m.watcher != nil {
			m.watcher.Refresh()
		}

	case "r":
		if row := m.selectedRow(); row != nil && !row.Read() {
			return m, m.markReadCmd(row.Event.Key())
		}

	case "m":
		return m, m.markAllReadCmd()

	case "enter", "o":
		if row := m.selectedRow(); row != nil && row.Event.URL != "" {
			cmds := []tea.Cmd{openURLCmd(row.Event.URL)}
			if !row.Read() {
				cmds = append(cmds, m.markReadCmd(row.Event.Key()))
			}
			return m, tea.Batch(cmds...)
		}

	case "y":
		if row := m.selectedRow(); row != nil && row.Event.URL != "" {
			return m, yankURLCmd(row.Event.URL)
		}
	}
	return m, nil
}

func (m *Home) setErr(err error) {
	m.err = err
	m.errTime = time.Now()
	uiLog.Warn("ui_error", "error", err)
}

// visibleRows returns indices into m.rows after the search filter.
func (m *Home) visibleRows() []int {
	return m.search.Matches()
}

func (m *Home) selectedRow() *statedb.EventRow {
	visible := m.visibleRows()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return nil
	}
	return &m.rows[visible[m.cursor]]
}

func (m *Home) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *Home) clampCursor() {
	n := len(m.visibleRows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	h := m.timelineHeight()
	if h <= 0 {
		return
	}
	if m.cursor < m.viewOffset {
		m.viewOffset = m.cursor
	}
	if m.cursor >= m.viewOffset+h {
		m.viewOffset = m.cursor - h + 1
	}
}

// timelineHeight is the number of event lines that fit in the panel.
func (m *Home) timelineHeight() int {
	// header + menu bar + panel borders
	h := m.height - 2 - 4
	if m.search.IsVisible() || m.search.Query() != "" {
		h -= 3
	}
	if h < 1 {
		h = 1
	}
	return h
}

// View

func (m *Home) View() string {
	if m.width == 0 {
		return ""
	}
	if m.width < minTerminalWidth || m.height < minTerminalHeight {
		return fmt.Sprintf("Terminal too small (%dx%d). Need at least %dx%d.",
			m.width, m.height, minTerminalWidth, minTerminalHeight)
	}

	header := m.renderHeader()
	menuBar := m.renderMenuBar()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(menuBar)
	var body string
	if m.width >= layoutBreakpointDual {
		timelineWidth := m.width - repoPanelWidth
		timeline := m.renderTimeline(timelineWidth, bodyHeight)
		repos := m.renderRepoPanel(repoPanelWidth, bodyHeight)
		body = lipgloss.JoinHorizontal(lipgloss.Top, timeline, repos)
	} else {
		body = m.renderTimeline(m.width, bodyHeight)
	}

	return header + "\n" + body + "\n" + menuBar
}

func (m *Home) renderHeader() string {
	title := TitleStyle.Render("gh-watch")

	unread := 0
	for _, row := range m.rows {
		if !row.Read() {
			unread++
		}
	}
	counts := DimStyle.Render(fmt.Sprintf(" %d events, %d unread", len(m.rows), unread))

	var status string
	switch {
	case m.err != nil:
		status = ErrorStyle.Render(" " + truncate(m.err.Error(), 60))
	case m.lastCycle == nil:
		status = DimStyle.Render(" waiting for first poll")
	case m.lastCycle.Failed():
		status = ErrorStyle.Render(" last poll failed")
	default:
		status = DimStyle.Render(fmt.Sprintf(" polled %s", relTime(m.lastCycle.FinishedAt, m.now)))
		if n := len(m.lastCycle.FailedRepos()); n > 0 {
			status += WarningStyle.Render(fmt.Sprintf(" (%d repo failing)", n))
		}
	}

	return title + counts + DimStyle.Render(" │") + status
}

func (m *Home) renderTimeline(width, height int) string {
	style := PanelStyle
	if m.focus == focusTimeline {
		style = FocusedPanel
	}
	innerWidth := width - 4
	innerHeight := height - 2

	var b strings.Builder
	if bar := m.search.View(); bar != "" {
		b.WriteString(bar)
		b.WriteString("\n")
		innerHeight -= lipgloss.Height(bar)
	}

	visible := m.visibleRows()
	if len(visible) == 0 {
		empty := "No events yet. Waiting for the first poll cycle..."
		if m.search.Query() != "" {
			empty = "No events match the filter."
		}
		b.WriteString(DimStyle.Render(empty))
	} else {
		end := m.viewOffset + innerHeight
		if end > len(visible) {
			end = len(visible)
		}
		for i := m.viewOffset; i < end; i++ {
			b.WriteString(m.renderRow(m.rows[visible[i]], i == m.cursor, innerWidth))
			if i < end-1 {
				b.WriteString("\n")
			}
		}
	}

	return style.Width(width - 2).Height(height - 2).Render(b.String())
}

func (m *Home) renderRow(row statedb.EventRow, selected bool, width int) string {
	ev := row.Event
	ts := relTime(ev.CreatedAt, m.now)

	if selected {
		line := fmt.Sprintf("› %-3s %s  %s by @%s  %s",
			kindLabels[ev.Kind], ev.Repo, ev.Title, ev.Actor, ts)
		return ItemSelectedStyle.Render(runewidth.Truncate(line, width, "..."))
	}

	dot := ReadDotStyle.Render("·")
	title := ItemReadTitle
	if !row.Read() {
		dot = UnreadDotStyle.Render("●")
		title = ItemUnreadTitle
	}

	prefix := fmt.Sprintf("%s %s %s ", dot, KindBadge(ev.Kind), ItemRepoStyle.Render(ev.Repo))
	suffix := fmt.Sprintf(" %s %s", ItemActorStyle.Render("@"+ev.Actor), TimestampStyle.Render(ts))

	// Truncate only the title so badges and timestamps stay visible.
	used := lipgloss.Width(prefix) + lipgloss.Width(suffix)
	avail := width - used
	if avail < 8 {
		avail = 8
	}
	return ItemStyle.Render(prefix + title.Render(runewidth.Truncate(ev.Title, avail, "...")) + suffix)
}

func (m *Home) renderRepoPanel(width, height int) string {
	style := PanelStyle
	if m.focus == focusRepos {
		style = FocusedPanel
	}

	var b strings.Builder
	b.WriteString(InfoStyle.Render("Repositories"))
	b.WriteString("\n\n")

	if m.board != nil {
		for _, st := range m.board.Snapshot() {
			polled := !st.LastSuccess.IsZero() || !st.LastFailure.IsZero()
			healthy := st.LastFailure.IsZero() || st.LastSuccess.After(st.LastFailure)
			line := fmt.Sprintf("%s %s", RepoIndicator(healthy, polled),
				truncate(st.Repo, width-10))
			b.WriteString(line)
			b.WriteString("\n")
			if !healthy && st.LastError != "" {
				b.WriteString(ErrorStyle.Render("  " + truncate(st.LastError, width-6)))
				b.WriteString("\n")
			}
		}
	}

	if m.interval > 0 {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render(fmt.Sprintf("every %s", m.interval)))
	}

	return style.Width(width - 2).Height(height - 2).Render(b.String())
}

func (m *Home) renderMenuBar() string {
	items := []string{
		MenuKey("↑↓", "navigate"),
		MenuKey("enter", "open"),
		MenuKey("y", "copy url"),
		MenuKey("r", "read"),
		MenuKey("m", "read all"),
		MenuKey("R", "refresh"),
		MenuKey("/", "filter"),
		MenuKey("q", "quit"),
	}
	bar := strings.Join(items, MenuSeparatorStyle.Render("  "))
	return MenuBarStyle.Width(m.width).Render(bar)
}

// relTime renders a compact relative timestamp.
func relTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	return runewidth.Truncate(s, max, "...")
}
