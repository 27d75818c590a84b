package ui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// currentTheme holds the active theme (set at init)
var currentTheme Theme = ThemeDark

// Dark theme - Tokyo Night
var darkColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Light theme - Tokyo Night Light variant
var lightColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu protects global color/style variables during live theme switches.
// Write lock held by InitTheme; read lock held by style accessors.
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == "light" {
		currentTheme = ThemeLight
		ColorBg = lightColors.Bg
		ColorSurface = lightColors.Surface
		ColorBorder = lightColors.Border
		ColorText = lightColors.Text
		ColorTextDim = lightColors.TextDim
		ColorAccent = lightColors.Accent
		ColorPurple = lightColors.Purple
		ColorCyan = lightColors.Cyan
		ColorGreen = lightColors.Green
		ColorYellow = lightColors.Yellow
		ColorOrange = lightColors.Orange
		ColorRed = lightColors.Red
		ColorComment = lightColors.Comment
	} else {
		currentTheme = ThemeDark
		ColorBg = darkColors.Bg
		ColorSurface = darkColors.Surface
		ColorBorder = darkColors.Border
		ColorText = darkColors.Text
		ColorTextDim = darkColors.TextDim
		ColorAccent = darkColors.Accent
		ColorPurple = darkColors.Purple
		ColorCyan = darkColors.Cyan
		ColorGreen = darkColors.Green
		ColorYellow = darkColors.Yellow
		ColorOrange = darkColors.Orange
		ColorRed = darkColors.Red
		ColorComment = darkColors.Comment
	}
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle     lipgloss.Style
	PanelStyle     lipgloss.Style
	FocusedPanel   lipgloss.Style
	HighlightStyle lipgloss.Style
	DimStyle       lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	WarningStyle   lipgloss.Style
	InfoStyle      lipgloss.Style
)

// Menu Bar Styles
var (
	MenuBarStyle       lipgloss.Style
	MenuKeyStyle       lipgloss.Style
	MenuDescStyle      lipgloss.Style
	MenuSeparatorStyle lipgloss.Style
)

// Search Styles
var (
	SearchBoxStyle    lipgloss.Style
	SearchPromptStyle lipgloss.Style
)

// Timeline Item Styles
var (
	ItemStyle         lipgloss.Style
	ItemSelectedStyle lipgloss.Style
	ItemUnreadTitle   lipgloss.Style
	ItemReadTitle     lipgloss.Style
	ItemActorStyle    lipgloss.Style
	ItemRepoStyle     lipgloss.Style
	UnreadDotStyle    lipgloss.Style
	ReadDotStyle      lipgloss.Style
	TimestampStyle    lipgloss.Style
)

// Repo Panel Styles
var (
	RepoHealthyStyle lipgloss.Style
	RepoFailedStyle  lipgloss.Style
	RepoPendingStyle lipgloss.Style
)

// kindStyleCache holds pre-allocated badge styles per event kind.
var kindStyleCache map[event.Kind]lipgloss.Style

// defaultKindStyle is used when a kind is not in the cache.
var defaultKindStyle lipgloss.Style

// initStyles initializes all style variables with current theme colors.
// Called by InitTheme after color variables are set.
func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Background(ColorSurface).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	FocusedPanel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)

	HighlightStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	DimStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	InfoStyle = lipgloss.NewStyle().
		Foreground(ColorCyan)

	MenuBarStyle = lipgloss.NewStyle().
		Background(ColorSurface).
		Foreground(ColorText).
		Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	MenuDescStyle = lipgloss.NewStyle().
		Foreground(ColorText)

	MenuSeparatorStyle = lipgloss.NewStyle().
		Foreground(ColorBorder)

	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1).
		Foreground(ColorText)

	SearchPromptStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	ItemStyle = lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(1)

	ItemSelectedStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true).
		PaddingLeft(1)

	ItemUnreadTitle = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	ItemReadTitle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ItemActorStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	ItemRepoStyle = lipgloss.NewStyle().Foreground(ColorPurple)
	UnreadDotStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	ReadDotStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	TimestampStyle = lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)

	RepoHealthyStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	RepoFailedStyle = lipgloss.NewStyle().Foreground(ColorRed)
	RepoPendingStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	kindStyleCache = map[event.Kind]lipgloss.Style{
		event.KindPrCreated:              lipgloss.NewStyle().Foreground(ColorGreen),
		event.KindPrMerged:               lipgloss.NewStyle().Foreground(ColorPurple),
		event.KindPrReviewRequested:      lipgloss.NewStyle().Foreground(ColorYellow),
		event.KindPrReviewSubmitted:      lipgloss.NewStyle().Foreground(ColorOrange),
		event.KindPrReviewCommentCreated: lipgloss.NewStyle().Foreground(ColorCyan),
		event.KindIssueCreated:           lipgloss.NewStyle().Foreground(ColorAccent),
		event.KindIssueCommentCreated:    lipgloss.NewStyle().Foreground(ColorCyan),
	}
	defaultKindStyle = lipgloss.NewStyle().Foreground(ColorText)
}

// kindLabels are the short badges shown in the timeline.
var kindLabels = map[event.Kind]string{
	event.KindPrCreated:              "PR",
	event.KindPrMerged:               "MRG",
	event.KindPrReviewRequested:      "REQ",
	event.KindPrReviewSubmitted:      "REV",
	event.KindPrReviewCommentCreated: "RCM",
	event.KindIssueCreated:           "ISS",
	event.KindIssueCommentCreated:    "CMT",
}

// KindBadge returns a colored short label for an event kind.
// Read-locked to protect against concurrent map access during live
// theme switches.
func KindBadge(kind event.Kind) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	label, ok := kindLabels[kind]
	if !ok {
		label = "EVT"
	}
	style, ok := kindStyleCache[kind]
	if !ok {
		style = defaultKindStyle
	}
	return style.Render(label)
}

// MenuKey creates a formatted menu item with key and description
func MenuKey(key, description string) string {
	return fmt.Sprintf("%s %s %s",
		MenuKeyStyle.Render(key),
		MenuSeparatorStyle.Render("•"),
		MenuDescStyle.Render(description),
	)
}

// RepoIndicator returns a styled health dot for a repo row.
// ● healthy, ✕ failing, ○ not yet polled
func RepoIndicator(healthy, polled bool) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch {
	case !polled:
		return RepoPendingStyle.Render("○")
	case healthy:
		return RepoHealthyStyle.Render("●")
	default:
		return RepoFailedStyle.Render("✕")
	}
}
