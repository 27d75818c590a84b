package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/gh-watch/internal/config"
	"github.com/asheshgoplani/gh-watch/internal/logging"
)

const Version = "0.3.1"

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal
// capabilities. Prefers TrueColor for best visuals, falls back to
// ANSI256 for compatibility.
func initColorProfile() {
	// Allow user override via environment variable
	// GH_WATCH_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("GH_WATCH_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	// Explicit TrueColor support
	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Check TERM for capability hints
	term := os.Getenv("TERM")
	trueColorTerms := []string{
		"xterm-256color",
		"screen-256color",
		"tmux-256color",
		"xterm-direct",
		"alacritty",
		"kitty",
		"wezterm",
	}
	for _, t := range trueColorTerms {
		if strings.Contains(term, t) || term == t {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" || // Windows Terminal
		os.Getenv("ITERM_SESSION_ID") != "" || // iTerm2
		os.Getenv("TERMINAL_EMULATOR") != "" || // JetBrains terminals
		os.Getenv("KONSOLE_VERSION") != "" { // Konsole
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Fallback: ANSI256 works in SSH, basic terminals, older emulators
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	// Extract global -c/--config flag before subcommand dispatch
	configPath, args := extractConfigFlag(os.Args[1:])

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("gh-watch v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "watch":
			runWatch(configPath)
			return
		case "once":
			handleOnce(configPath, args[1:])
			return
		case "check":
			handleCheck(configPath, args[1:])
			return
		case "init":
			handleInit(configPath, args[1:])
			return
		case "config":
			handleConfig(configPath, args[1:])
			return
		case "guide":
			printGuide()
			return
		case "completion":
			handleCompletion(args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// No subcommand: launch the watch TUI
	runWatch(configPath)
}

// extractConfigFlag extracts -c or --config from args, returning the
// path and remaining args.
func extractConfigFlag(args []string) (string, []string) {
	var path string
	var remaining []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 < len(args) {
				i++
				path = args[i]
			}
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-c="):
			path = strings.TrimPrefix(arg, "-c=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return path, remaining
}

// initLogging configures structured logging next to the state database.
// When GH_WATCH_DEBUG is set, debug records are written; otherwise logs
// rotate at info level so the TUI is never disturbed by stderr output.
func initLogging(cfg *config.Config) {
	logDir := ""
	if cfg != nil {
		if dbPath, err := cfg.StateDBPathOrDefault(); err == nil {
			logDir = filepath.Dir(dbPath)
		}
	}
	logging.Init(logging.Config{
		Debug:      os.Getenv(logging.EnvDebug) != "",
		LogDir:     logDir,
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 10,
		Compress:   true,
	})
}

func printHelp() {
	fmt.Printf(`gh-watch v%s - GitHub activity watcher

Polls the repositories in config.toml through the gh CLI, keeps a
durable local timeline, and raises desktop notifications for new
activity.

Usage:
  gh-watch [command] [flags]

Commands:
  watch         Start watching with the interactive timeline (default)
  once          Run a single poll cycle and exit
  check         Verify gh auth, notifications, and state database health
  init          Create a starter config.toml
  config        Show or open the active config file
  guide         Print a quickstart guide
  completion    Generate shell completion scripts
  version       Print the version

Global flags:
  -c, --config <path>   Use an explicit config file

Flags for once:
  --json        Machine-readable output
  --dry-run     Fetch and classify without persisting or notifying

Flags for init:
  --force        Overwrite an existing config file
  --reset-state  Delete the state database (cursors, timeline, queue)

Environment:
  GH_WATCH_CONFIG   Config file location (overridden by --config)
  GH_WATCH_GH_BIN   Path to the gh binary
  GH_WATCH_DEBUG    Enable debug logging
  GH_WATCH_COLOR    Color profile: truecolor, 256, 16, none
`, Version)
}

func printGuide() {
	fmt.Print(`gh-watch quickstart

1. Install and authenticate the GitHub CLI:
     gh auth login

2. Create a config file:
     gh-watch init
   Then edit config.toml and list the repositories to watch:
     [[repositories]]
     name = "owner/repo"

3. Verify the setup:
     gh-watch check

4. Start watching:
     gh-watch

Keys inside the timeline:
  up/down   navigate          enter/o  open in browser
  y         copy URL          r        mark read
  m         mark all read     R        poll now
  /         filter events     tab      switch panel
  q         quit

The first poll of a new repository seeds its cursor silently; desktop
notifications begin with the second poll. Events are kept locally in a
SQLite database, so notifications you miss are still in the timeline.
`)
}
