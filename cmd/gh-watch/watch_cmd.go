package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/asheshgoplani/gh-watch/internal/config"
	"github.com/asheshgoplani/gh-watch/internal/github"
	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/notify"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
	"github.com/asheshgoplani/gh-watch/internal/ui"
	"github.com/asheshgoplani/gh-watch/internal/watch"
)

// runWatch starts the watch loop with the interactive timeline.
func runWatch(configPath string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: watch mode needs an interactive terminal.")
		fmt.Fprintln(os.Stderr, "Use `gh-watch once` for scripted runs.")
		os.Exit(1)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := loaded.Config

	initLogging(&cfg)
	defer logging.Shutdown()

	for _, warning := range cfg.StabilityWarnings() {
		fmt.Fprintf(os.Stderr, "%s %s\n", warningSymbol, warning)
	}

	theme := cfg.Theme
	if theme == "system" {
		theme = ui.SystemTheme()
	}
	ui.InitTheme(theme)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := openStateDB(&cfg)
	defer db.Close()

	client := github.NewClient()
	if err := client.CheckAuth(ctx); err != nil {
		var authErr *github.AuthError
		if errors.As(err, &authErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", authErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: gh CLI check failed: %v\n", err)
		}
		os.Exit(1)
	}

	viewer, err := client.ViewerLogin(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s could not resolve viewer login: %v\n", warningSymbol, err)
	}

	filters, err := cfg.EventFilters(viewer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notifications.Enabled {
		desktop := notify.NewDesktop()
		for _, warning := range desktop.StartupWarnings() {
			fmt.Fprintf(os.Stderr, "%s %s\n", warningSymbol, warning)
		}
		notifier = desktop
	}

	repos := cfg.EnabledRepositories()
	runner := &watch.Runner{
		DB:                   db,
		Client:               client,
		Filters:              filters,
		Notifier:             notifier,
		Repos:                repos,
		BootstrapLookback:    time.Duration(cfg.BootstrapLookbackHours) * time.Hour,
		FetchTimeout:         cfg.FetchTimeout(),
		NotificationsEnabled: cfg.Notifications.Enabled,
		IncludeURL:           cfg.Notifications.IncludeURL,
		MaxDeliveryAttempts:  cfg.Notifications.MaxAttempts,
	}

	watcher := watch.NewWatcher(runner, cfg.Interval())
	watcher.RetentionDays = cfg.RetentionDays

	board := watch.NewStatusBoard(repos)
	home := ui.NewHome(db, watcher, board, cfg.TimelineLimit, cfg.Interval())

	if cfg.Theme == "system" {
		if tw := ui.NewThemeWatcher(ctx); tw != nil {
			home.SetThemeWatcher(tw)
			defer tw.Close()
		}
	}
	if sw := ui.NewStorageWatcher(db); sw != nil {
		home.SetStorageWatcher(sw)
		defer sw.Close()
	}

	p := tea.NewProgram(home, tea.WithAltScreen())

	watcher.OnCycle = func(result watch.CycleResult) {
		p.Send(ui.CycleMsg{Result: result})
	}

	// Config hot reload: repos and filters apply on the next cycle.
	// Interval changes still need a restart.
	if cw, cwErr := config.NewWatcher(loaded.ResolvedPath.Path, func(next config.Config) {
		nextFilters, ferr := next.EventFilters(viewer)
		if ferr != nil {
			return
		}
		watcher.Reconfigure(func(r *watch.Runner) {
			r.Repos = next.EnabledRepositories()
			r.Filters = nextFilters
			r.BootstrapLookback = time.Duration(next.BootstrapLookbackHours) * time.Hour
			r.FetchTimeout = next.FetchTimeout()
			r.NotificationsEnabled = next.Notifications.Enabled
			r.IncludeURL = next.Notifications.IncludeURL
			r.MaxDeliveryAttempts = next.Notifications.MaxAttempts
		})
	}); cwErr == nil {
		go cw.Start()
		defer cw.Stop()
	}

	go func() {
		_ = watcher.Run(ctx)
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	watcher.Stop()
	stop()
}

// openStateDB opens and migrates the state database, exiting with a
// friendly message on schema mismatch.
func openStateDB(cfg *config.Config) *statedb.StateDB {
	dbPath, err := cfg.StateDBPathOrDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	db, err := statedb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		if errors.Is(err, statedb.ErrSchemaMismatch) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: migrate state database: %v\n", err)
		}
		os.Exit(1)
	}
	return db
}
