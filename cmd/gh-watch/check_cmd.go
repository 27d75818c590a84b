package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/asheshgoplani/gh-watch/internal/config"
	"github.com/asheshgoplani/gh-watch/internal/github"
	"github.com/asheshgoplani/gh-watch/internal/notify"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

type checkItem struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
	Warning bool   `json:"warning,omitempty"`
}

// handleCheck verifies the pieces a watch run depends on: config, the
// gh CLI and its auth, the notification backend, and the state
// database.
func handleCheck(configPath string, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "Output machine-readable JSON")
	fs.Parse(normalizeArgs(fs, args))

	out := NewCLIOutput(*jsonMode, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var items []checkItem
	add := func(item checkItem) { items = append(items, item) }

	// Config
	loaded, err := config.Load(configPath)
	var cfg config.Config
	if err != nil {
		add(checkItem{Name: "config", OK: false, Detail: err.Error()})
	} else {
		cfg = loaded.Config
		add(checkItem{
			Name:   "config",
			OK:     true,
			Detail: fmt.Sprintf("%s (%d repositories)", FormatPath(loaded.ResolvedPath.Path), len(cfg.EnabledRepositories())),
		})
		for _, warning := range cfg.StabilityWarnings() {
			add(checkItem{Name: "config", OK: true, Warning: true, Detail: warning})
		}
	}

	// gh CLI auth
	client := github.NewClient()
	if err := client.CheckAuth(ctx); err != nil {
		add(checkItem{Name: "github", OK: false, Detail: err.Error()})
	} else if viewer, err := client.ViewerLogin(ctx); err != nil {
		add(checkItem{Name: "github", OK: true, Warning: true,
			Detail: fmt.Sprintf("authenticated, viewer lookup failed: %v", err)})
	} else {
		add(checkItem{Name: "github", OK: true, Detail: "authenticated as @" + viewer})
	}

	// Notifications
	if !cfg.Notifications.Enabled {
		add(checkItem{Name: "notifications", OK: true, Detail: "disabled in config"})
	} else {
		desktop := notify.NewDesktop()
		if err := desktop.CheckHealth(); err != nil {
			add(checkItem{Name: "notifications", OK: false, Detail: err.Error()})
		} else if warnings := desktop.StartupWarnings(); len(warnings) > 0 {
			for _, warning := range warnings {
				add(checkItem{Name: "notifications", OK: true, Warning: true, Detail: warning})
			}
		} else {
			add(checkItem{Name: "notifications", OK: true, Detail: "desktop backend ready"})
		}
	}

	// State database
	if dbPath, err := cfg.StateDBPathOrDefault(); err != nil {
		add(checkItem{Name: "state", OK: false, Detail: err.Error()})
	} else if db, err := statedb.Open(dbPath); err != nil {
		add(checkItem{Name: "state", OK: false, Detail: err.Error()})
	} else {
		if err := db.Migrate(); err != nil {
			if errors.Is(err, statedb.ErrSchemaMismatch) {
				add(checkItem{Name: "state", OK: false, Detail: err.Error()})
			} else {
				add(checkItem{Name: "state", OK: false, Detail: fmt.Sprintf("migrate: %v", err)})
			}
		} else if stats, err := db.CollectStats(); err != nil {
			add(checkItem{Name: "state", OK: false, Detail: err.Error()})
		} else {
			add(checkItem{
				Name: "state",
				OK:   true,
				Detail: fmt.Sprintf("%s: %d events (%d unread), %d pending, %d abandoned",
					FormatPath(dbPath), stats.Events, stats.Unread,
					stats.Backlog.Pending, stats.Backlog.Abandoned),
			})
		}
		db.Close()
	}

	healthy := true
	var human strings.Builder
	for _, item := range items {
		symbol := successSymbol
		if !item.OK {
			symbol = errorSymbol
			healthy = false
		} else if item.Warning {
			symbol = warningSymbol
		}
		fmt.Fprintf(&human, "%s %-14s %s\n", symbol, item.Name, item.Detail)
	}

	out.Print(human.String(), map[string]interface{}{
		"healthy": healthy,
		"checks":  items,
	})
	if !healthy {
		os.Exit(1)
	}
}
