package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asheshgoplani/gh-watch/internal/config"
	"github.com/asheshgoplani/gh-watch/internal/event"
	"github.com/asheshgoplani/gh-watch/internal/github"
	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/notify"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
	"github.com/asheshgoplani/gh-watch/internal/watch"
)

type onceRepoResult struct {
	Repo      string `json:"repo"`
	Bootstrap bool   `json:"bootstrap"`
	NewEvents int    `json:"new_events"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

type onceResult struct {
	CycleID   string           `json:"cycle_id"`
	NewEvents int              `json:"new_events"`
	Repos     []onceRepoResult `json:"repos"`
	Delivered int              `json:"delivered"`
	Failed    bool             `json:"failed"`
}

// handleOnce runs a single poll cycle and exits. With --dry-run it
// fetches and classifies without touching the state database or the
// notifier.
func handleOnce(configPath string, args []string) {
	fs := flag.NewFlagSet("once", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "Output machine-readable JSON")
	dryRun := fs.Bool("dry-run", false, "Fetch and classify without persisting or notifying")
	quiet := fs.Bool("quiet", false, "Suppress output, exit code only")
	fs.Parse(normalizeArgs(fs, args))

	out := NewCLIOutput(*jsonMode, *quiet)

	loaded, err := config.Load(configPath)
	if err != nil {
		out.Error(err.Error(), ErrCodeConfig)
		os.Exit(1)
	}
	cfg := loaded.Config

	initLogging(&cfg)
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := github.NewClient()
	if err := client.CheckAuth(ctx); err != nil {
		out.Error(err.Error(), ErrCodeAuth)
		os.Exit(1)
	}
	viewer, _ := client.ViewerLogin(ctx)

	filters, err := cfg.EventFilters(viewer)
	if err != nil {
		out.Error(err.Error(), ErrCodeConfig)
		os.Exit(1)
	}

	db := openStateDB(&cfg)
	defer db.Close()

	if *dryRun {
		runDryOnce(ctx, out, &cfg, db, client, filters)
		return
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notifications.Enabled {
		notifier = notify.NewDesktop()
	}

	runner := &watch.Runner{
		DB:                   db,
		Client:               client,
		Filters:              filters,
		Notifier:             notifier,
		Repos:                cfg.EnabledRepositories(),
		BootstrapLookback:    time.Duration(cfg.BootstrapLookbackHours) * time.Hour,
		FetchTimeout:         cfg.FetchTimeout(),
		NotificationsEnabled: cfg.Notifications.Enabled,
		IncludeURL:           cfg.Notifications.IncludeURL,
		MaxDeliveryAttempts:  cfg.Notifications.MaxAttempts,
	}

	result := runner.RunCycle(ctx)

	summary := onceResult{
		CycleID:   result.ID,
		NewEvents: result.NewEventCount(),
		Delivered: result.Delivery.Delivered,
		Failed:    result.Failed(),
	}
	var human strings.Builder
	for _, repo := range result.Repos {
		rr := onceRepoResult{
			Repo:      repo.Repo,
			Bootstrap: repo.Bootstrap,
			NewEvents: len(repo.NewEvents),
			Attempts:  repo.Attempts,
		}
		if repo.Err != nil {
			rr.Error = repo.Err.Error()
			fmt.Fprintf(&human, "%s %s: %v\n", errorSymbol, repo.Repo, repo.Err)
		} else if repo.Bootstrap {
			fmt.Fprintf(&human, "%s %s: bootstrapped, %d events recorded (notifications begin next poll)\n",
				successSymbol, repo.Repo, len(repo.NewEvents))
		} else {
			fmt.Fprintf(&human, "%s %s: %d new events\n", successSymbol, repo.Repo, len(repo.NewEvents))
		}
		summary.Repos = append(summary.Repos, rr)
	}
	fmt.Fprintf(&human, "%d new events, %d notifications delivered\n",
		summary.NewEvents, summary.Delivered)

	out.Print(human.String(), summary)
	if result.Failed() {
		os.Exit(1)
	}
}

type dryRunEvent struct {
	Repo     string `json:"repo"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Actor    string `json:"actor"`
	URL      string `json:"url,omitempty"`
	Decision string `json:"decision"`
}

// runDryOnce fetches each repo's window and prints what a real cycle
// would record, without writing state or notifying.
func runDryOnce(ctx context.Context, out *CLIOutput, cfg *config.Config, db *statedb.StateDB, client *github.Client, filters event.Filters) {
	now := time.Now().UTC()
	lookback := time.Duration(cfg.BootstrapLookbackHours) * time.Hour

	var all []dryRunEvent
	var human strings.Builder
	failed := false

	for _, repo := range cfg.EnabledRepositories() {
		cursor, ok, err := db.GetCursor(repo)
		if err != nil {
			out.Error(err.Error(), ErrCodeState)
			os.Exit(1)
		}
		since := now.Add(-lookback)
		if ok {
			since = cursor.Add(-watch.CursorOverlap)
		}

		fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout())
		events, err := client.FetchRepoEvents(fetchCtx, repo, since)
		cancel()
		if err != nil {
			failed = true
			fmt.Fprintf(&human, "%s %s: %v\n", errorSymbol, repo, err)
			continue
		}

		fmt.Fprintf(&human, "%s %s: %d candidate events since %s\n",
			successSymbol, repo, len(events), since.Format(time.RFC3339))
		for i := range events {
			ev := events[i]
			decision := "log"
			switch filters.Decide(&ev) {
			case event.Notify:
				decision = "notify"
			case event.Drop:
				decision = "drop"
			}
			fmt.Fprintf(&human, "  %s [%s] %s by @%s (%s)\n",
				bulletSymbol, ev.Kind, ev.Title, ev.Actor, decision)
			all = append(all, dryRunEvent{
				Repo:     ev.Repo,
				Kind:     string(ev.Kind),
				Title:    ev.Title,
				Actor:    ev.Actor,
				URL:      ev.URL,
				Decision: decision,
			})
		}
	}

	out.Print(human.String(), map[string]interface{}{
		"dry_run": true,
		"events":  all,
		"failed":  failed,
	})
	if failed {
		os.Exit(1)
	}
}
