package watch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/gh-watch/internal/event"
	"github.com/asheshgoplani/gh-watch/internal/notify"
	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

// fakeFetcher serves canned results per repo and records the windows it
// was asked for.
type fakeFetcher struct {
	events map[string][]event.WatchEvent
	errs   map[string]error
	// failures counts down transient errors before success.
	failures map[string]int
	since    map[string][]time.Time
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		events:   make(map[string][]event.WatchEvent),
		errs:     make(map[string]error),
		failures: make(map[string]int),
		since:    make(map[string][]time.Time),
	}
}

func (f *fakeFetcher) FetchRepoEvents(_ context.Context, repo string, since time.Time) ([]event.WatchEvent, error) {
	f.since[repo] = append(f.since[repo], since)
	if n := f.failures[repo]; n > 0 {
		f.failures[repo] = n - 1
		return nil, errors.New("transient upstream error")
	}
	if err := f.errs[repo]; err != nil {
		return nil, err
	}
	var out []event.WatchEvent
	for _, ev := range f.events[repo] {
		if ev.CreatedAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// fakeNotifier records deliveries and optionally fails them all.
type fakeNotifier struct {
	payloads []notify.Payload
	err      error
}

func (f *fakeNotifier) CheckHealth() error { return nil }

func (f *fakeNotifier) Notify(p notify.Payload, _ bool) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestRunner(t *testing.T, repos ...string) (*Runner, *fakeFetcher, *fakeNotifier) {
	t.Helper()
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	fetcher := newFakeFetcher()
	notifier := &fakeNotifier{}
	runner := &Runner{
		DB:                   db,
		Client:               fetcher,
		Notifier:             notifier,
		Repos:                repos,
		BootstrapLookback:    24 * time.Hour,
		NotificationsEnabled: true,
		IncludeURL:           true,
		MaxDeliveryAttempts:  3,
		Now:                  func() time.Time { return testNow },
	}
	return runner, fetcher, notifier
}

func mkEvent(repo, id string, createdAt time.Time) event.WatchEvent {
	return event.WatchEvent{
		Repo:         repo,
		Kind:         event.KindPrCreated,
		SourceItemID: id,
		Actor:        "alice",
		Title:        "PR " + id,
		URL:          "https://github.com/" + repo + "/pull/" + id,
		CreatedAt:    createdAt,
	}
}

func quickRetries(t *testing.T) {
	t.Helper()
	orig := fetchBackoff
	fetchBackoff = []time.Duration{0, 0}
	t.Cleanup(func() { fetchBackoff = orig })
}

func TestBootstrapSilence(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/repo")
	fetcher.events["octo/repo"] = []event.WatchEvent{
		mkEvent("octo/repo", "1", testNow.Add(-time.Hour)),
	}

	result := runner.RunCycle(context.Background())

	require.Len(t, result.Repos, 1)
	assert.True(t, result.Repos[0].Bootstrap)
	assert.Len(t, result.Repos[0].NewEvents, 1)
	assert.Empty(t, notifier.payloads, "bootstrap must not notify")

	cursor, ok, err := runner.DB.GetCursor("octo/repo")
	require.NoError(t, err)
	require.True(t, ok, "bootstrap must seed the cursor")
	assert.True(t, cursor.Equal(testNow))

	// History still lands in the timeline.
	timeline, err := runner.DB.RecentTimeline(10)
	require.NoError(t, err)
	assert.Len(t, timeline, 1)
}

func TestOverlapWindowAndNoRenotify(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/repo")
	lastPoll := testNow.Add(-10 * time.Minute)
	require.NoError(t, runner.DB.SetCursor("octo/repo", lastPoll))

	// Event inside the overlap window, already seen and delivered.
	old := mkEvent("octo/repo", "1", lastPoll.Add(-100*time.Second))
	_, err := runner.DB.RecordBatch("octo/repo", lastPoll,
		[]event.WatchEvent{old}, map[string]bool{old.Key(): true}, lastPoll)
	require.NoError(t, err)
	require.NoError(t, runner.DB.MarkDelivered([]string{old.Key()}))

	fetcher.events["octo/repo"] = []event.WatchEvent{old}

	result := runner.RunCycle(context.Background())

	require.Len(t, fetcher.since["octo/repo"], 1)
	assert.True(t, fetcher.since["octo/repo"][0].Equal(lastPoll.Add(-CursorOverlap)),
		"since must be last_polled_at minus the overlap")

	assert.Empty(t, result.Repos[0].NewEvents, "re-fetched event must deduplicate")
	assert.Empty(t, notifier.payloads, "re-fetched event must not re-notify")

	cursor, _, err := runner.DB.GetCursor("octo/repo")
	require.NoError(t, err)
	assert.True(t, cursor.Equal(testNow), "cursor still advances")
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	quickRetries(t)
	runner, fetcher, _ := newTestRunner(t, "octo/repo")
	fetcher.failures["octo/repo"] = 2
	fetcher.events["octo/repo"] = []event.WatchEvent{
		mkEvent("octo/repo", "1", testNow.Add(-time.Hour)),
	}

	result := runner.RunCycle(context.Background())

	require.NoError(t, result.Repos[0].Err)
	assert.Equal(t, 3, result.Repos[0].Attempts)
	assert.Len(t, result.Repos[0].NewEvents, 1)
}

func TestPartialFailureIsolation(t *testing.T) {
	quickRetries(t)
	runner, fetcher, _ := newTestRunner(t, "octo/good", "octo/bad")
	require.NoError(t, runner.DB.SetCursor("octo/good", testNow.Add(-time.Hour)))
	require.NoError(t, runner.DB.SetCursor("octo/bad", testNow.Add(-time.Hour)))

	fetcher.events["octo/good"] = []event.WatchEvent{
		mkEvent("octo/good", "1", testNow.Add(-time.Minute)),
	}
	fetcher.errs["octo/bad"] = errors.New("upstream down")

	result := runner.RunCycle(context.Background())

	assert.False(t, result.Failed(), "one success keeps the cycle successful")
	require.Len(t, result.Repos, 2)
	assert.NoError(t, result.Repos[0].Err)
	assert.Len(t, result.Repos[0].NewEvents, 1)
	require.Error(t, result.Repos[1].Err)
	assert.Equal(t, 3, result.Repos[1].Attempts, "failed repo exhausts all attempts")

	good, _, err := runner.DB.GetCursor("octo/good")
	require.NoError(t, err)
	assert.True(t, good.Equal(testNow), "successful repo's cursor advances")

	bad, _, err := runner.DB.GetCursor("octo/bad")
	require.NoError(t, err)
	assert.True(t, bad.Equal(testNow.Add(-time.Hour)), "failed repo's cursor must not move")
}

func TestAllFailCycle(t *testing.T) {
	quickRetries(t)
	runner, fetcher, _ := newTestRunner(t, "octo/a", "octo/b")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	require.NoError(t, runner.DB.SetCursor("octo/b", testNow.Add(-time.Hour)))
	fetcher.errs["octo/a"] = errors.New("down")
	fetcher.errs["octo/b"] = errors.New("down")

	result := runner.RunCycle(context.Background())

	assert.True(t, result.Failed())
	for _, repo := range []string{"octo/a", "octo/b"} {
		cursor, _, err := runner.DB.GetCursor(repo)
		require.NoError(t, err)
		assert.True(t, cursor.Equal(testNow.Add(-time.Hour)), "no cursor may advance")
	}
}

func TestDigestCollapsing(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a", "octo/b")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	require.NoError(t, runner.DB.SetCursor("octo/b", testNow.Add(-time.Hour)))

	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
		mkEvent("octo/a", "2", testNow.Add(-2*time.Minute)),
	}
	fetcher.events["octo/b"] = []event.WatchEvent{
		mkEvent("octo/b", "3", testNow.Add(-3*time.Minute)),
	}

	result := runner.RunCycle(context.Background())

	assert.Equal(t, 3, result.NewEventCount())
	require.Len(t, notifier.payloads, 1, "three events collapse into one delivery")
	digest := notifier.payloads[0].Digest
	require.NotNil(t, digest, "multi-event delivery must be a digest")
	assert.Equal(t, 3, digest.TotalEvents)
	assert.Equal(t, 3, result.Delivery.Delivered)
}

func TestSingleEventDeliversWithoutDigest(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
	}

	runner.RunCycle(context.Background())

	require.Len(t, notifier.payloads, 1)
	require.NotNil(t, notifier.payloads[0].Event)
	assert.Equal(t, "PR 1", notifier.payloads[0].Event.Title)
}

func TestDurabilityOverDelivery(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
		mkEvent("octo/a", "2", testNow.Add(-2*time.Minute)),
		mkEvent("octo/a", "3", testNow.Add(-3*time.Minute)),
	}
	notifier.err = errors.New("backend offline")

	result := runner.RunCycle(context.Background())
	assert.Equal(t, 3, result.Delivery.Failed)

	// Retry passes: advance the clock past each backoff step.
	runner.Now = func() time.Time { return testNow.Add(time.Minute) }
	runner.DrainQueue(context.Background())
	runner.Now = func() time.Time { return testNow.Add(10 * time.Minute) }
	runner.DrainQueue(context.Background())

	backlog, err := runner.DB.Backlog()
	require.NoError(t, err)
	assert.Equal(t, 3, backlog.Abandoned, "entries hit the attempt ceiling")
	assert.Equal(t, 0, backlog.Pending)

	// Events were never lost or re-classified.
	timeline, err := runner.DB.RecentTimeline(10)
	require.NoError(t, err)
	assert.Len(t, timeline, 3)
	assert.Len(t, notifier.payloads, 3, "one backend call per drain pass")

	// A later drain leaves abandoned entries alone.
	runner.Now = func() time.Time { return testNow.Add(time.Hour) }
	res := runner.DrainQueue(context.Background())
	assert.Zero(t, res.Due)
}

func TestDeliveryBackoffDefersRetry(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
	}
	notifier.err = errors.New("backend offline")

	runner.RunCycle(context.Background())
	require.Len(t, notifier.payloads, 1)

	// Too early: the 30s backoff has not elapsed.
	runner.Now = func() time.Time { return testNow.Add(10 * time.Second) }
	res := runner.DrainQueue(context.Background())
	assert.Zero(t, res.Due, "entry is not due before its backoff")
	assert.Len(t, notifier.payloads, 1)

	runner.Now = func() time.Time { return testNow.Add(time.Minute) }
	res = runner.DrainQueue(context.Background())
	assert.Equal(t, 1, res.Due)
	assert.Len(t, notifier.payloads, 2)
}

func TestFilteredEventsLogButDoNotNotify(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	runner.Filters = event.Filters{IgnoreActors: []string{"alice"}}
	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
	}

	result := runner.RunCycle(context.Background())

	assert.Equal(t, 1, result.NewEventCount())
	assert.Empty(t, notifier.payloads)

	timeline, err := runner.DB.RecentTimeline(10)
	require.NoError(t, err)
	assert.Len(t, timeline, 1)
}

func TestNotificationsDisabled(t *testing.T) {
	runner, fetcher, notifier := newTestRunner(t, "octo/a")
	require.NoError(t, runner.DB.SetCursor("octo/a", testNow.Add(-time.Hour)))
	runner.NotificationsEnabled = false
	fetcher.events["octo/a"] = []event.WatchEvent{
		mkEvent("octo/a", "1", testNow.Add(-time.Minute)),
	}

	result := runner.RunCycle(context.Background())

	assert.Equal(t, 1, result.NewEventCount())
	assert.Empty(t, notifier.payloads)
	backlog, err := runner.DB.Backlog()
	require.NoError(t, err)
	assert.Zero(t, backlog.Pending)
}
