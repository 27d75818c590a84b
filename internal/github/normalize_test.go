package github

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

var (
	t0    = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	after = t0.Add(time.Hour)
)

func user(login string) *ghUser {
	return &ghUser{Login: login}
}

func kindsOf(events []event.WatchEvent) []event.Kind {
	kinds := make([]event.Kind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestNormalizePullCreated(t *testing.T) {
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "Add thing", HTMLURL: "https://github.com/octo/repo/pull/1",
			CreatedAt: after, User: user("alice")},
	}, nil, nil, nil)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, event.KindPrCreated, ev.Kind)
	assert.Equal(t, "10", ev.SourceItemID)
	assert.Equal(t, "alice", ev.Actor)
	assert.Equal(t, "alice", ev.SubjectAuthor)
	assert.Equal(t, "octo/repo:pr_created:10", ev.Key())
}

func TestNormalizeExcludesDraftPulls(t *testing.T) {
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "WIP", Draft: true, CreatedAt: after, User: user("alice")},
	}, nil, nil, nil)

	assert.Empty(t, events)
}

func TestNormalizeExcludesDraftPullComments(t *testing.T) {
	events := normalizeEvents("octo/repo", t0,
		[]ghPull{
			{ID: 10, Number: 7, Title: "WIP", Draft: true, CreatedAt: t0.Add(-time.Hour), User: user("alice")},
		},
		nil,
		[]ghComment{
			{ID: 50, IssueURL: "https://api.github.com/repos/octo/repo/issues/7",
				Body: "looks good", CreatedAt: after, User: user("bob")},
		},
		[]ghComment{
			{ID: 51, PullRequestURL: "https://api.github.com/repos/octo/repo/pulls/7",
				Body: "nit", CreatedAt: after, User: user("bob")},
		},
	)

	assert.Empty(t, events)
}

func TestNormalizeExcludesPullsFromIssueListing(t *testing.T) {
	events := normalizeEvents("octo/repo", t0, nil, []ghIssue{
		{ID: 20, Number: 2, Title: "Real issue", CreatedAt: after, User: user("carol")},
		{ID: 21, Number: 3, Title: "Actually a PR", CreatedAt: after, User: user("carol"),
			PullRequest: map[string]any{"url": "https://example"}},
	}, nil, nil)

	require.Len(t, events, 1)
	assert.Equal(t, event.KindIssueCreated, events[0].Kind)
	assert.Equal(t, "20", events[0].SourceItemID)
}

func TestNormalizeMergedPull(t *testing.T) {
	merged := after.Add(time.Minute)
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "Add thing", CreatedAt: t0.Add(-time.Hour),
			UpdatedAt: &merged, MergedAt: &merged,
			User: user("alice"), MergedBy: user("maintainer")},
	}, nil, nil, nil)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, event.KindPrMerged, ev.Kind)
	assert.Equal(t, "maintainer", ev.Actor)
	assert.Equal(t, "alice", ev.SubjectAuthor)
	assert.Equal(t, "Merged: Add thing", ev.Title)
	assert.True(t, ev.CreatedAt.Equal(merged))
}

func TestNormalizeMergedBeforeSinceIsSkipped(t *testing.T) {
	oldMerge := t0.Add(-time.Minute)
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "Old", CreatedAt: t0.Add(-2 * time.Hour),
			UpdatedAt: &after, MergedAt: &oldMerge, User: user("alice")},
	}, nil, nil, nil)

	assert.Empty(t, events)
}

func TestNormalizeReviewRequested(t *testing.T) {
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "Add thing", CreatedAt: t0.Add(-time.Hour),
			UpdatedAt: &after, User: user("alice"),
			RequestedReviewers: []ghUser{{Login: "bob"}, {Login: "carol"}}},
	}, nil, nil, nil)

	require.Len(t, events, 2)
	assert.Equal(t, "10:bob", events[0].SourceItemID)
	assert.Equal(t, "bob", events[0].RequestedReviewer)
	assert.Equal(t, "Review requested: Add thing", events[0].Title)
	assert.Equal(t, "10:carol", events[1].SourceItemID)
}

func TestNormalizeIssueCommentTitleAndSubject(t *testing.T) {
	events := normalizeEvents("octo/repo", t0,
		nil,
		[]ghIssue{
			{ID: 20, Number: 2, Title: "Bug report", CreatedAt: t0.Add(-time.Hour), User: user("carol")},
		},
		[]ghComment{
			{ID: 50, IssueURL: "https://api.github.com/repos/octo/repo/issues/2",
				HTMLURL: "https://github.com/octo/repo/issues/2#issuecomment-50",
				Body:    "I can reproduce this\nwith more detail below",
				CreatedAt: after, User: user("dave")},
		},
		nil,
	)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, event.KindIssueCommentCreated, ev.Kind)
	assert.Equal(t, "I can reproduce this", ev.Title)
	assert.Equal(t, "carol", ev.SubjectAuthor)
}

func TestNormalizeCommentTitleFallbackAndTruncation(t *testing.T) {
	assert.Equal(t, "New issue/PR comment", titleFromComment("", "New issue/PR comment"))
	assert.Equal(t, "New issue/PR comment", titleFromComment("\n\nbody", "New issue/PR comment"))

	long := ""
	for i := 0; i < 130; i++ {
		long += "x"
	}
	got := titleFromComment(long, "fallback")
	assert.Len(t, []rune(got), 122) // 119 chars + "..."
	assert.Equal(t, "...", got[len(got)-3:])
}

func TestNormalizeReviewSubmittedOncePerReview(t *testing.T) {
	reviewID := int64(900)
	events := normalizeEvents("octo/repo", t0,
		[]ghPull{
			{ID: 10, Number: 1, Title: "Add thing", CreatedAt: t0.Add(-time.Hour), User: user("alice")},
		},
		nil, nil,
		[]ghComment{
			{ID: 60, PullRequestURL: "https://api.github.com/repos/octo/repo/pulls/1",
				PullRequestReviewID: &reviewID, Body: "first", CreatedAt: after, User: user("bob")},
			{ID: 61, PullRequestURL: "https://api.github.com/repos/octo/repo/pulls/1",
				PullRequestReviewID: &reviewID, Body: "second", CreatedAt: after.Add(time.Second), User: user("bob")},
		},
	)

	assert.Equal(t, []event.Kind{
		event.KindPrReviewCommentCreated,
		event.KindPrReviewSubmitted,
		event.KindPrReviewCommentCreated,
	}, kindsOf(events))
	assert.Equal(t, "900", events[1].SourceItemID)
	assert.Equal(t, "alice", events[1].SubjectAuthor)
}

func TestNormalizeActorFallsBackToUnknown(t *testing.T) {
	events := normalizeEvents("octo/repo", t0, []ghPull{
		{ID: 10, Number: 1, Title: "Ghost PR", CreatedAt: after},
	}, nil, nil, nil)

	require.Len(t, events, 1)
	assert.Equal(t, "unknown", events[0].Actor)
	assert.Empty(t, events[0].SubjectAuthor)
}

func TestNormalizeSortsOldestFirst(t *testing.T) {
	events := normalizeEvents("octo/repo", t0,
		[]ghPull{
			{ID: 11, Number: 4, Title: "Later", CreatedAt: after.Add(time.Hour), User: user("a")},
		},
		[]ghIssue{
			{ID: 20, Number: 2, Title: "Earlier", CreatedAt: after, User: user("b")},
		},
		nil, nil,
	)

	require.Len(t, events, 2)
	assert.Equal(t, event.KindIssueCreated, events[0].Kind)
	assert.Equal(t, event.KindPrCreated, events[1].Kind)
}

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob-2"},
		extractMentions("cc @alice and @bob-2, plus a stray @ sign"))
	assert.Empty(t, extractMentions("no mentions here"))
}

func TestMergePullsByID(t *testing.T) {
	updated := after
	merged := mergePullsByID(
		[]ghPull{{ID: 1, Title: "created view"}, {ID: 2, Title: "only created"}},
		[]ghPull{{ID: 1, Title: "updated view", UpdatedAt: &updated}, {ID: 3, Title: "only updated"}},
	)

	require.Len(t, merged, 3)
	byID := make(map[int64]ghPull)
	for _, pr := range merged {
		byID[pr.ID] = pr
	}
	assert.Equal(t, "updated view", byID[1].Title)
	assert.Equal(t, "only created", byID[2].Title)
	assert.Equal(t, "only updated", byID[3].Title)
}

func TestParseNumberFromURL(t *testing.T) {
	n, ok := parseNumberFromURL("https://api.github.com/repos/octo/repo/issues/42")
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	n, ok = parseNumberFromURL("https://api.github.com/repos/octo/repo/pulls/7?page=2")
	require.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = parseNumberFromURL("https://api.github.com/repos/octo/repo")
	assert.False(t, ok)

	_, ok = parseNumberFromURL("")
	assert.False(t, ok)
}
