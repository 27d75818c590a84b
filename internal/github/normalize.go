package github

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

const commentTitleMaxChars = 120

// normalizeEvents converts raw API items into watch events. Only
// activity strictly after since counts. Draft pull requests and their
// comments are excluded; pulls that show up in the issues endpoint are
// skipped there. Events come back sorted oldest first.
func normalizeEvents(
	repo string,
	since time.Time,
	pulls []ghPull,
	issues []ghIssue,
	issueComments, reviewComments []ghComment,
) []event.WatchEvent {
	var events []event.WatchEvent

	draftPullNumbers := make(map[int64]bool)
	pullAuthorByNumber := make(map[int64]string)
	for _, pr := range pulls {
		if pr.Draft {
			draftPullNumbers[pr.numberOrID()] = true
		}
		if pr.User != nil {
			pullAuthorByNumber[pr.numberOrID()] = pr.User.Login
		}
	}
	issueAuthorByNumber := make(map[int64]string)
	for _, issue := range issues {
		if issue.User != nil {
			issueAuthorByNumber[issue.numberOrID()] = issue.User.Login
		}
	}

	for _, pr := range pulls {
		if pr.Draft {
			continue
		}
		actor := loginOrUnknown(pr.User)

		if pr.CreatedAt.After(since) {
			events = append(events, event.WatchEvent{
				Repo:          repo,
				Kind:          event.KindPrCreated,
				SourceItemID:  strconv.FormatInt(pr.ID, 10),
				Actor:         actor,
				Title:         pr.Title,
				URL:           pr.HTMLURL,
				CreatedAt:     pr.CreatedAt,
				SubjectAuthor: actor,
				Mentions:      extractMentions(pr.Title),
			})
		}

		if pr.updatedOrCreated().After(since) {
			if pr.MergedAt != nil && pr.MergedAt.After(since) {
				mergeActor := actor
				if pr.MergedBy != nil {
					mergeActor = pr.MergedBy.Login
				}
				events = append(events, event.WatchEvent{
					Repo:          repo,
					Kind:          event.KindPrMerged,
					SourceItemID:  strconv.FormatInt(pr.ID, 10),
					Actor:         mergeActor,
					Title:         "Merged: " + pr.Title,
					URL:           pr.HTMLURL,
					CreatedAt:     *pr.MergedAt,
					SubjectAuthor: subjectAuthor(pr.User),
				})
			}
			for _, reviewer := range pr.RequestedReviewers {
				events = append(events, event.WatchEvent{
					Repo:              repo,
					Kind:              event.KindPrReviewRequested,
					SourceItemID:      fmt.Sprintf("%d:%s", pr.ID, reviewer.Login),
					Actor:             actor,
					Title:             "Review requested: " + pr.Title,
					URL:               pr.HTMLURL,
					CreatedAt:         pr.updatedOrCreated(),
					SubjectAuthor:     subjectAuthor(pr.User),
					RequestedReviewer: reviewer.Login,
				})
			}
		}
	}

	for _, issue := range issues {
		if issue.PullRequest != nil || !issue.CreatedAt.After(since) {
			continue
		}
		actor := loginOrUnknown(issue.User)
		events = append(events, event.WatchEvent{
			Repo:          repo,
			Kind:          event.KindIssueCreated,
			SourceItemID:  strconv.FormatInt(issue.ID, 10),
			Actor:         actor,
			Title:         issue.Title,
			URL:           issue.HTMLURL,
			CreatedAt:     issue.CreatedAt,
			SubjectAuthor: actor,
			Mentions:      extractMentions(issue.Title),
		})
	}

	for _, c := range issueComments {
		if !c.CreatedAt.After(since) || referencesDraftPull(c.IssueURL, draftPullNumbers) {
			continue
		}
		var subject string
		if number, ok := parseNumberFromURL(c.IssueURL); ok {
			if author, ok := pullAuthorByNumber[number]; ok {
				subject = author
			} else {
				subject = issueAuthorByNumber[number]
			}
		}
		events = append(events, event.WatchEvent{
			Repo:          repo,
			Kind:          event.KindIssueCommentCreated,
			SourceItemID:  strconv.FormatInt(c.ID, 10),
			Actor:         loginOrUnknown(c.User),
			Title:         titleFromComment(c.Body, "New issue/PR comment"),
			URL:           c.HTMLURL,
			CreatedAt:     c.CreatedAt,
			SubjectAuthor: subject,
			Mentions:      extractMentions(c.Body),
		})
	}

	seenReviewIDs := make(map[int64]bool)
	for _, c := range reviewComments {
		if !c.CreatedAt.After(since) || referencesDraftPull(c.PullRequestURL, draftPullNumbers) {
			continue
		}
		var subject string
		if number, ok := parseNumberFromURL(c.PullRequestURL); ok {
			subject = pullAuthorByNumber[number]
		}
		actor := loginOrUnknown(c.User)

		events = append(events, event.WatchEvent{
			Repo:          repo,
			Kind:          event.KindPrReviewCommentCreated,
			SourceItemID:  strconv.FormatInt(c.ID, 10),
			Actor:         actor,
			Title:         titleFromComment(c.Body, "New PR review comment"),
			URL:           c.HTMLURL,
			CreatedAt:     c.CreatedAt,
			SubjectAuthor: subject,
			Mentions:      extractMentions(c.Body),
		})

		// One review-submitted event per review, keyed by the review id
		// shared across its inline comments.
		if c.PullRequestReviewID != nil && !seenReviewIDs[*c.PullRequestReviewID] {
			seenReviewIDs[*c.PullRequestReviewID] = true
			events = append(events, event.WatchEvent{
				Repo:          repo,
				Kind:          event.KindPrReviewSubmitted,
				SourceItemID:  strconv.FormatInt(*c.PullRequestReviewID, 10),
				Actor:         actor,
				Title:         titleFromComment(c.Body, "PR review submitted"),
				URL:           c.HTMLURL,
				CreatedAt:     c.CreatedAt,
				SubjectAuthor: subject,
				Mentions:      extractMentions(c.Body),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events
}

// mergePullsByID combines the created-sorted and updated-sorted pull
// listings; rows from the updated listing win on conflict.
func mergePullsByID(created, updated []ghPull) []ghPull {
	byID := make(map[int64]ghPull, len(created)+len(updated))
	var order []int64
	for _, pr := range created {
		if _, ok := byID[pr.ID]; !ok {
			order = append(order, pr.ID)
		}
		byID[pr.ID] = pr
	}
	for _, pr := range updated {
		if _, ok := byID[pr.ID]; !ok {
			order = append(order, pr.ID)
		}
		byID[pr.ID] = pr
	}
	merged := make([]ghPull, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}

func loginOrUnknown(u *ghUser) string {
	if u == nil {
		return "unknown"
	}
	return u.Login
}

func subjectAuthor(u *ghUser) string {
	if u == nil {
		return ""
	}
	return u.Login
}

// titleFromComment takes the first non-empty line of a comment body,
// truncated for notification display.
func titleFromComment(body, fallback string) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return truncateChars(line, commentTitleMaxChars)
}

func truncateChars(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars-1]) + "..."
}

// parseNumberFromURL pulls the trailing item number out of an API URL
// like ".../issues/42" or ".../pulls/42?page=2".
func parseNumberFromURL(url string) (int64, bool) {
	if url == "" {
		return 0, false
	}
	tail := url[strings.LastIndex(url, "/")+1:]
	tail, _, _ = strings.Cut(tail, "?")
	n, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func referencesDraftPull(url string, draftPullNumbers map[int64]bool) bool {
	n, ok := parseNumberFromURL(url)
	return ok && draftPullNumbers[n]
}

// extractMentions collects @login references from text.
func extractMentions(text string) []string {
	var mentions []string
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		start := i + 1
		end := start
		for end < len(text) && isLoginChar(text[end]) {
			end++
		}
		if end > start {
			mentions = append(mentions, text[start:end])
			i = end - 1
		}
	}
	return mentions
}

func isLoginChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '-' || c == '_'
}
