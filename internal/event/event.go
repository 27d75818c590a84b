package event

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind classifies a watched activity record into one of the seven
// notification-worthy categories.
type Kind string

const (
	KindPrCreated             Kind = "pr_created"
	KindIssueCreated          Kind = "issue_created"
	KindIssueCommentCreated   Kind = "issue_comment_created"
	KindPrReviewCommentCreated Kind = "pr_review_comment_created"
	KindPrReviewRequested     Kind = "pr_review_requested"
	KindPrReviewSubmitted     Kind = "pr_review_submitted"
	KindPrMerged              Kind = "pr_merged"
)

// AllKinds lists every valid kind, in display order.
var AllKinds = []Kind{
	KindPrCreated,
	KindIssueCreated,
	KindIssueCommentCreated,
	KindPrReviewCommentCreated,
	KindPrReviewRequested,
	KindPrReviewSubmitted,
	KindPrMerged,
}

// ParseKind validates a config-supplied kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// WatchEvent is one classified activity occurrence. It is a transient value:
// the durable form is the timeline row keyed by Key().
type WatchEvent struct {
	Repo         string    `json:"repo"`
	Kind         Kind      `json:"kind"`
	SourceItemID string    `json:"source_item_id"`
	Actor        string    `json:"actor"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`

	// Involvement hints used by the only_involving_me filter.
	SubjectAuthor     string   `json:"subject_author,omitempty"`
	RequestedReviewer string   `json:"requested_reviewer,omitempty"`
	Mentions          []string `json:"mentions,omitempty"`
}

// Key returns the deterministic dedup key. Re-fetching the same upstream
// record during an overlap window always yields the same key.
func (e *WatchEvent) Key() string {
	return e.Repo + ":" + string(e.Kind) + ":" + e.SourceItemID
}

// Filters holds the notification filter settings from config.
type Filters struct {
	// Kinds is an allow-list; empty means all kinds pass.
	Kinds []Kind

	// IgnoreActors suppresses events whose actor login is listed.
	IgnoreActors []string

	// OnlyInvolvingMe keeps only events that involve ViewerLogin.
	OnlyInvolvingMe bool

	// ViewerLogin is the authenticated user, resolved at startup.
	ViewerLogin string

	// DropFiltered removes filtered events entirely instead of logging
	// them to the timeline with notifications muted.
	DropFiltered bool
}

// Decision is the classifier verdict for one event.
type Decision int

const (
	// Notify: log to the timeline and enqueue a notification.
	Notify Decision = iota
	// LogOnly: log to the timeline but never notify.
	LogOnly
	// Drop: discard the event entirely.
	Drop
)

// Decide applies the filter chain in order: kind allow-list, ignored
// actors, then involvement. The first failing filter wins.
func (f Filters) Decide(e *WatchEvent) Decision {
	if f.matches(e) {
		return Notify
	}
	if f.DropFiltered {
		return Drop
	}
	return LogOnly
}

func (f Filters) matches(e *WatchEvent) bool {
	if len(f.Kinds) > 0 {
		allowed := false
		for _, k := range f.Kinds {
			if k == e.Kind {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	for _, actor := range f.IgnoreActors {
		if strings.EqualFold(actor, e.Actor) {
			return false
		}
	}

	if !f.OnlyInvolvingMe {
		return true
	}
	if f.ViewerLogin == "" {
		return false
	}
	return involvesViewer(e, f.ViewerLogin)
}

// involvesViewer reports whether the viewer is the requested reviewer, is
// mentioned, or authored the thread an update event refers to. Creation
// events by the viewer are not "involvement": the viewer already knows
// about work they opened themselves.
func involvesViewer(e *WatchEvent, viewer string) bool {
	if strings.EqualFold(e.RequestedReviewer, viewer) {
		return true
	}
	for _, m := range e.Mentions {
		if strings.EqualFold(m, viewer) {
			return true
		}
	}
	isUpdate := e.Kind != KindPrCreated && e.Kind != KindIssueCreated
	return isUpdate && e.SubjectAuthor != "" && strings.EqualFold(e.SubjectAuthor, viewer)
}

// SortNewestFirst orders events for timeline display.
func SortNewestFirst(events []WatchEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
}
