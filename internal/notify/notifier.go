// Package notify renders watch events into desktop notifications.
// Supported backends are osascript on macOS and BurntToast via
// powershell.exe under WSL; everywhere else delivery is a silent no-op
// with a startup warning, and the timeline remains the source of truth.
package notify

import (
	"github.com/asheshgoplani/gh-watch/internal/event"
)

// Notifier delivers one rendered notification.
type Notifier interface {
	// CheckHealth verifies the backend can deliver at all, for
	// `gh-watch check`.
	CheckHealth() error
	// Notify shows a desktop alert for the payload. Errors are
	// retryable; the delivery queue owns backoff.
	Notify(p Payload, includeURL bool) error
}

// Digest summarizes several events into one alert.
type Digest struct {
	TotalEvents int
	Samples     []event.WatchEvent
}

// Payload is either a single event or a digest. Exactly one field is
// set.
type Payload struct {
	Event  *event.WatchEvent
	Digest *Digest
}

// EventPayload wraps a single event.
func EventPayload(ev event.WatchEvent) Payload {
	return Payload{Event: &ev}
}

// DigestPayload wraps a multi-event digest. Samples beyond the display
// limit are summarized as a remainder count.
func DigestPayload(events []event.WatchEvent) Payload {
	d := &Digest{TotalEvents: len(events)}
	n := len(events)
	if n > digestSampleLimit {
		n = digestSampleLimit
	}
	d.Samples = events[:n]
	return Payload{Digest: d}
}

// Noop discards notifications. Used where no backend is available and
// for --dry-run.
type Noop struct{}

func (Noop) CheckHealth() error         { return nil }
func (Noop) Notify(Payload, bool) error { return nil }
