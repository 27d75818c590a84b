package watch

import (
	"context"
	"time"

	"github.com/asheshgoplani/gh-watch/internal/event"
	"github.com/asheshgoplani/gh-watch/internal/logging"
	"github.com/asheshgoplani/gh-watch/internal/notify"
)

var queueLog = logging.ForComponent(logging.CompQueue)

// Backoff before delivery attempt 2 and 3. The first attempt runs as
// soon as the entry is enqueued.
var deliveryBackoff = []time.Duration{30 * time.Second, 2 * time.Minute}

// DrainResult is one drain pass over the notification queue.
type DrainResult struct {
	Due       int
	Delivered int
	Failed    int
	// Err holds the backend error message from a failed pass.
	Err string
}

// DrainQueue delivers every due pending entry. Two or more due entries
// collapse into one digest call to the backend; a failed call records
// one failed attempt on each entry it covered, with the next retry
// pushed out by the backoff schedule. Entries hitting the attempt
// ceiling flip to abandoned.
func (r *Runner) DrainQueue(ctx context.Context) DrainResult {
	var result DrainResult
	if r.Notifier == nil {
		return result
	}

	now := r.now()
	due, err := r.DB.PendingNotifications(now)
	if err != nil {
		queueLog.Error("load pending notifications", "error", err)
		result.Err = err.Error()
		return result
	}
	if len(due) == 0 {
		return result
	}
	result.Due = len(due)

	var payload notify.Payload
	if len(due) == 1 {
		payload = notify.EventPayload(due[0].Event)
	} else {
		events := make([]event.WatchEvent, len(due))
		for i, row := range due {
			events[i] = row.Event
		}
		payload = notify.DigestPayload(events)
	}

	if err := r.Notifier.Notify(payload, r.IncludeURL); err != nil {
		result.Failed = len(due)
		result.Err = err.Error()
		queueLog.Warn("delivery failed", "entries", len(due), "error", err)
		for _, row := range due {
			nextAt := now.Add(backoffAfter(row.Attempts + 1))
			if markErr := r.DB.MarkFailed(row.Event.Key(), err.Error(), nextAt, r.MaxDeliveryAttempts); markErr != nil {
				queueLog.Error("record delivery failure", "event", row.Event.Key(), "error", markErr)
			}
		}
		return result
	}

	keys := make([]string, len(due))
	for i, row := range due {
		keys[i] = row.Event.Key()
	}
	if err := r.DB.MarkDelivered(keys); err != nil {
		queueLog.Error("mark delivered", "error", err)
		result.Err = err.Error()
		return result
	}
	result.Delivered = len(due)
	queueLog.Debug("delivered", "entries", len(due), "digest", len(due) > 1)
	return result
}

// backoffAfter returns the delay before the next retry given how many
// attempts have now failed.
func backoffAfter(failedAttempts int) time.Duration {
	idx := failedAttempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(deliveryBackoff) {
		idx = len(deliveryBackoff) - 1
	}
	return deliveryBackoff[idx]
}
