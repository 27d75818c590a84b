package notify

import (
	"fmt"
	"strings"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

const digestSampleLimit = 3

// Title renders the notification title line.
func Title(p Payload) string {
	if p.Digest != nil {
		return "gh-watch [digest]"
	}
	return fmt.Sprintf("%s [%s]", p.Event.Repo, p.Event.Kind)
}

// Body renders the notification body.
func Body(p Payload, includeURL bool) string {
	if p.Digest != nil {
		return digestBody(p.Digest, includeURL)
	}
	return eventBody(*p.Event, includeURL)
}

func eventBody(ev event.WatchEvent, includeURL bool) string {
	lines := []string{fmt.Sprintf("%s by @%s", ev.Title, ev.Actor)}
	if includeURL {
		lines = append(lines, ev.URL)
	}
	return strings.Join(lines, "\n")
}

func digestBody(d *Digest, includeURL bool) string {
	lines := []string{fmt.Sprintf("%d updates", d.TotalEvents)}
	for _, ev := range d.Samples {
		lines = append(lines, fmt.Sprintf("- %s [%s] %s by @%s", ev.Repo, ev.Kind, ev.Title, ev.Actor))
		if includeURL {
			lines = append(lines, ev.URL)
		}
	}
	if remaining := d.TotalEvents - len(d.Samples); remaining > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", remaining))
	}
	return strings.Join(lines, "\n")
}
