package watch

import (
	"time"

	"github.com/asheshgoplani/gh-watch/internal/statedb"
)

// CursorOverlap is subtracted from the stored watermark when computing
// the next fetch window, so boundary events delayed by upstream clock
// or pagination skew are re-fetched and deduplicated instead of lost.
const CursorOverlap = 300 * time.Second

// FetchWindow describes one repo's incremental fetch.
type FetchWindow struct {
	Since         time.Time
	PollStartedAt time.Time
	// Bootstrap marks a repo with no prior cursor. Its first cycle
	// seeds the cursor and never notifies.
	Bootstrap bool
}

// windowFor computes the fetch window for repo at pollStartedAt.
// Bootstrap windows reach back bootstrapLookback so the timeline starts
// with some history.
func windowFor(db *statedb.StateDB, repo string, pollStartedAt time.Time, bootstrapLookback time.Duration) (FetchWindow, error) {
	cursor, ok, err := db.GetCursor(repo)
	if err != nil {
		return FetchWindow{}, err
	}
	if !ok {
		return FetchWindow{
			Since:         pollStartedAt.Add(-bootstrapLookback),
			PollStartedAt: pollStartedAt,
			Bootstrap:     true,
		}, nil
	}
	return FetchWindow{
		Since:         cursor.Add(-CursorOverlap),
		PollStartedAt: pollStartedAt,
	}, nil
}
