package statedb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

// SchemaVersion tracks the current database schema version.
// Bump this when changing the schema.
const SchemaVersion = 1

// ErrSchemaMismatch means the database was written by an incompatible
// version of gh-watch.
var ErrSchemaMismatch = errors.New(
	"statedb: schema version mismatch; run `gh-watch init --reset-state` to rebuild the state database")

// StateDB wraps the SQLite database holding cursors, the event log, and
// the notification queue. Safe for concurrent use from multiple
// goroutines within one process; WAL mode + busy timeout cover
// cross-process access.
type StateDB struct {
	db *sql.DB
}

// EventRow is one observed event in the log.
type EventRow struct {
	Event      event.WatchEvent
	ObservedAt time.Time
	ReadAt     time.Time // zero when unread
}

// Read reports whether the event was marked read.
func (r EventRow) Read() bool {
	return !r.ReadAt.IsZero()
}

// NotificationRow is one pending entry in the notification queue,
// joined with its event.
type NotificationRow struct {
	Event         event.WatchEvent
	EnqueuedAt    time.Time
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}

// QueueBacklog counts notification queue entries by state.
type QueueBacklog struct {
	Pending   int
	Delivered int
	Abandoned int
}

// Stats summarizes the database for doctor-style output.
type Stats struct {
	Events  int
	Unread  int
	Repos   int
	Backlog QueueBacklog
}

// Open creates or opens the state database at dbPath with WAL mode and
// busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: foreign keys: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying sql.DB for advanced use cases (e.g., testing).
func (s *StateDB) DB() *sql.DB {
	return s.db
}

// Migrate creates tables if they don't exist and verifies the schema
// version. A database written by an incompatible version yields
// ErrSchemaMismatch rather than a silent rebuild.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	var existing string
	err = tx.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		// fresh database
	case err != nil:
		return fmt.Errorf("statedb: read schema version: %w", err)
	case existing != fmt.Sprintf("%d", SchemaVersion):
		return fmt.Errorf("%w (found %s, want %d)", ErrSchemaMismatch, existing, SchemaVersion)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS repo_cursors (
			repo          TEXT PRIMARY KEY,
			last_poll_at  INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create repo_cursors: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS event_log (
			event_key       TEXT PRIMARY KEY,
			repo            TEXT NOT NULL,
			kind            TEXT NOT NULL,
			source_item_id  TEXT NOT NULL,
			actor           TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			url             TEXT NOT NULL DEFAULT '',
			payload_json    TEXT NOT NULL DEFAULT '{}',
			created_at      INTEGER NOT NULL,
			observed_at     INTEGER NOT NULL,
			read_at         INTEGER
		)
	`); err != nil {
		return fmt.Errorf("statedb: create event_log: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_event_log_created
		ON event_log (created_at DESC)
	`); err != nil {
		return fmt.Errorf("statedb: create event_log index: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS notify_queue (
			event_key       TEXT PRIMARY KEY
			                REFERENCES event_log(event_key) ON DELETE CASCADE,
			enqueued_at     INTEGER NOT NULL,
			attempts        INTEGER NOT NULL DEFAULT 0,
			next_attempt_at INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT 'pending',
			last_error      TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("statedb: create notify_queue: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// --- Cursors ---

// GetCursor returns the last-poll timestamp for a repo. ok is false for
// a repo that has never completed a poll.
func (s *StateDB) GetCursor(repo string) (time.Time, bool, error) {
	var unix int64
	err := s.db.QueryRow(
		"SELECT last_poll_at FROM repo_cursors WHERE repo = ?", repo,
	).Scan(&unix)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("statedb: get cursor: %w", err)
	}
	return time.Unix(unix, 0).UTC(), true, nil
}

// SetCursor records the last-poll timestamp for a repo.
func (s *StateDB) SetCursor(repo string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO repo_cursors (repo, last_poll_at) VALUES (?, ?)
	`, repo, at.Unix())
	if err != nil {
		return fmt.Errorf("statedb: set cursor: %w", err)
	}
	return nil
}

// --- Event log + queue ---

// RecordBatch commits one repo's poll result atomically: the cursor
// advances to pollStartedAt, events land in the log, and newly observed
// notification-worthy events join the queue. Events whose key already
// exists are ignored, which makes re-observing an event across
// overlapping polls a no-op. Returns the newly inserted events.
func (s *StateDB) RecordBatch(
	repo string,
	pollStartedAt time.Time,
	events []event.WatchEvent,
	notifyKeys map[string]bool,
	observedAt time.Time,
) ([]event.WatchEvent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("statedb: begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertEvent, err := tx.Prepare(`
		INSERT OR IGNORE INTO event_log (
			event_key, repo, kind, source_item_id,
			actor, title, url, payload_json,
			created_at, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("statedb: prepare insert: %w", err)
	}
	defer insertEvent.Close()

	enqueue, err := tx.Prepare(`
		INSERT INTO notify_queue (event_key, enqueued_at) VALUES (?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("statedb: prepare enqueue: %w", err)
	}
	defer enqueue.Close()

	var inserted []event.WatchEvent
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("statedb: marshal event %s: %w", ev.Key(), err)
		}
		res, err := insertEvent.Exec(
			ev.Key(), ev.Repo, string(ev.Kind), ev.SourceItemID,
			ev.Actor, ev.Title, ev.URL, string(payload),
			ev.CreatedAt.Unix(), observedAt.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("statedb: insert event %s: %w", ev.Key(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("statedb: rows affected: %w", err)
		}
		if n == 0 {
			continue // already known
		}
		inserted = append(inserted, ev)
		if notifyKeys[ev.Key()] {
			if _, err := enqueue.Exec(ev.Key(), observedAt.Unix()); err != nil {
				return nil, fmt.Errorf("statedb: enqueue %s: %w", ev.Key(), err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO repo_cursors (repo, last_poll_at) VALUES (?, ?)
	`, repo, pollStartedAt.Unix()); err != nil {
		return nil, fmt.Errorf("statedb: advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("statedb: commit batch: %w", err)
	}
	return inserted, nil
}

// PendingNotifications returns queue entries that are due at now,
// oldest event first.
func (s *StateDB) PendingNotifications(now time.Time) ([]NotificationRow, error) {
	rows, err := s.db.Query(`
		SELECT q.event_key, q.enqueued_at, q.attempts, q.next_attempt_at, q.last_error,
		       e.payload_json
		FROM notify_queue q
		JOIN event_log e ON e.event_key = q.event_key
		WHERE q.status = 'pending' AND q.next_attempt_at <= ?
		ORDER BY e.created_at ASC, q.event_key ASC
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("statedb: pending notifications: %w", err)
	}
	defer rows.Close()

	var result []NotificationRow
	for rows.Next() {
		var (
			key            string
			enqueued, next int64
			attempts       int
			lastErr        string
			payload        string
		)
		if err := rows.Scan(&key, &enqueued, &attempts, &next, &lastErr, &payload); err != nil {
			return nil, fmt.Errorf("statedb: scan notification: %w", err)
		}
		var ev event.WatchEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("statedb: decode event %s: %w", key, err)
		}
		nr := NotificationRow{
			Event:      ev,
			EnqueuedAt: time.Unix(enqueued, 0).UTC(),
			Attempts:   attempts,
			LastError:  lastErr,
		}
		if next > 0 {
			nr.NextAttemptAt = time.Unix(next, 0).UTC()
		}
		result = append(result, nr)
	}
	return result, rows.Err()
}

// MarkDelivered flips queue entries to delivered.
func (s *StateDB) MarkDelivered(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}
	query := "UPDATE notify_queue SET status = 'delivered' WHERE event_key IN (" +
		strings.Join(placeholders, ",") + ")"
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("statedb: mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt. Entries that reach
// maxAttempts flip to abandoned; the rest stay pending and become due
// again at nextAttemptAt.
func (s *StateDB) MarkFailed(key, deliveryErr string, nextAttemptAt time.Time, maxAttempts int) error {
	_, err := s.db.Exec(`
		UPDATE notify_queue
		SET attempts = attempts + 1,
		    last_error = ?,
		    next_attempt_at = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN 'abandoned' ELSE 'pending' END
		WHERE event_key = ? AND status = 'pending'
	`, deliveryErr, nextAttemptAt.Unix(), maxAttempts, key)
	if err != nil {
		return fmt.Errorf("statedb: mark failed: %w", err)
	}
	return nil
}

// Backlog counts queue entries by state.
func (s *StateDB) Backlog() (QueueBacklog, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM notify_queue GROUP BY status")
	if err != nil {
		return QueueBacklog{}, fmt.Errorf("statedb: backlog: %w", err)
	}
	defer rows.Close()

	var b QueueBacklog
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return QueueBacklog{}, fmt.Errorf("statedb: scan backlog: %w", err)
		}
		switch status {
		case "pending":
			b.Pending = n
		case "delivered":
			b.Delivered = n
		case "abandoned":
			b.Abandoned = n
		}
	}
	return b, rows.Err()
}

// LastActivity returns the newest observed_at in the event log, or 0
// when the log is empty. The UI polls this to notice writes made by
// another process, such as a one-shot poll run from a second terminal.
func (s *StateDB) LastActivity() (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(observed_at) FROM event_log").Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("statedb: last activity: %w", err)
	}
	return ts.Int64, nil
}

// --- Timeline ---

// RecentTimeline returns the newest events up to limit, newest first.
func (s *StateDB) RecentTimeline(limit int) ([]EventRow, error) {
	rows, err := s.db.Query(`
		SELECT payload_json, observed_at, read_at
		FROM event_log
		ORDER BY created_at DESC, event_key DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("statedb: timeline: %w", err)
	}
	defer rows.Close()

	var result []EventRow
	for rows.Next() {
		var (
			payload  string
			observed int64
			readAt   sql.NullInt64
		)
		if err := rows.Scan(&payload, &observed, &readAt); err != nil {
			return nil, fmt.Errorf("statedb: scan timeline: %w", err)
		}
		var r EventRow
		if err := json.Unmarshal([]byte(payload), &r.Event); err != nil {
			return nil, fmt.Errorf("statedb: decode timeline event: %w", err)
		}
		r.ObservedAt = time.Unix(observed, 0).UTC()
		if readAt.Valid {
			r.ReadAt = time.Unix(readAt.Int64, 0).UTC()
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// MarkRead sets the read timestamp on one event. Already-read events
// keep their original timestamp.
func (s *StateDB) MarkRead(eventKey string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE event_log SET read_at = ? WHERE event_key = ? AND read_at IS NULL",
		at.Unix(), eventKey,
	)
	if err != nil {
		return fmt.Errorf("statedb: mark read: %w", err)
	}
	return nil
}

// MarkAllRead sets the read timestamp on every unread event and
// returns how many were affected.
func (s *StateDB) MarkAllRead(at time.Time) (int, error) {
	res, err := s.db.Exec("UPDATE event_log SET read_at = ? WHERE read_at IS NULL", at.Unix())
	if err != nil {
		return 0, fmt.Errorf("statedb: mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("statedb: mark all read: %w", err)
	}
	return int(n), nil
}

// --- Retention ---

// CleanupOlderThan deletes events created before cutoff and returns how
// many rows were removed. Queue entries go with their events.
func (s *StateDB) CleanupOlderThan(cutoff time.Time) (int, error) {
	res, err := s.db.Exec("DELETE FROM event_log WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("statedb: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("statedb: cleanup: %w", err)
	}
	return int(n), nil
}

// --- Stats ---

// CollectStats summarizes the database for `gh-watch check`.
func (s *StateDB) CollectStats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM event_log").Scan(&st.Events); err != nil {
		return Stats{}, fmt.Errorf("statedb: stats: %w", err)
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM event_log WHERE read_at IS NULL",
	).Scan(&st.Unread); err != nil {
		return Stats{}, fmt.Errorf("statedb: stats: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM repo_cursors").Scan(&st.Repos); err != nil {
		return Stats{}, fmt.Errorf("statedb: stats: %w", err)
	}
	backlog, err := s.Backlog()
	if err != nil {
		return Stats{}, err
	}
	st.Backlog = backlog
	return st, nil
}
