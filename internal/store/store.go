// Package store persists the shared session record and the bounded history
// in SQLite.
//
// The current session is one whole-record row under a fixed key: every actor
// reads the entire record, decides, and writes the entire next record.
// Last-write-wins; the state machine's self-guarding transitions are the only
// concurrency safety net, the store deliberately does not serialize writers.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwulff/hush/internal/timer"
)

// currentKey is the fixed storage identifier of the one shared record.
const currentKey = "current"

// DefaultHistoryLimit bounds the history log when no limit is configured.
const DefaultHistoryLimit = 10

// Store wraps the SQLite database shared between actors.
type Store struct {
	db    *sql.DB
	limit int
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "hush", "hush.sqlite")
}

// Open opens (creating if needed) the database in read-write mode with WAL
// and a busy timeout, and ensures the schema exists.
func Open(path string, historyLimit int) (*Store, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, limit: historyLimit}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database without write access, for display
// actors that only poll.
func OpenReadOnly(path string, historyLimit int) (*Store, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, limit: historyLimit}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS current_session (
			key TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			updatedAt REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			endedAt REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS actors (
			actorId TEXT PRIMARY KEY,
			displayName TEXT NOT NULL,
			connectedAt REAL NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveCurrent writes the whole current record. The last write wins.
func (s *Store) SaveCurrent(sess timer.Session) error {
	record, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO current_session (key, record, updatedAt)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET record = excluded.record, updatedAt = excluded.updatedAt
	`, currentKey, string(record), timeToUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("save current session: %w", err)
	}
	return nil
}

// LoadCurrent reads the whole current record. When nothing has ever been
// written it returns an idle session and false.
func (s *Store) LoadCurrent() (timer.Session, bool, error) {
	row := s.db.QueryRow(`SELECT record FROM current_session WHERE key = ?`, currentKey)

	var record string
	if err := row.Scan(&record); err != nil {
		if err == sql.ErrNoRows {
			return timer.Session{Status: timer.StatusIdle}, false, nil
		}
		return timer.Session{}, false, fmt.Errorf("scan current session: %w", err)
	}

	var sess timer.Session
	if err := json.Unmarshal([]byte(record), &sess); err != nil {
		return timer.Session{}, false, fmt.Errorf("unmarshal current session: %w", err)
	}
	return sess, true, nil
}

// Append adds a finalized session to history and prunes the log to the
// configured bound. Appending the same session twice is a no-op; finalized
// records are immutable.
func (s *Store) Append(sess timer.Session) error {
	if sess.ID == "" || sess.EndedAt == nil {
		return fmt.Errorf("refusing to append session without identity or end")
	}

	record, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO history (id, record, endedAt) VALUES (?, ?, ?)
	`, sess.ID, string(record), timeToUnix(*sess.EndedAt)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY endedAt DESC LIMIT ?
		)
	`, s.limit); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// History returns finalized sessions, most recent first, at most limit
// entries. A non-positive limit uses the configured bound.
func (s *Store) History(limit int) ([]timer.Session, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	rows, err := s.db.Query(`
		SELECT record FROM history ORDER BY endedAt DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var sessions []timer.Session
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var sess timer.Session
		if err := json.Unmarshal([]byte(record), &sess); err != nil {
			return nil, fmt.Errorf("unmarshal history row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Actor is one registered client of the shared state.
type Actor struct {
	ID          string
	DisplayName string
	ConnectedAt time.Time
}

// RegisterActor records a connected actor. Re-registering the same identity
// overwrites it; registration is idempotent per actor.
func (s *Store) RegisterActor(a Actor) error {
	_, err := s.db.Exec(`
		INSERT INTO actors (actorId, displayName, connectedAt)
		VALUES (?, ?, ?)
		ON CONFLICT(actorId) DO UPDATE SET displayName = excluded.displayName, connectedAt = excluded.connectedAt
	`, a.ID, a.DisplayName, timeToUnix(a.ConnectedAt))
	if err != nil {
		return fmt.Errorf("register actor: %w", err)
	}
	return nil
}

// UnregisterActor removes an actor. Removing an unknown identity is a no-op.
func (s *Store) UnregisterActor(id string) error {
	if _, err := s.db.Exec(`DELETE FROM actors WHERE actorId = ?`, id); err != nil {
		return fmt.Errorf("unregister actor: %w", err)
	}
	return nil
}

// Actors lists registered actors ordered by connection time.
func (s *Store) Actors() ([]Actor, error) {
	rows, err := s.db.Query(`SELECT actorId, displayName, connectedAt FROM actors ORDER BY connectedAt ASC`)
	if err != nil {
		return nil, fmt.Errorf("query actors: %w", err)
	}
	defer rows.Close()

	var actors []Actor
	for rows.Next() {
		var a Actor
		var connectedAt float64
		if err := rows.Scan(&a.ID, &a.DisplayName, &connectedAt); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		a.ConnectedAt = timeFromUnix(connectedAt)
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
