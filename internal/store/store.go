// Package store implements the relational event store (C3): authoritative
// event JSON, sender profiles, the profile snapshot bound to each indexed
// event, per-room backfill checkpoints, and the context-window lookups
// needed to hydrate search hits. Backed by modernc.org/sqlite, a pure-Go,
// cgo-free embedded relational engine.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"chatsearch/internal/logging"
)

// Store owns the database/sql handle backing the relational side of a
// chatsearch database. All mutation happens on the writer goroutine;
// Store itself holds no in-process locks beyond what database/sql and
// SQLite's WAL mode already provide for concurrent readers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	profileCache *lru.Cache[string, boundProfile]
}

// ProfileRecord is a point-in-time sender profile snapshot.
type ProfileRecord struct {
	DisplayName *string
	AvatarURL   *string
}

// EventInput carries one event's fields. The events table stores all of
// them except Body; Body is carried alongside Source (the verbatim
// original JSON) for the writer to stage into the full-text index, since
// the relational store has no business parsing event JSON.
type EventInput struct {
	EventID  string
	Sender   string
	RoomID   string
	ServerTS int64
	Body     string
	Source   string
}

// EventWithProfile pairs an event with the profile snapshot that
// accompanied it at index time, the unit a backlog batch carries.
type EventWithProfile struct {
	Event   EventInput
	Profile ProfileRecord
}

// CheckpointRecord is an opaque backfill paginator position.
type CheckpointRecord struct {
	RoomID string
	Token  string
}

const profileCacheSize = 256

// Open opens (creating if absent) the relational store file at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	logger = logging.Default(logger).With("component", "store")

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping relational store: %w", err)
	}

	cache, err := lru.New[string, boundProfile](profileCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create profile cache: %w", err)
	}

	s := &Store{db: db, logger: logger, profileCache: cache}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying handle, for queries the store package has no
// method for.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		server_ts INTEGER NOT NULL,
		sender TEXT NOT NULL,
		source_json TEXT NOT NULL,
		committed_opstamp INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_room_order ON events(room_id, server_ts, event_id);
	CREATE INDEX IF NOT EXISTS idx_events_pending ON events(committed_opstamp);

	CREATE TABLE IF NOT EXISTS profiles (
		sender TEXT PRIMARY KEY,
		display_name TEXT,
		avatar_url TEXT
	);

	CREATE TABLE IF NOT EXISTS event_profile (
		event_id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		display_name TEXT,
		avatar_url TEXT,
		FOREIGN KEY(event_id) REFERENCES events(event_id)
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		room_id TEXT NOT NULL,
		token TEXT NOT NULL,
		PRIMARY KEY (room_id, token)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanNullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
