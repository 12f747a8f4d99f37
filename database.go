// Package chatsearch is an embeddable, persistent full-text search engine
// for chat messages organized by room: a relational event store and a
// full-text index kept consistent through a single writer goroutine, with
// snapshot-isolated concurrent search.
package chatsearch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"chatsearch/internal/commit"
	"chatsearch/internal/ftsindex"
	"chatsearch/internal/logging"
	"chatsearch/internal/store"
	"chatsearch/internal/watch"
	"chatsearch/internal/writer"
)

// Database is the embeddable facade: producers call AddEvent / AddBacklogEvents
// / Commit*, the single writer goroutine applies them, and any number of
// Searchers run independently against a snapshot.
type Database struct {
	idx      *ftsindex.Index
	st       *store.Store
	notifier *commit.Notifier
	loop     *writer.Loop
	watcher  *watch.Watcher
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	commitInterval    int // milliseconds; 0 means use writer.DefaultCommitInterval
	memoryBudgetBytes int
	logger            *slog.Logger
	watchDirectory    bool
}

// WithCommitInterval overrides the writer's forced-commit cadence.
func WithCommitInterval(ms int) Option {
	return func(o *options) { o.commitInterval = ms }
}

// WithWriterMemoryBudget overrides the pending-batch byte threshold that
// forces a commit, approximating the adapter's fixed segment-writer
// heap budget.
func WithWriterMemoryBudget(bytes int) Option {
	return func(o *options) { o.memoryBudgetBytes = bytes }
}

// WithLogger injects a structured logger; every component scopes it with
// its own "component" attribute. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDirectoryWatch starts an fsnotify watcher on the full-text index
// directory ("fts") that calls Reload whenever it changes out-of-band
// (for example, a second process rewriting segments during a restore).
func WithDirectoryWatch() Option {
	return func(o *options) { o.watchDirectory = true }
}

// New opens (creating if absent) the chatsearch database rooted at path: a
// "fts" subdirectory for the full-text index and an "events.db" file for
// the relational store.
func New(path string, opts ...Option) (*Database, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := logging.Default(cfg.logger).With("component", "database")

	idx, err := ftsindex.Open(filepath.Join(path, "fts"))
	if err != nil {
		return nil, DatabaseOpenError{
			DatabaseError: DatabaseError{Op: "open index", Err: err},
			Path:          path,
		}
	}

	st, err := store.Open(filepath.Join(path, "events.db"), cfg.logger)
	if err != nil {
		idx.Close()
		return nil, DatabaseOpenError{
			DatabaseError: DatabaseError{Op: "open store", Err: err},
			Path:          path,
		}
	}

	notifier := commit.New()
	ctx, cancel := context.WithCancel(context.Background())

	wc := writer.Config{
		CommitInterval:    time.Duration(cfg.commitInterval) * time.Millisecond,
		MemoryBudgetBytes: cfg.memoryBudgetBytes,
	}
	loop := writer.Start(ctx, idx, st, notifier, wc, cfg.logger)

	db := &Database{
		idx:      idx,
		st:       st,
		notifier: notifier,
		loop:     loop,
		cancel:   cancel,
		logger:   logger,
	}

	if cfg.watchDirectory {
		w, err := watch.New(filepath.Join(path, "fts"), db.Reload, cfg.logger)
		if err != nil {
			logger.Warn("directory watch unavailable", "error", err)
		} else {
			db.watcher = w
		}
	}

	logger.Info("database opened", "path", path)
	return db, nil
}

// AddEvent queues a live event plus its accompanying profile. Fire-and-forget:
// it returns as soon as the command is enqueued, before the writer applies it.
func (db *Database) AddEvent(event Event, profile Profile) {
	db.loop.Send(writer.Live{
		Event:   toEventInput(event),
		Profile: toProfileRecord(profile),
	})
}

// AddBacklogEvents queues a transactional backlog batch: every event plus
// at most two checkpoint edits land together or not at all. It blocks
// until the writer has applied (or rolled back) the batch and returns the
// structured result.
func (db *Database) AddBacklogEvents(events []Event, profiles []Profile, newCheckpoint, oldCheckpoint *Checkpoint) error {
	if len(profiles) != len(events) {
		return fmt.Errorf("chatsearch: %d events but %d profiles", len(events), len(profiles))
	}

	batch := make([]store.EventWithProfile, len(events))
	for i := range events {
		batch[i] = store.EventWithProfile{
			Event:   toEventInput(events[i]),
			Profile: toProfileRecord(profiles[i]),
		}
	}

	ack := make(chan error, 1)
	db.loop.Send(writer.Backlog{
		Events:        batch,
		NewCheckpoint: toCheckpointRecord(newCheckpoint),
		OldCheckpoint: toCheckpointRecord(oldCheckpoint),
		Ack:           ack,
	})

	if err := <-ack; err != nil {
		return IndexError{DatabaseError{Op: "add_backlog_events", Err: err}}
	}
	return nil
}

// Commit enqueues a commit request and blocks until the resulting opstamp
// has been observed, returning it. A non-nil error means the commit that
// would have produced that opstamp failed; the opstamp was not advanced.
func (db *Database) Commit() (uint64, error) {
	target := db.notifier.Opstamp() + 1
	db.loop.Send(writer.CommitRequest{})
	return db.notifier.WaitForCommit(target)
}

// CommitNoWait enqueues a commit request and returns immediately without
// waiting for it to land.
func (db *Database) CommitNoWait() {
	db.loop.Send(writer.CommitRequest{})
}

// CommitGetCvar enqueues a commit request and returns the opstamp a caller
// should wait for plus the shared Notifier, so the wait can happen
// out-of-band (e.g. from a different goroutine than the one issuing the
// commit) instead of blocking the calling goroutine directly.
func (db *Database) CommitGetCvar() (uint64, *commit.Notifier) {
	target := db.notifier.Opstamp() + 1
	db.loop.Send(writer.CommitRequest{})
	return target, db.notifier
}

// Reload forces the full-text reader to observe the latest commit. Needed
// after out-of-band index changes, or to guarantee a freshly acquired
// Searcher sees a commit that just completed.
func (db *Database) Reload() error {
	if err := db.idx.Reload(); err != nil {
		return IndexError{DatabaseError{Op: "reload", Err: err}}
	}
	return nil
}

// GetSearcher captures a snapshot view: the opstamp current right now,
// plus independent handles onto the index and the relational store.
// Results observed through the returned Searcher are repeatable for its
// lifetime even as new commits land.
func (db *Database) GetSearcher() *Searcher {
	return &Searcher{
		searcher: db.idx.NewSearcher(),
		store:    db.st,
		snapshot: db.notifier.Opstamp(),
	}
}

// GetConnection returns a read-only handle onto the relational store for
// auxiliary queries such as checkpoint resumption.
func (db *Database) GetConnection() *Connection {
	return &Connection{store: db.st}
}

// Close stops the writer loop (committing any pending batch first), the
// directory watcher if one was started, and releases both stores.
func (db *Database) Close() error {
	if db.watcher != nil {
		db.watcher.Close()
	}

	done := make(chan struct{})
	db.loop.Send(writer.Shutdown{Done: done})
	<-done
	db.cancel()

	if err := db.idx.Close(); err != nil {
		return IndexError{DatabaseError{Op: "close index", Err: err}}
	}
	return db.st.Close()
}
