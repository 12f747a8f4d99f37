// Package writer implements the single-writer-goroutine loop (C4) that
// owns the only mutable handles onto the full-text index and the
// relational store. Every mutation — live events, backlog batches, and
// commits — is serialized through one command channel, so commit ordering
// and opstamp monotonicity need no additional locking. The channel is
// buffered to 256 commands; it is not unbounded, and Send blocks while the
// buffer is full.
package writer

import (
	"context"
	"log/slog"
	"time"

	"chatsearch/internal/commit"
	"chatsearch/internal/ftsindex"
	"chatsearch/internal/logging"
	"chatsearch/internal/store"
)

// Live queues a single event for staging into the pending index batch and
// the relational store. Not committed; not visible to a Searcher until a
// later commit lands.
type Live struct {
	Event   store.EventInput
	Profile store.ProfileRecord
}

// Backlog is a transactional unit of historical events plus at most two
// checkpoint edits. Ack receives exactly one error (nil on success) once
// the writer is done with the unit. The relational side is all-or-nothing;
// the index side is applied only after the relational transaction has
// committed, and an index failure does not undo that transaction.
type Backlog struct {
	Events        []store.EventWithProfile
	NewCheckpoint *store.CheckpointRecord
	OldCheckpoint *store.CheckpointRecord
	Ack           chan error
}

// CommitRequest asks the writer to commit the pending index batch and
// advance the opstamp now.
type CommitRequest struct{}

// Shutdown asks the writer loop to drain and exit. Done is closed once the
// loop has returned.
type Shutdown struct {
	Done chan struct{}
}

// Config bounds the writer's batching behavior.
type Config struct {
	// CommitInterval is how often the writer checks whether accumulated
	// live events warrant a forced commit. Zero or negative selects
	// DefaultCommitInterval.
	CommitInterval time.Duration
	// MemoryBudgetBytes forces a commit once the pending index batch's
	// estimated size reaches this after a live event is staged (zero or
	// negative selects DefaultMemoryBudgetBytes), approximating spec's fixed
	// 50MB segment-writer heap budget at the call site since bleve has
	// no constructor-time budget parameter of its own.
	MemoryBudgetBytes int
}

const (
	DefaultCommitInterval    = 200 * time.Millisecond
	DefaultMemoryBudgetBytes = 50 * 1024 * 1024
)

// Loop is the writer's command channel and the goroutine consuming it.
type Loop struct {
	commands chan any
	notifier *commit.Notifier
	logger   *slog.Logger
}

// Start launches the writer goroutine and returns the handle producers
// send commands through. idx and st are owned exclusively by the loop
// from this point on; callers must not touch them directly.
func Start(ctx context.Context, idx *ftsindex.Index, st *store.Store, notifier *commit.Notifier, cfg Config, logger *slog.Logger) *Loop {
	if cfg.CommitInterval <= 0 {
		cfg.CommitInterval = DefaultCommitInterval
	}
	if cfg.MemoryBudgetBytes <= 0 {
		cfg.MemoryBudgetBytes = DefaultMemoryBudgetBytes
	}

	l := &Loop{
		commands: make(chan any, 256),
		notifier: notifier,
		logger:   logging.Default(logger).With("component", "writer"),
	}
	go l.run(ctx, idx, st, cfg)
	return l
}

// Send enqueues a command. It never blocks the caller beyond channel
// buffer pressure — Live and CommitRequest are fire-and-forget by design.
func (l *Loop) Send(cmd any) {
	l.commands <- cmd
}

func (l *Loop) run(ctx context.Context, idx *ftsindex.Index, st *store.Store, cfg Config) {
	w := idx.GetWriter()
	ticker := time.NewTicker(cfg.CommitInterval)
	defer ticker.Stop()

	pendingLive := false

	for {
		select {
		case <-ctx.Done():
			l.commitIfPending(w, st, pendingLive)
			return

		case <-ticker.C:
			if pendingLive {
				l.handleCommit(w, st)
				pendingLive = false
			}

		case cmd := <-l.commands:
			switch c := cmd.(type) {
			case Live:
				l.handleLive(w, st, c)
				pendingLive = true
				if w.PendingBytes() >= cfg.MemoryBudgetBytes {
					l.handleCommit(w, st)
					pendingLive = false
				}

			case Backlog:
				l.handleBacklog(w, st, c)

			case CommitRequest:
				l.handleCommit(w, st)
				pendingLive = false

			case Shutdown:
				l.commitIfPending(w, st, pendingLive)
				close(c.Done)
				return
			}
		}
	}
}

func (l *Loop) commitIfPending(w *ftsindex.Writer, st *store.Store, pendingLive bool) {
	if pendingLive {
		l.handleCommit(w, st)
	}
}

// handleLive applies a single live event to both stores. Per spec's
// propagation policy, an index staging failure for a live event is
// tolerated: logged and the writer continues, leaving the event
// transiently un-indexed in the relational store until a reconcile step
// (out of scope) repairs it.
func (l *Loop) handleLive(w *ftsindex.Writer, st *store.Store, c Live) {
	if err := st.InsertEvent(c.Event, c.Profile); err != nil {
		l.logger.Error("live event insert failed", "event_id", c.Event.EventID, "error", err)
		return
	}
	if err := w.AddDocument(c.Event.Body, c.Event.EventID, c.Event.RoomID, c.Event.ServerTS); err != nil {
		l.logger.Error("live event index stage failed", "event_id", c.Event.EventID, "error", err)
	}
}

// handleBacklog applies a full backlog page: C3's transaction lands first,
// then the batch's documents are staged and committed in C2. A C3 failure
// rolls the whole transaction back and nothing is staged. Once C3 has
// committed, a document that fails to stage is logged and skipped, and a
// failed C2 commit is reported on Ack while the C3 rows stay committed.
func (l *Loop) handleBacklog(w *ftsindex.Writer, st *store.Store, c Backlog) {
	opstamp := l.notifier.Opstamp() + 1

	if err := st.InsertBacklogBatch(c.Events, c.NewCheckpoint, c.OldCheckpoint, opstamp); err != nil {
		// Nothing from this batch has been staged into w yet, so there
		// is nothing of this batch's to discard; any previously-staged
		// live documents awaiting their own commit must be left alone.
		l.logger.Error("backlog batch rolled back", "count", len(c.Events), "error", err)
		c.Ack <- err
		return
	}

	staged := 0
	for _, ep := range c.Events {
		if err := w.AddDocument(ep.Event.Body, ep.Event.EventID, ep.Event.RoomID, ep.Event.ServerTS); err != nil {
			// C3 has already committed this batch; the index side is
			// best-effort per spec's tolerated-asymmetry policy, so we
			// log and keep staging the remaining events rather than
			// abandon a relational commit that already landed.
			l.logger.Error("backlog event index stage failed", "event_id", ep.Event.EventID, "error", err)
			continue
		}
		staged++
	}

	// A backlog batch commits immediately rather than waiting for the
	// next periodic commit (spec.md §4.4), but only if there is
	// something of this batch's to commit; an empty or fully-failed
	// batch still needs its checkpoint edits (already durable in C3)
	// acknowledged without forcing a no-op index commit.
	if staged > 0 {
		if err := w.Commit(); err != nil {
			l.logger.Error("backlog index commit failed", "count", len(c.Events), "error", err)
			c.Ack <- err
			return
		}
		// The same commit also sealed any live documents staged before
		// this batch; stamp their rows so they stay in step with the index.
		if _, err := st.MarkPendingCommitted(opstamp); err != nil {
			l.logger.Error("mark pending committed failed", "opstamp", opstamp, "error", err)
		}
		l.notifier.Advance(opstamp, nil)
	}
	c.Ack <- nil
}

func (l *Loop) handleCommit(w *ftsindex.Writer, st *store.Store) {
	next := l.notifier.Opstamp() + 1
	if err := w.Commit(); err != nil {
		l.logger.Error("commit failed", "opstamp", next, "error", err)
		l.notifier.Advance(0, err)
		return
	}
	if _, err := st.MarkPendingCommitted(next); err != nil {
		l.logger.Error("mark pending committed failed", "opstamp", next, "error", err)
		l.notifier.Advance(0, err)
		return
	}
	l.notifier.Advance(next, nil)
}
