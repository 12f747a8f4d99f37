package store

import (
	"database/sql"
	"fmt"
)

// upsertProfile writes the latest-known snapshot for sender into the
// profiles table. bindEventProfile records the snapshot per event in
// event_profile, so later profile overwrites do not change what a
// historical search result reports.
func upsertProfile(tx *sql.Tx, sender string, profile ProfileRecord) error {
	_, err := tx.Exec(`
		INSERT INTO profiles (sender, display_name, avatar_url) VALUES (?, ?, ?)
		ON CONFLICT(sender) DO UPDATE SET display_name = excluded.display_name, avatar_url = excluded.avatar_url
	`, sender, nullableString(profile.DisplayName), nullableString(profile.AvatarURL))
	return err
}

func bindEventProfile(tx *sql.Tx, eventID, sender string, profile ProfileRecord) error {
	_, err := tx.Exec(`
		INSERT INTO event_profile (event_id, sender, display_name, avatar_url) VALUES (?, ?, ?, ?)
	`, eventID, sender, nullableString(profile.DisplayName), nullableString(profile.AvatarURL))
	return err
}

func insertEventRow(tx *sql.Tx, e EventInput, opstamp uint64) error {
	_, err := tx.Exec(`
		INSERT INTO events (event_id, room_id, server_ts, sender, source_json, committed_opstamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.EventID, e.RoomID, e.ServerTS, e.Sender, e.Source, opstamp)
	return err
}

// InsertEvent upserts the sender's profile, inserts the event row, and
// binds the profile snapshot used at index time, all as a single unit.
// The event is left uncommitted (committed_opstamp = 0) until the writer's
// next successful index commit marks it visible.
func (s *Store) InsertEvent(e EventInput, profile ProfileRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert_event: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProfile(tx, e.Sender, profile); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	if err := insertEventRow(tx, e, 0); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if err := bindEventProfile(tx, e.EventID, e.Sender, profile); err != nil {
		return fmt.Errorf("bind event profile: %w", err)
	}

	return tx.Commit()
}

// InsertBacklogBatch applies a full backlog page — events with their
// accompanying profiles, plus at most two checkpoint edits — as a single
// transaction. opstamp is the commit generation this batch is written
// under; since the caller applies this at the same time it forces an
// index commit for the batch, the rows are born already committed.
// Commits or rolls back as a unit: either every row in the batch and both
// checkpoint edits land, or none of them do.
func (s *Store) InsertBacklogBatch(events []EventWithProfile, newCheckpoint, oldCheckpoint *CheckpointRecord, opstamp uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin backlog batch: %w", err)
	}
	defer tx.Rollback()

	for _, ep := range events {
		if err := upsertProfile(tx, ep.Event.Sender, ep.Profile); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if err := insertEventRow(tx, ep.Event, opstamp); err != nil {
			return fmt.Errorf("insert event %s: %w", ep.Event.EventID, err)
		}
		if err := bindEventProfile(tx, ep.Event.EventID, ep.Event.Sender, ep.Profile); err != nil {
			return fmt.Errorf("bind event profile: %w", err)
		}
	}

	if newCheckpoint != nil {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO checkpoints (room_id, token) VALUES (?, ?)`,
			newCheckpoint.RoomID, newCheckpoint.Token); err != nil {
			return fmt.Errorf("insert new checkpoint: %w", err)
		}
	}
	if oldCheckpoint != nil {
		if _, err := tx.Exec(`DELETE FROM checkpoints WHERE room_id = ? AND token = ?`,
			oldCheckpoint.RoomID, oldCheckpoint.Token); err != nil {
			return fmt.Errorf("delete old checkpoint: %w", err)
		}
	}

	return tx.Commit()
}

// MarkPendingCommitted advances committed_opstamp to opstamp for every
// event row still at the sentinel value of 0 — exactly the set of live
// events staged into the index writer's pending batch since the last
// commit, since the writer goroutine is single-threaded and every Live
// message is written to this store before it is staged in the index.
func (s *Store) MarkPendingCommitted(opstamp uint64) (int64, error) {
	res, err := s.db.Exec(`UPDATE events SET committed_opstamp = ? WHERE committed_opstamp = 0`, opstamp)
	if err != nil {
		return 0, fmt.Errorf("mark pending committed: %w", err)
	}
	return res.RowsAffected()
}
