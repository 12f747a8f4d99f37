package store

import (
	"database/sql"
	"fmt"
)

// LoadCheckpoints lists every row in the checkpoints table, for a caller's
// resumption logic on startup.
func (s *Store) LoadCheckpoints() ([]CheckpointRecord, error) {
	rows, err := s.db.Query(`SELECT room_id, token FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointRecord
	for rows.Next() {
		var c CheckpointRecord
		if err := rows.Scan(&c.RoomID, &c.Token); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadEventSource returns the verbatim source JSON for eventID, restricted
// to rows visible as of snapshotOpstamp (so a Searcher's view of a hit's
// own source cannot outrun the commit it was found at). A zero
// snapshotOpstamp means "unbounded", for callers outside a Searcher's
// snapshot (e.g. a Connection).
func (s *Store) LoadEventSource(eventID string, snapshotOpstamp uint64) (string, error) {
	var source string
	var err error
	if snapshotOpstamp == 0 {
		err = s.db.QueryRow(`SELECT source_json FROM events WHERE event_id = ?`, eventID).Scan(&source)
	} else {
		err = s.db.QueryRow(`SELECT source_json FROM events WHERE event_id = ? AND committed_opstamp <= ? AND committed_opstamp > 0`,
			eventID, snapshotOpstamp).Scan(&source)
	}
	if err != nil {
		return "", err
	}
	return source, nil
}

type eventRow struct {
	eventID  string
	roomID   string
	serverTS int64
	sender   string
	source   string
}

func (s *Store) loadEventRow(eventID string, snapshotOpstamp uint64) (eventRow, error) {
	var r eventRow
	var err error
	if snapshotOpstamp == 0 {
		err = s.db.QueryRow(`SELECT event_id, room_id, server_ts, sender, source_json FROM events WHERE event_id = ?`,
			eventID).Scan(&r.eventID, &r.roomID, &r.serverTS, &r.sender, &r.source)
	} else {
		err = s.db.QueryRow(`SELECT event_id, room_id, server_ts, sender, source_json FROM events
			WHERE event_id = ? AND committed_opstamp <= ? AND committed_opstamp > 0`,
			eventID, snapshotOpstamp).Scan(&r.eventID, &r.roomID, &r.serverTS, &r.sender, &r.source)
	}
	return r, err
}

// LoadEventContext returns up to beforeLimit events with strictly smaller
// (server_ts, event_id) and up to afterLimit with strictly larger, within
// the same room as eventID, in chronological order, plus a profile per
// sender across those events and the matched event itself. Each profile is
// the snapshot bound to that sender's chronologically latest appearance in
// the window — the event_profile row recorded at index time, never the
// sender's current (possibly since-overwritten) profile — so a historical
// hit keeps reporting the profile its author had when it was sent.
// snapshotOpstamp bounds every row to what was committed at or before that
// generation (0 means unbounded).
func (s *Store) LoadEventContext(eventID string, beforeLimit, afterLimit int, snapshotOpstamp uint64) (before, after []string, profiles map[string]ProfileRecord, err error) {
	hit, err := s.loadEventRow(eventID, snapshotOpstamp)
	if err != nil {
		return nil, nil, nil, err
	}

	beforeRows, err := s.contextWindow(hit.roomID, hit.serverTS, hit.eventID, beforeLimit, snapshotOpstamp, false)
	if err != nil {
		return nil, nil, nil, err
	}
	afterRows, err := s.contextWindow(hit.roomID, hit.serverTS, hit.eventID, afterLimit, snapshotOpstamp, true)
	if err != nil {
		return nil, nil, nil, err
	}

	before = make([]string, len(beforeRows))
	for i, r := range beforeRows {
		before[i] = r.source
	}
	after = make([]string, len(afterRows))
	for i, r := range afterRows {
		after[i] = r.source
	}

	windowRows := make([]contextRow, 0, len(beforeRows)+len(afterRows)+1)
	windowRows = append(windowRows, contextRow{eventID: hit.eventID, serverTS: hit.serverTS, sender: hit.sender})
	windowRows = append(windowRows, beforeRows...)
	windowRows = append(windowRows, afterRows...)

	profiles, err = s.loadBoundProfiles(windowRows)
	if err != nil {
		return nil, nil, nil, err
	}
	return before, after, profiles, nil
}

type contextRow struct {
	eventID  string
	serverTS int64
	sender   string
	source   string
}

// contextWindow returns up to limit events strictly before or after
// (server_ts, event_id), ordered chronologically, within the same room.
func (s *Store) contextWindow(roomID string, serverTS int64, eventID string, limit int, snapshotOpstamp uint64, after bool) ([]contextRow, error) {
	if limit <= 0 {
		return nil, nil
	}

	var cmp, order string
	if after {
		cmp, order = ">", "ASC"
	} else {
		cmp, order = "<", "DESC"
	}

	opstampClause := ""
	args := []any{roomID, serverTS, serverTS, eventID, limit}
	if snapshotOpstamp != 0 {
		opstampClause = "AND committed_opstamp <= ? AND committed_opstamp > 0"
		args = []any{roomID, serverTS, serverTS, eventID, snapshotOpstamp, limit}
	}

	query := fmt.Sprintf(`
		SELECT event_id, server_ts, sender, source_json FROM events
		WHERE room_id = ?
		AND ((server_ts %s ?) OR (server_ts = ? AND event_id %s ?))
		%s
		ORDER BY server_ts %s, event_id %s
		LIMIT ?
	`, cmp, cmp, opstampClause, order, order)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("context window query: %w", err)
	}
	defer rows.Close()

	var out []contextRow
	for rows.Next() {
		var r contextRow
		if err := rows.Scan(&r.eventID, &r.serverTS, &r.sender, &r.source); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !after {
		// DESC-ordered fetch of "the nearest limit events before", then
		// flipped back to chronological order for the result.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// boundProfile is a single event_profile row, cached by event_id: the
// binding never changes once written, so unlike a sender's current
// profile it is safe to cache indefinitely.
type boundProfile struct {
	sender string
	record ProfileRecord
}

// loadBoundProfiles resolves, for every distinct sender across rows, the
// event_profile snapshot bound to that sender's chronologically latest row
// in the set.
func (s *Store) loadBoundProfiles(rows []contextRow) (map[string]ProfileRecord, error) {
	bound := make(map[string]boundProfile, len(rows))
	var misses []string

	for _, r := range rows {
		if bp, ok := s.profileCache.Get(r.eventID); ok {
			bound[r.eventID] = bp
			continue
		}
		misses = append(misses, r.eventID)
	}

	if len(misses) > 0 {
		placeholders := make([]byte, 0, len(misses)*2)
		args := make([]any, len(misses))
		for i, id := range misses {
			if i > 0 {
				placeholders = append(placeholders, ',', '?')
			} else {
				placeholders = append(placeholders, '?')
			}
			args[i] = id
		}

		dbRows, err := s.db.Query(fmt.Sprintf(
			`SELECT event_id, sender, display_name, avatar_url FROM event_profile WHERE event_id IN (%s)`,
			placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("load bound profiles: %w", err)
		}
		defer dbRows.Close()

		for dbRows.Next() {
			var id, sender string
			var displayName, avatarURL sql.NullString
			if err := dbRows.Scan(&id, &sender, &displayName, &avatarURL); err != nil {
				return nil, fmt.Errorf("scan bound profile: %w", err)
			}
			bp := boundProfile{sender: sender, record: ProfileRecord{
				DisplayName: scanNullableString(displayName),
				AvatarURL:   scanNullableString(avatarURL),
			}}
			bound[id] = bp
			s.profileCache.Add(id, bp)
		}
		if err := dbRows.Err(); err != nil {
			return nil, err
		}
	}

	// Reduce per-event bindings down to one profile per sender: the
	// binding attached to that sender's latest (server_ts, event_id) row
	// in the window.
	latest := make(map[string]contextRow, len(rows))
	for _, r := range rows {
		cur, ok := latest[r.sender]
		if !ok || r.serverTS > cur.serverTS || (r.serverTS == cur.serverTS && r.eventID > cur.eventID) {
			latest[r.sender] = r
		}
	}

	out := make(map[string]ProfileRecord, len(latest))
	for sender, r := range latest {
		if bp, ok := bound[r.eventID]; ok {
			out[sender] = bp.record
		}
	}
	return out, nil
}
