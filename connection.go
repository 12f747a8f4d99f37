package chatsearch

import "chatsearch/internal/store"

// Connection is a thin read-only handle onto the relational store, for
// auxiliary queries that don't go through a Searcher's snapshot — e.g. a
// caller's resumption logic on startup.
type Connection struct {
	store *store.Store
}

// LoadCheckpoints lists every known backfill checkpoint across all rooms.
func (c *Connection) LoadCheckpoints() ([]Checkpoint, error) {
	records, err := c.store.LoadCheckpoints()
	if err != nil {
		return nil, ConnectionError{DatabaseError{Op: "load_checkpoints", Err: err}}
	}
	out := make([]Checkpoint, len(records))
	for i, r := range records {
		out[i] = Checkpoint{RoomID: r.RoomID, Token: r.Token}
	}
	return out, nil
}
