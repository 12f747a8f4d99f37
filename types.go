package chatsearch

// Event is a single chat-room message, as handed to AddEvent or carried in
// a backlog batch. EventID is globally unique; (RoomID, ServerTS, EventID)
// defines the total order used for context hydration.
type Event struct {
	EventID  string `json:"event_id"`
	Sender   string `json:"sender"`
	RoomID   string `json:"room_id"`
	ServerTS int64  `json:"server_ts"`
	Body     string `json:"body"`
	Source   string `json:"source"`
}

// Profile is a point-in-time sender snapshot, keyed by sender at the call
// site. Later submissions for the same sender overwrite the latest-known
// snapshot, but a profile bound to an already-indexed event never changes.
type Profile struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// Checkpoint is an opaque backfill paginator position for a room, supplied
// by the caller's upstream history API.
type Checkpoint struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// SearchResult is one full-text hit, hydrated with its surrounding
// context and the profiles of everyone who authored an event in that
// context.
type SearchResult struct {
	Score        float32            `json:"score"`
	EventSource  string             `json:"event_source"`
	EventsBefore []string           `json:"events_before"`
	EventsAfter  []string           `json:"events_after"`
	ProfileInfo  map[string]Profile `json:"profile_info"`
}
