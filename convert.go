package chatsearch

import (
	"encoding/json"

	"chatsearch/internal/store"
)

func toEventInput(e Event) store.EventInput {
	return store.EventInput{
		EventID:  e.EventID,
		Sender:   e.Sender,
		RoomID:   e.RoomID,
		ServerTS: e.ServerTS,
		Body:     e.Body,
		Source:   e.Source,
	}
}

func toProfileRecord(p Profile) store.ProfileRecord {
	return store.ProfileRecord{DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}
}

func toCheckpointRecord(c *Checkpoint) *store.CheckpointRecord {
	if c == nil {
		return nil
	}
	return &store.CheckpointRecord{RoomID: c.RoomID, Token: c.Token}
}

func fromProfileRecord(p store.ProfileRecord) Profile {
	return Profile{DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}
}

// EventFromJSON builds an Event from a room ID and the verbatim JSON
// source of an event as received from an upstream history API. The
// source is expected to carry at least event_id, sender, origin_server_ts,
// and a content.body string, mirroring a typical chat-protocol message
// shape; body is hoisted out for indexing while source is kept verbatim
// for faithful echo on search.
func EventFromJSON(roomID string, source []byte) (Event, error) {
	var raw struct {
		EventID        string `json:"event_id"`
		Sender         string `json:"sender"`
		OriginServerTS int64  `json:"origin_server_ts"`
		Content        struct {
			Body string `json:"body"`
		} `json:"content"`
	}
	if err := json.Unmarshal(source, &raw); err != nil {
		return Event{}, err
	}
	return Event{
		EventID:  raw.EventID,
		Sender:   raw.Sender,
		RoomID:   roomID,
		ServerTS: raw.OriginServerTS,
		Body:     raw.Content.Body,
		Source:   string(source),
	}, nil
}
