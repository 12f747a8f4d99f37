package ftsindex

import (
	"github.com/blevesearch/bleve/v2"

	"chatsearch/internal/schema"
)

// Hit is a single full-text match: its relevance (or recency-placeholder)
// score and the stored event_id used to join back to the relational store.
type Hit struct {
	Score   float32
	EventID string
}

// Searcher is a leased, query-parser-bound view over the index. It is
// cheap to acquire and does not block the writer.
type Searcher struct {
	idx bleve.Index
}

// Search parses term against the field subset schema.ScopedFields and
// returns up to limit hits. A non-empty roomID adds a required phrase
// clause on room_id (a conjunction with the parsed term), so only hits in
// that room are returned. A query parse failure yields an empty result
// set, never an error.
func (s *Searcher) Search(term string, limit int, orderByRecent bool, roomID string) []Hit {
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(term), limit, 0, false)
	if roomID != "" {
		room := bleve.NewMatchPhraseQuery(roomID)
		room.SetField(schema.FieldRoomID)
		req.Query = bleve.NewConjunctionQuery(req.Query, room)
	}
	req.Fields = []string{schema.FieldEventID}

	if orderByRecent {
		req.SortBy([]string{"-" + schema.FieldServerTimestamp})
	}

	result, err := s.idx.Search(req)
	if err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, dm := range result.Hits {
		eventID := dm.ID
		if v, ok := dm.Fields[schema.FieldEventID].(string); ok && v != "" {
			eventID = v
		}

		score := float32(dm.Score)
		if orderByRecent {
			score = 1.0
		}

		hits = append(hits, Hit{Score: score, EventID: eventID})
	}
	return hits
}
