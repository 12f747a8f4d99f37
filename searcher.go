package chatsearch

import (
	"chatsearch/internal/ftsindex"
	"chatsearch/internal/store"
)

// Searcher is a snapshot handle: its view of both stores is fixed at
// GetSearcher time and does not shift as later commits land. Cheap to
// acquire; callers are expected to discard and re-acquire it to see newer
// commits rather than holding one long-term.
type Searcher struct {
	searcher *ftsindex.Searcher
	store    *store.Store
	snapshot uint64
}

// SearchArgs bundles a search request so callers (and ParseSearchArgs)
// have a single named shape instead of a long positional parameter list.
type SearchArgs struct {
	Term          string
	Limit         int
	BeforeLimit   int
	AfterLimit    int
	OrderByRecent bool
	RoomID        string
}

// Search runs term (optionally scoped to RoomID) against the full-text
// index and hydrates each hit with its surrounding context and the
// profiles of everyone who spoke in that context. A hit whose stored
// event_id is missing or whose source lookup fails is skipped silently,
// rather than failing the whole search.
func (s *Searcher) Search(args SearchArgs) []SearchResult {
	hits := s.searcher.Search(args.Term, args.Limit, args.OrderByRecent, args.RoomID)

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.EventID == "" {
			continue
		}

		source, err := s.store.LoadEventSource(hit.EventID, s.snapshot)
		if err != nil {
			continue
		}

		before, after, profiles, err := s.store.LoadEventContext(hit.EventID, args.BeforeLimit, args.AfterLimit, s.snapshot)
		if err != nil {
			continue
		}

		profileInfo := make(map[string]Profile, len(profiles))
		for sender, p := range profiles {
			profileInfo[sender] = fromProfileRecord(p)
		}

		results = append(results, SearchResult{
			Score:        hit.Score,
			EventSource:  source,
			EventsBefore: before,
			EventsAfter:  after,
			ProfileInfo:  profileInfo,
		})
	}
	return results
}

// ParseSearchArgs builds a SearchArgs from a loosely-typed request map —
// the shape a boundary caller (e.g. a JSON-RPC or native-binding layer)
// would hand in. Deliberately reads after_limit from the "after_limit"
// key: the original binding this is modeled on read both before_limit and
// after_limit from the "before_limit" key, silently discarding whatever
// after_limit the caller supplied. That is treated here as the bug it is,
// not reproduced.
func ParseSearchArgs(req map[string]any) (SearchArgs, error) {
	term, _ := req["search_term"].(string)
	if term == "" {
		if t, ok := req["term"].(string); ok {
			term = t
		}
	}

	args := SearchArgs{
		Term:          term,
		Limit:         intField(req, "limit", 10),
		BeforeLimit:   intField(req, "before_limit", 0),
		AfterLimit:    intField(req, "after_limit", 0),
		OrderByRecent: boolField(req, "order_by_recent", false),
	}
	if roomID, ok := req["room_id"].(string); ok {
		args.RoomID = roomID
	}
	return args, nil
}

func intField(req map[string]any, key string, def int) int {
	switch v := req[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func boolField(req map[string]any, key string, def bool) bool {
	if v, ok := req[key].(bool); ok {
		return v
	}
	return def
}
