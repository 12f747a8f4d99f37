package ftsindex

import (
	"path/filepath"
	"testing"
)

func TestAddAndSearchEvent(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "fts"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	eventID := "$15163622445EBvZJ:localhost"
	w := ix.GetWriter()
	if err := w.AddDocument("Test message", eventID, "!Test:room", 1516362244026); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := ix.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	hits := ix.NewSearcher().Search("Test", 10, false, "")
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].EventID != eventID {
		t.Errorf("EventID = %q, want %q", hits[0].EventID, eventID)
	}
}

func TestAddEventsToDifferingRooms(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "fts"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	eventID := "$15163622445EBvZJ:localhost"
	w := ix.GetWriter()
	_ = w.AddDocument("Test message", eventID, "!Test:room", 1516362244026)
	_ = w.AddDocument("Test message", "$16678900:localhost", "!Test2:room", 1516362244026)
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = ix.Reload()

	hits := ix.NewSearcher().Search("Test", 10, false, "!Test:room")
	if len(hits) != 1 || hits[0].EventID != eventID {
		t.Fatalf("room-scoped search: got %+v", hits)
	}

	hits = ix.NewSearcher().Search("Test", 10, false, "")
	if len(hits) != 2 {
		t.Fatalf("unscoped search: expected 2, got %d", len(hits))
	}
}

func TestOrderResultsByDate(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "fts"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	eventID := "$15163622445EBvZJ:localhost"
	w := ix.GetWriter()
	_ = w.AddDocument("Test message", eventID, "!Test:room", 1516362244026)
	_ = w.AddDocument("Test message", "$16678900:localhost", "!Test2:room", 1516362244027)
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = ix.Reload()

	hits := ix.NewSearcher().Search("Test", 10, true, "")
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[1].EventID != eventID {
		t.Errorf("oldest hit should be last: %+v", hits)
	}
	for _, h := range hits {
		if h.Score != 1.0 {
			t.Errorf("recency search score = %v, want 1.0", h.Score)
		}
	}
}

func TestUncommittedNotVisible(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "fts"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	w := ix.GetWriter()
	_ = w.AddDocument("hello world", "$a:localhost", "!r:localhost", 1)

	hits := ix.NewSearcher().Search("hello", 10, false, "")
	if len(hits) != 0 {
		t.Fatalf("staged-but-uncommitted document should not be visible, got %+v", hits)
	}

	w.Discard()
	_ = w.Commit()
	hits = ix.NewSearcher().Search("hello", 10, false, "")
	if len(hits) != 0 {
		t.Fatalf("discarded document should never become visible, got %+v", hits)
	}
}
