package chatsearch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func source(eventID string) string {
	return fmt.Sprintf(`{"event_id":%q}`, eventID)
}

func sourceEventID(t *testing.T, src string) string {
	t.Helper()
	var v struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		t.Fatalf("unmarshal source: %v", err)
	}
	return v.EventID
}

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(t.TempDir(), WithCommitInterval(60000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Scenario 1: single event.
func TestScenarioSingleEvent(t *testing.T) {
	db := openTestDB(t)

	db.AddEvent(Event{EventID: "$a", RoomID: "!r", ServerTS: 1, Body: "hello world", Sender: "@u", Source: source("$a")}, Profile{})
	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	results := db.GetSearcher().Search(SearchArgs{Term: "hello", Limit: 10})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if got := sourceEventID(t, results[0].EventSource); got != "$a" {
		t.Errorf("event_id = %q, want $a", got)
	}
}

// Scenario 2: room scoping.
func TestScenarioRoomScoping(t *testing.T) {
	db := openTestDB(t)

	db.AddEvent(Event{EventID: "$a", RoomID: "!r1", ServerTS: 1, Body: "hello", Sender: "@u", Source: source("$a")}, Profile{})
	db.AddEvent(Event{EventID: "$b", RoomID: "!r2", ServerTS: 2, Body: "hello", Sender: "@u", Source: source("$b")}, Profile{})
	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	scoped := db.GetSearcher().Search(SearchArgs{Term: "hello", Limit: 10, RoomID: "!r1"})
	if len(scoped) != 1 || sourceEventID(t, scoped[0].EventSource) != "$a" {
		t.Fatalf("room-scoped search: got %+v", scoped)
	}

	unscoped := db.GetSearcher().Search(SearchArgs{Term: "hello", Limit: 10})
	if len(unscoped) != 2 {
		t.Fatalf("unscoped search: expected 2, got %d", len(unscoped))
	}
}

// Scenario 3: recency ordering.
func TestScenarioRecencyOrdering(t *testing.T) {
	db := openTestDB(t)

	db.AddEvent(Event{EventID: "$old", RoomID: "!r", ServerTS: 100, Body: "ping", Sender: "@u", Source: source("$old")}, Profile{})
	db.AddEvent(Event{EventID: "$new", RoomID: "!r", ServerTS: 200, Body: "ping", Sender: "@u", Source: source("$new")}, Profile{})
	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	results := db.GetSearcher().Search(SearchArgs{Term: "ping", Limit: 2, OrderByRecent: true})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if sourceEventID(t, results[0].EventSource) != "$new" || sourceEventID(t, results[1].EventSource) != "$old" {
		t.Fatalf("expected newest-first order, got %+v", results)
	}
	for _, r := range results {
		if r.Score != 1.0 {
			t.Errorf("recency search score = %v, want 1.0", r.Score)
		}
	}
}

// Scenario 4: context hydration.
func TestScenarioContextHydration(t *testing.T) {
	db := openTestDB(t)

	ids := []string{"$1", "$2", "$3", "$4", "$5"}
	for i, id := range ids {
		body := "filler"
		if id == "$3" {
			body = "needle"
		}
		db.AddEvent(Event{EventID: id, RoomID: "!r", ServerTS: int64((i + 1) * 10), Body: body, Sender: "@u", Source: source(id)}, Profile{})
	}
	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	results := db.GetSearcher().Search(SearchArgs{Term: "needle", Limit: 10, BeforeLimit: 2, AfterLimit: 2})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if len(r.EventsBefore) != 2 || len(r.EventsAfter) != 2 {
		t.Fatalf("expected 2 before and 2 after, got before=%d after=%d", len(r.EventsBefore), len(r.EventsAfter))
	}
	if sourceEventID(t, r.EventsBefore[0]) != "$1" || sourceEventID(t, r.EventsBefore[1]) != "$2" {
		t.Errorf("events_before out of order: %v", r.EventsBefore)
	}
	if sourceEventID(t, r.EventsAfter[0]) != "$4" || sourceEventID(t, r.EventsAfter[1]) != "$5" {
		t.Errorf("events_after out of order: %v", r.EventsAfter)
	}
}

// Scenario 5: backlog atomicity.
func TestScenarioBacklogAtomicity(t *testing.T) {
	db := openTestDB(t)

	dup := Event{EventID: "$dup", RoomID: "!r", ServerTS: 1, Body: "backlog body", Sender: "@u", Source: source("$dup")}
	events := []Event{dup, dup}
	profiles := []Profile{{}, {}}
	newCP := &Checkpoint{RoomID: "!r", Token: "tok-new"}

	err := db.AddBacklogEvents(events, profiles, newCP, nil)
	if err == nil {
		t.Fatal("expected backlog batch with a duplicate row to fail")
	}

	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	results := db.GetSearcher().Search(SearchArgs{Term: "backlog", Limit: 10})
	if len(results) != 0 {
		t.Fatalf("rolled-back batch should not be searchable, got %+v", results)
	}

	cps, err := db.GetConnection().LoadCheckpoints()
	if err != nil {
		t.Fatalf("LoadCheckpoints: %v", err)
	}
	if len(cps) != 0 {
		t.Fatalf("rolled-back batch should not leave a checkpoint, got %+v", cps)
	}
}

// Scenario 6: commit notification via CommitGetCvar.
func TestScenarioCommitNotification(t *testing.T) {
	db := openTestDB(t)

	db.AddEvent(Event{EventID: "$a", RoomID: "!r", ServerTS: 1, Body: "hello", Sender: "@u", Source: source("$a")}, Profile{})
	target, notifier := db.CommitGetCvar()

	var wg sync.WaitGroup
	wg.Add(1)
	unblocked := false
	go func() {
		defer wg.Done()
		if _, err := notifier.WaitForCommit(target); err != nil {
			t.Errorf("WaitForCommit: %v", err)
		}
		unblocked = true
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
		if !unblocked {
			t.Fatal("waiter returned without unblocking")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never unblocked after commit landed")
	}
}

func TestParseSearchArgsDoesNotSwapLimits(t *testing.T) {
	args, err := ParseSearchArgs(map[string]any{
		"search_term":    "hello",
		"before_limit":   float64(3),
		"after_limit":    float64(7),
		"order_by_recent": true,
	})
	if err != nil {
		t.Fatalf("ParseSearchArgs: %v", err)
	}
	if args.BeforeLimit != 3 {
		t.Errorf("BeforeLimit = %d, want 3", args.BeforeLimit)
	}
	if args.AfterLimit != 7 {
		t.Errorf("AfterLimit = %d, want 7 (not sourced from before_limit)", args.AfterLimit)
	}
}
