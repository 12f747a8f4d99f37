package ftsindex

import (
	"github.com/blevesearch/bleve/v2"

	"chatsearch/internal/schema"
)

// Writer stages documents into a pending batch; nothing staged is visible
// to a Searcher until Commit is called.
type Writer struct {
	idx          bleve.Index
	batch        *bleve.Batch
	pendingBytes int
	pendingCount int
}

// AddDocument stages a document in the current writer segment.
func (w *Writer) AddDocument(body, eventID, roomID string, serverTS int64) error {
	doc := schema.Document{
		Body:            body,
		RoomID:          roomID,
		ServerTimestamp: serverTS,
		EventID:         eventID,
	}
	if err := w.batch.Index(eventID, doc); err != nil {
		return err
	}
	w.pendingBytes += len(body) + len(roomID) + len(eventID) + 16
	w.pendingCount++
	return nil
}

// PendingBytes reports the estimated size of the staged-but-uncommitted
// batch, so the writer loop can force a commit before the segment exceeds
// its memory budget.
func (w *Writer) PendingBytes() int {
	return w.pendingBytes
}

// PendingCount reports the number of documents staged since the last
// Commit or Discard.
func (w *Writer) PendingCount() int {
	return w.pendingCount
}

// Commit atomically seals all staged documents and resets the pending
// batch. With nothing staged it does nothing and returns nil.
func (w *Writer) Commit() error {
	if w.pendingCount == 0 {
		return nil
	}
	if err := w.idx.Batch(w.batch); err != nil {
		return err
	}
	w.batch = w.idx.NewBatch()
	w.pendingBytes = 0
	w.pendingCount = 0
	return nil
}

// Discard drops any uncommitted staged documents without applying them,
// used when a transactional batch fails partway through and the pending
// index documents for it must not survive to the next commit.
func (w *Writer) Discard() {
	w.batch = w.idx.NewBatch()
	w.pendingBytes = 0
	w.pendingCount = 0
}
