// Package schema declares the indexed fields of the chat event full-text
// index and builds the bleve mapping that backs them.
package schema

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names, stable across the lifetime of an index directory. Changing
// any of these requires a full re-index (schema migration is out of scope).
const (
	FieldBody            = "body"
	FieldTopic           = "topic"
	FieldName            = "name"
	FieldRoomID          = "room_id"
	FieldServerTimestamp = "server_timestamp"
	FieldEventID         = "event_id"
)

// ScopedFields is the field subset a query parser is bound to: the three
// tokenized content fields plus room_id, which doubles as a filter clause
// target. event_id is deliberately excluded; it is stored, never searched.
var ScopedFields = []string{FieldBody, FieldTopic, FieldName, FieldRoomID}

// Build returns the bleve index mapping for a chat event document.
func Build() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = "standard"

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"

	eventID := bleve.NewTextFieldMapping()
	eventID.Index = false
	eventID.Store = true
	eventID.IncludeInAll = false

	serverTS := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldBody, text)
	doc.AddFieldMappingsAt(FieldTopic, text)
	doc.AddFieldMappingsAt(FieldName, text)
	doc.AddFieldMappingsAt(FieldRoomID, text)
	doc.AddFieldMappingsAt(FieldServerTimestamp, serverTS)
	doc.AddFieldMappingsAt(FieldEventID, eventID)

	im.DefaultMapping = doc
	return im
}

// Document is the bleve-indexable representation of a single chat event.
// Body/Topic/Name are searchable content; RoomID is searchable and doubles
// as the filter-clause target; ServerTimestamp is the recency sort field;
// EventID is stored only.
//
// TODO: Topic and Name are declared in the mapping but nothing populates
// them yet; only message bodies are extracted from incoming events today.
type Document struct {
	Body            string `json:"body"`
	Topic           string `json:"topic,omitempty"`
	Name            string `json:"name,omitempty"`
	RoomID          string `json:"room_id"`
	ServerTimestamp int64  `json:"server_timestamp"`
	EventID         string `json:"event_id"`
}
