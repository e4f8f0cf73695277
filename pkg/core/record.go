package core

import "encoding/json"

// Record is one flat input row: field name to JSON value.
// Values are json.Number, string, bool, nil, or for BLOB/JSON
// columns a structured map[string]any / []any.
type Record struct {
	DocumentID string
	Index      int // position inside its document
	Seq        int // position in the whole input stream, assigned by the engine
	Fields     map[string]any
}

// Document is one caller-supplied unit of work.
type Document struct {
	ID      string
	Records []Record
}

// Status is the result class of one record.
type Status string

// Outcome statuses.
const (
	StatusSuccess          Status = "SUCCESS"
	StatusFailure          Status = "FAILURE"
	StatusApplicationError Status = "APPLICATION_ERROR"
)

// Outcome is produced exactly once per input record, in input order.
type Outcome struct {
	Record       Record
	Status       Status
	Code         string // driver error code or empty
	Message      string
	AffectedRows int64
	Batch        int // flush number, 0 when the record never reached a batch
	Payload      json.RawMessage
}
