package engine

import (
	"context"
	"encoding/json"
	"io"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Sink receives outcomes in input order.
type Sink interface {
	Emit(ctx context.Context, o core.Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, o core.Outcome) error

// Emit calls f(ctx, o).
func (f SinkFunc) Emit(ctx context.Context, o core.Outcome) error { return f(ctx, o) }

// CollectSink keeps every outcome in memory.
type CollectSink struct {
	Outcomes []core.Outcome
}

// Emit appends o.
func (s *CollectSink) Emit(_ context.Context, o core.Outcome) error {
	s.Outcomes = append(s.Outcomes, o)
	return nil
}

// OutcomeLine is the JSON form of an outcome written by JSONSink.
type OutcomeLine struct {
	Document     string          `json:"document"`
	Index        int             `json:"index"`
	Status       core.Status     `json:"status"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
	AffectedRows int64           `json:"affectedRows"`
	Batch        int             `json:"batch,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// NewOutcomeLine converts an outcome to its JSON form.
func NewOutcomeLine(o core.Outcome) OutcomeLine {
	return OutcomeLine{
		Document:     o.Record.DocumentID,
		Index:        o.Record.Index,
		Status:       o.Status,
		Code:         o.Code,
		Message:      o.Message,
		AffectedRows: o.AffectedRows,
		Batch:        o.Batch,
		Payload:      o.Payload,
	}
}

// JSONSink writes one JSON object per outcome (NDJSON).
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONSink{enc: enc}
}

// Emit writes o as one line.
func (s *JSONSink) Emit(_ context.Context, o core.Outcome) error {
	return s.enc.Encode(NewOutcomeLine(o))
}
