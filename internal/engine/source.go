package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Source yields documents in input order. Next returns io.EOF after the
// last document.
type Source interface {
	Next(ctx context.Context) (core.Document, error)
}

// SliceSource yields documents from memory.
type SliceSource struct {
	docs []core.Document
	pos  int
}

// NewSliceSource creates a source over docs.
func NewSliceSource(docs ...core.Document) *SliceSource {
	return &SliceSource{docs: docs}
}

// Next returns the next document.
func (s *SliceSource) Next(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	if s.pos >= len(s.docs) {
		return core.Document{}, io.EOF
	}
	doc := s.docs[s.pos]
	s.pos++
	return doc, nil
}

// RecordsSource yields each record as its own one-row document.
func RecordsSource(records ...map[string]any) *SliceSource {
	docs := make([]core.Document, len(records))
	for i, fields := range records {
		docs[i] = core.Document{
			ID:      strconv.Itoa(i + 1),
			Records: []core.Record{{Fields: fields}},
		}
	}
	return NewSliceSource(docs...)
}

// JSONSource decodes documents from a JSON array of documents or from a
// stream of JSON values (NDJSON). Each document is one of:
//
//	{"id": 1, "name": "a"}                  one record, generated id
//	[{"id": 1}, {"id": 2}]                  several records, generated id
//	{"id": "doc-1", "rows": [{...}, ...]}   several records, named document
//
// An object is a named document only when it has both "id" and an array
// "rows"; any other object is one record, even with a "rows" field.
// A top-level array is always read as the list of documents. Numbers are
// kept as json.Number so exact values reach the coercer.
type JSONSource struct {
	r       *bufio.Reader
	dec     *json.Decoder
	inArray bool
	count   int
}

// NewJSONSource creates a source reading r.
func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{r: bufio.NewReader(r)}
}

// Next decodes the next document.
func (s *JSONSource) Next(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	if s.dec == nil {
		if err := s.start(); err != nil {
			return core.Document{}, err
		}
	}

	if s.inArray && !s.dec.More() {
		// closing bracket
		if _, err := s.dec.Token(); err != nil {
			return core.Document{}, fmt.Errorf("document %d: %w", s.count+1, unexpectedEOF(err))
		}
		return core.Document{}, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) && !s.inArray {
			return core.Document{}, io.EOF
		}
		return core.Document{}, fmt.Errorf("document %d: %w", s.count+1, unexpectedEOF(err))
	}
	s.count++
	doc, err := parseDocument(raw)
	if err != nil {
		return core.Document{}, fmt.Errorf("document %d: %w", s.count, err)
	}
	return doc, nil
}

// unexpectedEOF reports an end of input inside an open array as
// io.ErrUnexpectedEOF, so it is never mistaken for the end of the stream.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// start detects a leading '[' and, if present, consumes it.
func (s *JSONSource) start() error {
	first, err := firstByte(s.r)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read input: %w", err)
	}

	s.dec = json.NewDecoder(s.r)
	s.dec.UseNumber()
	if first != '[' {
		return nil
	}
	if _, err := s.dec.Token(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	s.inArray = true
	return nil
}

// firstByte returns the first non-space byte without consuming it.
func firstByte(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

// parseDocument converts one JSON value into a document.
func parseDocument(raw json.RawMessage) (core.Document, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return core.Document{}, err
	}

	switch val := v.(type) {
	case map[string]any:
		_, hasID := val["id"]
		rows, hasRows := val["rows"].([]any)
		if !hasID || !hasRows {
			return core.Document{ID: uuid.NewString(), Records: []core.Record{{Fields: val}}}, nil
		}
		id, err := documentID(val["id"])
		if err != nil {
			return core.Document{}, err
		}
		records, err := parseRows(rows)
		if err != nil {
			return core.Document{}, err
		}
		return core.Document{ID: id, Records: records}, nil
	case []any:
		records, err := parseRows(val)
		if err != nil {
			return core.Document{}, err
		}
		return core.Document{ID: uuid.NewString(), Records: records}, nil
	default:
		return core.Document{}, fmt.Errorf("expected an object or array, got %T", v)
	}
}

func parseRows(rows []any) ([]core.Record, error) {
	records := make([]core.Record, len(rows))
	for i, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d: expected an object, got %T", i, row)
		}
		records[i] = core.Record{Fields: fields}
	}
	return records, nil
}

func documentID(v any) (string, error) {
	switch id := v.(type) {
	case nil:
		return uuid.NewString(), nil
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", fmt.Errorf("document id must be a string or number, got %T", v)
	}
}
