// Package coerce converts JSON field values into typed bind parameters for
// a target column.
//
// Values are never escaped or spliced into SQL text: strings are bound
// byte-for-byte and the driver's parameter binding carries them.
package coerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Formats configures how temporal strings are parsed. Each pattern is a Go
// layout or a yyyy-MM-dd style pattern (see TranslatePattern).
type Formats struct {
	Date        string
	Time        string
	Timestamp   string
	TimestampTZ string

	// Location interprets TIMESTAMP values without an offset. Nil means UTC.
	Location *time.Location
}

// DefaultFormats returns ISO-8601 patterns in UTC.
func DefaultFormats() Formats {
	return Formats{
		Date:        "2006-01-02",
		Time:        "15:04:05",
		Timestamp:   "2006-01-02T15:04:05",
		TimestampTZ: "2006-01-02T15:04:05Z07:00",
		Location:    time.UTC,
	}
}

// Coercer converts raw JSON values to core.TypedValue. It is immutable
// after New and safe for concurrent use.
type Coercer struct {
	date        []string
	timeOfDay   []string
	timestamp   []string
	timestampTZ []string
	loc         *time.Location
}

// New builds a Coercer, translating every pattern once. Empty patterns fall
// back to DefaultFormats.
func New(f Formats) (*Coercer, error) {
	def := DefaultFormats()
	pick := func(p, fallback string) string {
		if p == "" {
			return fallback
		}
		return p
	}

	date, err := TranslatePattern(pick(f.Date, def.Date))
	if err != nil {
		return nil, fmt.Errorf("date format: %w", err)
	}
	tod, err := TranslatePattern(pick(f.Time, def.Time))
	if err != nil {
		return nil, fmt.Errorf("time format: %w", err)
	}
	ts, err := TranslatePattern(pick(f.Timestamp, def.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("timestamp format: %w", err)
	}
	tsTZ, err := TranslatePattern(pick(f.TimestampTZ, def.TimestampTZ))
	if err != nil {
		return nil, fmt.Errorf("timestamp_tz format: %w", err)
	}

	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Coercer{
		date:      []string{date},
		timeOfDay: []string{tod},
		// A timestamp may carry an offset and a zoned timestamp may omit one.
		timestamp:   append(withSpaceSeparator(ts), withSpaceSeparator(tsTZ)...),
		timestampTZ: append(withSpaceSeparator(tsTZ), withSpaceSeparator(ts)...),
		loc:         loc,
	}, nil
}

// withSpaceSeparator also accepts "2006-01-02 15:04:05" for a layout written
// with the ISO 'T' separator.
func withSpaceSeparator(layout string) []string {
	if strings.Contains(layout, "02T15") {
		return []string{layout, strings.Replace(layout, "02T15", "02 15", 1)}
	}
	return []string{layout}
}

// Coerce converts raw to a bind value for col. A nil raw value binds a NULL
// typed with the column's type. Values that cannot be converted return a
// *core.ApplicationError.
func (c *Coercer) Coerce(raw any, col core.Column) (core.TypedValue, error) {
	if raw == nil {
		return core.Null(col.Type), nil
	}

	var (
		v   any
		err error
	)
	switch col.Type {
	case core.TypeNumeric:
		v, err = toNumeric(raw)
	case core.TypeDouble:
		v, err = toDouble(raw)
	case core.TypeBoolean:
		v, err = toBool(raw)
	case core.TypeDate:
		v, err = c.parseTime(raw, c.date, c.loc)
	case core.TypeTime:
		var t time.Time
		t, err = c.parseTime(raw, c.timeOfDay, time.UTC)
		v = t.Format("15:04:05.999999")
	case core.TypeTimestamp:
		var t time.Time
		t, err = c.parseTime(raw, c.timestamp, c.loc)
		v = t.UTC()
	case core.TypeTimestampTZ:
		v, err = c.parseTime(raw, c.timestampTZ, c.loc)
	case core.TypeBinary:
		v, err = toBinary(raw)
	case core.TypeJSON:
		v, err = toJSON(raw)
	default: // TypeVarchar, TypeText
		v, err = toText(raw)
	}
	if err != nil {
		return core.TypedValue{}, &core.ApplicationError{
			Column: col.Name,
			Type:   col.Type,
			Value:  raw,
			Reason: err.Error(),
		}
	}
	return core.TypedValue{Type: col.Type, V: v}, nil
}

// numberText returns the decimal text of a numeric-looking value.
func numberText(raw any) (string, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.String(), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", fmt.Errorf("empty string is not a number")
		}
		return s, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	default:
		return "", fmt.Errorf("%T is not a number", raw)
	}
}

// toNumeric binds integers as int64 and other exact numbers as their
// decimal text so no precision is lost to float64.
func toNumeric(raw any) (any, error) {
	s, err := numberText(raw)
	if err != nil {
		return nil, err
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if _, err := parseFinite(s); err != nil {
		return nil, err
	}
	return s, nil
}

func toDouble(raw any) (any, error) {
	s, err := numberText(raw)
	if err != nil {
		return nil, err
	}
	return parseFinite(s)
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%q is out of range", s)
		}
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

func toBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch {
		case strings.EqualFold(v, "true"):
			return true, nil
		case strings.EqualFold(v, "false"):
			return false, nil
		}
		return nil, fmt.Errorf("%q is not true or false", v)
	default:
		return nil, fmt.Errorf("%T is not a boolean", raw)
	}
}

func (c *Coercer) parseTime(raw any, layouts []string, loc *time.Location) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%T is not a date/time string", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match %q", s, layouts[0])
}

func toText(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case map[string]any, []any:
		b, err := canonicalJSON(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func toBinary(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return canonicalJSON(v)
	}
}

// toJSON binds canonical JSON text. A string holding a JSON object or array
// is passed through compacted; any other string becomes a JSON string.
func toJSON(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
			var buf bytes.Buffer
			if err := json.Compact(&buf, []byte(trimmed)); err != nil {
				return nil, err
			}
			return buf.String(), nil
		}
	}
	b, err := canonicalJSON(raw)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// canonicalJSON encodes v compactly with sorted object keys and without
// HTML escaping.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("cannot encode as JSON: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
