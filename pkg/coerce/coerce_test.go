package coerce

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

func col(name string, typ core.SQLType) core.Column {
	return core.Column{Name: name, Type: typ, Nullable: true}
}

func newCoercer(t *testing.T) *Coercer {
	t.Helper()
	c, err := New(DefaultFormats())
	require.NoError(t, err)
	return c
}

func TestCoerce_Scalars(t *testing.T) {
	c := newCoercer(t)

	tests := []struct {
		name string
		typ  core.SQLType
		raw  any
		want any
	}{
		{"numeric integer", core.TypeNumeric, json.Number("42"), int64(42)},
		{"numeric negative", core.TypeNumeric, json.Number("-7"), int64(-7)},
		{"numeric decimal keeps text", core.TypeNumeric, json.Number("3.14159265358979323846"), "3.14159265358979323846"},
		{"numeric beyond int64 keeps text", core.TypeNumeric, json.Number("99999999999999999999"), "99999999999999999999"},
		{"numeric from string", core.TypeNumeric, " 12 ", int64(12)},
		{"double", core.TypeDouble, json.Number("2.5"), 2.5},
		{"double from string", core.TypeDouble, "1e3", 1000.0},
		{"boolean", core.TypeBoolean, true, true},
		{"boolean string any case", core.TypeBoolean, "FALSE", false},
		{"varchar string", core.TypeVarchar, "hello", "hello"},
		{"varchar number", core.TypeVarchar, json.Number("12.50"), "12.50"},
		{"varchar bool", core.TypeVarchar, true, "true"},
		{"text", core.TypeText, "long text", "long text"},
		{"time", core.TypeTime, "10:11:12", "10:11:12"},
		{"time with fraction", core.TypeTime, "10:11:12.5", "10:11:12.5"},
		{"binary string", core.TypeBinary, "abc", []byte("abc")},
		{"json object string compacted", core.TypeJSON, `{ "a" : [1, 2] }`, `{"a":[1,2]}`},
		{"json plain string", core.TypeJSON, "hello", `"hello"`},
		{"json number", core.TypeJSON, json.Number("5"), `5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Coerce(tt.raw, col("c", tt.typ))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.want, got.V)
		})
	}
}

func TestCoerce_StringsBindVerbatim(t *testing.T) {
	c := newCoercer(t)

	for _, s := range []string{
		"O'Brien",
		`say "hi"`,
		"semi; DROP TABLE users;--",
		`back\slash`,
		"tab\tand\nnewline",
		"percent % and ? mark",
	} {
		for _, typ := range []core.SQLType{core.TypeVarchar, core.TypeText} {
			got, err := c.Coerce(s, col("c", typ))
			require.NoError(t, err)
			assert.Equal(t, s, got.V)
		}
		got, err := c.Coerce(s, col("c", core.TypeBinary))
		require.NoError(t, err)
		assert.Equal(t, []byte(s), got.V)
	}
}

func TestCoerce_NullKeepsType(t *testing.T) {
	c := newCoercer(t)

	for _, typ := range []core.SQLType{
		core.TypeVarchar, core.TypeNumeric, core.TypeDouble, core.TypeBoolean,
		core.TypeDate, core.TypeTime, core.TypeTimestamp, core.TypeTimestampTZ,
		core.TypeText, core.TypeBinary, core.TypeJSON,
	} {
		t.Run(typ.String(), func(t *testing.T) {
			got, err := c.Coerce(nil, col("c", typ))
			require.NoError(t, err)
			assert.True(t, got.IsNull())
			assert.Equal(t, typ, got.Type)
		})
	}
}

func TestCoerce_Structured(t *testing.T) {
	c := newCoercer(t)
	obj := map[string]any{
		"b": json.Number("1"),
		"a": "<tag>&",
		"c": []any{true, nil},
	}
	want := `{"a":"<tag>&","b":1,"c":[true,null]}`

	got, err := c.Coerce(obj, col("doc", core.TypeJSON))
	require.NoError(t, err)
	assert.Equal(t, want, got.V)

	got, err = c.Coerce(obj, col("doc", core.TypeVarchar))
	require.NoError(t, err)
	assert.Equal(t, want, got.V)

	got, err = c.Coerce(obj, col("doc", core.TypeBinary))
	require.NoError(t, err)
	assert.Equal(t, []byte(want), got.V)
}

func TestCoerce_Temporal(t *testing.T) {
	c := newCoercer(t)

	got, err := c.Coerce("2024-03-01", col("d", core.TypeDate))
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(got.V.(time.Time)))

	got, err = c.Coerce("2024-03-01T10:20:30", col("ts", core.TypeTimestamp))
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC).Equal(got.V.(time.Time)))

	got, err = c.Coerce("2024-03-01 10:20:30", col("ts", core.TypeTimestamp))
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC).Equal(got.V.(time.Time)))

	// Plain timestamps are bound in UTC.
	got, err = c.Coerce("2024-03-01T10:00:00+02:00", col("ts", core.TypeTimestamp))
	require.NoError(t, err)
	ts := got.V.(time.Time)
	assert.Equal(t, 8, ts.Hour())
	assert.Equal(t, time.UTC, ts.Location())

	got, err = c.Coerce("2024-03-01T10:00:00+02:00", col("tz", core.TypeTimestampTZ))
	require.NoError(t, err)
	tz := got.V.(time.Time)
	_, offset := tz.Zone()
	assert.Equal(t, 2*60*60, offset)
	assert.Equal(t, 10, tz.Hour())
}

func TestCoerce_CustomFormats(t *testing.T) {
	loc := time.FixedZone("UTC+1", 60*60)
	c, err := New(Formats{
		Date:      "dd/MM/yyyy",
		Timestamp: "dd/MM/yyyy HH:mm",
		Location:  loc,
	})
	require.NoError(t, err)

	got, err := c.Coerce("01/03/2024", col("d", core.TypeDate))
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc).Equal(got.V.(time.Time)))

	got, err = c.Coerce("01/03/2024 09:30", col("ts", core.TypeTimestamp))
	require.NoError(t, err)
	ts := got.V.(time.Time)
	assert.True(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC).Equal(ts))
	assert.Equal(t, time.UTC, ts.Location(), "the parse location is not bound with the value")

	// Unset patterns keep their defaults.
	got, err = c.Coerce("10:11:12", col("t", core.TypeTime))
	require.NoError(t, err)
	assert.Equal(t, "10:11:12", got.V)

	_, err = c.Coerce("2024-03-01", col("d", core.TypeDate))
	assert.Error(t, err)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Formats{Timestamp: "yyyy-QQ"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp format")
}

func TestCoerce_ApplicationErrors(t *testing.T) {
	c := newCoercer(t)

	tests := []struct {
		name   string
		typ    core.SQLType
		raw    any
		reason string
	}{
		{"numeric text", core.TypeNumeric, "abc", "not a number"},
		{"numeric empty", core.TypeNumeric, "  ", "empty string"},
		{"numeric bool", core.TypeNumeric, true, "bool is not a number"},
		{"numeric object", core.TypeNumeric, map[string]any{"a": json.Number("1")}, "is not a number"},
		{"numeric NaN", core.TypeNumeric, "NaN", "not a finite number"},
		{"double overflow", core.TypeDouble, json.Number("1e400"), "out of range"},
		{"boolean word", core.TypeBoolean, "yes", "not true or false"},
		{"boolean number", core.TypeBoolean, json.Number("1"), "not a boolean"},
		{"date format", core.TypeDate, "03/01/2024", "does not match"},
		{"date number", core.TypeDate, json.Number("20240301"), "not a date/time string"},
		{"time garbage", core.TypeTime, "noon", "does not match"},
		{"timestamp garbage", core.TypeTimestamp, "2024-13-45T99:00:00", "does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Coerce(tt.raw, col("amount", tt.typ))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrApplication))
			assert.False(t, core.IsRunFatal(err))

			var appErr *core.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "amount", appErr.Column)
			assert.Equal(t, tt.typ, appErr.Type)
			assert.Contains(t, appErr.Reason, tt.reason)
		})
	}
}
