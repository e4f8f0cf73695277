package core

import (
	"database/sql/driver"
	"fmt"
)

// TypedValue is a coerced bind parameter. It keeps the column's SQLType
// even when the value is NULL.
type TypedValue struct {
	Type SQLType
	V    any // int64, float64, bool, string, []byte, time.Time or nil
}

// Null returns a NULL bound with the given type.
func Null(t SQLType) TypedValue {
	return TypedValue{Type: t}
}

// IsNull reports whether the value binds SQL NULL.
func (v TypedValue) IsNull() bool {
	return v.V == nil
}

// Value implements driver.Valuer.
func (v TypedValue) Value() (driver.Value, error) {
	return v.V, nil
}

// String returns a debug representation.
func (v TypedValue) String() string {
	if v.IsNull() {
		return fmt.Sprintf("NULL::%s", v.Type)
	}
	return fmt.Sprintf("%v::%s", v.V, v.Type)
}

var _ driver.Valuer = TypedValue{}
