package core

import (
	"slices"
	"strings"
)

// SQLType is the normalized type of a table column.
type SQLType int

const (
	// TypeVarchar is bounded character data. Unknown declared types map here.
	TypeVarchar SQLType = iota
	// TypeNumeric is exact numeric data (integers and decimals).
	TypeNumeric
	// TypeDouble is approximate numeric data.
	TypeDouble
	// TypeBoolean is a true/false value.
	TypeBoolean
	// TypeDate is a calendar date without time.
	TypeDate
	// TypeTime is a time of day without date.
	TypeTime
	// TypeTimestamp is a date and time without zone.
	TypeTimestamp
	// TypeTimestampTZ is a date and time with zone offset.
	TypeTimestampTZ
	// TypeText is unbounded character data (TEXT, CLOB).
	TypeText
	// TypeBinary is raw bytes (BLOB, BYTEA, VARBINARY).
	TypeBinary
	// TypeJSON is a JSON document column.
	TypeJSON
)

// String returns the canonical SQL name of the type.
func (t SQLType) String() string {
	switch t {
	case TypeVarchar:
		return "VARCHAR"
	case TypeNumeric:
		return "NUMERIC"
	case TypeDouble:
		return "DOUBLE"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeTimestampTZ:
		return "TIMESTAMP_TZ"
	case TypeText:
		return "TEXT"
	case TypeBinary:
		return "BINARY"
	case TypeJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// IsTemporal reports whether the type is parsed from a date/time pattern.
func (t SQLType) IsTemporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeTimestamp, TypeTimestampTZ:
		return true
	default:
		return false
	}
}

// Column is one entry of a table's column metadata.
type Column struct {
	Name         string
	Type         SQLType
	DeclaredType string // type name as reported by the database
	Nullable     bool
	Position     int // 1-based ordinal position
}

// TableRef identifies a table by catalog, schema and name.
// Which parts are meaningful depends on the dialect.
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
}

// ParseTableRef splits a dotted reference: "t", "s.t" or "c.s.t".
func ParseTableRef(s string) TableRef {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return TableRef{Name: parts[0]}
	case 2:
		return TableRef{Schema: parts[0], Name: parts[1]}
	default:
		return TableRef{
			Catalog: strings.Join(parts[:len(parts)-2], "."),
			Schema:  parts[len(parts)-2],
			Name:    parts[len(parts)-1],
		}
	}
}

// String returns the dotted form of the reference, omitting empty parts.
func (r TableRef) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Catalog, r.Schema, r.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// KeyKind classifies the conflict key of a table.
type KeyKind int

const (
	// KeyNone means no usable conflict key; writes degrade to plain inserts.
	KeyNone KeyKind = iota
	// KeyPrimary means the declared primary key.
	KeyPrimary
	// KeyUnique means a unique index whose columns are all NOT NULL.
	KeyUnique
)

// String returns the string representation of KeyKind.
func (k KeyKind) String() string {
	switch k {
	case KeyPrimary:
		return "PRIMARY"
	case KeyUnique:
		return "UNIQUE"
	default:
		return "NONE"
	}
}

// KeyDescriptor is the column set used to detect a conflicting row.
// When Kind != KeyNone, Columns is non-empty and every member exists
// in the table's column metadata.
type KeyDescriptor struct {
	Kind    KeyKind
	Columns []string
	Name    string // constraint or index name, if known
}

// IsNone reports whether the descriptor has no usable key.
func (k KeyDescriptor) IsNone() bool {
	return k.Kind == KeyNone || len(k.Columns) == 0
}

// Contains reports whether name is one of the key columns.
func (k KeyDescriptor) Contains(name string) bool {
	return slices.Contains(k.Columns, name)
}

// UniqueKey is a unique index or constraint as reported by the database.
type UniqueKey struct {
	Name    string
	Columns []string
}
