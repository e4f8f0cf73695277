package dialect

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// commonTypes maps declared type names shared by most databases.
// Dialects add or override entries with Builder.WithTypes.
var commonTypes = map[string]core.SQLType{
	// exact numerics
	"numeric": core.TypeNumeric, "decimal": core.TypeNumeric, "dec": core.TypeNumeric,
	"number": core.TypeNumeric, "int": core.TypeNumeric, "integer": core.TypeNumeric,
	"bigint": core.TypeNumeric, "smallint": core.TypeNumeric, "tinyint": core.TypeNumeric,
	"mediumint": core.TypeNumeric, "int2": core.TypeNumeric, "int4": core.TypeNumeric,
	"int8": core.TypeNumeric, "serial": core.TypeNumeric, "bigserial": core.TypeNumeric,
	"smallserial": core.TypeNumeric, "hugeint": core.TypeNumeric,

	// approximate numerics
	"double": core.TypeDouble, "double precision": core.TypeDouble, "float": core.TypeDouble,
	"float4": core.TypeDouble, "float8": core.TypeDouble, "real": core.TypeDouble,

	"boolean": core.TypeBoolean, "bool": core.TypeBoolean,

	"date":                        core.TypeDate,
	"time":                        core.TypeTime,
	"time without time zone":      core.TypeTime,
	"timestamp":                   core.TypeTimestamp,
	"datetime":                    core.TypeTimestamp,
	"timestamp without time zone": core.TypeTimestamp,
	"timestamp with time zone":    core.TypeTimestampTZ,
	"timestamptz":                 core.TypeTimestampTZ,

	"varchar": core.TypeVarchar, "character varying": core.TypeVarchar, "char": core.TypeVarchar,
	"character": core.TypeVarchar, "nvarchar": core.TypeVarchar, "nchar": core.TypeVarchar,

	"text": core.TypeText, "clob": core.TypeText, "nclob": core.TypeText,

	"blob": core.TypeBinary, "binary": core.TypeBinary, "varbinary": core.TypeBinary,

	"json": core.TypeJSON,
}

var (
	typeArgs   = regexp.MustCompile(`\([^)]*\)`)
	whitespace = regexp.MustCompile(`\s+`)
)

func normalizeTypeName(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// TypeOf maps a declared column type name to its SQLType.
// Length, precision and modifier arguments are ignored unless the dialect
// registers the full spelling (e.g. MySQL "tinyint(1)"). Unknown names map
// to core.TypeVarchar.
func (d *Dialect) TypeOf(declared string) core.SQLType {
	name := normalizeTypeName(declared)
	if t, ok := d.lookupType(name); ok {
		return t
	}

	stripped := normalizeTypeName(typeArgs.ReplaceAllString(name, ""))
	if t, ok := d.lookupType(stripped); ok {
		return t
	}

	// "int unsigned", "bigint identity"
	if first, _, found := strings.Cut(stripped, " "); found {
		if t, ok := d.lookupType(first); ok {
			return t
		}
	}
	return core.TypeVarchar
}

func (d *Dialect) lookupType(name string) (core.SQLType, bool) {
	if t, ok := d.types[name]; ok {
		return t, true
	}
	t, ok := commonTypes[name]
	return t, ok
}
