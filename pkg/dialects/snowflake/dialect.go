// Package snowflake provides the Snowflake SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package snowflake

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(Snowflake)
}

// Snowflake is the Snowflake cloud warehouse dialect. Tables are addressed
// by database and schema; unquoted names are stored upper case.
var Snowflake = dialect.NewDialect("snowflake").
	Kind(dialect.Generic).
	Identifiers(`"`, `"`, `""`, core.NormUppercase).
	Namespace(dialect.NamespaceCatalogSchema).
	DefaultSchema("PUBLIC").
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords(
		"account", "connection", "database", "gscluster", "ilike", "increment",
		"issue", "lateral", "localtime", "localtimestamp", "minus", "qualify",
		"regexp", "rlike", "sample", "schema", "start", "tablesample", "trigger",
		"try_cast", "view",
	).
	WithTypes(map[string]core.SQLType{
		"number":        core.TypeNumeric,
		"fixed":         core.TypeNumeric,
		"timestamp_ntz": core.TypeTimestamp,
		"timestamp_ltz": core.TypeTimestampTZ,
		"timestamp_tz":  core.TypeTimestampTZ,
		"string":        core.TypeVarchar,
		"variant":       core.TypeJSON,
		"object":        core.TypeJSON,
		"array":         core.TypeJSON,
	}).
	Build()
