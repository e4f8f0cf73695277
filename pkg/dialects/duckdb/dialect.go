// Package duckdb provides the DuckDB dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.NewDialect("duckdb").
	Kind(dialect.PostgresLike).
	Identifiers(`"`, `"`, `""`, core.NormCaseInsensitive).
	Namespace(dialect.NamespaceSchema).
	DefaultSchema("main").
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("pivot", "qualify", "unpivot", "window", "lambda").
	WithTypes(map[string]core.SQLType{
		"ubigint":   core.TypeNumeric,
		"uinteger":  core.TypeNumeric,
		"usmallint": core.TypeNumeric,
		"utinyint":  core.TypeNumeric,
		"hugeint":   core.TypeNumeric,
		"uhugeint":  core.TypeNumeric,
		"uuid":      core.TypeVarchar,
		"bytea":     core.TypeBinary,
		"varint":    core.TypeNumeric,
	}).
	Build()
