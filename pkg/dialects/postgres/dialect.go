// Package postgres provides the PostgreSQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(Postgres, "postgresql", "pg")
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.NewDialect("postgres").
	Kind(dialect.PostgresLike).
	Identifiers(`"`, `"`, `""`, core.NormLowercase).
	Namespace(dialect.NamespaceSchema).
	DefaultSchema("public").
	PlaceholderStyle(core.PlaceholderDollar).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords(
		"analyse", "analyze", "array", "asymmetric", "authorization", "binary",
		"both", "cast", "collate", "concurrently", "deferrable", "do", "freeze",
		"ilike", "initially", "isnull", "lateral", "leading", "localtime",
		"localtimestamp", "notnull", "only", "overlaps", "placing", "returning",
		"session_user", "similar", "symmetric", "tablesample", "trailing",
		"variadic", "verbose", "window",
	).
	WithTypes(map[string]core.SQLType{
		"jsonb":   core.TypeJSON,
		"bytea":   core.TypeBinary,
		"numeric": core.TypeNumeric,
		"money":   core.TypeNumeric,
		"timetz":  core.TypeTime,
		"uuid":    core.TypeVarchar,
		"citext":  core.TypeText,
		"bpchar":  core.TypeVarchar,
		"name":    core.TypeVarchar,

		"time with time zone": core.TypeTime,
	}).
	Build()
