// Package sqlite provides the SQLite dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect. It has a single namespace per database file
// and supports INSERT ... ON CONFLICT DO UPDATE.
var SQLite = dialect.NewDialect("sqlite").
	Kind(dialect.PostgresLike).
	Identifiers(`"`, `"`, `""`, core.NormCaseInsensitive).
	Namespace(dialect.NamespaceNone).
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("abort", "autoincrement", "glob", "index", "pragma", "regexp", "replace", "vacuum").
	WithTypes(map[string]core.SQLType{
		"":        core.TypeVarchar,
		"real":    core.TypeDouble,
		"numeric": core.TypeNumeric,
	}).
	Build()
