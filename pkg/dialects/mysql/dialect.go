// Package mysql provides the MySQL dialect definition.
// This package is pure Go with no database driver dependencies.
package mysql

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(MySQL, "mariadb")
}

// MySQL is the MySQL/MariaDB dialect. A MySQL schema is a database, so the
// catalog (when given) names the database.
var MySQL = dialect.NewDialect("mysql").
	Kind(dialect.MySQLLike).
	Identifiers("`", "`", "``", core.NormCaseSensitive).
	Namespace(dialect.NamespaceCatalogAsSchema).
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords(
		"key", "keys", "index", "interval", "match", "mod", "range", "read",
		"release", "rename", "replace", "require", "schema", "show", "signal",
		"sql", "status", "usage", "div", "dual", "regexp", "rlike", "rank",
	).
	WithTypes(map[string]core.SQLType{
		"tinyint(1)": core.TypeBoolean,
		"bit(1)":     core.TypeBoolean,
		"bit":        core.TypeBinary,
		"year":       core.TypeNumeric,
		"tinytext":   core.TypeText,
		"mediumtext": core.TypeText,
		"longtext":   core.TypeText,
		"tinyblob":   core.TypeBinary,
		"mediumblob": core.TypeBinary,
		"longblob":   core.TypeBinary,
		"enum":       core.TypeVarchar,
		"set":        core.TypeVarchar,
	}).
	Build()
