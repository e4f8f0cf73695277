// Package sqlserver provides the Microsoft SQL Server dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlserver

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(SQLServer, "mssql")
}

// SQLServer is the SQL Server dialect. Tables are addressed by database
// (catalog) and schema.
var SQLServer = dialect.NewDialect("sqlserver").
	Kind(dialect.MSSQLLike).
	Identifiers("[", "]", "]]", core.NormCaseSensitive).
	Namespace(dialect.NamespaceCatalogSchema).
	DefaultSchema("dbo").
	PlaceholderStyle(core.PlaceholderAtP).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords(
		"backup", "browse", "bulk", "cascade", "checkpoint", "clustered",
		"collate", "compute", "contains", "database", "dbcc", "deny", "disk",
		"distributed", "dump", "errlvl", "escape", "exec", "execute", "exit",
		"file", "identity", "index", "key", "kill", "lineno", "merge",
		"national", "nonclustered", "openquery", "percent", "pivot", "plan",
		"print", "proc", "procedure", "public", "raiserror", "readtext",
		"restore", "revert", "rowcount", "rule", "save", "schema", "shutdown",
		"statistics", "top", "tran", "transaction", "trigger", "truncate",
		"tsequal", "unpivot", "use", "view", "waitfor", "while",
	).
	WithTypes(map[string]core.SQLType{
		"bit":              core.TypeBoolean,
		"money":            core.TypeNumeric,
		"smallmoney":       core.TypeNumeric,
		"datetime2":        core.TypeTimestamp,
		"smalldatetime":    core.TypeTimestamp,
		"datetimeoffset":   core.TypeTimestampTZ,
		"ntext":            core.TypeText,
		"image":            core.TypeBinary,
		"uniqueidentifier": core.TypeVarchar,
		"xml":              core.TypeText,
	}).
	Build()
