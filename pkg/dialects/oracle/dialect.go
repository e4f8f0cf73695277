// Package oracle provides the Oracle dialect definition.
// This package is pure Go with no database driver dependencies.
package oracle

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)

func init() {
	dialect.Register(Oracle)
}

// Oracle is the Oracle Database dialect. The schema is the owning user;
// unquoted names are stored upper case.
var Oracle = dialect.NewDialect("oracle").
	Kind(dialect.OracleLike).
	Identifiers(`"`, `"`, `""`, core.NormUppercase).
	Namespace(dialect.NamespaceSchema).
	PlaceholderStyle(core.PlaceholderColon).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords(
		"access", "audit", "cluster", "comment", "compress", "connect", "date",
		"exclusive", "file", "identified", "immediate", "increment", "initial",
		"level", "lock", "long", "maxextents", "minus", "mode", "modify",
		"noaudit", "nocompress", "nowait", "number", "offline", "online",
		"option", "pctfree", "prior", "privileges", "public", "raw", "rename",
		"resource", "rowid", "rownum", "session", "share", "size", "start",
		"successful", "synonym", "sysdate", "uid", "validate", "varchar2",
		"view", "whenever",
	).
	WithTypes(map[string]core.SQLType{
		"number":                         core.TypeNumeric,
		"binary_float":                   core.TypeDouble,
		"binary_double":                  core.TypeDouble,
		"varchar2":                       core.TypeVarchar,
		"nvarchar2":                      core.TypeVarchar,
		"long":                           core.TypeText,
		"raw":                            core.TypeBinary,
		"long raw":                       core.TypeBinary,
		"date":                           core.TypeTimestamp,
		"timestamp with local time zone": core.TypeTimestampTZ,
	}).
	Build()
