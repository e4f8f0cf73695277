// Package ansi provides the base ANSI SQL dialect.
//
// This dialect serves as the foundation for all other SQL dialects: it has no
// single-statement upsert, so conflicting rows are resolved with an existence
// probe followed by UPDATE or INSERT.
package ansi

import (
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

func init() {
	dialect.Register(ANSI)
}

// ReservedWords are the SQL:2016 reserved words most likely to collide with
// column names. Other dialects extend this list.
var ReservedWords = []string{
	"all", "alter", "and", "any", "as", "asc", "between", "by", "case", "check",
	"column", "constraint", "create", "cross", "current", "current_date",
	"current_time", "current_timestamp", "current_user", "default", "delete",
	"desc", "distinct", "drop", "else", "end", "except", "exists", "false",
	"fetch", "for", "foreign", "from", "full", "grant", "group", "having", "in",
	"inner", "insert", "intersect", "into", "is", "join", "left", "like",
	"limit", "natural", "not", "null", "of", "offset", "on", "or", "order",
	"outer", "primary", "references", "right", "row", "rows", "select", "set",
	"some", "table", "then", "to", "true", "union", "unique", "update", "user",
	"using", "values", "when", "where", "with",
}

// ANSI is the base ANSI SQL dialect.
var ANSI = dialect.NewDialect("ansi").
	Kind(dialect.Generic).
	Identifiers(`"`, `"`, `""`, core.NormCaseInsensitive).
	Namespace(dialect.NamespaceSchema).
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(ReservedWords...).
	Build()
