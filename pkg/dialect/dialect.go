// Package dialect provides SQL dialect configuration for statement generation.
//
// This package contains the public contract for dialect definitions used by the
// catalog, statement builder and batch executor. Concrete dialect definitions
// are registered from pkg/dialects/*/ packages.
package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Kind is the closed set of dialect families. Every function that branches
// on dialect behavior switches on Kind.
type Kind int

const (
	// Generic is ANSI SQL without a single-statement upsert.
	Generic Kind = iota
	// MySQLLike uses INSERT ... ON DUPLICATE KEY UPDATE.
	MySQLLike
	// PostgresLike uses INSERT ... ON CONFLICT (...) DO UPDATE.
	PostgresLike
	// OracleLike has no single-statement upsert with positional binds.
	OracleLike
	// MSSQLLike has no single-statement upsert with positional binds.
	MSSQLLike
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case Generic:
		return "generic"
	case MySQLLike:
		return "mysql"
	case PostgresLike:
		return "postgres"
	case OracleLike:
		return "oracle"
	case MSSQLLike:
		return "mssql"
	default:
		return "unknown"
	}
}

// UpsertStyle is how a dialect resolves a key conflict.
type UpsertStyle int

const (
	// UpsertProbe runs SELECT 1 ... WHERE key, then UPDATE or INSERT.
	UpsertProbe UpsertStyle = iota
	// UpsertOnDuplicateKey appends ON DUPLICATE KEY UPDATE col=?.
	UpsertOnDuplicateKey
	// UpsertOnConflict appends ON CONFLICT (key) DO UPDATE SET col=excluded.col.
	UpsertOnConflict
)

// String returns the string representation of UpsertStyle.
func (s UpsertStyle) String() string {
	switch s {
	case UpsertOnDuplicateKey:
		return "on-duplicate-key"
	case UpsertOnConflict:
		return "on-conflict"
	default:
		return "probe"
	}
}

// Upsert returns the upsert style of the dialect family.
func (k Kind) Upsert() UpsertStyle {
	switch k {
	case MySQLLike:
		return UpsertOnDuplicateKey
	case PostgresLike:
		return UpsertOnConflict
	case Generic, OracleLike, MSSQLLike:
		return UpsertProbe
	default:
		return UpsertProbe
	}
}

// NamespaceStyle is the fixed rule mapping a (catalog, schema) pair onto
// the namespace the database actually uses.
type NamespaceStyle int

const (
	// NamespaceNone has a single namespace; catalog and schema are ignored (SQLite).
	NamespaceNone NamespaceStyle = iota
	// NamespaceSchema uses the schema only, falling back to the default schema.
	NamespaceSchema
	// NamespaceCatalogAsSchema treats the schema as the catalog (MySQL databases).
	NamespaceCatalogAsSchema
	// NamespaceCatalogSchema requires both catalog and schema (SQL Server, Snowflake).
	NamespaceCatalogSchema
)

// String returns the string representation of NamespaceStyle.
func (s NamespaceStyle) String() string {
	switch s {
	case NamespaceSchema:
		return "schema"
	case NamespaceCatalogAsSchema:
		return "schema-as-catalog"
	case NamespaceCatalogSchema:
		return "catalog+schema"
	default:
		return "none"
	}
}

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Kind        Kind
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How parameters are written on the wire
	Namespace     NamespaceStyle        // How catalog/schema resolve

	reservedWords map[string]struct{} // All keywords that need quoting as identifiers
	types         map[string]core.SQLType
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// Upsert returns the dialect's upsert style.
func (d *Dialect) Upsert() UpsertStyle {
	return d.Kind.Upsert()
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// FormatPlaceholder returns the wire placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case core.PlaceholderColon:
		return ":" + strconv.Itoa(index)
	case core.PlaceholderAtP:
		return "@p" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NeedsQuoting reports whether an identifier must be quoted to keep its
// exact spelling: reserved words, non-plain characters, and names that the
// dialect would fold to a different case.
func (d *Dialect) NeedsQuoting(name string) bool {
	if !plainIdentifier.MatchString(name) || d.IsReservedWord(name) {
		return true
	}
	switch d.Identifiers.Normalization {
	case core.NormLowercase, core.NormUppercase:
		return d.NormalizeName(name) != name
	default:
		return false
	}
}

// QuoteIdentifierIfNeeded quotes an identifier only if NeedsQuoting reports true.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.NeedsQuoting(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// Resolve applies the dialect's namespace rule to a table reference.
// The result carries only the parts the dialect uses.
func (d *Dialect) Resolve(ref core.TableRef) core.TableRef {
	var out core.TableRef
	switch d.Namespace {
	case NamespaceNone:
		out = core.TableRef{Name: ref.Name}
	case NamespaceSchema:
		out = core.TableRef{Schema: firstNonEmpty(ref.Schema, d.DefaultSchema), Name: ref.Name}
	case NamespaceCatalogAsSchema:
		out = core.TableRef{Schema: firstNonEmpty(ref.Catalog, ref.Schema, d.DefaultSchema), Name: ref.Name}
	case NamespaceCatalogSchema:
		out = core.TableRef{Catalog: ref.Catalog, Schema: firstNonEmpty(ref.Schema, d.DefaultSchema), Name: ref.Name}
	}
	if d.Identifiers.Normalization == core.NormUppercase {
		out.Catalog = foldUnquoted(out.Catalog)
		out.Schema = foldUnquoted(out.Schema)
		out.Name = foldUnquoted(out.Name)
	}
	return out
}

// QualifiedName renders a resolved reference for use in SQL text.
func (d *Dialect) QualifiedName(ref core.TableRef) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{ref.Catalog, ref.Schema, ref.Name} {
		if p != "" {
			parts = append(parts, d.QuoteIdentifierIfNeeded(p))
		}
	}
	return strings.Join(parts, ".")
}

// foldUnquoted upper-cases names written entirely in lower case. Mixed-case
// names are kept as the caller spelled them.
func foldUnquoted(s string) string {
	if s == strings.ToLower(s) {
		return strings.ToUpper(s)
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Kind: Generic,
			Identifiers: core.IdentifierConfig{
				Quote:         `"`,
				QuoteEnd:      `"`,
				Escape:        `""`,
				Normalization: core.NormLowercase,
			},
			Namespace:     NamespaceSchema,
			reservedWords: make(map[string]struct{}),
			types:         make(map[string]core.SQLType),
		},
	}
}

// Kind sets the dialect family.
func (b *Builder) Kind(k Kind) *Builder {
	b.dialect.Kind = k
	return b
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Namespace sets the catalog/schema resolution rule.
func (b *Builder) Namespace(style NamespaceStyle) *Builder {
	b.dialect.Namespace = style
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// WithTypes registers declared type names specific to this dialect.
// Entries override the common type table.
func (b *Builder) WithTypes(types map[string]core.SQLType) *Builder {
	for name, t := range types {
		b.dialect.types[normalizeTypeName(name)] = t
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
