package core

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL, SQL Server).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (DuckDB, SQLite).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted on the wire.
// Generated SQL always uses ?; the style only applies at execution time.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite, Snowflake).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
	// PlaceholderColon uses :1, :2, etc. for parameters (Oracle).
	PlaceholderColon
	// PlaceholderAtP uses @p1, @p2, etc. for parameters (SQL Server).
	PlaceholderAtP
)

// String returns the placeholder as written for the first parameter.
func (s PlaceholderStyle) String() string {
	switch s {
	case PlaceholderDollar:
		return "$1"
	case PlaceholderColon:
		return ":1"
	case PlaceholderAtP:
		return "@p1"
	default:
		return "?"
	}
}

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}
