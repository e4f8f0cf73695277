package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// ErrNotConnected is returned when an adapter is used before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Conn and information_schema metadata implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// Classifier overrides ClassifyCommon for metadata error wrapping.
	Classifier core.ClassifierFunc
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.log().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Conn acquires a dedicated connection from the pool.
func (b *BaseSQLAdapter) Conn(ctx context.Context) (*sql.Conn, error) {
	if b.DB == nil {
		return nil, &core.ConnectivityError{Op: "acquire connection", Err: ErrNotConnected}
	}
	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, &core.ConnectivityError{Op: "acquire connection", Err: err}
	}
	return conn, nil
}

// Open opens a database handle and pings it. Failures are connectivity errors.
func (b *BaseSQLAdapter) Open(ctx context.Context, driverName, dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return &core.ConnectivityError{Op: "open " + driverName, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &core.ConnectivityError{Op: "ping " + driverName, Err: err}
	}
	b.DB = db
	return nil
}

func (b *BaseSQLAdapter) classify(err error) core.ErrorInfo {
	if b.Classifier != nil {
		return b.Classifier(err)
	}
	return ClassifyCommon(err)
}

// LookupError wraps a metadata query failure: connection problems become
// *core.ConnectivityError, anything else *core.SchemaLookupError.
func (b *BaseSQLAdapter) LookupError(ref core.TableRef, op string, err error) error {
	if b.classify(err).Connectivity {
		return &core.ConnectivityError{Op: op, Err: err}
	}
	return &core.SchemaLookupError{Table: ref, Reason: op, Err: err}
}

func (b *BaseSQLAdapter) checkConnected(op string) error {
	if b.DB == nil {
		return &core.ConnectivityError{Op: op, Err: ErrNotConnected}
	}
	return nil
}

// metadataFilter renders the namespace predicate for information_schema
// queries. alias prefixes the column names when non-empty.
func metadataFilter(d *dialect.Dialect, ref core.TableRef, alias string) (string, []any) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s%s = %s", prefix, col, d.FormatPlaceholder(len(args))))
	}
	if ref.Schema != "" {
		add("table_schema", ref.Schema)
	}
	add("table_name", ref.Name)
	if ref.Catalog != "" && d.Namespace == dialect.NamespaceCatalogSchema {
		add("table_catalog", ref.Catalog)
	}
	return strings.Join(conds, " AND "), args
}

// InformationSchema returns the information_schema to query for ref. Dialects
// addressing tables by catalog and schema read the catalog's own copy.
func InformationSchema(d *dialect.Dialect, ref core.TableRef) string {
	if d.Namespace == dialect.NamespaceCatalogSchema && ref.Catalog != "" {
		return d.QuoteIdentifier(ref.Catalog) + ".information_schema"
	}
	return "information_schema"
}

// ColumnsQuery builds the information_schema.columns lookup for ref.
// typeColumn selects the declared type column (data_type, or MySQL's
// column_type which keeps display widths such as tinyint(1)).
func ColumnsQuery(d *dialect.Dialect, ref core.TableRef, typeColumn string) (string, []any) {
	where, args := metadataFilter(d, ref, "")
	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT
			column_name,
			%s,
			is_nullable,
			ordinal_position
		FROM %s.columns
		WHERE %s
		ORDER BY ordinal_position
	`, typeColumn, InformationSchema(d, ref), where)
	return query, args
}

// ScanColumns reads (name, declared type, nullable, position) rows.
// Nullable accepts YES/NO and Y/N spellings.
func ScanColumns(rows *sql.Rows, d *dialect.Dialect) ([]core.Column, error) {
	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DeclaredType, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES") || strings.EqualFold(nullable, "Y")
		col.Type = d.TypeOf(col.DeclaredType)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// ColumnsCommon provides a shared implementation of Columns using
// information_schema.columns with dialect-appropriate placeholders.
func (b *BaseSQLAdapter) ColumnsCommon(ctx context.Context, d *dialect.Dialect, ref core.TableRef, typeColumn string) ([]core.Column, error) {
	if err := b.checkConnected("load columns"); err != nil {
		return nil, err
	}

	query, args := ColumnsQuery(d, ref, typeColumn)
	return b.QueryColumns(ctx, d, ref, query, args...)
}

// QueryColumns runs a column metadata query and scans it with ScanColumns.
// No rows means the table does not exist.
func (b *BaseSQLAdapter) QueryColumns(ctx context.Context, d *dialect.Dialect, ref core.TableRef, query string, args ...any) ([]core.Column, error) {
	b.log().Debug("loading column metadata", slog.String("table", ref.String()))

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, b.LookupError(ref, "query column metadata", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := ScanColumns(rows, d)
	if err != nil {
		return nil, b.LookupError(ref, "read column metadata", err)
	}
	if len(columns) == 0 {
		return nil, &core.SchemaLookupError{Table: ref, Reason: "table not found"}
	}
	return columns, nil
}

// PrimaryKeyCommon reads the PRIMARY KEY constraint from
// information_schema.table_constraints and key_column_usage.
func (b *BaseSQLAdapter) PrimaryKeyCommon(ctx context.Context, d *dialect.Dialect, ref core.TableRef) ([]string, error) {
	if err := b.checkConnected("load primary key"); err != nil {
		return nil, err
	}

	where, args := metadataFilter(d, ref, "tc")
	is := InformationSchema(d, ref)
	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT kcu.column_name
		FROM %s.table_constraints tc
		JOIN %s.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND %s
		ORDER BY kcu.ordinal_position
	`, is, is, where)

	return b.QueryKeyColumns(ctx, ref, query, args...)
}

// QueryKeyColumns runs a query returning one key column name per row.
func (b *BaseSQLAdapter) QueryKeyColumns(ctx context.Context, ref core.TableRef, query string, args ...any) ([]string, error) {
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, b.LookupError(ref, "query primary key", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, b.LookupError(ref, "scan primary key", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, b.LookupError(ref, "read primary key", err)
	}
	return columns, nil
}

// UniqueKeysCommon reads UNIQUE constraints from information_schema,
// ordered by constraint name.
func (b *BaseSQLAdapter) UniqueKeysCommon(ctx context.Context, d *dialect.Dialect, ref core.TableRef) ([]core.UniqueKey, error) {
	if err := b.checkConnected("load unique keys"); err != nil {
		return nil, err
	}

	where, args := metadataFilter(d, ref, "tc")
	is := InformationSchema(d, ref)
	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT tc.constraint_name, kcu.column_name
		FROM %s.table_constraints tc
		JOIN %s.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'UNIQUE' AND %s
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`, is, is, where)

	return b.QueryUniqueKeys(ctx, ref, query, args...)
}

// QueryUniqueKeys runs a query returning (key name, column name) rows
// ordered by key name then column position, and groups them.
func (b *BaseSQLAdapter) QueryUniqueKeys(ctx context.Context, ref core.TableRef, query string, args ...any) ([]core.UniqueKey, error) {
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, b.LookupError(ref, "query unique keys", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []core.UniqueKey
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, b.LookupError(ref, "scan unique keys", err)
		}
		keys = AppendKeyColumn(keys, name, column)
	}
	if err := rows.Err(); err != nil {
		return nil, b.LookupError(ref, "read unique keys", err)
	}
	return keys, nil
}

// AppendKeyColumn adds column to the key named name, starting a new key
// when name differs from the last one.
func AppendKeyColumn(keys []core.UniqueKey, name, column string) []core.UniqueKey {
	if n := len(keys); n > 0 && keys[n-1].Name == name {
		keys[n-1].Columns = append(keys[n-1].Columns, column)
		return keys
	}
	return append(keys, core.UniqueKey{Name: name, Columns: []string{column}})
}
