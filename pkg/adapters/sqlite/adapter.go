package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	sqlitedialect "github.com/leapstack-labs/leapupsert/pkg/dialects/sqlite"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sqlitedialect.SQLite
}

// Connect opens the database file named by cfg.Path.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("opening sqlite database", slog.String("path", cfg.Path))

	if err := a.Open(ctx, "sqlite", buildSQLiteDSN(cfg.Path, params)); err != nil {
		return err
	}
	// An in-memory database exists per connection.
	if cfg.Path == "" || cfg.Path == ":memory:" {
		a.DB.SetMaxOpenConns(1)
	}
	a.Cfg = cfg
	return nil
}

const columnsQuery = `
	SELECT
		name,
		type,
		CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END,
		cid + 1
	FROM pragma_table_info(?)
	ORDER BY cid
`

// Columns reads pragma_table_info.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load columns", Err: adapter.ErrNotConnected}
	}
	return a.QueryColumns(ctx, a.Dialect(), ref, columnsQuery, ref.Name)
}

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load primary key", Err: adapter.ErrNotConnected}
	}
	return a.QueryKeyColumns(ctx, ref, `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, ref.Name)
}

// uniqueIndexesQuery lists unique indexes other than the primary key's.
// Partial indexes and indexes over expressions are skipped.
const uniqueIndexesQuery = `
	SELECT il.name, ii.name
	FROM pragma_index_list(?) AS il
	JOIN pragma_index_info(il.name) AS ii
	WHERE il."unique" = 1
		AND il.origin <> 'pk'
		AND il.partial = 0
		AND NOT EXISTS (SELECT 1 FROM pragma_index_info(il.name) AS x WHERE x.name IS NULL)
	ORDER BY il.name, ii.seqno
`

// UniqueKeys returns unique indexes and UNIQUE constraints ordered by name.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load unique keys", Err: adapter.ErrNotConnected}
	}
	return a.QueryUniqueKeys(ctx, ref, uniqueIndexesQuery, ref.Name)
}

// Classify maps SQLite errors to their extended result code.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps SQLite errors to their extended result code.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}

	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return info
	}
	code := sqliteErr.Code()
	info.Code = strconv.Itoa(code)
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		info.Constraint = core.ConstraintUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		info.Constraint = core.ConstraintForeignKey
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		info.Constraint = core.ConstraintCheck
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		info.Constraint = core.ConstraintNotNull
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
