package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	pgdialect "github.com/leapstack-labs/leapupsert/pkg/dialects/postgres"
	"github.com/lib/pq"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return pgdialect.Postgres
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
		slog.String("driver", params.sqlDriverName()))

	if err := a.Open(ctx, params.sqlDriverName(), buildPostgresDSN(cfg, params)); err != nil {
		return err
	}
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
// The key=value form is understood by both pgx and lib/pq.
func buildPostgresDSN(cfg adapter.Config, params *Params) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if params != nil && params.ApplicationName != "" {
		dsn += fmt.Sprintf(" application_name=%s", params.ApplicationName)
	}
	if params != nil && params.SearchPath != "" {
		dsn += fmt.Sprintf(" search_path=%s", params.SearchPath)
	}

	return dsn
}

// Columns reads information_schema.columns.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	return a.ColumnsCommon(ctx, a.Dialect(), ref, "data_type")
}

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	return a.PrimaryKeyCommon(ctx, a.Dialect(), ref)
}

// uniqueIndexesQuery lists unique indexes from the system catalog, which
// also covers indexes created without a UNIQUE constraint. Partial and
// expression indexes cannot serve as a conflict target and are skipped.
const uniqueIndexesQuery = `
	SELECT ic.relname, a.attname
	FROM pg_index ix
	JOIN pg_class t ON t.oid = ix.indrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	JOIN pg_class ic ON ic.oid = ix.indexrelid
	JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE ix.indisunique
		AND NOT ix.indisprimary
		AND ix.indpred IS NULL
		AND ix.indexprs IS NULL
		AND n.nspname = $1
		AND t.relname = $2
	ORDER BY ic.relname, k.ord
`

// UniqueKeys returns unique indexes ordered by index name.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load unique keys", Err: adapter.ErrNotConnected}
	}
	return a.QueryUniqueKeys(ctx, ref, uniqueIndexesQuery, ref.Schema, ref.Name)
}

// Classify maps pgx and lib/pq errors to their SQLSTATE.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps pgx and lib/pq errors to their SQLSTATE.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}
	if pgconn.Timeout(err) {
		info.Connectivity = true
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		info.Code = pgErr.Code
	case errors.As(err, &pqErr):
		info.Code = string(pqErr.Code)
	default:
		return info
	}

	if len(info.Code) >= 2 && info.Code[:2] == "08" {
		info.Connectivity = true
	}
	if c := adapter.ConstraintFromSQLState(info.Code); c != core.ConstraintNone {
		info.Constraint = c
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
