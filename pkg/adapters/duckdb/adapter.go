package duckdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	duckdialect "github.com/leapstack-labs/leapupsert/pkg/dialects/duckdb"
	"github.com/marcboeker/go-duckdb"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return duckdialect.DuckDB
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("opening duckdb database", slog.String("path", path))

	if err := a.Open(ctx, "duckdb", path); err != nil {
		return err
	}
	a.Cfg = cfg

	for _, stmt := range params.setupStatements() {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("failed to configure duckdb (%s): %w", stmt, err)
		}
	}
	return nil
}

// Columns reads information_schema.columns.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	return a.ColumnsCommon(ctx, a.Dialect(), ref, "data_type")
}

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	return a.PrimaryKeyCommon(ctx, a.Dialect(), ref)
}

// UniqueKeys returns UNIQUE constraints ordered by name.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	return a.UniqueKeysCommon(ctx, a.Dialect(), ref)
}

// Classify maps DuckDB errors by error type.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps DuckDB errors by error type. DuckDB reports every
// constraint failure with the same type, so the kind comes from the message.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}

	var duckErr *duckdb.Error
	if !errors.As(err, &duckErr) {
		return info
	}
	if duckErr.Type == duckdb.ErrorTypeConstraint && info.Constraint == core.ConstraintNone {
		info.Constraint = core.ConstraintUnique
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
