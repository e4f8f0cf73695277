// Package adapter provides the database adapter contract used by the upsert
// engine.
//
// An adapter owns one database handle. It answers metadata questions for the
// Column Catalog and Key Resolver, hands out a single connection for batch
// execution, and classifies driver errors into connectivity failures,
// constraint violations and driver codes.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Conn returns a dedicated connection. Batches of one run execute on it
	// sequentially.
	Conn(ctx context.Context) (*sql.Conn, error)

	// Dialect returns the SQL dialect configuration for this adapter.
	Dialect() *dialect.Dialect

	// Columns returns the column metadata of a resolved table reference in
	// ordinal order. A missing table is a *core.SchemaLookupError.
	Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error)

	// PrimaryKey returns the primary key columns in declared order, or nil.
	PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error)

	// UniqueKeys returns unique indexes and constraints ordered by name.
	UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error)

	// Classify maps a driver error to a driver code, a connectivity flag and
	// a constraint kind.
	Classify(err error) core.ErrorInfo
}
