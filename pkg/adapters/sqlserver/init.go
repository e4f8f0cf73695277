// Package sqlserver provides a Microsoft SQL Server adapter for leapupsert.
//
// This file registers the SQL Server adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapupsert/pkg/adapters/sqlserver"
package sqlserver

import (
	"log/slog"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
)

func init() {
	adapter.Register("sqlserver", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
