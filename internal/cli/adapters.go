package cli

// Database adapters available to the CLI.
import (
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/oracle"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/snowflake"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/leapupsert/pkg/adapters/sqlserver"
	_ "github.com/leapstack-labs/leapupsert/pkg/dialects/ansi"
)
