package mysql

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	mysqldialect "github.com/leapstack-labs/leapupsert/pkg/dialects/mysql"
)

// Adapter implements the adapter.Adapter interface for MySQL and MariaDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the MySQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return mysqldialect.MySQL
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	if err := a.Open(ctx, "mysql", buildMySQLDSN(cfg)); err != nil {
		return err
	}
	a.Cfg = cfg
	return nil
}

// buildMySQLDSN constructs a go-sql-driver DSN. Times are parsed into
// time.Time and the connection charset is utf8mb4 unless overridden.
func buildMySQLDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	c := gomysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range cfg.Options {
		c.Params[k] = v
	}
	return c.FormatDSN()
}

// schemaFor returns the database holding ref. An unqualified table lives in
// the connection's database.
func (a *Adapter) schemaFor(ref core.TableRef) core.TableRef {
	if ref.Schema == "" {
		ref.Schema = a.Cfg.Database
	}
	return ref
}

// Columns reads information_schema.columns. COLUMN_TYPE is used instead of
// DATA_TYPE so that tinyint(1) maps to BOOLEAN.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	return a.ColumnsCommon(ctx, a.Dialect(), a.schemaFor(ref), "column_type")
}

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	return a.PrimaryKeyCommon(ctx, a.Dialect(), a.schemaFor(ref))
}

// UniqueKeys returns UNIQUE constraints. MySQL creates a constraint for
// every unique index, so information_schema sees both.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	return a.UniqueKeysCommon(ctx, a.Dialect(), a.schemaFor(ref))
}

// Classify maps MySQL server errors to their error number.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps MySQL server errors to their error number.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}
	if errors.Is(err, gomysql.ErrInvalidConn) {
		info.Connectivity = true
	}

	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return info
	}
	info.Code = strconv.Itoa(int(myErr.Number))
	switch myErr.Number {
	case 1062, 1586:
		info.Constraint = core.ConstraintUnique
	case 1216, 1217, 1451, 1452:
		info.Constraint = core.ConstraintForeignKey
	case 3819:
		info.Constraint = core.ConstraintCheck
	case 1048, 1364:
		info.Constraint = core.ConstraintNotNull
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
