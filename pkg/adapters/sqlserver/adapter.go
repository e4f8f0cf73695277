package sqlserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	mssqldialect "github.com/leapstack-labs/leapupsert/pkg/dialects/sqlserver"
	mssql "github.com/microsoft/go-mssqldb"
)

// Adapter implements the adapter.Adapter interface for SQL Server.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQL Server adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the SQL Server dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return mssqldialect.SQLServer
}

// Connect establishes a connection to SQL Server.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to sqlserver", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	if err := a.Open(ctx, "sqlserver", buildSQLServerDSN(cfg)); err != nil {
		return err
	}
	a.Cfg = cfg
	return nil
}

// buildSQLServerDSN constructs a sqlserver:// URL.
func buildSQLServerDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	for k, v := range cfg.Options {
		query.Set(k, v)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

// Columns reads information_schema.columns of the table's database.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	return a.ColumnsCommon(ctx, a.Dialect(), ref, "data_type")
}

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	return a.PrimaryKeyCommon(ctx, a.Dialect(), ref)
}

// uniqueIndexesQuery lists unique indexes from the catalog views, which
// include indexes created without a UNIQUE constraint. Filtered indexes
// are skipped.
const uniqueIndexesQuery = `
	SELECT i.name, c.name
	FROM %[1]ssys.indexes i
	JOIN %[1]ssys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	JOIN %[1]ssys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
	WHERE i.is_unique = 1
		AND i.is_primary_key = 0
		AND i.has_filter = 0
		AND ic.is_included_column = 0
		AND i.object_id = OBJECT_ID(@p1)
	ORDER BY i.name, ic.key_ordinal
`

// UniqueKeys returns unique indexes ordered by name.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load unique keys", Err: adapter.ErrNotConnected}
	}
	d := a.Dialect()
	prefix := ""
	if ref.Catalog != "" {
		prefix = d.QuoteIdentifier(ref.Catalog) + "."
	}
	query := fmt.Sprintf(uniqueIndexesQuery, prefix)
	return a.QueryUniqueKeys(ctx, ref, query, objectName(d, ref))
}

// objectName renders ref fully bracketed for OBJECT_ID.
func objectName(d *dialect.Dialect, ref core.TableRef) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{ref.Catalog, ref.Schema, ref.Name} {
		if p != "" {
			parts = append(parts, d.QuoteIdentifier(p))
		}
	}
	return strings.Join(parts, ".")
}

// Classify maps SQL Server errors to their error number.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps SQL Server errors to their error number.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}

	var number int32
	var msErr mssql.Error
	var msErrPtr *mssql.Error
	switch {
	case errors.As(err, &msErr):
		number = msErr.Number
	case errors.As(err, &msErrPtr):
		number = msErrPtr.Number
	default:
		return info
	}

	info.Code = strconv.Itoa(int(number))
	switch number {
	case 2627, 2601:
		info.Constraint = core.ConstraintUnique
	case 547:
		// Raised for both foreign key and check conflicts.
		if info.Constraint == core.ConstraintNone {
			info.Constraint = core.ConstraintForeignKey
		}
	case 515:
		info.Constraint = core.ConstraintNotNull
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
