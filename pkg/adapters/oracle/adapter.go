package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	oradialect "github.com/leapstack-labs/leapupsert/pkg/dialects/oracle"
	goora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"
)

// Adapter implements the adapter.Adapter interface for Oracle.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new Oracle adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the Oracle dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return oradialect.Oracle
}

// Connect establishes a connection to Oracle. cfg.Database names the service.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to oracle", slog.String("host", cfg.Host), slog.String("service", cfg.Database))

	if err := a.Open(ctx, "oracle", buildOracleURL(cfg)); err != nil {
		return err
	}
	a.Cfg = cfg
	return nil
}

// buildOracleURL constructs an oracle:// URL for go-ora.
func buildOracleURL(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1521
	}
	return goora.BuildUrl(host, port, cfg.Database, cfg.Username, cfg.Password, cfg.Options)
}

// ownerFor fills in the owning schema. Unqualified tables belong to the
// connected user, whose name Oracle stores upper case.
func (a *Adapter) ownerFor(ref core.TableRef) core.TableRef {
	if ref.Schema == "" {
		ref.Schema = strings.ToUpper(a.Cfg.Username)
	}
	return ref
}

const columnsQuery = `
	SELECT column_name, data_type, nullable, column_id
	FROM all_tab_columns
	WHERE owner = :1 AND table_name = :2
	ORDER BY column_id
`

// Columns reads ALL_TAB_COLUMNS.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load columns", Err: adapter.ErrNotConnected}
	}
	ref = a.ownerFor(ref)
	return a.QueryColumns(ctx, a.Dialect(), ref, columnsQuery, ref.Schema, ref.Name)
}

const primaryKeyQuery = `
	SELECT cc.column_name
	FROM all_constraints c
	JOIN all_cons_columns cc ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
	WHERE c.constraint_type = 'P' AND c.owner = :1 AND c.table_name = :2
	ORDER BY cc.position
`

// PrimaryKey returns the PRIMARY KEY columns in declared order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load primary key", Err: adapter.ErrNotConnected}
	}
	ref = a.ownerFor(ref)
	return a.QueryKeyColumns(ctx, ref, primaryKeyQuery, ref.Schema, ref.Name)
}

// uniqueIndexesQuery lists unique indexes; UNIQUE constraints are always
// backed by one. Function-based indexes are skipped.
const uniqueIndexesQuery = `
	SELECT i.index_name, ic.column_name
	FROM all_indexes i
	JOIN all_ind_columns ic ON ic.index_owner = i.owner AND ic.index_name = i.index_name
	WHERE i.uniqueness = 'UNIQUE'
		AND i.index_type = 'NORMAL'
		AND i.table_owner = :1
		AND i.table_name = :2
	ORDER BY i.index_name, ic.column_position
`

// UniqueKeys returns unique indexes ordered by name.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load unique keys", Err: adapter.ErrNotConnected}
	}
	ref = a.ownerFor(ref)
	return a.QueryUniqueKeys(ctx, ref, uniqueIndexesQuery, ref.Schema, ref.Name)
}

// Classify maps ORA- errors to their code.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// connectivityCodes are ORA- errors raised when the session or the listener
// is unusable.
var connectivityCodes = map[int]bool{
	28:    true, // session killed
	1012:  true, // not logged on
	1033:  true, // initialization or shutdown in progress
	1034:  true, // not available
	1089:  true, // immediate shutdown
	3113:  true, // end-of-file on communication channel
	3114:  true, // not connected
	3135:  true, // connection lost contact
	12170: true, // connect timeout
	12514: true, // listener does not know of service
	12528: true, // listener: all instances blocking
	12537: true, // connection closed
	12541: true, // no listener
	12543: true, // destination host unreachable
}

// Classify maps ORA- errors to their code.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}

	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return info
	}
	info.Code = fmt.Sprintf("ORA-%05d", oraErr.ErrCode)
	if connectivityCodes[oraErr.ErrCode] {
		info.Connectivity = true
	}
	switch oraErr.ErrCode {
	case 1:
		info.Constraint = core.ConstraintUnique
	case 2291, 2292:
		info.Constraint = core.ConstraintForeignKey
	case 2290:
		info.Constraint = core.ConstraintCheck
	case 1400, 1407:
		info.Constraint = core.ConstraintNotNull
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
