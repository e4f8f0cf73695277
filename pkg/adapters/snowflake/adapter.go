package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	sfdialect "github.com/leapstack-labs/leapupsert/pkg/dialects/snowflake"
	"github.com/snowflakedb/gosnowflake"
)

// Adapter implements the adapter.Adapter interface for Snowflake.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new Snowflake adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classifier: Classify},
	}
}

// Dialect returns the Snowflake dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sfdialect.Snowflake
}

// Connect establishes a connection to Snowflake.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn, err := buildSnowflakeDSN(cfg)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to snowflake",
		slog.String("account", cfg.Account),
		slog.String("database", cfg.Database),
		slog.String("warehouse", cfg.Warehouse))

	if err := a.Open(ctx, "snowflake", dsn); err != nil {
		return err
	}
	a.Cfg = cfg
	return nil
}

// buildSnowflakeDSN constructs a gosnowflake DSN.
func buildSnowflakeDSN(cfg adapter.Config) (string, error) {
	if cfg.Account == "" {
		return "", errors.New("snowflake account is required")
	}

	sfCfg := &gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.Username,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	}
	if len(cfg.Options) > 0 {
		sfCfg.Params = make(map[string]*string, len(cfg.Options))
		for k, v := range cfg.Options {
			sfCfg.Params[k] = &v
		}
	}

	dsn, err := gosnowflake.DSN(sfCfg)
	if err != nil {
		return "", fmt.Errorf("failed to build snowflake dsn: %w", err)
	}
	return dsn, nil
}

// withDatabase fills in the connection's database for unqualified tables.
func (a *Adapter) withDatabase(ref core.TableRef) core.TableRef {
	if ref.Catalog == "" {
		ref.Catalog = strings.ToUpper(a.Cfg.Database)
	}
	return ref
}

// Columns reads the database's information_schema.columns.
func (a *Adapter) Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error) {
	return a.ColumnsCommon(ctx, a.Dialect(), a.withDatabase(ref), "data_type")
}

// PrimaryKey returns the PRIMARY KEY columns in key_sequence order.
func (a *Adapter) PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error) {
	ref = a.withDatabase(ref)
	rows, err := a.showKeys(ctx, "PRIMARY", ref)
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, r := range rows {
		columns = append(columns, r.column)
	}
	return columns, nil
}

// UniqueKeys returns UNIQUE constraints ordered by name. Snowflake does not
// enforce them; they still identify the row to update.
func (a *Adapter) UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error) {
	ref = a.withDatabase(ref)
	rows, err := a.showKeys(ctx, "UNIQUE", ref)
	if err != nil {
		return nil, err
	}
	var keys []core.UniqueKey
	for _, r := range rows {
		keys = adapter.AppendKeyColumn(keys, r.constraint, r.column)
	}
	return keys, nil
}

type keyRow struct {
	constraint string
	column     string
	sequence   int
}

// showKeys runs SHOW <kind> KEYS IN TABLE. Result columns are located by
// header name since their position differs across Snowflake releases.
func (a *Adapter) showKeys(ctx context.Context, kind string, ref core.TableRef) ([]keyRow, error) {
	if !a.IsConnected() {
		return nil, &core.ConnectivityError{Op: "load " + strings.ToLower(kind) + " keys", Err: adapter.ErrNotConnected}
	}

	//nolint:gosec // Identifiers come from resolved metadata and are quoted by the dialect
	query := fmt.Sprintf("SHOW %s KEYS IN TABLE %s", kind, a.Dialect().QualifiedName(ref))
	rows, err := a.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, a.LookupError(ref, "show "+strings.ToLower(kind)+" keys", err)
	}
	defer func() { _ = rows.Close() }()

	keys, err := scanKeyRows(rows)
	if err != nil {
		return nil, a.LookupError(ref, "read "+strings.ToLower(kind)+" keys", err)
	}
	return keys, nil
}

func scanKeyRows(rows *sql.Rows) ([]keyRow, error) {
	headers, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(h)] = i
	}
	for _, required := range []string{"column_name", "key_sequence", "constraint_name"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("SHOW KEYS result has no %s column", required)
		}
	}

	var out []keyRow
	for rows.Next() {
		values := make([]sql.NullString, len(headers))
		dest := make([]any, len(headers))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		seq, err := strconv.Atoi(values[index["key_sequence"]].String)
		if err != nil {
			return nil, fmt.Errorf("invalid key_sequence %q: %w", values[index["key_sequence"]].String, err)
		}
		out = append(out, keyRow{
			constraint: values[index["constraint_name"]].String,
			column:     values[index["column_name"]].String,
			sequence:   seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].constraint != out[j].constraint {
			return out[i].constraint < out[j].constraint
		}
		return out[i].sequence < out[j].sequence
	})
	return out, nil
}

// Classify maps Snowflake errors to their error number.
func (a *Adapter) Classify(err error) core.ErrorInfo {
	return Classify(err)
}

// Classify maps Snowflake errors to their error number.
func Classify(err error) core.ErrorInfo {
	info := adapter.ClassifyCommon(err)
	if err == nil {
		return info
	}

	var sfErr *gosnowflake.SnowflakeError
	if !errors.As(err, &sfErr) {
		return info
	}
	info.Code = strconv.Itoa(sfErr.Number)
	if strings.HasPrefix(sfErr.SQLState, "08") {
		info.Connectivity = true
	}
	if c := adapter.ConstraintFromSQLState(sfErr.SQLState); c != core.ConstraintNone {
		info.Constraint = c
	}
	if sfErr.Number == 100072 {
		info.Constraint = core.ConstraintNotNull
	}
	return info
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
