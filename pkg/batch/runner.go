package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Preparer prepares statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// StmtRunner executes a window through prepared statements on one
// connection. Each distinct SQL is prepared once per window and every
// prepared statement is closed before Run returns.
type StmtRunner struct {
	conn    Preparer
	dialect *dialect.Dialect
	logger  *slog.Logger
}

// NewStmtRunner creates a runner that rebinds ? placeholders for d.
func NewStmtRunner(conn Preparer, d *dialect.Dialect, logger *slog.Logger) *StmtRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StmtRunner{conn: conn, dialect: d, logger: logger}
}

// Run executes stmts sequentially in autocommit mode.
func (r *StmtRunner) Run(ctx context.Context, stmts []Statement) (counts []int64, err error) {
	prepared := make(map[string]*sql.Stmt)
	defer func() {
		for query, stmt := range prepared {
			if cerr := stmt.Close(); cerr != nil {
				r.logger.Debug("failed to close statement", "sql", query, "error", cerr.Error())
			}
		}
	}()

	counts = make([]int64, 0, len(stmts))
	for _, s := range stmts {
		n, err := r.exec(ctx, prepared, s)
		if err != nil {
			return counts, &core.BatchError{Counts: counts, Err: err}
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (r *StmtRunner) exec(ctx context.Context, prepared map[string]*sql.Stmt, s Statement) (int64, error) {
	if s.Op != OpProbe {
		return r.execSQL(ctx, prepared, s.SQL, s.Args)
	}

	probe, err := r.prepare(ctx, prepared, s.Probe)
	if err != nil {
		return 0, err
	}
	var one int
	switch err := probe.QueryRowContext(ctx, s.ProbeArgs...).Scan(&one); {
	case err == nil:
		return r.execSQL(ctx, prepared, s.Update, s.UpdateArgs)
	case errors.Is(err, sql.ErrNoRows):
		return r.execSQL(ctx, prepared, s.SQL, s.Args)
	default:
		return 0, err
	}
}

func (r *StmtRunner) execSQL(ctx context.Context, prepared map[string]*sql.Stmt, query string, args []any) (int64, error) {
	stmt, err := r.prepare(ctx, prepared, query)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers do not report affected rows.
		return 1, nil //nolint:nilerr // the statement itself succeeded
	}
	return n, nil
}

func (r *StmtRunner) prepare(ctx context.Context, prepared map[string]*sql.Stmt, query string) (*sql.Stmt, error) {
	if stmt, ok := prepared[query]; ok {
		return stmt, nil
	}
	wire := query
	if r.dialect != nil {
		wire = r.dialect.Rebind(query)
	}
	stmt, err := r.conn.PrepareContext(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	prepared[query] = stmt
	return stmt, nil
}
