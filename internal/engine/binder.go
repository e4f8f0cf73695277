package engine

import (
	"maps"
	"slices"

	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/catalog"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/statement"
)

// windowBinder binds a window once its active columns are known: the
// columns present in at least one of its records, in table order.
type windowBinder struct {
	table   *catalog.Table
	dialect *dialect.Dialect
	builder *statement.Builder
}

func (b *windowBinder) Bind(entries []batch.Entry) ([]batch.Statement, error) {
	set, err := b.builder.For(b.table.Ref, activeColumns(b.table.Columns, entries), b.table.Key, b.dialect)
	if err != nil {
		return nil, err
	}

	stmts := make([]batch.Statement, len(entries))
	for i, entry := range entries {
		switch {
		case !entry.Upsert || !set.CanUpsert():
			stmts[i] = batch.Statement{
				Op:   batch.OpInsert,
				SQL:  set.Insert.SQL,
				Args: bindArgs(set.Insert, entry.Values),
			}
		case !set.Upsert.IsZero():
			stmts[i] = batch.Statement{
				Op:   batch.OpUpsert,
				SQL:  set.Upsert.SQL,
				Args: bindArgs(set.Upsert, entry.Values),
			}
		default:
			stmts[i] = batch.Statement{
				Op:         batch.OpProbe,
				SQL:        set.Insert.SQL,
				Args:       bindArgs(set.Insert, entry.Values),
				Probe:      set.Probe.SQL,
				ProbeArgs:  bindArgs(set.Probe, entry.Values),
				Update:     set.Update.SQL,
				UpdateArgs: bindArgs(set.Update, entry.Values),
			}
		}
	}
	return stmts, nil
}

func activeColumns(columns []core.Column, entries []batch.Entry) []core.Column {
	active := make([]core.Column, 0, len(columns))
	for _, c := range columns {
		for _, e := range entries {
			if _, ok := e.Values[c.Name]; ok {
				active = append(active, c)
				break
			}
		}
	}
	return active
}

// bindArgs returns the template's arguments. A column the record does not
// carry binds a NULL of the column's type.
func bindArgs(t statement.Template, values map[string]core.TypedValue) []any {
	args := make([]any, len(t.Params))
	for i, c := range t.Params {
		v, ok := values[c.Name]
		if !ok {
			v = core.Null(c.Type)
		}
		args[i] = v
	}
	return args
}

func sortedFields(fields map[string]any) []string {
	return slices.Sorted(maps.Keys(fields))
}
