// Package catalog loads the column metadata and conflict key of a target
// table and keeps immutable snapshots of them in a caller-owned cache.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Source answers metadata questions about resolved table references.
// adapter.Adapter satisfies it.
type Source interface {
	Columns(ctx context.Context, ref core.TableRef) ([]core.Column, error)
	PrimaryKey(ctx context.Context, ref core.TableRef) ([]string, error)
	UniqueKeys(ctx context.Context, ref core.TableRef) ([]core.UniqueKey, error)
}

// Table is an immutable snapshot of a table's columns and conflict key.
type Table struct {
	Ref     core.TableRef // resolved for the dialect
	Columns []core.Column // ordinal order
	Key     core.KeyDescriptor

	byName map[string]int
}

// NewTable builds a snapshot from already loaded metadata.
func NewTable(ref core.TableRef, columns []core.Column, key core.KeyDescriptor) *Table {
	t := &Table{
		Ref:     ref,
		Columns: columns,
		Key:     key,
		byName:  make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.byName[c.Name] = i
	}
	return t
}

// Column returns the column with the exact given name.
func (t *Table) Column(name string) (core.Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return core.Column{}, false
	}
	return t.Columns[i], true
}

// Match finds the column a record field feeds: the exact name first, then
// a unique case-insensitive match.
func (t *Table) Match(field string) (core.Column, bool) {
	if c, ok := t.Column(field); ok {
		return c, true
	}
	var (
		found core.Column
		n     int
	)
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, field) {
			found = c
			n++
		}
	}
	return found, n == 1
}

// Load resolves ref for the dialect, reads its columns and keys, and
// resolves the conflict key.
func Load(ctx context.Context, src Source, d *dialect.Dialect, ref core.TableRef, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	resolved := d.Resolve(ref)
	if resolved.Name == "" {
		return nil, &core.SchemaLookupError{Table: ref, Reason: "table name is empty"}
	}

	columns, err := src.Columns(ctx, resolved)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, &core.SchemaLookupError{Table: resolved, Reason: "table not found"}
	}

	pk, err := src.PrimaryKey(ctx, resolved)
	if err != nil {
		return nil, err
	}

	var uniques []core.UniqueKey
	if len(pk) == 0 {
		uniques, err = src.UniqueKeys(ctx, resolved)
		if err != nil {
			return nil, err
		}
	}

	key, err := ResolveKey(columns, pk, uniques)
	if err != nil {
		return nil, &core.SchemaLookupError{Table: resolved, Reason: "resolve key", Err: err}
	}

	logger.Debug("loaded table metadata",
		slog.String("table", resolved.String()),
		slog.Int("columns", len(columns)),
		slog.String("key", key.Kind.String()),
		slog.Any("key_columns", key.Columns))

	return NewTable(resolved, columns, key), nil
}

// ResolveKey picks the conflict key: the primary key when declared, else the
// first unique key whose columns are all NOT NULL, else none. A nullable
// unique key cannot detect conflicts because NULL never equals NULL.
func ResolveKey(columns []core.Column, pk []string, uniques []core.UniqueKey) (core.KeyDescriptor, error) {
	byName := make(map[string]core.Column, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}

	if len(pk) > 0 {
		for _, name := range pk {
			if _, ok := byName[name]; !ok {
				return core.KeyDescriptor{}, fmt.Errorf("primary key column %q not in column metadata", name)
			}
		}
		return core.KeyDescriptor{Kind: core.KeyPrimary, Columns: append([]string(nil), pk...)}, nil
	}

	for _, u := range uniques {
		if len(u.Columns) > 0 && allNotNull(byName, u.Columns) {
			return core.KeyDescriptor{Kind: core.KeyUnique, Columns: append([]string(nil), u.Columns...), Name: u.Name}, nil
		}
	}

	return core.KeyDescriptor{Kind: core.KeyNone}, nil
}

func allNotNull(byName map[string]core.Column, names []string) bool {
	for _, name := range names {
		c, ok := byName[name]
		if !ok || c.Nullable {
			return false
		}
	}
	return true
}
