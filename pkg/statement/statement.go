// Package statement builds the parameterized INSERT and upsert statements
// for one table and one set of active columns.
//
// Generated SQL uses ? placeholders only. Identifiers come from column
// metadata and are quoted with the dialect's rule; record values never
// reach SQL text. Callers rebind placeholders for the wire with
// dialect.Rebind at execution time.
package statement

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Template is a SQL statement and the columns bound to its placeholders,
// in placeholder order.
type Template struct {
	SQL    string
	Params []core.Column
}

// IsZero reports whether the template is unset.
func (t Template) IsZero() bool {
	return t.SQL == ""
}

// Set holds every statement needed to write one window of records.
//
// Upsert is set for dialects with a single-statement upsert. Probe and
// Update are set for dialects without one. Both are empty when the key is
// None or not covered by the active columns.
type Set struct {
	Table   core.TableRef
	Columns []core.Column
	Key     core.KeyDescriptor
	Style   dialect.UpsertStyle

	Insert Template
	Upsert Template
	Probe  Template
	Update Template
}

// CanUpsert reports whether records carrying the full key can take an
// upsert path.
func (s *Set) CanUpsert() bool {
	return !s.Upsert.IsZero() || !s.Probe.IsZero()
}

// Errors returned by Build.
var (
	ErrNoColumns = errors.New("no active columns")
	ErrNoDialect = errors.New("dialect is required")
	ErrNoTable   = errors.New("table name is required")
)

// Build generates the statement set for a resolved table, its active
// columns in table order, and its conflict key. It is a pure function of
// its arguments.
func Build(table core.TableRef, columns []core.Column, key core.KeyDescriptor, d *dialect.Dialect) (*Set, error) {
	if d == nil {
		return nil, ErrNoDialect
	}
	if table.Name == "" {
		return nil, ErrNoTable
	}
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	w := writer{d: d, table: d.QualifiedName(table)}
	set := &Set{
		Table:   table,
		Columns: columns,
		Key:     key,
		Style:   d.Upsert(),
		Insert:  w.insert(columns),
	}

	keyCols, ok := keyColumns(columns, key)
	if !ok {
		return set, nil
	}
	// With nothing else to set, the update repeats the key columns.
	updateCols := nonKeyColumns(columns, key)
	if len(updateCols) == 0 {
		updateCols = columns
	}

	switch set.Style {
	case dialect.UpsertOnDuplicateKey:
		set.Upsert = w.onDuplicateKey(set.Insert, updateCols)
	case dialect.UpsertOnConflict:
		set.Upsert = w.onConflict(set.Insert, keyCols, nonKeyColumns(columns, key))
	default:
		set.Probe = w.probe(keyCols)
		set.Update = w.update(updateCols, keyCols)
	}
	return set, nil
}

// keyColumns returns the key's columns in key order. It reports false when
// the key is None or any key column is not active.
func keyColumns(columns []core.Column, key core.KeyDescriptor) ([]core.Column, bool) {
	if key.IsNone() {
		return nil, false
	}
	out := make([]core.Column, 0, len(key.Columns))
	for _, name := range key.Columns {
		found := false
		for _, c := range columns {
			if c.Name == name {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

func nonKeyColumns(columns []core.Column, key core.KeyDescriptor) []core.Column {
	out := make([]core.Column, 0, len(columns))
	for _, c := range columns {
		if !key.Contains(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// writer renders SQL text for one table.
type writer struct {
	d     *dialect.Dialect
	table string
}

func (w writer) ident(name string) string {
	return w.d.QuoteIdentifierIfNeeded(name)
}

func (w writer) list(columns []core.Column) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = w.ident(c.Name)
	}
	return strings.Join(names, ",")
}

// assignments renders "c1=?,c2=?" or, joined with AND, a WHERE predicate.
func (w writer) assignments(columns []core.Column, sep string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = w.ident(c.Name) + "=?"
	}
	return strings.Join(parts, sep)
}

func (w writer) insert(columns []core.Column) Template {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	return Template{
		SQL:    "INSERT into " + w.table + "(" + w.list(columns) + ") values (" + placeholders + ")",
		Params: columns,
	}
}

func (w writer) onDuplicateKey(insert Template, updateCols []core.Column) Template {
	params := make([]core.Column, 0, len(insert.Params)+len(updateCols))
	params = append(params, insert.Params...)
	params = append(params, updateCols...)
	return Template{
		SQL:    insert.SQL + " ON DUPLICATE KEY UPDATE " + w.assignments(updateCols, ","),
		Params: params,
	}
}

func (w writer) onConflict(insert Template, keyCols, updateCols []core.Column) Template {
	var sb strings.Builder
	sb.WriteString(insert.SQL)
	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(w.list(keyCols))
	sb.WriteString(")")
	if len(updateCols) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sb.WriteString(" DO UPDATE SET ")
		for i, c := range updateCols {
			if i > 0 {
				sb.WriteString(",")
			}
			name := w.ident(c.Name)
			sb.WriteString(name + "=excluded." + name)
		}
	}
	return Template{SQL: sb.String(), Params: insert.Params}
}

func (w writer) probe(keyCols []core.Column) Template {
	return Template{
		SQL:    "SELECT 1 FROM " + w.table + " WHERE " + w.assignments(keyCols, " AND "),
		Params: keyCols,
	}
}

func (w writer) update(updateCols, keyCols []core.Column) Template {
	params := make([]core.Column, 0, len(updateCols)+len(keyCols))
	params = append(params, updateCols...)
	params = append(params, keyCols...)
	return Template{
		SQL:    "UPDATE " + w.table + " SET " + w.assignments(updateCols, ",") + " WHERE " + w.assignments(keyCols, " AND "),
		Params: params,
	}
}
