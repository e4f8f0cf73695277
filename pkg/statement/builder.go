package statement

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Builder memoizes Build by table, active column set, key and dialect.
// A statement set is rebuilt only when one of them changes.
type Builder struct {
	mu     sync.Mutex
	sets   map[string]*Set
	builds int
	logger *slog.Logger
}

// NewBuilder creates an empty memoizing builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		sets:   make(map[string]*Set),
		logger: logger,
	}
}

// For returns the statement set for the arguments, building it on first use.
func (b *Builder) For(table core.TableRef, columns []core.Column, key core.KeyDescriptor, d *dialect.Dialect) (*Set, error) {
	sig := signature(table, columns, key, d)

	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.sets[sig]; ok {
		return set, nil
	}

	set, err := Build(table, columns, key, d)
	if err != nil {
		return nil, err
	}
	b.sets[sig] = set
	b.builds++

	b.logger.Debug("built statements",
		"table", table.String(),
		"columns", len(columns),
		"style", set.Style.String(),
		"insert", set.Insert.SQL)
	return set, nil
}

// Builds returns how many statement sets have been built.
func (b *Builder) Builds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

func signature(table core.TableRef, columns []core.Column, key core.KeyDescriptor, d *dialect.Dialect) string {
	var sb strings.Builder
	if d != nil {
		sb.WriteString(d.Name)
	}
	for _, p := range []string{table.Catalog, table.Schema, table.Name} {
		sb.WriteByte(0)
		sb.WriteString(p)
	}
	sb.WriteString("\x00cols")
	for _, c := range columns {
		sb.WriteByte(0)
		sb.WriteString(c.Name)
	}
	sb.WriteString("\x00key")
	for _, k := range key.Columns {
		sb.WriteByte(0)
		sb.WriteString(k)
	}
	return sb.String()
}
