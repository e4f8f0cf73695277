package sqlite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds SQLite-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// BusyTimeout in milliseconds. Zero means 5000.
	BusyTimeout int `mapstructure:"busy_timeout"`

	// JournalMode, e.g. "wal" or "delete". Empty means WAL for files.
	JournalMode string `mapstructure:"journal_mode"`

	// ForeignKeys enforces foreign key constraints. Nil means on.
	ForeignKeys *bool `mapstructure:"foreign_keys"`
}

// ParseParams decodes raw target params into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := mapstructure.Decode(raw, p); err != nil {
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}
	return p, nil
}

// buildSQLiteDSN turns a file path into a modernc DSN carrying _pragma
// parameters. An empty path or ":memory:" opens a private in-memory database.
func buildSQLiteDSN(path string, p *Params) string {
	memory := path == "" || path == ":memory:"
	if memory {
		path = ":memory:"
	}

	busy := p.BusyTimeout
	if busy == 0 {
		busy = 5000
	}
	pragmas := []string{fmt.Sprintf("busy_timeout(%d)", busy)}

	if p.ForeignKeys == nil || *p.ForeignKeys {
		pragmas = append(pragmas, "foreign_keys(1)")
	} else {
		pragmas = append(pragmas, "foreign_keys(0)")
	}

	switch {
	case p.JournalMode != "":
		pragmas = append(pragmas, fmt.Sprintf("journal_mode(%s)", strings.ToUpper(p.JournalMode)))
	case !memory:
		pragmas = append(pragmas, "journal_mode(WAL)")
	}

	q := make([]string, 0, len(pragmas))
	for _, pr := range pragmas {
		q = append(q, "_pragma="+url.QueryEscape(pr))
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}
