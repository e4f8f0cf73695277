package dialect

import (
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Rebind rewrites the ? placeholders of generated SQL into the dialect's
// wire style. Question marks inside string literals or quoted identifiers
// are left alone.
func (d *Dialect) Rebind(query string) string {
	if d.Placeholder == core.PlaceholderQuestion || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	var closing byte // non-zero while inside a quoted section
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case closing != 0:
			sb.WriteByte(c)
			if c != closing {
				continue
			}
			// a doubled closing character ('', "", ]]) is an escape
			if i+1 < len(query) && query[i+1] == closing {
				sb.WriteByte(query[i+1])
				i++
				continue
			}
			closing = 0
		case c == '\'':
			closing = '\''
			sb.WriteByte(c)
		case d.Identifiers.Quote != "" && c == d.Identifiers.Quote[0]:
			closing = d.Identifiers.QuoteEnd[0]
			sb.WriteByte(c)
		case c == '?':
			n++
			sb.WriteString(d.FormatPlaceholder(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
