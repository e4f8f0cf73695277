package coerce

import (
	"fmt"
	"strings"
)

// TranslatePattern converts a date pattern to a Go time layout. Patterns
// already containing the Go reference year "2006" are returned unchanged.
// Otherwise the pattern uses letter tokens (yyyy-MM-dd HH:mm:ss.SSSXXX) with
// literal text in single quotes; '' is a literal quote.
func TranslatePattern(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("empty date pattern")
	}
	if strings.Contains(pattern, "2006") {
		return pattern, nil
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		r := runes[i]

		if r == '\'' {
			// '' is an escaped quote
			if i+1 < len(runes) && runes[i+1] == '\'' {
				b.WriteRune('\'')
				i += 2
				continue
			}
			j, closed := i+1, false
			for j < len(runes) {
				if runes[j] != '\'' {
					b.WriteRune(runes[j])
					j++
					continue
				}
				// '' inside a quoted section is a literal quote
				if j+1 < len(runes) && runes[j+1] == '\'' {
					b.WriteRune('\'')
					j += 2
					continue
				}
				closed = true
				break
			}
			if !closed {
				return "", fmt.Errorf("date pattern %q: unterminated quote", pattern)
			}
			i = j + 1
			continue
		}

		if !isASCIILetter(r) {
			b.WriteRune(r)
			i++
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == r {
			n++
		}
		layout, err := translateToken(r, n)
		if err != nil {
			return "", fmt.Errorf("date pattern %q: %w", pattern, err)
		}
		if r == 'S' && !strings.HasSuffix(b.String(), ".") && !strings.HasSuffix(b.String(), ",") {
			return "", fmt.Errorf("date pattern %q: fraction of second must follow '.' or ','", pattern)
		}
		b.WriteString(layout)
		i += n
	}
	return b.String(), nil
}

func translateToken(r rune, n int) (string, error) {
	switch r {
	case 'y':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		switch {
		case n >= 4:
			return "January", nil
		case n == 3:
			return "Jan", nil
		case n == 2:
			return "01", nil
		default:
			return "1", nil
		}
	case 'd':
		if n >= 2 {
			return "02", nil
		}
		return "2", nil
	case 'H':
		return "15", nil
	case 'h':
		if n >= 2 {
			return "03", nil
		}
		return "3", nil
	case 'm':
		if n >= 2 {
			return "04", nil
		}
		return "4", nil
	case 's':
		if n >= 2 {
			return "05", nil
		}
		return "5", nil
	case 'S':
		// Parsing with 9s accepts any number of digits, or none.
		return strings.Repeat("9", n), nil
	case 'a':
		return "PM", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	case 'Z':
		return "-0700", nil
	case 'z':
		return "MST", nil
	case 'E':
		if n >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	default:
		return "", fmt.Errorf("unsupported token %q", strings.Repeat(string(r), n))
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
