package dialect

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	byName     = make(map[string]*Dialect)
	aliases    = make(map[string]string) // alias -> canonical name
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// Register adds d to the registry under its lower-cased name and any
// aliases ("postgresql" for "postgres"). Dialect packages call it from
// init. Registering a name again replaces the earlier dialect.
func Register(d *Dialect, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := strings.ToLower(d.Name)
	byName[name] = d
	for _, a := range alias {
		aliases[strings.ToLower(a)] = name
	}
}

// Canonical returns the registered name for name or one of its aliases.
// Unknown names are returned lower-cased.
func Canonical(name string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return canonical(name)
}

func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// Get returns a dialect by name or alias.
func Get(name string) (*Dialect, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := byName[canonical(name)]
	return d, ok
}

// List returns the registered dialect names, sorted. Aliases are not listed.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Aliases returns the aliases registered for the canonical name, sorted.
func Aliases(name string) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var out []string
	for a, c := range aliases {
		if c == name {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return out
}
