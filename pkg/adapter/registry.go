package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Factory creates an unconnected adapter.
type Factory func(logger *slog.Logger) Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// ErrNoType is returned by NewAdapter when the config names no type.
var ErrNoType = errors.New("adapter type not specified")

// Register adds an adapter factory under a dialect name. Adapter packages
// call it from init.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Get retrieves an adapter factory by type name or dialect alias.
func Get(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[dialect.Canonical(name)]
	return f, ok
}

// NewAdapter creates an unconnected adapter for cfg.Type. A nil logger
// discards adapter logs.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// ListAdapters returns the registered adapter names, sorted.
func ListAdapters() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether an adapter exists for the type or alias.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check your target.type in leapupsert.yaml", e.Type, e.Available)
}
