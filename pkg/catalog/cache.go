package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Cache holds table snapshots keyed by dialect and resolved reference.
// It is bounded; when full, the oldest inserted entry is evicted.
// A Cache is owned by its caller and safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	size    int
	entries map[string]*Table
	order   []string // insertion order, oldest first
}

// NewCache creates a cache holding at most size tables. size < 1 means 1.
func NewCache(size int) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		size:    size,
		entries: make(map[string]*Table, size),
	}
}

func cacheKey(d *dialect.Dialect, ref core.TableRef) string {
	return d.Name + "\x00" + ref.Catalog + "\x00" + ref.Schema + "\x00" + ref.Name
}

// Get returns the snapshot for ref, resolved for d.
func (c *Cache) Get(d *dialect.Dialect, ref core.TableRef) (*Table, bool) {
	key := cacheKey(d, d.Resolve(ref))

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[key]
	return t, ok
}

// Put stores a snapshot under its resolved reference.
func (c *Cache) Put(d *dialect.Dialect, t *Table) {
	key := cacheKey(d, t.Ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = t
		return
	}
	for len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = t
	c.order = append(c.order, key)
}

// Invalidate removes the snapshot for ref, if any.
func (c *Cache) Invalidate(d *dialect.Dialect, ref core.TableRef) {
	key := cacheKey(d, d.Resolve(ref))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached snapshot or loads and caches it.
// Failed loads are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, src Source, d *dialect.Dialect, ref core.TableRef, logger *slog.Logger) (*Table, error) {
	if t, ok := c.Get(d, ref); ok {
		return t, nil
	}
	t, err := Load(ctx, src, d, ref, logger)
	if err != nil {
		return nil, err
	}
	c.Put(d, t)
	return t, nil
}
