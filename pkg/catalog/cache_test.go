package catalog

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(schema, name string) *Table {
	return NewTable(core.TableRef{Schema: schema, Name: name}, userColumns, core.KeyDescriptor{})
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	c := NewCache(2)
	d := postgres.Postgres

	c.Put(d, snapshot("public", "a"))
	c.Put(d, snapshot("public", "b"))
	c.Put(d, snapshot("public", "c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(d, core.TableRef{Name: "a"})
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get(d, core.TableRef{Name: "b"})
	assert.True(t, ok)
	_, ok = c.Get(d, core.TableRef{Schema: "public", Name: "c"})
	assert.True(t, ok)
}

func TestCache_ReplaceKeepsPosition(t *testing.T) {
	c := NewCache(2)
	d := postgres.Postgres

	c.Put(d, snapshot("public", "a"))
	c.Put(d, snapshot("public", "b"))
	c.Put(d, snapshot("public", "a"))
	c.Put(d, snapshot("public", "c"))

	_, ok := c.Get(d, core.TableRef{Name: "a"})
	assert.False(t, ok, "replacing does not refresh insertion order")
	assert.Equal(t, 2, c.Len())
}

func TestCache_KeyedByDialect(t *testing.T) {
	c := NewCache(4)
	c.Put(sqlite.SQLite, NewTable(core.TableRef{Name: "users"}, userColumns, core.KeyDescriptor{}))

	_, ok := c.Get(sqlite.SQLite, core.TableRef{Schema: "ignored", Name: "users"})
	assert.True(t, ok, "sqlite ignores the schema")

	_, ok = c.Get(postgres.Postgres, core.TableRef{Name: "users"})
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(2)
	d := postgres.Postgres

	c.Put(d, snapshot("public", "a"))
	c.Invalidate(d, core.TableRef{Name: "a"})
	c.Invalidate(d, core.TableRef{Name: "missing"})

	assert.Equal(t, 0, c.Len())
	c.Put(d, snapshot("public", "b"))
	c.Put(d, snapshot("public", "c"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_GetOrLoad(t *testing.T) {
	c := NewCache(4)
	src := &fakeSource{columns: userColumns, pk: []string{"id"}}
	ctx := context.Background()

	first, err := c.GetOrLoad(ctx, src, postgres.Postgres, core.TableRef{Name: "users"}, nil)
	require.NoError(t, err)
	second, err := c.GetOrLoad(ctx, src, postgres.Postgres, core.TableRef{Schema: "public", Name: "users"}, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.loadCalls)
}

func TestCache_GetOrLoadDoesNotCacheFailures(t *testing.T) {
	c := NewCache(4)
	src := &fakeSource{}

	_, err := c.GetOrLoad(context.Background(), src, postgres.Postgres, core.TableRef{Name: "ghost"}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
