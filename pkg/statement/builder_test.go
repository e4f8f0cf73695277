package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/internal/testutil"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/mysql"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/postgres"
)

func TestBuilder_ReusesSetForSameColumns(t *testing.T) {
	b := NewBuilder(testutil.NewTestLogger(t))
	table := core.TableRef{Name: "users"}
	key := primary("id")

	first, err := b.For(table, cols("id", "name"), key, mysql.MySQL)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		set, err := b.For(table, cols("id", "name"), key, mysql.MySQL)
		require.NoError(t, err)
		assert.Same(t, first, set)
	}
	assert.Equal(t, 1, b.Builds())
}

func TestBuilder_RebuildsOnChange(t *testing.T) {
	b := NewBuilder(nil)
	table := core.TableRef{Name: "users"}
	key := primary("id")

	_, err := b.For(table, cols("id", "name"), key, mysql.MySQL)
	require.NoError(t, err)

	// different active columns
	_, err = b.For(table, cols("id", "email"), key, mysql.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Builds())

	// different dialect
	set, err := b.For(table, cols("id", "name"), key, postgres.Postgres)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Builds())
	assert.Contains(t, set.Upsert.SQL, "ON CONFLICT")

	// different key
	_, err = b.For(table, cols("id", "name"), primary("name"), mysql.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Builds())

	// back to the first combination
	_, err = b.For(table, cols("id", "name"), key, mysql.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Builds())
}

func TestBuilder_ErrorsAreNotCached(t *testing.T) {
	b := NewBuilder(nil)

	_, err := b.For(core.TableRef{Name: "t"}, nil, core.KeyDescriptor{}, mysql.MySQL)
	require.ErrorIs(t, err, ErrNoColumns)
	assert.Equal(t, 0, b.Builds())
}
