package snowflake

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnowflakeDSN(t *testing.T) {
	t.Run("requires account", func(t *testing.T) {
		_, err := buildSnowflakeDSN(adapter.Config{Username: "loader"})
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		dsn, err := buildSnowflakeDSN(adapter.Config{
			Account:   "xy12345",
			Username:  "loader",
			Password:  "secret",
			Database:  "ANALYTICS",
			Schema:    "RAW",
			Warehouse: "LOAD_WH",
			Role:      "LOADER",
		})
		require.NoError(t, err)

		parsed, err := gosnowflake.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "xy12345", parsed.Account)
		assert.Equal(t, "loader", parsed.User)
		assert.Equal(t, "ANALYTICS", parsed.Database)
		assert.Equal(t, "RAW", parsed.Schema)
		assert.Equal(t, "LOAD_WH", parsed.Warehouse)
		assert.Equal(t, "LOADER", parsed.Role)
	})
}

func TestAdapter_PrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	headers := []string{"created_on", "database_name", "schema_name", "table_name", "column_name", "key_sequence", "constraint_name", "rely", "comment"}
	mock.ExpectQuery(regexp.QuoteMeta("SHOW PRIMARY KEYS IN TABLE ANALYTICS.RAW.ORDER_LINES")).
		WillReturnRows(sqlmock.NewRows(headers).
			AddRow("2024-01-01", "ANALYTICS", "RAW", "ORDER_LINES", "LINE_NO", "2", "PK_LINES", "false", nil).
			AddRow("2024-01-01", "ANALYTICS", "RAW", "ORDER_LINES", "ORDER_ID", "1", "PK_LINES", "false", nil))

	a := New(nil)
	a.DB = db
	a.Cfg = adapter.Config{Database: "analytics"}

	pk, err := a.PrimaryKey(context.Background(), core.TableRef{Schema: "RAW", Name: "ORDER_LINES"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORDER_ID", "LINE_NO"}, pk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UniqueKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	headers := []string{"created_on", "database_name", "schema_name", "table_name", "column_name", "key_sequence", "constraint_name"}
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW UNIQUE KEYS IN TABLE ANALYTICS.RAW."Users"`)).
		WillReturnRows(sqlmock.NewRows(headers).
			AddRow("2024-01-01", "ANALYTICS", "RAW", "Users", "LOGIN", "2", "UQ_B").
			AddRow("2024-01-01", "ANALYTICS", "RAW", "Users", "EMAIL", "1", "UQ_A").
			AddRow("2024-01-01", "ANALYTICS", "RAW", "Users", "TENANT", "1", "UQ_B"))

	a := New(nil)
	a.DB = db

	keys, err := a.UniqueKeys(context.Background(), core.TableRef{Catalog: "ANALYTICS", Schema: "RAW", Name: "Users"})
	require.NoError(t, err)
	assert.Equal(t, []core.UniqueKey{
		{Name: "UQ_A", Columns: []string{"EMAIL"}},
		{Name: "UQ_B", Columns: []string{"TENANT", "LOGIN"}},
	}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected core.ErrorInfo
	}{
		{
			name:     "null into non-nullable",
			err:      &gosnowflake.SnowflakeError{Number: 100072, SQLState: "22000", Message: "NULL result in a non-nullable column"},
			expected: core.ErrorInfo{Code: "100072", Constraint: core.ConstraintNotNull},
		},
		{
			name:     "numeric conversion",
			err:      &gosnowflake.SnowflakeError{Number: 100038, SQLState: "22018", Message: "Numeric value 'abc' is not recognized"},
			expected: core.ErrorInfo{Code: "100038"},
		},
		{
			name:     "connection failure",
			err:      &gosnowflake.SnowflakeError{Number: 260001, SQLState: "08001", Message: "failed to connect to db"},
			expected: core.ErrorInfo{Code: "260001", Connectivity: true},
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: core.ErrorInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}
