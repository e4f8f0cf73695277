package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/sijms/go-ora/v2/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOracleURL(t *testing.T) {
	u, err := url.Parse(buildOracleURL(adapter.Config{
		Host:     "ora.example.com",
		Database: "ORCLPDB1",
		Username: "app",
		Password: "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "oracle", u.Scheme)
	assert.Equal(t, "ora.example.com:1521", u.Host)
	assert.Equal(t, "/ORCLPDB1", u.Path)
	assert.Equal(t, "app", u.User.Username())
}

func TestAdapter_ColumnsDefaultOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("FROM all_tab_columns")).
		WithArgs("APP", "ORDERS").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "NULLABLE", "COLUMN_ID"}).
			AddRow("ID", "NUMBER", "N", 1).
			AddRow("PLACED", "DATE", "Y", 2).
			AddRow("UPDATED", "TIMESTAMP(6) WITH TIME ZONE", "Y", 3).
			AddRow("NOTE", "VARCHAR2", "Y", 4))

	a := New(nil)
	a.DB = db
	a.Cfg = adapter.Config{Username: "app"}

	cols, err := a.Columns(context.Background(), core.TableRef{Name: "ORDERS"})
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, core.TypeNumeric, cols[0].Type)
	assert.False(t, cols[0].Nullable)
	assert.Equal(t, core.TypeTimestamp, cols[1].Type)
	assert.True(t, cols[1].Nullable)
	assert.Equal(t, core.TypeTimestampTZ, cols[2].Type)
	assert.Equal(t, core.TypeVarchar, cols[3].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_PrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("c.constraint_type = 'P'")).
		WithArgs("SALES", "ORDER_LINES").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("ORDER_ID").AddRow("LINE_NO"))

	a := New(nil)
	a.DB = db

	pk, err := a.PrimaryKey(context.Background(), core.TableRef{Schema: "SALES", Name: "ORDER_LINES"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORDER_ID", "LINE_NO"}, pk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected core.ErrorInfo
	}{
		{
			name:     "unique constraint",
			err:      &network.OracleError{ErrCode: 1, ErrMsg: "ORA-00001: unique constraint (APP.PK_ORDERS) violated"},
			expected: core.ErrorInfo{Code: "ORA-00001", Constraint: core.ConstraintUnique},
		},
		{
			name:     "parent key not found",
			err:      fmt.Errorf("exec: %w", &network.OracleError{ErrCode: 2291, ErrMsg: "ORA-02291: integrity constraint violated - parent key not found"}),
			expected: core.ErrorInfo{Code: "ORA-02291", Constraint: core.ConstraintForeignKey},
		},
		{
			name:     "cannot insert null",
			err:      &network.OracleError{ErrCode: 1400, ErrMsg: `ORA-01400: cannot insert NULL into ("APP"."ORDERS"."ID")`},
			expected: core.ErrorInfo{Code: "ORA-01400", Constraint: core.ConstraintNotNull},
		},
		{
			name:     "end of file on channel",
			err:      &network.OracleError{ErrCode: 3113, ErrMsg: "ORA-03113: end-of-file on communication channel"},
			expected: core.ErrorInfo{Code: "ORA-03113", Connectivity: true},
		},
		{
			name:     "value too large",
			err:      &network.OracleError{ErrCode: 12899, ErrMsg: "ORA-12899: value too large for column"},
			expected: core.ErrorInfo{Code: "ORA-12899"},
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
