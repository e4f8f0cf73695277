package adapter

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/stretchr/testify/assert"
)

type sqlStateError struct {
	state string
	msg   string
}

func (e *sqlStateError) Error() string    { return e.msg }
func (e *sqlStateError) SQLState() string { return e.state }

func TestClassifyCommon(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected core.ErrorInfo
	}{
		{
			name: "nil",
			err:  nil,
		},
		{
			name:     "bad connection",
			err:      fmt.Errorf("exec: %w", driver.ErrBadConn),
			expected: core.ErrorInfo{Connectivity: true},
		},
		{
			name:     "connection done",
			err:      sql.ErrConnDone,
			expected: core.ErrorInfo{Connectivity: true},
		},
		{
			name:     "network error",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			expected: core.ErrorInfo{Connectivity: true},
		},
		{
			name:     "sqlstate unique violation",
			err:      &sqlStateError{state: "23505", msg: "duplicate key value"},
			expected: core.ErrorInfo{Code: "23505", Constraint: core.ConstraintUnique},
		},
		{
			name:     "sqlstate connection exception",
			err:      &sqlStateError{state: "08006", msg: "connection failure"},
			expected: core.ErrorInfo{Code: "08006", Connectivity: true},
		},
		{
			name:     "message fallback",
			err:      errors.New("Error 1062 (23000): Duplicate entry 'A' for key 'name'"),
			expected: core.ErrorInfo{Constraint: core.ConstraintUnique},
		},
		{
			name:     "unclassified",
			err:      errors.New("syntax error"),
			expected: core.ErrorInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCommon(tt.err))
		})
	}
}

func TestBaseSQLAdapter_LookupError(t *testing.T) {
	ref := core.TableRef{Schema: "app", Name: "users"}

	t.Run("default classifier", func(t *testing.T) {
		base := &BaseSQLAdapter{}
		assert.ErrorIs(t, base.LookupError(ref, "query", driver.ErrBadConn), core.ErrConnectivity)
		assert.ErrorIs(t, base.LookupError(ref, "query", errors.New("no such view")), core.ErrSchemaLookup)
	})

	t.Run("adapter classifier", func(t *testing.T) {
		base := &BaseSQLAdapter{Classifier: func(error) core.ErrorInfo {
			return core.ErrorInfo{Connectivity: true}
		}}
		err := base.LookupError(ref, "query", errors.New("ORA-03113: end-of-file on communication channel"))
		assert.ErrorIs(t, err, core.ErrConnectivity)
	})
}
