package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSentinels(t *testing.T) {
	driverErr := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
		fatal    bool
	}{
		{
			name:     "connectivity",
			err:      &ConnectivityError{Op: "flush", Err: driverErr},
			sentinel: ErrConnectivity,
			fatal:    true,
		},
		{
			name:     "wrapped connectivity",
			err:      fmt.Errorf("run aborted: %w", &ConnectivityError{Err: driverErr}),
			sentinel: ErrConnectivity,
			fatal:    true,
		},
		{
			name:     "schema lookup",
			err:      &SchemaLookupError{Table: TableRef{Schema: "app", Name: "users"}, Reason: "table not found"},
			sentinel: ErrSchemaLookup,
			fatal:    true,
		},
		{
			name:     "application",
			err:      &ApplicationError{Column: "age", Type: TypeNumeric, Value: "abc", Reason: "not a number"},
			sentinel: ErrApplication,
			fatal:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.fatal, IsRunFatal(tt.err))
		})
	}
}

func TestConnectivityErrorUnwrap(t *testing.T) {
	driverErr := errors.New("bad connection")
	err := &ConnectivityError{Op: "prepare", Err: driverErr}

	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, "connectivity error during prepare: bad connection", err.Error())
}

func TestSchemaLookupErrorMessage(t *testing.T) {
	err := &SchemaLookupError{Table: TableRef{Catalog: "db", Schema: "dbo", Name: "t"}, Reason: "table not found"}
	assert.Equal(t, `schema lookup failed for table "db.dbo.t": table not found`, err.Error())
}

func TestBatchErrorKeepsDriverMessage(t *testing.T) {
	driverErr := errors.New("Error 1062 (23000): Duplicate entry 'A' for key 't.name'")
	err := fmt.Errorf("flush: %w", &BatchError{Counts: []int64{1, 1}, Err: driverErr})

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.FailedAt())
	assert.Equal(t, driverErr.Error(), be.Error())
	assert.ErrorIs(t, err, driverErr)
}

func TestConstraintFromMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want ConstraintKind
	}{
		{"Error 1062 (23000): Duplicate entry 'A' for key 'name'", ConstraintUnique},
		{`ERROR: duplicate key value violates unique constraint "t_pkey" (SQLSTATE 23505)`, ConstraintUnique},
		{"UNIQUE constraint failed: t.name", ConstraintUnique},
		{"ORA-00001: unique constraint (APP.T_PK) violated", ConstraintUnique},
		{"Violation of PRIMARY KEY constraint 'PK_t'.", ConstraintUnique},
		{"FOREIGN KEY constraint failed", ConstraintForeignKey},
		{`violates check constraint "positive"`, ConstraintCheck},
		{"NOT NULL constraint failed: t.id", ConstraintNotNull},
		{"syntax error at or near", ConstraintNone},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstraintFromMessage(tt.msg))
		})
	}
}
