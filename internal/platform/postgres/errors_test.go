package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "no rows", err: sql.ErrNoRows, wantErr: store.ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: uniqueViolationCode}, wantErr: store.ErrDuplicate},
		{
			name:    "check violation",
			err:     &pgconn.PgError{Code: checkViolationCode, ConstraintName: "tasks_priority_check"},
			wantErr: store.ErrInvalidEntity,
		},
		{
			name:    "not null violation",
			err:     &pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"},
			wantErr: store.ErrInvalidEntity,
		},
		{name: "bad text representation", err: &pgconn.PgError{Code: invalidTextRepresentCode}, wantErr: store.ErrInvalidEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			assert.ErrorIs(t, mapped, tc.wantErr)
			assert.ErrorIs(t, mapped, tc.err, "original error stays in the chain")
		})
	}

	t.Run("driver details survive mapping", func(t *testing.T) {
		mapped := MapError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "tasks_title_check"})

		var pgErr *pgconn.PgError
		require.True(t, errors.As(mapped, &pgErr))
		assert.Equal(t, "tasks_title_check", pgErr.ConstraintName)
		assert.Contains(t, mapped.Error(), "check constraint violation (tasks_title_check)")
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("unmapped passes through", func(t *testing.T) {
		plain := errors.New("connection reset")
		assert.Same(t, plain, MapError(plain))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckRowsAffected(stubResult{rows: 1}, store.ErrTaskNotFound))
	assert.ErrorIs(t, CheckRowsAffected(stubResult{rows: 0}, store.ErrTaskNotFound), store.ErrTaskNotFound)

	err := CheckRowsAffected(stubResult{err: errors.New("driver gone")}, store.ErrTaskNotFound)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrTaskNotFound)

	assert.Error(t, CheckRowsAffected(nil, store.ErrTaskNotFound))
}

func TestRunMigrations_UnknownCommand(t *testing.T) {
	err := RunMigrations(context.Background(), nil, "sideways", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command: sideways")
}
