package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=recyclify user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN(),
	)

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestPgDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	local := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)

	got := pgDate(local)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)
}

func TestErrorHelpers(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", unique)))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
	assert.True(t, IsNoRows(fmt.Errorf("x: %w", pgx.ErrNoRows)))
}

func TestStorageError(t *testing.T) {
	assert.NoError(t, storageError("op", nil))

	err := storageError("Do", context.DeadlineExceeded)
	assert.True(t, shared.IsStorageUnavailable(err))
	assert.True(t, shared.IsRetryable(err))

	err = storageError("Do", &pgconn.PgError{Code: "40P01"})
	assert.True(t, shared.IsStorageUnavailable(err))

	err = storageError("Do", &pgconn.PgError{Code: "08006"})
	assert.True(t, shared.IsStorageUnavailable(err))

	// Domain errors pass through untouched.
	err = storageError("Do", shared.ErrAlreadyAwarded)
	assert.Same(t, shared.ErrAlreadyAwarded, err)

	plain := errors.New("syntax error")
	err = storageError("Do", plain)
	assert.ErrorIs(t, err, plain)
	assert.False(t, shared.IsStorageUnavailable(err))
}

func TestGetMigrations(t *testing.T) {
	migrations := GetMigrations()
	require.Len(t, migrations, 3)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	assert.Contains(t, migrations[2].UpSQL, "CONSTRAINT single_outcome CHECK (NOT (task_verified AND task_rejected))")
	assert.Contains(t, migrations[2].UpSQL, "UNIQUE (student_id, task_id, date_completed)")
}
