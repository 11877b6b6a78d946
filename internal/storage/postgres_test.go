package storage

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslatePostgresGetError_NoRows(t *testing.T) {
	assert.ErrorIs(t, translatePostgresGetError(pgx.ErrNoRows), ErrKeyNotFound)

	wrapped := fmt.Errorf("scan value: %w", pgx.ErrNoRows)
	assert.ErrorIs(t, translatePostgresGetError(wrapped), ErrKeyNotFound)
}

func TestTranslatePostgresError_DiskFull(t *testing.T) {
	full := &pgconn.PgError{Code: pgErrDiskFull}
	assert.ErrorIs(t, translatePostgresError(full), ErrQuotaExceeded)
	assert.ErrorIs(t, translatePostgresGetError(full), ErrQuotaExceeded)
}

func TestTranslatePostgresError_PassesThroughOtherErrors(t *testing.T) {
	other := &pgconn.PgError{Code: "42601"}
	assert.Equal(t, error(other), translatePostgresError(other))
	assert.NoError(t, translatePostgresError(nil))
}
