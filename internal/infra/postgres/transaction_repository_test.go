package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapWriteError(t *testing.T) {
	dup := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_transactions_idempotency_key"})
	err := mapWriteError("create transaction", dup)
	assert.True(t, errors.Is(err, domain.ErrDuplicateRequest))

	other := &pgconn.PgError{Code: "23514", ConstraintName: "chk_transactions_amount"}
	err = mapWriteError("create transaction", other)
	assert.False(t, errors.Is(err, domain.ErrDuplicateRequest))
	assert.Contains(t, err.Error(), "failed to create transaction")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolation}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, files)

	script, err := migrationsFS.ReadFile("migrations/0001_transactions.up.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(script), "uq_transactions_idempotency_key")
	assert.Contains(t, string(script), "ux_transactions_reversal_of")
}
