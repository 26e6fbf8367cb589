package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "uq_ledger_journal_link"}
	wrapped := fmt.Errorf("platform/db: commit tx: %w", &pgconn.PgError{Code: CodeSerializationFailure})

	require.True(t, IsUniqueViolation(unique, ""))
	require.True(t, IsUniqueViolation(unique, "uq_ledger_journal_link"))
	require.False(t, IsUniqueViolation(unique, "other"))
	require.True(t, IsSerializationFailure(wrapped))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: CodeDeadlockDetected}))
	require.False(t, IsSerializationFailure(errors.New("boom")))
	require.False(t, IsUniqueViolation(wrapped, ""))
}
