package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	for _, n := range names {
		assert.True(t, strings.HasSuffix(n, ".sql"))
	}
}

func TestMigrationsCreateCoreTables(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)

	var all strings.Builder
	for _, n := range names {
		raw, err := migrationFiles.ReadFile("migrations/" + n)
		require.NoError(t, err)
		all.Write(raw)
	}
	sqlText := all.String()
	for _, table := range []string{"users", "password_reset_tokens", "kyc_cases", "kyc_history", "loans", "loan_repayments", "transactions", "audit_logs", "outbox_jobs"} {
		assert.Contains(t, sqlText, "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
}
