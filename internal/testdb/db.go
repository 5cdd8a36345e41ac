package testdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/tasktrack-api/internal/ciutil"
	"github.com/phrazzld/tasktrack-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds each setup step.
const TestTimeout = 10 * time.Second

// Open connects to the integration database, applies all migrations, empties
// the tables and registers cleanup. Without a configured URL the test is
// skipped locally and fails in CI.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := ciutil.DatabaseURL()
	if url == "" {
		if ciutil.IsCI() {
			t.Fatalf("integration database required in CI: set %s", ciutil.EnvTestDBURL)
		}
		t.Skipf("integration database not configured: set %s", ciutil.EnvTestDBURL)
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "failed to open database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	require.NoError(t, postgres.Migrate(ctx, db, "up", nil), "failed to run migrations")

	Reset(t, db)
	return db
}

// Reset empties every table and restarts ID sequences.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	_, err := db.ExecContext(ctx, "TRUNCATE tasks, users RESTART IDENTITY")
	require.NoError(t, err, "failed to reset tables")
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
