// Package databasetest opens a migrated Postgres database for store tests.
// Tests using it are skipped unless LEDGER_TEST_DATABASE_URL is set.
package databasetest

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/ledger/internal/database"
)

const EnvURL = "LEDGER_TEST_DATABASE_URL"

// Open connects to the test database and applies all migrations.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set, skipping store test", EnvURL)
	}

	db, err := database.New(url, 10)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))

	return db
}

// Fixture is a fresh profile owning one bank account, one expense category
// and one card closing on the 5th and due on the 15th.
type Fixture struct {
	ProfileID     uuid.UUID
	BankAccountID uuid.UUID
	CategoryID    uuid.UUID
	CardID        uuid.UUID
}

// Seed inserts a Fixture and removes everything the profile owns when the
// test ends.
func Seed(t testing.TB, db *sql.DB) Fixture {
	t.Helper()

	ctx := context.Background()
	f := Fixture{ProfileID: uuid.New()}

	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO bank_accounts (profile_id, name, initial_balance, is_default) VALUES ($1, 'Checking', 1000, TRUE) RETURNING id`,
		f.ProfileID,
	).Scan(&f.BankAccountID))

	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO categories (profile_id, name, type) VALUES ($1, 'Groceries', 'expense') RETURNING id`,
		f.ProfileID,
	).Scan(&f.CategoryID))

	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO credit_cards (profile_id, name, credit_limit, closing_day, due_day, brand)
		 VALUES ($1, 'Visa', 5000, 5, 15, 'VISA') RETURNING id`,
		f.ProfileID,
	).Scan(&f.CardID))

	t.Cleanup(func() {
		for _, table := range []string{"transactions", "credit_cards", "bank_accounts", "categories"} {
			db.ExecContext(context.Background(), `DELETE FROM `+table+` WHERE profile_id = $1`, f.ProfileID)
		}
	})

	return f
}
