package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/ledger/internal/bankaccount"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectAccountColumns = `id, profile_id, name, initial_balance, is_default, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*bankaccount.Account, error) {
	var a bankaccount.Account
	if err := s.Scan(&a.ID, &a.ProfileID, &a.Name, &a.InitialBalance, &a.IsDefault, &a.CreatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}

// Get returns the account only when it belongs to profileID.
func (s *Store) Get(ctx context.Context, profileID, id uuid.UUID) (*bankaccount.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM bank_accounts WHERE id = $1 AND profile_id = $2`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bankaccount.ErrNotFound
		}

		return nil, fmt.Errorf("getting bank account: %w", err)
	}

	return a, nil
}

func (s *Store) GetDefault(ctx context.Context, profileID uuid.UUID) (*bankaccount.Account, error) {
	query := `SELECT ` + selectAccountColumns + `
		FROM bank_accounts
		WHERE profile_id = $1 AND is_default
		LIMIT 1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bankaccount.ErrNotFound
		}

		return nil, fmt.Errorf("getting default bank account: %w", err)
	}

	return a, nil
}

func (s *Store) List(ctx context.Context, profileID uuid.UUID) ([]*bankaccount.Account, error) {
	query := `SELECT ` + selectAccountColumns + `
		FROM bank_accounts
		WHERE profile_id = $1
		ORDER BY is_default DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*bankaccount.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bank account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bank accounts: %w", err)
	}

	return accounts, nil
}

// CurrentBalance is the initial balance plus bank incomes, minus bank
// expenses, minus the credit-card charges whose invoices were paid from the
// account.
func (s *Store) CurrentBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT a.initial_balance
			+ COALESCE((SELECT SUM(CASE WHEN t.type = 'income' THEN t.amount ELSE -t.amount END)
				FROM transactions t
				WHERE t.bank_account_id = a.id), 0)
			- COALESCE((SELECT SUM(t.amount)
				FROM transactions t
				WHERE t.payment_bank_account_id = a.id), 0)
		FROM bank_accounts a
		WHERE a.id = $1`

	var balance decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, bankaccount.ErrNotFound
		}

		return decimal.Zero, fmt.Errorf("computing balance: %w", err)
	}

	return balance, nil
}
