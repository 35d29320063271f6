package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	cardstore "github.com/MrJamesThe3rd/ledger/internal/creditcard/store"
	"github.com/MrJamesThe3rd/ledger/internal/database"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectTransactionColumns = `
	t.id, t.profile_id, t.category_id, t.description, t.amount, t.transaction_date, t.type, t.source_type,
	t.bank_account_id, t.credit_card_id, t.invoice_id,
	i.month, i.year, i.due_date, i.payment_date,
	t.is_installment, t.installment_number, t.total_installments, t.purchase_group_id, t.original_purchase_description,
	t.payment_bank_account_id, t.payment_date,
	t.original_transaction_id, t.original_statement_description, t.attachment,
	t.created_at, t.updated_at
`

const fromTransactions = `
	FROM transactions t
	LEFT JOIN invoices i ON t.invoice_id = i.id
`

// scanTransaction expects the column order of selectTransactionColumns.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction

	var typeStr, sourceStr string

	var invMonth, invYear sql.NullInt32

	var invDue, invPaid sql.NullTime

	var number, total sql.NullInt32

	if err := s.Scan(
		&tx.ID, &tx.ProfileID, &tx.CategoryID, &tx.Description, &tx.Amount, &tx.Date, &typeStr, &sourceStr,
		&tx.BankAccountID, &tx.CreditCardID, &tx.InvoiceID,
		&invMonth, &invYear, &invDue, &invPaid,
		&tx.IsInstallment, &number, &total, &tx.PurchaseGroupID, &tx.OriginalPurchaseDescription,
		&tx.PaymentBankAccountID, &tx.PaymentDate,
		&tx.OriginalTransactionID, &tx.OriginalStatementDescription, &tx.Attachment,
		&tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.Type = transaction.Type(typeStr)
	tx.SourceType = transaction.SourceType(sourceStr)

	if number.Valid {
		n := int(number.Int32)
		tx.InstallmentNumber = &n
	}

	if total.Valid {
		n := int(total.Int32)
		tx.TotalInstallments = &n
	}

	if tx.InvoiceID != nil && invDue.Valid {
		tx.Invoice = &transaction.InvoiceRef{
			ID:      *tx.InvoiceID,
			Month:   time.Month(invMonth.Int32),
			Year:    int(invYear.Int32),
			DueDate: invDue.Time,
		}

		if invPaid.Valid {
			paid := invPaid.Time
			tx.Invoice.PaymentDate = &paid
		}
	}

	return &tx, nil
}

func queryTransactions(ctx context.Context, q database.Querier, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, profileID, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.id = $1 AND t.profile_id = $2`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, profileID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.profile_id = $1`

	args := []any{profileID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		query += " AND " + strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args)))
	}

	if filter.CategoryID != nil {
		add("t.category_id = ?", *filter.CategoryID)
	}

	if filter.SourceType != nil {
		add("t.source_type = ?", *filter.SourceType)
	}

	if filter.Type != nil {
		add("t.type = ?", *filter.Type)
	}

	if filter.InvoiceID != nil {
		add("t.invoice_id = ?", *filter.InvoiceID)
	}

	if filter.CreditCardID != nil {
		add("t.credit_card_id = ?", *filter.CreditCardID)
	}

	if filter.PurchaseGroupID != nil {
		add("t.purchase_group_id = ?", *filter.PurchaseGroupID)
	}

	if filter.StartDate != nil {
		add("t.transaction_date >= ?", *filter.StartDate)
	}

	if filter.EndDate != nil {
		add("t.transaction_date <= ?", *filter.EndDate)
	}

	if filter.Search != "" {
		add(`(t.description ILIKE '%' || ? || '%'
			OR t.original_purchase_description ILIKE '%' || ? || '%'
			OR t.original_statement_description ILIKE '%' || ? || '%')`, filter.Search)
	}

	if filter.Status != nil {
		switch *filter.Status {
		case transaction.StatusPaid:
			query += " AND (t.source_type = 'BANK_ACCOUNT' OR i.payment_date IS NOT NULL)"
		case transaction.StatusPending:
			add("t.source_type = 'CREDIT_CARD' AND i.payment_date IS NULL AND i.due_date >= ?", filter.Today)
		case transaction.StatusOverdue:
			add("t.source_type = 'CREDIT_CARD' AND i.payment_date IS NULL AND i.due_date < ?", filter.Today)
		}
	}

	query += " ORDER BY t.transaction_date DESC, t.created_at DESC, t.installment_number ASC"

	return queryTransactions(ctx, s.db, query, args...)
}

// Begin opens a unit of work on a fresh database transaction.
func (s *Store) Begin(ctx context.Context) (transaction.UnitOfWork, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}

	return &unitOfWork{tx: dbTx}, nil
}

func importLockKey(cardID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("import:"))
	h.Write(cardID[:])

	return int64(h.Sum64())
}

// BeginImport holds a per-card advisory lock until the unit ends, so two
// imports into one card never check duplicates against each other's
// uncommitted rows.
func (s *Store) BeginImport(ctx context.Context, cardID uuid.UUID) (transaction.UnitOfWork, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", importLockKey(cardID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}

	return &unitOfWork{tx: dbTx}, nil
}

type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) Commit() error   { return u.tx.Commit() }
func (u *unitOfWork) Rollback() error { return u.tx.Rollback() }

func (u *unitOfWork) GetOrCreateInvoice(ctx context.Context, cardID uuid.UUID, period calendar.Period) (*creditcard.Invoice, error) {
	return cardstore.GetOrCreateInvoice(ctx, u.tx, cardID, period)
}

func (u *unitOfWork) GetInvoice(ctx context.Context, profileID, invoiceID uuid.UUID) (*creditcard.Invoice, error) {
	return cardstore.GetInvoice(ctx, u.tx, profileID, invoiceID)
}

func (u *unitOfWork) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID); err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}

	return nil
}

func (u *unitOfWork) CreateTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	query := `
		INSERT INTO transactions (
			profile_id, category_id, description, amount, transaction_date, type, source_type,
			bank_account_id, credit_card_id, invoice_id,
			is_installment, installment_number, total_installments, purchase_group_id, original_purchase_description,
			payment_bank_account_id, payment_date,
			original_transaction_id, original_statement_description, attachment, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW())
		RETURNING id, created_at
	`

	for _, tx := range txs {
		err := u.tx.QueryRowContext(ctx, query,
			tx.ProfileID,
			tx.CategoryID,
			tx.Description,
			tx.Amount,
			tx.Date,
			tx.Type,
			tx.SourceType,
			tx.BankAccountID,
			tx.CreditCardID,
			tx.InvoiceID,
			tx.IsInstallment,
			tx.InstallmentNumber,
			tx.TotalInstallments,
			tx.PurchaseGroupID,
			tx.OriginalPurchaseDescription,
			tx.PaymentBankAccountID,
			tx.PaymentDate,
			tx.OriginalTransactionID,
			tx.OriginalStatementDescription,
			tx.Attachment,
		).Scan(&tx.ID, &tx.CreatedAt)
		if err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}
	}

	return nil
}

func (u *unitOfWork) UpdateTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET category_id = $1, description = $2, amount = $3, transaction_date = $4, type = $5,
			bank_account_id = $6, invoice_id = $7,
			installment_number = $8, total_installments = $9, original_purchase_description = $10,
			payment_bank_account_id = $11, payment_date = $12, attachment = $13,
			updated_at = NOW()
		WHERE id = $14
		RETURNING updated_at
	`

	for _, tx := range txs {
		err := u.tx.QueryRowContext(ctx, query,
			tx.CategoryID,
			tx.Description,
			tx.Amount,
			tx.Date,
			tx.Type,
			tx.BankAccountID,
			tx.InvoiceID,
			tx.InstallmentNumber,
			tx.TotalInstallments,
			tx.OriginalPurchaseDescription,
			tx.PaymentBankAccountID,
			tx.PaymentDate,
			tx.Attachment,
			tx.ID,
		).Scan(&tx.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return transaction.ErrNotFound
			}

			return fmt.Errorf("updating transaction: %w", err)
		}
	}

	return nil
}

func (u *unitOfWork) DeleteTransactions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	if _, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ANY($1::uuid[])`, strIDs); err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}

	return nil
}

func (u *unitOfWork) ListInvoiceTransactions(ctx context.Context, invoiceID uuid.UUID) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.invoice_id = $1
		ORDER BY t.transaction_date ASC`

	return queryTransactions(ctx, u.tx, query, invoiceID)
}

func groupLockKey(groupID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("purchase_group"))
	h.Write(groupID[:])

	return int64(h.Sum64())
}

// LockGroup serializes edits of one installment purchase: the advisory lock
// covers members inserted by concurrent writers, the row locks cover the
// members read here.
func (u *unitOfWork) LockGroup(ctx context.Context, groupID uuid.UUID) ([]*transaction.Transaction, error) {
	if _, err := u.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", groupLockKey(groupID)); err != nil {
		return nil, fmt.Errorf("acquiring group lock: %w", err)
	}

	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.purchase_group_id = $1
		ORDER BY t.installment_number ASC
		FOR UPDATE OF t`

	return queryTransactions(ctx, u.tx, query, groupID)
}

func (u *unitOfWork) FindDuplicates(ctx context.Context, cardID uuid.UUID, lines []transaction.StatementLine) ([]*transaction.Transaction, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	type lookupKey struct {
		Date           string
		Amount         string
		RawDescription string
	}

	minDate := lines[0].Date
	maxDate := lines[0].Date
	keySet := make(map[lookupKey]struct{}, len(lines))

	for _, l := range lines {
		if l.Date.Before(minDate) {
			minDate = l.Date
		}

		if l.Date.After(maxDate) {
			maxDate = l.Date
		}

		keySet[lookupKey{
			Date:           l.Date.Format(time.DateOnly),
			Amount:         l.Amount.StringFixed(2),
			RawDescription: l.RawDescription,
		}] = struct{}{}
	}

	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.credit_card_id = $1 AND t.transaction_date >= $2 AND t.transaction_date <= $3
		ORDER BY t.transaction_date ASC`

	candidates, err := queryTransactions(ctx, u.tx, query, cardID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("finding duplicates: %w", err)
	}

	var duplicates []*transaction.Transaction

	for _, tx := range candidates {
		if tx.OriginalStatementDescription == nil {
			continue
		}

		k := lookupKey{
			Date:           tx.Date.Format(time.DateOnly),
			Amount:         tx.Amount.StringFixed(2),
			RawDescription: *tx.OriginalStatementDescription,
		}

		if _, found := keySet[k]; found {
			duplicates = append(duplicates, tx)
		}
	}

	return duplicates, nil
}
