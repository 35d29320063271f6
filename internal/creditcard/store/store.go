package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/database"
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

const selectCardColumns = `
	c.id, c.profile_id, c.name, c.credit_limit, c.additional_info,
	c.closing_day, c.due_day, c.brand, c.created_at, c.updated_at
`

func scanCard(s scanner) (*creditcard.CreditCard, error) {
	var c creditcard.CreditCard

	var brand string

	if err := s.Scan(
		&c.ID, &c.ProfileID, &c.Name, &c.CreditLimit, &c.AdditionalInfo,
		&c.ClosingDay, &c.DueDay, &brand, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.Brand = creditcard.Brand(brand)

	return &c, nil
}

// selectInvoiceColumns expects invoices aliased i and credit_cards aliased c.
// The total is aggregated on read; no column stores it.
const selectInvoiceColumns = `
	i.id, i.credit_card_id, c.profile_id, c.name, i.month, i.year, i.due_date,
	i.bank_account_id, i.payment_date,
	COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.invoice_id = i.id), 0) AS total_amount,
	i.created_at, i.updated_at
`

func scanInvoice(s scanner) (*creditcard.Invoice, error) {
	var inv creditcard.Invoice

	var month int

	if err := s.Scan(
		&inv.ID, &inv.CreditCardID, &inv.ProfileID, &inv.CardName, &month, &inv.Year, &inv.DueDate,
		&inv.BankAccountID, &inv.PaymentDate, &inv.TotalAmount,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Month = time.Month(month)

	return &inv, nil
}

func (s *Store) CreateCard(ctx context.Context, card *creditcard.CreditCard) error {
	query := `
		INSERT INTO credit_cards (profile_id, name, credit_limit, additional_info, closing_day, due_day, brand, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		card.ProfileID,
		card.Name,
		card.CreditLimit,
		card.AdditionalInfo,
		card.ClosingDay,
		card.DueDay,
		card.Brand,
	).Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "credit_cards_profile_name_key") {
			return creditcard.ErrDuplicateName
		}

		return fmt.Errorf("creating credit card: %w", err)
	}

	return nil
}

func (s *Store) GetCard(ctx context.Context, profileID, id uuid.UUID) (*creditcard.CreditCard, error) {
	return GetCard(ctx, s.db, profileID, id)
}

// GetCard loads a card owned by profileID using q, which may be a
// transaction.
func GetCard(ctx context.Context, q database.Querier, profileID, id uuid.UUID) (*creditcard.CreditCard, error) {
	query := `SELECT ` + selectCardColumns + ` FROM credit_cards c WHERE c.id = $1 AND c.profile_id = $2`

	card, err := scanCard(q.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, creditcard.ErrCardNotFound
		}

		return nil, fmt.Errorf("getting credit card: %w", err)
	}

	return card, nil
}

func (s *Store) ListCards(ctx context.Context, profileID uuid.UUID) ([]*creditcard.CreditCard, error) {
	query := `SELECT ` + selectCardColumns + ` FROM credit_cards c WHERE c.profile_id = $1 ORDER BY c.name ASC`

	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing credit cards: %w", err)
	}
	defer rows.Close()

	var cards []*creditcard.CreditCard

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credit card: %w", err)
		}

		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credit cards: %w", err)
	}

	return cards, nil
}

func (s *Store) UpdateCard(ctx context.Context, card *creditcard.CreditCard) error {
	query := `
		UPDATE credit_cards
		SET name = $1, credit_limit = $2, additional_info = $3, closing_day = $4, due_day = $5, brand = $6,
			updated_at = NOW()
		WHERE id = $7 AND profile_id = $8
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		card.Name,
		card.CreditLimit,
		card.AdditionalInfo,
		card.ClosingDay,
		card.DueDay,
		card.Brand,
		card.ID,
		card.ProfileID,
	).Scan(&card.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return creditcard.ErrCardNotFound
		case database.IsUniqueViolation(err, "credit_cards_profile_name_key"):
			return creditcard.ErrDuplicateName
		}

		return fmt.Errorf("updating credit card: %w", err)
	}

	return nil
}

// DeleteCard relies on the foreign keys to cascade to invoices and
// transactions.
func (s *Store) DeleteCard(ctx context.Context, profileID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credit_cards WHERE id = $1 AND profile_id = $2`, id, profileID)
	if err != nil {
		return fmt.Errorf("deleting credit card: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting credit card: %w", err)
	}

	if n == 0 {
		return creditcard.ErrCardNotFound
	}

	return nil
}

func (s *Store) GetInvoice(ctx context.Context, profileID, id uuid.UUID) (*creditcard.Invoice, error) {
	return GetInvoice(ctx, s.db, profileID, id)
}

// GetInvoice loads an invoice whose card belongs to profileID.
func GetInvoice(ctx context.Context, q database.Querier, profileID, id uuid.UUID) (*creditcard.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN credit_cards c ON c.id = i.credit_card_id
		WHERE i.id = $1 AND c.profile_id = $2`

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, creditcard.ErrInvoiceNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, profileID, cardID uuid.UUID) ([]*creditcard.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN credit_cards c ON c.id = i.credit_card_id
		WHERE i.credit_card_id = $1 AND c.profile_id = $2
		ORDER BY i.year DESC, i.month DESC`

	return s.queryInvoices(ctx, query, cardID, profileID)
}

func (s *Store) ListUnpaidInvoices(ctx context.Context, dueBefore time.Time) ([]*creditcard.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN credit_cards c ON c.id = i.credit_card_id
		WHERE i.payment_date IS NULL AND i.due_date < $1
		ORDER BY i.due_date ASC`

	return s.queryInvoices(ctx, query, dueBefore)
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]*creditcard.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*creditcard.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}

	return invoices, nil
}

// GetOrCreateInvoice returns the card's invoice for period, inserting it when
// missing. Concurrent callers converge on one row through the unique
// (credit_card_id, month, year) constraint; the first writer's due date wins.
// The row is read FOR SHARE, so a charge added inside q waits for a pending
// pay or reopen and copies its committed payment state, and a later payment
// waits for q to commit before cascading.
func GetOrCreateInvoice(ctx context.Context, q database.Querier, cardID uuid.UUID, period calendar.Period) (*creditcard.Invoice, error) {
	insert := `
		INSERT INTO invoices (credit_card_id, month, year, due_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (credit_card_id, month, year) DO NOTHING
	`
	if _, err := q.ExecContext(ctx, insert, cardID, int(period.Month), period.Year, period.DueDate); err != nil {
		return nil, fmt.Errorf("inserting invoice: %w", err)
	}

	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		JOIN credit_cards c ON c.id = i.credit_card_id
		WHERE i.credit_card_id = $1 AND i.month = $2 AND i.year = $3
		FOR SHARE OF i`

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, cardID, int(period.Month), period.Year))
	if err != nil {
		return nil, fmt.Errorf("loading invoice: %w", err)
	}

	return inv, nil
}

type paymentTx struct {
	tx      *sql.Tx
	invoice *creditcard.Invoice
}

// BeginPayment opens a transaction holding a row lock on the invoice, so that
// concurrent pay and reopen requests for it are serialized.
func (s *Store) BeginPayment(ctx context.Context, profileID, invoiceID uuid.UUID) (creditcard.PaymentTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning payment tx: %w", err)
	}

	lock := `
		SELECT i.id
		FROM invoices i
		JOIN credit_cards c ON c.id = i.credit_card_id
		WHERE i.id = $1 AND c.profile_id = $2
		FOR UPDATE OF i
	`

	var id uuid.UUID
	if err := dbTx.QueryRowContext(ctx, lock, invoiceID, profileID).Scan(&id); err != nil {
		dbTx.Rollback()

		if errors.Is(err, sql.ErrNoRows) {
			return nil, creditcard.ErrInvoiceNotFound
		}

		return nil, fmt.Errorf("locking invoice: %w", err)
	}

	inv, err := GetInvoice(ctx, dbTx, profileID, invoiceID)
	if err != nil {
		dbTx.Rollback()
		return nil, err
	}

	return &paymentTx{tx: dbTx, invoice: inv}, nil
}

func (p *paymentTx) Invoice() *creditcard.Invoice { return p.invoice }
func (p *paymentTx) Commit() error                { return p.tx.Commit() }
func (p *paymentTx) Rollback() error              { return p.tx.Rollback() }

func (p *paymentTx) MarkPaid(ctx context.Context, bankAccountID uuid.UUID, paymentDate time.Time) error {
	return p.setPayment(ctx, &bankAccountID, &paymentDate)
}

func (p *paymentTx) MarkOpen(ctx context.Context) error {
	return p.setPayment(ctx, nil, nil)
}

func (p *paymentTx) setPayment(ctx context.Context, bankAccountID *uuid.UUID, paymentDate *time.Time) error {
	invoiceQuery := `
		UPDATE invoices
		SET bank_account_id = $1, payment_date = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := p.tx.ExecContext(ctx, invoiceQuery, bankAccountID, paymentDate, p.invoice.ID); err != nil {
		return fmt.Errorf("updating invoice payment: %w", err)
	}

	txQuery := `
		UPDATE transactions
		SET payment_bank_account_id = $1, payment_date = $2, updated_at = NOW()
		WHERE invoice_id = $3
	`
	if _, err := p.tx.ExecContext(ctx, txQuery, bankAccountID, paymentDate, p.invoice.ID); err != nil {
		return fmt.Errorf("updating transaction payments: %w", err)
	}

	return nil
}
