package creditcard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/bankaccount"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
)

var tracer = otel.Tracer("creditcard")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=creditcard
type Repository interface {
	CreateCard(ctx context.Context, card *CreditCard) error
	GetCard(ctx context.Context, profileID, id uuid.UUID) (*CreditCard, error)
	ListCards(ctx context.Context, profileID uuid.UUID) ([]*CreditCard, error)
	UpdateCard(ctx context.Context, card *CreditCard) error
	// DeleteCard removes the card together with its invoices and their
	// transactions.
	DeleteCard(ctx context.Context, profileID, id uuid.UUID) error

	GetInvoice(ctx context.Context, profileID, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, profileID, cardID uuid.UUID) ([]*Invoice, error)
	ListUnpaidInvoices(ctx context.Context, dueBefore time.Time) ([]*Invoice, error)

	// BeginPayment locks the invoice for the rest of the returned unit.
	BeginPayment(ctx context.Context, profileID, invoiceID uuid.UUID) (PaymentTx, error)
}

// PaymentTx is a locked invoice whose paid state can be flipped together
// with the payment fields of every transaction it holds.
type PaymentTx interface {
	Invoice() *Invoice
	MarkPaid(ctx context.Context, bankAccountID uuid.UUID, paymentDate time.Time) error
	MarkOpen(ctx context.Context) error
	Commit() error
	Rollback() error
}

type BankAccounts interface {
	Get(ctx context.Context, profileID, id uuid.UUID) (*bankaccount.Account, error)
	CurrentBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
}

type Service struct {
	repo      Repository
	accounts  BankAccounts
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewService(repo Repository, accounts BankAccounts, publisher events.Publisher, logger *zap.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:      repo,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for default payment dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateCardParams struct {
	ProfileID      uuid.UUID
	Name           string
	CreditLimit    decimal.Decimal
	AdditionalInfo string
	ClosingDay     int
	DueDay         int
	Brand          Brand
}

func (s *Service) CreateCard(ctx context.Context, params CreateCardParams) (card *CreditCard, err error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.CreateCard")
	defer span.End()

	done := s.metrics.Track("create_card")
	defer func() { done(err) }()

	card = &CreditCard{
		ProfileID:      params.ProfileID,
		Name:           params.Name,
		CreditLimit:    params.CreditLimit,
		AdditionalInfo: params.AdditionalInfo,
		ClosingDay:     params.ClosingDay,
		DueDay:         params.DueDay,
		Brand:          params.Brand,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("credit card created",
		zap.Stringer("profile_id", card.ProfileID),
		zap.Stringer("card_id", card.ID),
		zap.Int("closing_day", card.ClosingDay),
		zap.Int("due_day", card.DueDay),
	)

	return card, nil
}

func (s *Service) GetCard(ctx context.Context, profileID, id uuid.UUID) (*CreditCard, error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.GetCard")
	defer span.End()

	return s.repo.GetCard(ctx, profileID, id)
}

func (s *Service) ListCards(ctx context.Context, profileID uuid.UUID) ([]*CreditCard, error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.ListCards")
	defer span.End()

	return s.repo.ListCards(ctx, profileID)
}

// UpdateCardParams holds the card fields to change; nil fields are kept.
type UpdateCardParams struct {
	Name           *string
	CreditLimit    *decimal.Decimal
	AdditionalInfo *string
	ClosingDay     *int
	DueDay         *int
	Brand          *Brand
}

// UpdateCard edits a card and re-validates it as a whole, so a change to one
// of the days is checked against the other. Existing invoices keep the due
// dates they were created with.
func (s *Service) UpdateCard(ctx context.Context, profileID, id uuid.UUID, params UpdateCardParams) (card *CreditCard, err error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.UpdateCard")
	defer span.End()

	done := s.metrics.Track("update_card")
	defer func() { done(err) }()

	card, err = s.repo.GetCard(ctx, profileID, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		card.Name = *params.Name
	}

	if params.CreditLimit != nil {
		card.CreditLimit = *params.CreditLimit
	}

	if params.AdditionalInfo != nil {
		card.AdditionalInfo = *params.AdditionalInfo
	}

	if params.ClosingDay != nil {
		card.ClosingDay = *params.ClosingDay
	}

	if params.DueDay != nil {
		card.DueDay = *params.DueDay
	}

	if params.Brand != nil {
		card.Brand = *params.Brand
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("credit card updated",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("card_id", id),
	)

	return card, nil
}

// DeleteCard removes a card with all of its invoices and charges.
func (s *Service) DeleteCard(ctx context.Context, profileID, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.DeleteCard")
	defer span.End()

	done := s.metrics.Track("delete_card")
	defer func() { done(err) }()

	if err := s.repo.DeleteCard(ctx, profileID, id); err != nil {
		return err
	}

	s.logger.Info("credit card deleted",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("card_id", id),
	)

	return nil
}

func (s *Service) GetInvoice(ctx context.Context, profileID, id uuid.UUID) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.GetInvoice")
	defer span.End()

	return s.repo.GetInvoice(ctx, profileID, id)
}

// ListInvoices returns the card's invoices, newest period first.
func (s *Service) ListInvoices(ctx context.Context, profileID, cardID uuid.UUID) ([]*Invoice, error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.ListInvoices")
	defer span.End()

	if _, err := s.repo.GetCard(ctx, profileID, cardID); err != nil {
		return nil, err
	}

	return s.repo.ListInvoices(ctx, profileID, cardID)
}

// ListUnpaidInvoices returns unpaid invoices of every profile due before
// the given date.
func (s *Service) ListUnpaidInvoices(ctx context.Context, dueBefore time.Time) ([]*Invoice, error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.ListUnpaidInvoices")
	defer span.End()

	return s.repo.ListUnpaidInvoices(ctx, calendar.Date(dueBefore))
}

type PaymentParams struct {
	BankAccountID uuid.UUID
	// PaymentDate defaults to today.
	PaymentDate *time.Time
}

// PayInvoice marks the invoice paid from a bank account the profile owns and
// stamps the same account and date on every transaction of the invoice.
// Paying an already paid invoice is a conflict and changes nothing.
func (s *Service) PayInvoice(ctx context.Context, profileID, invoiceID uuid.UUID, params PaymentParams) (inv *Invoice, err error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.PayInvoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice_id", invoiceID.String()),
		attribute.String("bank_account_id", params.BankAccountID.String()),
	)

	done := s.metrics.Track("pay_invoice")
	defer func() { done(err) }()

	ptx, err := s.repo.BeginPayment(ctx, profileID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer ptx.Rollback()

	inv = ptx.Invoice()
	if inv.IsPaid() {
		return nil, ErrAlreadyPaid
	}

	if _, err := s.accounts.Get(ctx, profileID, params.BankAccountID); err != nil {
		if errors.Is(err, bankaccount.ErrNotFound) {
			return nil, apperr.Validation("bank_account", "Bank account does not belong to your profile.")
		}

		return nil, fmt.Errorf("getting bank account: %w", err)
	}

	balance, err := s.accounts.CurrentBalance(ctx, params.BankAccountID)
	if err != nil {
		return nil, fmt.Errorf("getting balance: %w", err)
	}

	if balance.LessThan(inv.TotalAmount) {
		return nil, apperr.Validation("bank_account", "Bank account balance is not enough to pay this invoice.")
	}

	paymentDate := calendar.Date(s.now())
	if params.PaymentDate != nil {
		paymentDate = calendar.Date(*params.PaymentDate)
	}

	if err := ptx.MarkPaid(ctx, params.BankAccountID, paymentDate); err != nil {
		return nil, fmt.Errorf("marking invoice paid: %w", err)
	}

	if err := ptx.Commit(); err != nil {
		return nil, fmt.Errorf("committing payment: %w", err)
	}

	accountID := params.BankAccountID
	inv.BankAccountID = &accountID
	inv.PaymentDate = &paymentDate

	s.logger.Info("invoice paid",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("invoice_id", inv.ID),
		zap.Stringer("bank_account_id", accountID),
		zap.String("total_amount", inv.TotalAmount.StringFixed(2)),
	)

	s.publisher.Publish(ctx, events.InvoicePaid, events.Payload{
		"profile_id":      profileID,
		"invoice_id":      inv.ID,
		"credit_card_id":  inv.CreditCardID,
		"bank_account_id": accountID,
		"payment_date":    paymentDate.Format(time.DateOnly),
		"total_amount":    inv.TotalAmount.StringFixed(2),
	})

	return inv, nil
}

// ReopenInvoice clears the payment of a paid invoice and of all its
// transactions.
func (s *Service) ReopenInvoice(ctx context.Context, profileID, invoiceID uuid.UUID) (inv *Invoice, err error) {
	ctx, span := tracer.Start(ctx, "CreditCardService.ReopenInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", invoiceID.String()))

	done := s.metrics.Track("reopen_invoice")
	defer func() { done(err) }()

	ptx, err := s.repo.BeginPayment(ctx, profileID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer ptx.Rollback()

	inv = ptx.Invoice()
	if !inv.IsPaid() {
		return nil, ErrNotPaid
	}

	if err := ptx.MarkOpen(ctx); err != nil {
		return nil, fmt.Errorf("reopening invoice: %w", err)
	}

	if err := ptx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reopen: %w", err)
	}

	inv.BankAccountID = nil
	inv.PaymentDate = nil

	s.logger.Info("invoice reopened",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("invoice_id", inv.ID),
	)

	s.publisher.Publish(ctx, events.InvoiceReopened, events.Payload{
		"profile_id":     profileID,
		"invoice_id":     inv.ID,
		"credit_card_id": inv.CreditCardID,
	})

	return inv, nil
}
