package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/bankaccount"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/category"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
)

var tracer = otel.Tracer("transaction")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	GetTransaction(ctx context.Context, profileID, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, profileID uuid.UUID, filter ListFilter) ([]*Transaction, error)

	Begin(ctx context.Context) (UnitOfWork, error)
	// BeginImport serializes statement imports into one card.
	BeginImport(ctx context.Context, cardID uuid.UUID) (UnitOfWork, error)
}

// UnitOfWork groups writes that must commit or roll back together.
type UnitOfWork interface {
	GetOrCreateInvoice(ctx context.Context, cardID uuid.UUID, period calendar.Period) (*creditcard.Invoice, error)
	GetInvoice(ctx context.Context, profileID, invoiceID uuid.UUID) (*creditcard.Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error

	CreateTransactions(ctx context.Context, txs []*Transaction) error
	UpdateTransactions(ctx context.Context, txs []*Transaction) error
	DeleteTransactions(ctx context.Context, ids []uuid.UUID) error
	ListInvoiceTransactions(ctx context.Context, invoiceID uuid.UUID) ([]*Transaction, error)
	// LockGroup locks and returns the members of an installment purchase.
	LockGroup(ctx context.Context, groupID uuid.UUID) ([]*Transaction, error)
	FindDuplicates(ctx context.Context, cardID uuid.UUID, lines []StatementLine) ([]*Transaction, error)

	Commit() error
	Rollback() error
}

type Cards interface {
	GetCard(ctx context.Context, profileID, id uuid.UUID) (*creditcard.CreditCard, error)
}

type BankAccounts interface {
	Get(ctx context.Context, profileID, id uuid.UUID) (*bankaccount.Account, error)
	GetDefault(ctx context.Context, profileID uuid.UUID) (*bankaccount.Account, error)
}

type Categories interface {
	Get(ctx context.Context, profileID, id uuid.UUID) (*category.Category, error)
}

// Dependencies are the read-only collaborators used to check ownership.
type Dependencies struct {
	Cards        Cards
	BankAccounts BankAccounts
	Categories   Categories
}

type Service struct {
	repo       Repository
	cards      Cards
	accounts   BankAccounts
	categories Categories
	publisher  events.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewService(repo Repository, deps Dependencies, publisher events.Publisher, logger *zap.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:       repo,
		cards:      deps.Cards,
		accounts:   deps.BankAccounts,
		categories: deps.Categories,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock replaces the clock used to derive statuses in listings.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	ProfileID     uuid.UUID
	CategoryID    uuid.UUID
	Description   string
	Amount        decimal.Decimal
	Date          time.Time
	SourceType    SourceType
	BankAccountID *uuid.UUID
	CreditCardID  *uuid.UUID

	IsInstallment     bool
	InstallmentNumber *int
	TotalInstallments *int

	OriginalTransactionID        *string
	OriginalStatementDescription *string
	Attachment                   *string
}

type ListFilter struct {
	CategoryID      *uuid.UUID
	SourceType      *SourceType
	Type            *Type
	Status          *Status
	InvoiceID       *uuid.UUID
	CreditCardID    *uuid.UUID
	PurchaseGroupID *uuid.UUID
	StartDate       *time.Time
	EndDate         *time.Time
	Search          string
	// Today anchors the status filter; zero means now.
	Today time.Time
}

const maxDescriptionLength = 255

// MaxInstallments caps the installments of one purchase at ten years of
// monthly invoices.
const MaxInstallments = 120

func validateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return apperr.Validation("description", "Description is required.")
	}

	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return apperr.Validation("description", "Description must have at most 255 characters.")
	}

	return nil
}

// validateInstallmentDescription checks the description as rendered with the
// widest suffix the group can carry.
func validateInstallmentDescription(description string, total int) error {
	if err := validateDescription(description); err != nil {
		return err
	}

	if utf8.RuneCountInString(InstallmentDescription(description, total, total)) > maxDescriptionLength {
		return apperr.Validation("description", fmt.Sprintf("Description is too long for %d installments.", total))
	}

	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount", "Amount must be greater than zero.")
	}

	return nil
}

// Create records a transaction. A credit-card purchase flagged as an
// installment purchase is split into TotalInstallments transactions over
// consecutive invoices, all created atomically; the first element of the
// result is the first installment.
func (s *Service) Create(ctx context.Context, params CreateParams) (txs []*Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("source_type", string(params.SourceType)),
		attribute.Bool("is_installment", params.IsInstallment),
	)

	done := s.metrics.Track("create_transaction")
	defer func() { done(err) }()

	if err := validateDescription(params.Description); err != nil {
		return nil, err
	}

	if err := validateAmount(params.Amount); err != nil {
		return nil, err
	}

	if params.Date.IsZero() {
		return nil, apperr.Validation("transaction_date", "Transaction date is required.")
	}

	params.Date = calendar.Date(params.Date)

	cat, err := s.ownedCategory(ctx, params.ProfileID, params.CategoryID)
	if err != nil {
		return nil, err
	}

	switch params.SourceType {
	case SourceBankAccount:
		txs, err = s.createBankTransaction(ctx, params, cat)
	case SourceCreditCard:
		txs, err = s.createCardTransaction(ctx, params, cat)
	default:
		return nil, apperr.Validation("source_type", "Source type must be BANK_ACCOUNT or CREDIT_CARD.")
	}

	if err != nil {
		return nil, err
	}

	first := txs[0]
	if first.IsInstallment {
		s.metrics.ObserveInstallments(len(txs))
		s.logger.Info("installment purchase created",
			zap.Stringer("profile_id", first.ProfileID),
			zap.Stringer("purchase_group_id", *first.PurchaseGroupID),
			zap.Int("installments", len(txs)),
		)
		s.publisher.Publish(ctx, events.InstallmentPurchaseCreated, events.Payload{
			"profile_id":        first.ProfileID,
			"purchase_group_id": *first.PurchaseGroupID,
			"credit_card_id":    *first.CreditCardID,
			"installments":      len(txs),
			"amount":            first.Amount.StringFixed(2),
		})

		return txs, nil
	}

	s.logger.Info("transaction created",
		zap.Stringer("profile_id", first.ProfileID),
		zap.Stringer("transaction_id", first.ID),
		zap.String("source_type", string(first.SourceType)),
	)
	s.publisher.Publish(ctx, events.TransactionCreated, events.Payload{
		"profile_id":     first.ProfileID,
		"transaction_id": first.ID,
		"source_type":    string(first.SourceType),
		"type":           string(first.Type),
		"amount":         first.Amount.StringFixed(2),
	})

	return txs, nil
}

func (s *Service) createBankTransaction(ctx context.Context, params CreateParams, cat *category.Category) ([]*Transaction, error) {
	if params.CreditCardID != nil {
		return nil, apperr.Validation("credit_card", "Credit card must be empty for bank account transactions.")
	}

	if params.IsInstallment || params.InstallmentNumber != nil || params.TotalInstallments != nil {
		return nil, apperr.Validation("is_installment", "Installments are only allowed for credit card transactions.")
	}

	account, err := s.resolveBankAccount(ctx, params.ProfileID, params.BankAccountID)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		ProfileID:     params.ProfileID,
		CategoryID:    cat.ID,
		Description:   params.Description,
		Amount:        params.Amount,
		Date:          params.Date,
		Type:          Type(cat.Type),
		SourceType:    SourceBankAccount,
		BankAccountID: &account.ID,

		OriginalTransactionID:        params.OriginalTransactionID,
		OriginalStatementDescription: params.OriginalStatementDescription,
		Attachment:                   params.Attachment,
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer uow.Rollback()

	if err := uow.CreateTransactions(ctx, []*Transaction{tx}); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return []*Transaction{tx}, nil
}

func (s *Service) createCardTransaction(ctx context.Context, params CreateParams, cat *category.Category) ([]*Transaction, error) {
	if params.BankAccountID != nil {
		return nil, apperr.Validation("bank_account", "Bank account must be empty for credit card transactions.")
	}

	if params.CreditCardID == nil {
		return nil, apperr.Validation("credit_card", "Credit card is required for credit card transactions.")
	}

	if cat.Type != category.TypeExpense {
		return nil, apperr.Validation("category", "Credit card transactions must use an expense category.")
	}

	card, err := s.ownedCard(ctx, params.ProfileID, *params.CreditCardID)
	if err != nil {
		return nil, err
	}

	if !card.Covers(params.Amount) {
		return nil, apperr.Validation("credit_card", "Credit card limit is not enough.")
	}

	if err := validateInstallmentParams(params); err != nil {
		return nil, err
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer uow.Rollback()

	var txs []*Transaction

	if params.IsInstallment {
		txs, err = SplitIntoInstallments(ctx, Purchase{
			ProfileID:    params.ProfileID,
			CategoryID:   cat.ID,
			Type:         TypeExpense,
			Card:         card,
			Amount:       params.Amount,
			Description:  params.Description,
			Date:         params.Date,
			Installments: *params.TotalInstallments,

			OriginalTransactionID:        params.OriginalTransactionID,
			OriginalStatementDescription: params.OriginalStatementDescription,
			Attachment:                   params.Attachment,
		}, uow.GetOrCreateInvoice)
		if err != nil {
			return nil, err
		}
	} else {
		inv, err := uow.GetOrCreateInvoice(ctx, card.ID, card.PeriodFor(params.Date))
		if err != nil {
			return nil, fmt.Errorf("get or create invoice: %w", err)
		}

		txs = []*Transaction{newCardTransaction(params.ProfileID, cat.ID, card, inv, params.Description, params.Amount, params.Date)}
		txs[0].OriginalTransactionID = params.OriginalTransactionID
		txs[0].OriginalStatementDescription = params.OriginalStatementDescription
		txs[0].Attachment = params.Attachment
	}

	if err := uow.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return txs, nil
}

func validateInstallmentParams(params CreateParams) error {
	if !params.IsInstallment {
		if params.InstallmentNumber != nil || params.TotalInstallments != nil {
			return apperr.Validation("is_installment", "Installment fields require is_installment.")
		}

		return nil
	}

	if params.TotalInstallments == nil || *params.TotalInstallments < 1 {
		return apperr.Validation("total_installments", "Total installments must be at least 1.")
	}

	if *params.TotalInstallments > MaxInstallments {
		return apperr.Validation("total_installments", fmt.Sprintf("Total installments must be at most %d.", MaxInstallments))
	}

	// Purchases always start at the first installment; a given number only
	// has to be consistent with the total.
	if n := params.InstallmentNumber; n != nil && (*n < 1 || *n > *params.TotalInstallments) {
		return apperr.Validation("installment_number", "Installment number must be between 1 and total installments.")
	}

	return validateInstallmentDescription(params.Description, *params.TotalInstallments)
}

func newCardTransaction(profileID, categoryID uuid.UUID, card *creditcard.CreditCard, inv *creditcard.Invoice, description string, amount decimal.Decimal, date time.Time) *Transaction {
	cardID := card.ID

	return &Transaction{
		ProfileID:    profileID,
		CategoryID:   categoryID,
		Description:  description,
		Amount:       amount,
		Date:         date,
		Type:         TypeExpense,
		SourceType:   SourceCreditCard,
		CreditCardID: &cardID,
		InvoiceID:    &inv.ID,
		Invoice:      invoiceRef(inv),

		PaymentBankAccountID: inv.BankAccountID,
		PaymentDate:          inv.PaymentDate,
	}
}

func (s *Service) Get(ctx context.Context, profileID, id uuid.UUID) (*Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Get")
	defer span.End()

	return s.repo.GetTransaction(ctx, profileID, id)
}

func (s *Service) List(ctx context.Context, profileID uuid.UUID, filter ListFilter) ([]*Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.List")
	defer span.End()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Validation("status", "Status must be PAID, PENDING or OVERDUE.")
	}

	if filter.Today.IsZero() {
		filter.Today = calendar.Date(s.now())
	}

	return s.repo.ListTransactions(ctx, profileID, filter)
}

// Today is the date statuses are derived against.
func (s *Service) Today() time.Time {
	return calendar.Date(s.now())
}

func (s *Service) ownedCategory(ctx context.Context, profileID, id uuid.UUID) (*category.Category, error) {
	cat, err := s.categories.Get(ctx, profileID, id)
	if err != nil {
		if errors.Is(err, category.ErrNotFound) {
			return nil, apperr.Validation("category", "Category does not belong to your profile.")
		}

		return nil, fmt.Errorf("getting category: %w", err)
	}

	return cat, nil
}

func (s *Service) ownedCard(ctx context.Context, profileID, id uuid.UUID) (*creditcard.CreditCard, error) {
	card, err := s.cards.GetCard(ctx, profileID, id)
	if err != nil {
		if errors.Is(err, creditcard.ErrCardNotFound) {
			return nil, apperr.Validation("credit_card", "Credit card does not belong to your profile.")
		}

		return nil, fmt.Errorf("getting credit card: %w", err)
	}

	return card, nil
}

// resolveBankAccount returns the given account when owned, or the profile's
// default account when none is given.
func (s *Service) resolveBankAccount(ctx context.Context, profileID uuid.UUID, id *uuid.UUID) (*bankaccount.Account, error) {
	if id == nil {
		account, err := s.accounts.GetDefault(ctx, profileID)
		if err != nil {
			if errors.Is(err, bankaccount.ErrNotFound) {
				return nil, apperr.Validation("bank_account", "No bank account given and no default bank account found.")
			}

			return nil, fmt.Errorf("getting default bank account: %w", err)
		}

		return account, nil
	}

	account, err := s.accounts.Get(ctx, profileID, *id)
	if err != nil {
		if errors.Is(err, bankaccount.ErrNotFound) {
			return nil, apperr.Validation("bank_account", "Bank account does not belong to your profile.")
		}

		return nil, fmt.Errorf("getting bank account: %w", err)
	}

	return account, nil
}
