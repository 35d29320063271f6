package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
)

var ErrNotFound = apperr.NotFound("transaction")

// Type represents the type of transaction (income or expense).
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// SourceType says where the money moved: a bank account or a credit card.
type SourceType string

const (
	SourceBankAccount SourceType = "BANK_ACCOUNT"
	SourceCreditCard  SourceType = "CREDIT_CARD"
)

func (s SourceType) Valid() bool {
	return s == SourceBankAccount || s == SourceCreditCard
}

// Status is derived on read, never stored.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusPending Status = "PENDING"
	StatusOverdue Status = "OVERDUE"
)

func (s Status) Valid() bool {
	return s == StatusPaid || s == StatusPending || s == StatusOverdue
}

// DeletionOption picks how deleting one installment affects its siblings.
type DeletionOption string

const (
	DeleteCurrentOnly      DeletionOption = "CURRENT_ONLY"
	DeleteCurrentAndFuture DeletionOption = "CURRENT_AND_FUTURE"
)

func (o DeletionOption) Valid() bool {
	return o == DeleteCurrentOnly || o == DeleteCurrentAndFuture
}

// Transaction is a single money movement. A bank-account transaction has
// BankAccountID set; a credit-card transaction has CreditCardID and InvoiceID
// set. Installment fields are only set on installment members.
type Transaction struct {
	ID          uuid.UUID
	ProfileID   uuid.UUID
	CategoryID  uuid.UUID
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	Type        Type
	SourceType  SourceType

	BankAccountID *uuid.UUID
	CreditCardID  *uuid.UUID
	InvoiceID     *uuid.UUID
	Invoice       *InvoiceRef // Loaded via JOIN

	IsInstallment               bool
	InstallmentNumber           *int
	TotalInstallments           *int
	PurchaseGroupID             *uuid.UUID
	OriginalPurchaseDescription *string

	// Copied from the invoice when it is paid.
	PaymentBankAccountID *uuid.UUID
	PaymentDate          *time.Time

	OriginalTransactionID        *string
	OriginalStatementDescription *string
	Attachment                   *string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// InvoiceRef is the slice of an invoice needed to derive a transaction's status.
type InvoiceRef struct {
	ID          uuid.UUID
	Month       time.Month
	Year        int
	DueDate     time.Time
	PaymentDate *time.Time
}

func (r *InvoiceRef) IsPaid() bool {
	return r.PaymentDate != nil
}

// Status derives the payment state as of today. Bank-account movements are
// settled when recorded; card charges follow their invoice.
func (t *Transaction) Status(today time.Time) Status {
	if t.SourceType == SourceBankAccount {
		return StatusPaid
	}

	if t.Invoice == nil {
		return StatusPending
	}

	if t.Invoice.IsPaid() {
		return StatusPaid
	}

	if calendar.Date(today).After(t.Invoice.DueDate) {
		return StatusOverdue
	}

	return StatusPending
}

func (t *Transaction) isCardInstallment() bool {
	return t.SourceType == SourceCreditCard && t.IsInstallment && t.PurchaseGroupID != nil
}
