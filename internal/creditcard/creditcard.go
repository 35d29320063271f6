package creditcard

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
)

var (
	ErrCardNotFound    = apperr.NotFound("credit_card")
	ErrInvoiceNotFound = apperr.NotFound("invoice")
	ErrDuplicateName   = apperr.Validation("name", "A credit card with this name already exists.")
	ErrAlreadyPaid     = apperr.Conflict("Invoice is already paid.")
	ErrNotPaid         = apperr.Conflict("Invoice is not paid.")
)

type Brand string

const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandAmex       Brand = "AMEX"
	BrandElo        Brand = "ELO"
	BrandHipercard  Brand = "HIPERCARD"
)

func (b Brand) Valid() bool {
	switch b {
	case BrandVisa, BrandMastercard, BrandAmex, BrandElo, BrandHipercard:
		return true
	}

	return false
}

const maxNameLength = 50

// CreditCard is a card owned by a profile. ClosingDay and DueDay are days of
// month in 1..31 and never equal.
type CreditCard struct {
	ID             uuid.UUID
	ProfileID      uuid.UUID
	Name           string
	CreditLimit    decimal.Decimal
	AdditionalInfo string
	ClosingDay     int
	DueDay         int
	Brand          Brand
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func (c *CreditCard) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > maxNameLength {
		return apperr.Validation("name", "Name must have between 1 and 50 characters.")
	}

	if c.CreditLimit.IsNegative() {
		return apperr.Validation("credit_limit", "Credit limit cannot be negative.")
	}

	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return apperr.Validation("closing_day", "Closing day must be between 1 and 31.")
	}

	if c.DueDay < 1 || c.DueDay > 31 {
		return apperr.Validation("due_day", "Due day must be between 1 and 31.")
	}

	if c.ClosingDay == c.DueDay {
		return apperr.Validation("due_day", "Due day must be different from closing day.")
	}

	if !c.Brand.Valid() {
		return apperr.Validation("brand", "Unknown card brand.")
	}

	return nil
}

// PeriodFor returns the invoice period a charge on date belongs to.
func (c *CreditCard) PeriodFor(date time.Time) calendar.Period {
	return calendar.Allocate(date, c.ClosingDay, c.DueDay)
}

// Covers reports whether the card's limit admits a charge of amount.
func (c *CreditCard) Covers(amount decimal.Decimal) bool {
	return c.CreditLimit.GreaterThanOrEqual(amount)
}

type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "OPEN"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// Invoice is the monthly bill of a card. Paid state and total are never
// stored: BankAccountID and PaymentDate are set together on payment, and
// TotalAmount is aggregated from the invoice's transactions when read.
type Invoice struct {
	ID            uuid.UUID
	CreditCardID  uuid.UUID
	ProfileID     uuid.UUID // owner of the card, loaded via JOIN
	CardName      string    // loaded via JOIN
	Month         time.Month
	Year          int
	DueDate       time.Time
	BankAccountID *uuid.UUID
	PaymentDate   *time.Time
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

func (i *Invoice) IsPaid() bool {
	return i.PaymentDate != nil
}

func (i *Invoice) Status(today time.Time) InvoiceStatus {
	switch {
	case i.IsPaid():
		return InvoicePaid
	case calendar.Date(today).After(i.DueDate):
		return InvoiceOverdue
	default:
		return InvoiceOpen
	}
}

func (i *Invoice) Period() calendar.Period {
	return calendar.Period{Month: i.Month, Year: i.Year, DueDate: i.DueDate}
}

// SumAmounts totals invoice line amounts; an empty invoice totals zero.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}

	return decimal.Sum(amounts[0], amounts[1:]...)
}
