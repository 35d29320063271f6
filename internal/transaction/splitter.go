package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
)

// InvoiceResolver returns the card's invoice for a period, creating it when
// missing.
type InvoiceResolver func(ctx context.Context, cardID uuid.UUID, period calendar.Period) (*creditcard.Invoice, error)

// Purchase is a credit-card purchase to be split into installments.
type Purchase struct {
	ProfileID    uuid.UUID
	CategoryID   uuid.UUID
	Type         Type
	Card         *creditcard.CreditCard
	Amount       decimal.Decimal
	Description  string
	Date         time.Time
	Installments int

	OriginalTransactionID        *string
	OriginalStatementDescription *string
	Attachment                   *string
}

// SplitIntoInstallments builds one transaction per installment, all sharing a
// fresh purchase group id and the full purchase amount. Installment i is dated
// i-1 months after the purchase (clamped to the month's last day) and lands on
// the invoice i-1 months after the purchase's own invoice, so the installments
// occupy consecutive invoices.
func SplitIntoInstallments(ctx context.Context, p Purchase, resolve InvoiceResolver) ([]*Transaction, error) {
	if p.Installments < 1 {
		return nil, fmt.Errorf("splitting purchase: installments must be positive, got %d", p.Installments)
	}

	groupID := uuid.New()
	first := p.Card.PeriodFor(p.Date)
	txs := make([]*Transaction, 0, p.Installments)

	for i := range p.Installments {
		period := first.Shift(i, p.Card.DueDay)

		inv, err := resolve(ctx, p.Card.ID, period)
		if err != nil {
			return nil, fmt.Errorf("resolving invoice %02d/%d: %w", period.Month, period.Year, err)
		}

		number, total := i+1, p.Installments
		original := p.Description

		txs = append(txs, &Transaction{
			ProfileID:   p.ProfileID,
			CategoryID:  p.CategoryID,
			Description: InstallmentDescription(p.Description, number, total),
			Amount:      p.Amount,
			Date:        calendar.AddMonths(p.Date, i),
			Type:        p.Type,
			SourceType:  SourceCreditCard,

			CreditCardID: &p.Card.ID,
			InvoiceID:    &inv.ID,
			Invoice:      invoiceRef(inv),

			PaymentBankAccountID: inv.BankAccountID,
			PaymentDate:          inv.PaymentDate,

			IsInstallment:               true,
			InstallmentNumber:           &number,
			TotalInstallments:           &total,
			PurchaseGroupID:             &groupID,
			OriginalPurchaseDescription: &original,

			OriginalTransactionID:        p.OriginalTransactionID,
			OriginalStatementDescription: p.OriginalStatementDescription,
			Attachment:                   p.Attachment,
		})
	}

	return txs, nil
}

func invoiceRef(inv *creditcard.Invoice) *InvoiceRef {
	return &InvoiceRef{
		ID:          inv.ID,
		Month:       inv.Month,
		Year:        inv.Year,
		DueDate:     inv.DueDate,
		PaymentDate: inv.PaymentDate,
	}
}
