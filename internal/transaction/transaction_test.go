package transaction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

func TestTransaction_Status(t *testing.T) {
	due := time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)
	invoiceID := uuid.New()

	card := func(ref *transaction.InvoiceRef) *transaction.Transaction {
		return &transaction.Transaction{SourceType: transaction.SourceCreditCard, InvoiceID: &invoiceID, Invoice: ref}
	}

	tests := []struct {
		name  string
		tx    *transaction.Transaction
		today time.Time
		want  transaction.Status
	}{
		{
			name:  "BankAccountAlwaysPaid",
			tx:    &transaction.Transaction{SourceType: transaction.SourceBankAccount},
			today: due.AddDate(1, 0, 0),
			want:  transaction.StatusPaid,
		},
		{
			name:  "CardPendingBeforeDue",
			tx:    card(&transaction.InvoiceRef{ID: invoiceID, DueDate: due}),
			today: due.AddDate(0, 0, -1),
			want:  transaction.StatusPending,
		},
		{
			name:  "CardPendingOnDueDate",
			tx:    card(&transaction.InvoiceRef{ID: invoiceID, DueDate: due}),
			today: due.Add(20 * time.Hour),
			want:  transaction.StatusPending,
		},
		{
			name:  "CardOverdueAfterDue",
			tx:    card(&transaction.InvoiceRef{ID: invoiceID, DueDate: due}),
			today: due.AddDate(0, 0, 1),
			want:  transaction.StatusOverdue,
		},
		{
			name:  "CardPaidEvenWhenLate",
			tx:    card(&transaction.InvoiceRef{ID: invoiceID, DueDate: due, PaymentDate: &paid}),
			today: paid.AddDate(0, 1, 0),
			want:  transaction.StatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.Status(tt.today))
		})
	}
}

func TestDeletionOption_Valid(t *testing.T) {
	assert.True(t, transaction.DeleteCurrentOnly.Valid())
	assert.True(t, transaction.DeleteCurrentAndFuture.Valid())
	assert.False(t, transaction.DeletionOption("ALL").Valid())
}
