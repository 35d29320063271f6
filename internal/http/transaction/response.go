package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type Response struct {
	ID              uuid.UUID              `json:"id"`
	CategoryID      uuid.UUID              `json:"category_id"`
	Description     string                 `json:"description"`
	Amount          string                 `json:"amount"`
	TransactionDate respond.Date           `json:"transaction_date"`
	Type            transaction.Type       `json:"type"`
	SourceType      transaction.SourceType `json:"source_type"`
	Status          transaction.Status     `json:"status"`

	BankAccountID *uuid.UUID       `json:"bank_account_id"`
	CreditCardID  *uuid.UUID       `json:"credit_card_id"`
	InvoiceID     *uuid.UUID       `json:"invoice_id"`
	Invoice       *invoiceResponse `json:"invoice,omitempty"`

	IsInstallment               bool       `json:"is_installment"`
	InstallmentNumber           *int       `json:"installment_number"`
	TotalInstallments           *int       `json:"total_installments"`
	PurchaseGroupID             *uuid.UUID `json:"purchase_group_id"`
	OriginalPurchaseDescription *string    `json:"original_purchase_description,omitempty"`

	PaymentBankAccountID *uuid.UUID    `json:"payment_bank_account_id"`
	PaymentDate          *respond.Date `json:"payment_date"`

	OriginalTransactionID        *string `json:"original_transaction_id,omitempty"`
	OriginalStatementDescription *string `json:"original_statement_description,omitempty"`
	Attachment                   *string `json:"attachment,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type invoiceResponse struct {
	ID      uuid.UUID    `json:"id"`
	Month   int          `json:"month"`
	Year    int          `json:"year"`
	DueDate respond.Date `json:"due_date"`
	IsPaid  bool         `json:"is_paid"`
}

// ToResponse renders tx with its status derived as of today.
func ToResponse(tx *transaction.Transaction, today time.Time) Response {
	resp := Response{
		ID:                           tx.ID,
		CategoryID:                   tx.CategoryID,
		Description:                  tx.Description,
		Amount:                       tx.Amount.StringFixed(2),
		TransactionDate:              respond.NewDate(tx.Date),
		Type:                         tx.Type,
		SourceType:                   tx.SourceType,
		Status:                       tx.Status(today),
		BankAccountID:                tx.BankAccountID,
		CreditCardID:                 tx.CreditCardID,
		InvoiceID:                    tx.InvoiceID,
		IsInstallment:                tx.IsInstallment,
		InstallmentNumber:            tx.InstallmentNumber,
		TotalInstallments:            tx.TotalInstallments,
		PurchaseGroupID:              tx.PurchaseGroupID,
		OriginalPurchaseDescription:  tx.OriginalPurchaseDescription,
		PaymentBankAccountID:         tx.PaymentBankAccountID,
		PaymentDate:                  respond.DatePtr(tx.PaymentDate),
		OriginalTransactionID:        tx.OriginalTransactionID,
		OriginalStatementDescription: tx.OriginalStatementDescription,
		Attachment:                   tx.Attachment,
		CreatedAt:                    tx.CreatedAt,
		UpdatedAt:                    tx.UpdatedAt,
	}

	if tx.Invoice != nil {
		resp.Invoice = &invoiceResponse{
			ID:      tx.Invoice.ID,
			Month:   int(tx.Invoice.Month),
			Year:    tx.Invoice.Year,
			DueDate: respond.NewDate(tx.Invoice.DueDate),
			IsPaid:  tx.Invoice.IsPaid(),
		}
	}

	return resp
}

func ToResponseList(txs []*transaction.Transaction, today time.Time) []Response {
	resp := make([]Response, len(txs))
	for i, tx := range txs {
		resp[i] = ToResponse(tx, today)
	}

	return resp
}
