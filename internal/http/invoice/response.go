package invoice

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
)

type Response struct {
	ID            uuid.UUID                `json:"id"`
	CreditCardID  uuid.UUID                `json:"credit_card_id"`
	CardName      string                   `json:"card_name,omitempty"`
	Month         int                      `json:"month"`
	Year          int                      `json:"year"`
	DueDate       respond.Date             `json:"due_date"`
	BankAccountID *uuid.UUID               `json:"bank_account_id"`
	PaymentDate   *respond.Date            `json:"payment_date"`
	TotalAmount   string                   `json:"total_amount"`
	IsPaid        bool                     `json:"is_paid"`
	Status        creditcard.InvoiceStatus `json:"status"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     *time.Time               `json:"updated_at,omitempty"`
}

func ToResponse(inv *creditcard.Invoice, today time.Time) Response {
	return Response{
		ID:            inv.ID,
		CreditCardID:  inv.CreditCardID,
		CardName:      inv.CardName,
		Month:         int(inv.Month),
		Year:          inv.Year,
		DueDate:       respond.NewDate(inv.DueDate),
		BankAccountID: inv.BankAccountID,
		PaymentDate:   respond.DatePtr(inv.PaymentDate),
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		IsPaid:        inv.IsPaid(),
		Status:        inv.Status(today),
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func ToResponseList(invs []*creditcard.Invoice, today time.Time) []Response {
	resp := make([]Response, len(invs))
	for i, inv := range invs {
		resp[i] = ToResponse(inv, today)
	}

	return resp
}
