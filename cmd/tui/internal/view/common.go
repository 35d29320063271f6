package view

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
)

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// OpenInvoicesMsg asks the root model to show the invoices of Card.
type OpenInvoicesMsg struct {
	Card *creditcard.CreditCard
}

// OpenInvoiceMsg asks the root model to show the transactions of Invoice.
type OpenInvoiceMsg struct {
	Invoice *creditcard.Invoice
}
