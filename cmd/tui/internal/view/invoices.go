package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/bankaccount"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type AccountLister interface {
	List(ctx context.Context, profileID uuid.UUID) ([]*bankaccount.Account, error)
}

type invoiceState int

const (
	invoiceStateBrowse invoiceState = iota
	invoiceStatePay
	invoiceStateDelete
)

type InvoicesModel struct {
	CommonModel
	cardService *creditcard.Service
	txService   *transaction.Service
	accounts    AccountLister
	profileID   uuid.UUID
	card        *creditcard.CreditCard

	state    invoiceState
	table    table.Model
	invoices []*creditcard.Invoice
	form     *huh.Form
	loading  bool
	err      error
	status   string

	// Form bindings
	formAccount uuid.UUID
	formDate    string
	formConfirm bool
	accountOpts []huh.Option[uuid.UUID]
}

func NewInvoicesModel(cardSvc *creditcard.Service, txSvc *transaction.Service, accounts AccountLister, profileID uuid.UUID, card *creditcard.CreditCard) InvoicesModel {
	return InvoicesModel{
		cardService: cardSvc,
		txService:   txSvc,
		accounts:    accounts,
		profileID:   profileID,
		card:        card,
		loading:     true,
		table: newTable([]table.Column{
			{Title: "Period", Width: 10},
			{Title: "Due", Width: 12},
			{Title: "Total", Width: 12},
			{Title: "Status", Width: 10},
			{Title: "Paid on", Width: 12},
		}),
	}
}

func (m InvoicesModel) Init() tea.Cmd {
	return m.loadInvoicesCmd()
}

func (m InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadInvoicesMsg:
		m.loading = false
		m.err = msg.err
		m.invoices = msg.invoices
		m.accountOpts = msg.accountOpts
		m.refreshTable()

		return m, nil

	case invoiceActionMsg:
		m.status = msg.done
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = invoiceStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadInvoicesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state != invoiceStateBrowse {
		return m.updateForm(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		inv := m.selected()

		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadInvoicesCmd()
		case "enter":
			if inv != nil {
				return m, func() tea.Msg { return OpenInvoiceMsg{Invoice: inv} }
			}
		case "p":
			if inv != nil && !inv.IsPaid() {
				return m.enterPayMode()
			}
		case "o":
			if inv != nil && inv.IsPaid() {
				return m, m.reopenCmd(inv)
			}
		case "x":
			if inv != nil {
				return m.enterDeleteMode(inv)
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m InvoicesModel) selected() *creditcard.Invoice {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.invoices) {
		return nil
	}

	return m.invoices[idx]
}

func (m InvoicesModel) enterPayMode() (tea.Model, tea.Cmd) {
	if len(m.accountOpts) == 0 {
		m.status = "No bank account to pay from."
		return m, nil
	}

	m.formAccount = m.accountOpts[0].Value
	m.formDate = FormatDate(time.Now())

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[uuid.UUID]().
				Key("account").
				Title("Pay from").
				Options(m.accountOpts...).
				Value(&m.formAccount),

			huh.NewInput().
				Key("payment_date").
				Title("Payment date").
				Placeholder("YYYY-MM-DD").
				Value(&m.formDate).
				Validate(func(s string) error {
					if _, err := time.Parse(time.DateOnly, s); err != nil {
						return fmt.Errorf("use YYYY-MM-DD")
					}

					return nil
				}),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = invoiceStatePay
	m.table.Blur()

	return m, m.form.Init()
}

func (m InvoicesModel) enterDeleteMode(inv *creditcard.Invoice) (tea.Model, tea.Cmd) {
	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Delete invoice %s and all its transactions?", FormatPeriod(inv.Month, inv.Year))).
				Description("Installments on other invoices are renumbered.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = invoiceStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m InvoicesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = invoiceStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	inv := m.selected()
	if inv == nil {
		return m, nil
	}

	if m.state == invoiceStatePay {
		return m, m.payCmd(inv)
	}

	if !m.formConfirm {
		m.state = invoiceStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	return m, m.deleteCmd(inv)
}

func (m InvoicesModel) View() string {
	if m.loading {
		return render("", "Loading invoices...")
	}

	if m.err != nil {
		return render("", fmt.Sprintf("Error: %v\n\nEsc: back", m.err))
	}

	header := activeStyle(m.card.Name) + fmt.Sprintf("  closes on %d, due on %d", m.card.ClosingDay, m.card.DueDay)
	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		m.table.View(),
		"",
		"Enter: transactions | p: pay | o: reopen | x: delete | r: refresh | Esc: back",
	)

	if m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	return render(m.status, content)
}

func (m *InvoicesModel) refreshTable() {
	today := calendar.Date(time.Now())

	rows := make([]table.Row, 0, len(m.invoices))
	for _, inv := range m.invoices {
		paidOn := ""
		if inv.PaymentDate != nil {
			paidOn = FormatDate(*inv.PaymentDate)
		}

		rows = append(rows, table.Row{
			FormatPeriod(inv.Month, inv.Year),
			FormatDate(inv.DueDate),
			FormatAmount(inv.TotalAmount),
			string(inv.Status(today)),
			paidOn,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadInvoicesMsg struct {
	invoices    []*creditcard.Invoice
	accountOpts []huh.Option[uuid.UUID]
	err         error
}

func (m InvoicesModel) loadInvoicesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		invoices, err := m.cardService.ListInvoices(ctx, m.profileID, m.card.ID)
		if err != nil {
			return loadInvoicesMsg{err: err}
		}

		accounts, err := m.accounts.List(ctx, m.profileID)
		if err != nil {
			return loadInvoicesMsg{err: err}
		}

		opts := make([]huh.Option[uuid.UUID], 0, len(accounts))
		for _, a := range accounts {
			opts = append(opts, huh.NewOption(a.Name, a.ID))
		}

		return loadInvoicesMsg{invoices: invoices, accountOpts: opts}
	}
}

type invoiceActionMsg struct {
	done string
	err  error
}

func (m InvoicesModel) payCmd(inv *creditcard.Invoice) tea.Cmd {
	accountID := m.formAccount
	date, _ := time.Parse(time.DateOnly, m.formDate)

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.cardService.PayInvoice(ctx, m.profileID, inv.ID, creditcard.PaymentParams{
			BankAccountID: accountID,
			PaymentDate:   &date,
		})

		return invoiceActionMsg{done: "Invoice paid.", err: err}
	}
}

func (m InvoicesModel) reopenCmd(inv *creditcard.Invoice) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.cardService.ReopenInvoice(ctx, m.profileID, inv.ID)

		return invoiceActionMsg{done: "Invoice reopened.", err: err}
	}
}

func (m InvoicesModel) deleteCmd(inv *creditcard.Invoice) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		err := m.txService.DeleteInvoice(ctx, m.profileID, inv.ID)

		return invoiceActionMsg{done: "Invoice deleted.", err: err}
	}
}
