package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type txState int

const (
	txStateBrowse txState = iota
	txStateEdit
	txStateDelete
)

// TransactionsModel lists the charges of one invoice.
type TransactionsModel struct {
	CommonModel
	txService *transaction.Service
	profileID uuid.UUID
	invoice   *creditcard.Invoice

	state   txState
	table   table.Model
	txs     []*transaction.Transaction
	form    *huh.Form
	loading bool
	err     error
	status  string

	// Form bindings
	formDesc     string
	formApplyAll bool
	formOption   transaction.DeletionOption
	formConfirm  bool
}

func NewTransactionsModel(txSvc *transaction.Service, profileID uuid.UUID, inv *creditcard.Invoice) TransactionsModel {
	return TransactionsModel{
		txService: txSvc,
		profileID: profileID,
		invoice:   inv,
		loading:   true,
		table: newTable([]table.Column{
			{Title: "Date", Width: 12},
			{Title: "Description", Width: 40},
			{Title: "Amount", Width: 12},
			{Title: "Inst.", Width: 7},
			{Title: "Status", Width: 10},
		}),
	}
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadTxsMsg:
		m.loading = false
		m.err = msg.err
		m.txs = msg.txs
		m.refreshTable()

		return m, nil

	case txActionMsg:
		m.status = msg.done
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state != txStateBrowse {
		return m.updateForm(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadTxsCmd()
		case "e":
			if tx := m.selected(); tx != nil {
				return m.enterEditMode(tx)
			}
		case "x":
			if tx := m.selected(); tx != nil {
				return m.enterDeleteMode(tx)
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m TransactionsModel) selected() *transaction.Transaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m TransactionsModel) enterEditMode(tx *transaction.Transaction) (tea.Model, tea.Cmd) {
	m.formDesc = tx.Description
	if tx.OriginalPurchaseDescription != nil {
		m.formDesc = *tx.OriginalPurchaseDescription
	}

	// Installment members are renamed as a group so their "(i/N)" suffixes
	// stay consistent.
	m.formApplyAll = tx.IsInstallment

	fields := []huh.Field{
		huh.NewInput().
			Key("description").
			Title("Description").
			Value(&m.formDesc).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("description cannot be empty")
				}

				return nil
			}),
	}

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithWidth(50).WithShowHelp(false)
	m.state = txStateEdit
	m.table.Blur()

	return m, m.form.Init()
}

func (m TransactionsModel) enterDeleteMode(tx *transaction.Transaction) (tea.Model, tea.Cmd) {
	m.formConfirm = false
	m.formOption = transaction.DeleteCurrentOnly

	var fields []huh.Field

	if tx.IsInstallment {
		fields = append(fields, huh.NewSelect[transaction.DeletionOption]().
			Key("deletion_option").
			Title("Delete which installments?").
			Options(
				huh.NewOption("Only this one", transaction.DeleteCurrentOnly),
				huh.NewOption("This one and the following", transaction.DeleteCurrentAndFuture),
			).
			Value(&m.formOption))
	}

	fields = append(fields, huh.NewConfirm().
		Key("confirm").
		Title(fmt.Sprintf("Delete %q?", tx.Description)).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&m.formConfirm))

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithWidth(50).WithShowHelp(false)
	m.state = txStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m TransactionsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = txStateBrowse
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

	tx := m.selected()
	if tx == nil {
		return m, nil
	}

	if m.state == txStateEdit {
		return m, m.saveCmd(tx)
	}

	if !m.formConfirm {
		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	return m, m.deleteCmd(tx)
}

func (m TransactionsModel) View() string {
	if m.loading {
		return render("", "Loading transactions...")
	}

	if m.err != nil {
		return render("", fmt.Sprintf("Error: %v\n\nEsc: back", m.err))
	}

	header := fmt.Sprintf("Invoice %s  due %s  total %s",
		activeStyle(FormatPeriod(m.invoice.Month, m.invoice.Year)),
		FormatDate(m.invoice.DueDate),
		FormatAmount(m.invoice.TotalAmount),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		m.table.View(),
		"",
		"e: edit | x: delete | r: refresh | Esc: back",
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

func (m *TransactionsModel) refreshTable() {
	today := m.txService.Today()

	rows := make([]table.Row, 0, len(m.txs))
	for _, tx := range m.txs {
		inst := ""
		if tx.IsInstallment && tx.InstallmentNumber != nil && tx.TotalInstallments != nil {
			inst = fmt.Sprintf("%d/%d", *tx.InstallmentNumber, *tx.TotalInstallments)
		}

		rows = append(rows, table.Row{
			FormatDate(tx.Date),
			tx.Description,
			FormatAmount(tx.Amount),
			inst,
			string(tx.Status(today)),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadTxsMsg struct {
	txs []*transaction.Transaction
	err error
}

func (m TransactionsModel) loadTxsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.txService.List(ctx, m.profileID, transaction.ListFilter{InvoiceID: &m.invoice.ID})

		return loadTxsMsg{txs: txs, err: err}
	}
}

type txActionMsg struct {
	done string
	err  error
}

func (m TransactionsModel) saveCmd(tx *transaction.Transaction) tea.Cmd {
	params := transaction.UpdateParams{
		Description:            new(m.formDesc),
		ApplyToAllInstallments: m.formApplyAll,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.txService.Update(ctx, m.profileID, tx.ID, params)

		return txActionMsg{done: "Transaction saved.", err: err}
	}
}

func (m TransactionsModel) deleteCmd(tx *transaction.Transaction) tea.Cmd {
	var option *transaction.DeletionOption
	if tx.IsInstallment {
		option = new(m.formOption)
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		deleted, err := m.txService.Delete(ctx, m.profileID, tx.ID, option)

		return txActionMsg{done: fmt.Sprintf("%d transaction(s) deleted.", len(deleted)), err: err}
	}
}
