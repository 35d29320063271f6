package view

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
)

type CardsModel struct {
	CommonModel
	cardService *creditcard.Service
	profileID   uuid.UUID

	table   table.Model
	cards   []*creditcard.CreditCard
	loading bool
	err     error
}

func NewCardsModel(cardSvc *creditcard.Service, profileID uuid.UUID) CardsModel {
	return CardsModel{
		cardService: cardSvc,
		profileID:   profileID,
		loading:     true,
		table: newTable([]table.Column{
			{Title: "Name", Width: 24},
			{Title: "Brand", Width: 12},
			{Title: "Limit", Width: 12},
			{Title: "Closing", Width: 8},
			{Title: "Due", Width: 6},
		}),
	}
}

func (m CardsModel) Init() tea.Cmd {
	return m.loadCardsCmd()
}

func (m CardsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadCardsMsg:
		m.loading = false
		m.err = msg.err
		m.cards = msg.cards
		m.refreshTable()

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 8)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadCardsCmd()
		case "enter":
			idx := m.table.Cursor()
			if idx >= 0 && idx < len(m.cards) {
				card := m.cards[idx]
				return m, func() tea.Msg { return OpenInvoicesMsg{Card: card} }
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m CardsModel) View() string {
	if m.loading {
		return render("", "Loading cards...")
	}

	if m.err != nil {
		return render("", fmt.Sprintf("Error: %v", m.err))
	}

	if len(m.cards) == 0 {
		return render("", "No credit cards found.\n\nq: quit")
	}

	return render("", activeStyle("Credit cards")+"\n\n"+m.table.View()+"\n\nEnter: invoices | r: refresh | q: quit")
}

func (m *CardsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.cards))
	for _, c := range m.cards {
		rows = append(rows, table.Row{
			c.Name,
			string(c.Brand),
			FormatAmount(c.CreditLimit),
			strconv.Itoa(c.ClosingDay),
			strconv.Itoa(c.DueDay),
		})
	}

	m.table.SetRows(rows)
}

type loadCardsMsg struct {
	cards []*creditcard.CreditCard
	err   error
}

func (m CardsModel) loadCardsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cards, err := m.cardService.ListCards(ctx, m.profileID)

		return loadCardsMsg{cards: cards, err: err}
	}
}
