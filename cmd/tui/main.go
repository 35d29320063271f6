package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/ledger/internal/bankaccount/store"
	categoryStore "github.com/MrJamesThe3rd/ledger/internal/category/store"
	"github.com/MrJamesThe3rd/ledger/internal/config"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	cardStore "github.com/MrJamesThe3rd/ledger/internal/creditcard/store"
	"github.com/MrJamesThe3rd/ledger/internal/database"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
	txStore "github.com/MrJamesThe3rd/ledger/internal/transaction/store"
)

type View int

const (
	ViewCards View = iota
	ViewInvoices
	ViewTransactions
)

type model struct {
	cardService *creditcard.Service
	txService   *transaction.Service
	accounts    view.AccountLister
	profileID   uuid.UUID

	currentView View
	size        tea.WindowSizeMsg

	cardsView        view.CardsModel
	invoicesView     view.InvoicesModel
	transactionsView view.TransactionsModel
}

func (m model) Init() tea.Cmd {
	return m.cardsView.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.size = msg
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (msg.String() == "q" && m.currentView == ViewCards) {
			return m, tea.Quit
		}
	case view.OpenInvoicesMsg:
		m.currentView = ViewInvoices
		m.invoicesView = view.NewInvoicesModel(m.cardService, m.txService, m.accounts, m.profileID, msg.Card)

		return m, tea.Batch(m.invoicesView.Init(), m.resize())
	case view.OpenInvoiceMsg:
		m.currentView = ViewTransactions
		m.transactionsView = view.NewTransactionsModel(m.txService, m.profileID, msg.Invoice)

		return m, tea.Batch(m.transactionsView.Init(), m.resize())
	case view.BackMsg:
		// Returning to a list reloads it, since the child may have changed totals.
		switch m.currentView {
		case ViewTransactions:
			m.currentView = ViewInvoices
			return m, m.invoicesView.Init()
		case ViewInvoices:
			m.currentView = ViewCards
			return m, m.cardsView.Init()
		}

		return m, nil
	}

	var (
		newModel tea.Model
		cmd      tea.Cmd
	)

	switch m.currentView {
	case ViewCards:
		newModel, cmd = m.cardsView.Update(msg)
		m.cardsView = newModel.(view.CardsModel)
	case ViewInvoices:
		newModel, cmd = m.invoicesView.Update(msg)
		m.invoicesView = newModel.(view.InvoicesModel)
	case ViewTransactions:
		newModel, cmd = m.transactionsView.Update(msg)
		m.transactionsView = newModel.(view.TransactionsModel)
	}

	return m, cmd
}

// resize replays the last window size so a freshly built view sizes its table.
func (m model) resize() tea.Cmd {
	if m.size.Height == 0 {
		return nil
	}

	size := m.size

	return func() tea.Msg { return size }
}

func (m model) View() string {
	switch m.currentView {
	case ViewCards:
		return m.cardsView.View()
	case ViewInvoices:
		return m.invoicesView.View()
	case ViewTransactions:
		return m.transactionsView.View()
	}

	return "Unknown View"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := observability.NewFileLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	profileID, err := uuid.Parse(cfg.App.ProfileID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "PROFILE_ID must be a valid UUID")
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString(), cfg.DB.MaxOpenConns)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		fmt.Fprintln(os.Stderr, "failed to connect to database:", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewDispatcher(events.LogSender{Logger: logger}, events.TriggerUserAction, cfg.Events.Timeout, logger, metrics)

	var (
		accounts = store.New(db)
		cards    = cardStore.New(db)
	)

	cardSvc := creditcard.NewService(cards, accounts, dispatcher, logger, metrics)
	txSvc := transaction.NewService(txStore.New(db), transaction.Dependencies{
		Cards:        cards,
		BankAccounts: accounts,
		Categories:   categoryStore.New(db),
	}, dispatcher, logger, metrics)

	m := model{
		cardService: cardSvc,
		txService:   txSvc,
		accounts:    accounts,
		profileID:   profileID,
		currentView: ViewCards,
		cardsView:   view.NewCardsModel(cardSvc, profileID),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("failed to run TUI", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Events.Timeout)
	defer cancel()

	if err := dispatcher.Wait(ctx); err != nil {
		logger.Warn("pending events dropped", zap.Error(err))
	}
}
