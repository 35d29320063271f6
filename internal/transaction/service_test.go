package transaction_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/bankaccount"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/category"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type recordingPublisher struct {
	published []events.Type
}

func (r *recordingPublisher) Publish(_ context.Context, eventType events.Type, _ events.Payload) {
	r.published = append(r.published, eventType)
}

type mocks struct {
	repo       *transaction.MockRepository
	uow        *transaction.MockUnitOfWork
	cards      *transaction.MockCards
	accounts   *transaction.MockBankAccounts
	categories *transaction.MockCategories
}

func newService(t *testing.T) (*transaction.Service, mocks, *recordingPublisher) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := mocks{
		repo:       transaction.NewMockRepository(ctrl),
		uow:        transaction.NewMockUnitOfWork(ctrl),
		cards:      transaction.NewMockCards(ctrl),
		accounts:   transaction.NewMockBankAccounts(ctrl),
		categories: transaction.NewMockCategories(ctrl),
	}
	pub := &recordingPublisher{}

	svc := transaction.NewService(m.repo, transaction.Dependencies{
		Cards:        m.cards,
		BankAccounts: m.accounts,
		Categories:   m.categories,
	}, pub, zap.NewNop(), observability.NewMetrics()).
		WithClock(func() time.Time { return time.Date(2024, time.April, 8, 15, 30, 0, 0, time.UTC) })

	return svc, m, pub
}

// expectUnitOfWork makes the repository hand out the mocked unit of work,
// which is always rolled back on return.
func (m mocks) expectUnitOfWork() {
	m.repo.EXPECT().Begin(gomock.Any()).Return(m.uow, nil)
	m.uow.EXPECT().Rollback().Return(nil).AnyTimes()
}

// fakeInvoices resolves every period to a fresh open invoice.
func fakeInvoices(_ context.Context, cardID uuid.UUID, p calendar.Period) (*creditcard.Invoice, error) {
	return &creditcard.Invoice{ID: uuid.New(), CreditCardID: cardID, Month: p.Month, Year: p.Year, DueDate: p.DueDate}, nil
}

func ptr[T any](v T) *T { return &v }

func TestService_Create(t *testing.T) {
	profileID := uuid.New()
	expense := &category.Category{ID: uuid.New(), ProfileID: profileID, Name: "Groceries", Type: category.TypeExpense}
	income := &category.Category{ID: uuid.New(), ProfileID: profileID, Name: "Salary", Type: category.TypeIncome}
	account := &bankaccount.Account{ID: uuid.New(), ProfileID: profileID, Name: "Checking", IsDefault: true}
	card := &creditcard.CreditCard{
		ID: uuid.New(), ProfileID: profileID, Name: "Visa", CreditLimit: decimal.NewFromInt(1000),
		ClosingDay: 25, DueDay: 10, Brand: creditcard.BrandVisa,
	}
	purchaseDate := time.Date(2024, time.March, 26, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		params    transaction.CreateParams
		setupMock func(m mocks)
		wantCount int
		wantEvent events.Type
		wantField string
		wantErr   bool
	}{
		{
			name: "BankAccountDefault",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: income.ID, Description: "Salary",
				Amount: decimal.NewFromInt(5000), Date: purchaseDate, SourceType: transaction.SourceBankAccount,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, income.ID).Return(income, nil)
				m.accounts.EXPECT().GetDefault(gomock.Any(), profileID).Return(account, nil)
				m.expectUnitOfWork()
				m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(1)).Return(nil)
				m.uow.EXPECT().Commit().Return(nil)
			},
			wantCount: 1,
			wantEvent: events.TransactionCreated,
		},
		{
			name: "BankAccountWithoutDefault",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: income.ID, Description: "Salary",
				Amount: decimal.NewFromInt(5000), Date: purchaseDate, SourceType: transaction.SourceBankAccount,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, income.ID).Return(income, nil)
				m.accounts.EXPECT().GetDefault(gomock.Any(), profileID).Return(nil, bankaccount.ErrNotFound)
			},
			wantField: "bank_account",
			wantErr:   true,
		},
		{
			name: "BankAccountWithCard",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: income.ID, Description: "Salary",
				Amount: decimal.NewFromInt(5000), Date: purchaseDate, SourceType: transaction.SourceBankAccount,
				CreditCardID: &card.ID,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, income.ID).Return(income, nil)
			},
			wantField: "credit_card",
			wantErr:   true,
		},
		{
			name: "ForeignCategory",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Lunch",
				Amount: decimal.NewFromInt(30), Date: purchaseDate, SourceType: transaction.SourceBankAccount,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(nil, category.ErrNotFound)
			},
			wantField: "category",
			wantErr:   true,
		},
		{
			name: "ZeroAmount",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Lunch",
				Amount: decimal.Zero, Date: purchaseDate, SourceType: transaction.SourceBankAccount,
			},
			wantField: "amount",
			wantErr:   true,
		},
		{
			name: "CardSingle",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Market",
				Amount: decimal.NewFromInt(250), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
				m.expectUnitOfWork()
				m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, calendar.Period{
					Month: time.April, Year: 2024, DueDate: time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
				}).DoAndReturn(fakeInvoices)
				m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(1)).Return(nil)
				m.uow.EXPECT().Commit().Return(nil)
			},
			wantCount: 1,
			wantEvent: events.TransactionCreated,
		},
		{
			name: "CardOverLimit",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "TV",
				Amount: decimal.NewFromInt(1500), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
			},
			wantField: "credit_card",
			wantErr:   true,
		},
		{
			name: "CardIncomeCategory",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: income.ID, Description: "Refund",
				Amount: decimal.NewFromInt(10), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, income.ID).Return(income, nil)
			},
			wantField: "category",
			wantErr:   true,
		},
		{
			name: "CardNotOwned",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Market",
				Amount: decimal.NewFromInt(10), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(nil, creditcard.ErrCardNotFound)
			},
			wantField: "credit_card",
			wantErr:   true,
		},
		{
			name: "Installments",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Laptop",
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(3),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
				m.expectUnitOfWork()
				m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).DoAndReturn(fakeInvoices).Times(3)
				m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(3)).Return(nil)
				m.uow.EXPECT().Commit().Return(nil)
			},
			wantCount: 3,
			wantEvent: events.InstallmentPurchaseCreated,
		},
		{
			name: "InstallmentsWithoutTotal",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Laptop",
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true,
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
			},
			wantField: "total_installments",
			wantErr:   true,
		},
		{
			name: "InstallmentNumberOutOfRange",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Laptop",
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(3), InstallmentNumber: ptr(4),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
			},
			wantField: "installment_number",
			wantErr:   true,
		},
		{
			name: "InstallmentsAboveCap",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Laptop",
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(40000),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
			},
			wantField: "total_installments",
			wantErr:   true,
		},
		{
			name: "InstallmentDescriptionTooLongWithSuffix",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: strings.Repeat("a", 250),
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(12),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
			},
			wantField: "description",
			wantErr:   true,
		},
		{
			// " (12/12)" leaves room for 247 runes.
			name: "InstallmentDescriptionFitsWithSuffix",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: strings.Repeat("a", 247),
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(12),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
				m.expectUnitOfWork()
				m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).DoAndReturn(fakeInvoices).Times(12)
				m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(12)).Return(nil)
				m.uow.EXPECT().Commit().Return(nil)
			},
			wantCount: 12,
			wantEvent: events.InstallmentPurchaseCreated,
		},
		{
			name: "InvoiceResolutionFailsRollsBack",
			params: transaction.CreateParams{
				ProfileID: profileID, CategoryID: expense.ID, Description: "Laptop",
				Amount: decimal.NewFromInt(300), Date: purchaseDate, SourceType: transaction.SourceCreditCard,
				CreditCardID: &card.ID, IsInstallment: true, TotalInstallments: ptr(3),
			},
			setupMock: func(m mocks) {
				m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
				m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
				m.repo.EXPECT().Begin(gomock.Any()).Return(m.uow, nil)
				gomock.InOrder(
					m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).DoAndReturn(fakeInvoices),
					m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).Return(nil, errors.New("db error")),
				)
				m.uow.EXPECT().Rollback().Return(nil).Times(1)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m, pub := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Create(context.Background(), tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				assert.Equal(t, tt.wantField, apperr.Field(err))
				assert.Empty(t, pub.published)

				return
			}

			require.NoError(t, err)
			require.Len(t, got, tt.wantCount)
			assert.Equal(t, []events.Type{tt.wantEvent}, pub.published)
			assert.Equal(t, calendar.Date(tt.params.Date), got[0].Date)
		})
	}
}

func TestService_Create_InstallmentsLandOnConsecutiveInvoices(t *testing.T) {
	svc, m, _ := newService(t)

	profileID := uuid.New()
	expense := &category.Category{ID: uuid.New(), ProfileID: profileID, Type: category.TypeExpense}
	card := &creditcard.CreditCard{ID: uuid.New(), ProfileID: profileID, CreditLimit: decimal.NewFromInt(5000), ClosingDay: 25, DueDay: 10}

	var periods []calendar.Period

	m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
	m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
	m.expectUnitOfWork()
	m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).
		DoAndReturn(func(ctx context.Context, cardID uuid.UUID, p calendar.Period) (*creditcard.Invoice, error) {
			periods = append(periods, p)
			return fakeInvoices(ctx, cardID, p)
		}).Times(4)
	m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(4)).Return(nil)
	m.uow.EXPECT().Commit().Return(nil)

	txs, err := svc.Create(context.Background(), transaction.CreateParams{
		ProfileID: profileID, CategoryID: expense.ID, Description: "Phone",
		Amount: decimal.RequireFromString("120.50"), Date: time.Date(2024, time.November, 20, 0, 0, 0, 0, time.UTC),
		SourceType: transaction.SourceCreditCard, CreditCardID: &card.ID,
		IsInstallment: true, TotalInstallments: ptr(4),
	})
	require.NoError(t, err)

	wantMonths := []time.Month{time.November, time.December, time.January, time.February}
	for i, p := range periods {
		assert.Equal(t, wantMonths[i], p.Month)
		assert.Equal(t, 10, p.DueDate.Day())
		assert.Equal(t, transaction.InstallmentDescription("Phone", i+1, 4), txs[i].Description)
		assert.True(t, txs[i].Amount.Equal(decimal.RequireFromString("120.50")))
	}

	assert.Equal(t, 2025, periods[3].Year)
}

func TestService_Delete(t *testing.T) {
	profileID := uuid.New()

	tests := []struct {
		name        string
		size        int
		target      int // 1-based installment number
		option      *transaction.DeletionOption
		wantDeleted int
		wantUpdated int
	}{
		{name: "CurrentOnlyMiddle", size: 4, target: 2, option: ptr(transaction.DeleteCurrentOnly), wantDeleted: 1, wantUpdated: 3},
		{name: "CurrentOnlyLast", size: 4, target: 4, option: ptr(transaction.DeleteCurrentOnly), wantDeleted: 1, wantUpdated: 3},
		{name: "CurrentAndFutureMiddle", size: 4, target: 2, option: ptr(transaction.DeleteCurrentAndFuture), wantDeleted: 3, wantUpdated: 1},
		{name: "CurrentAndFutureFromFirst", size: 4, target: 1, option: ptr(transaction.DeleteCurrentAndFuture), wantDeleted: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m, pub := newService(t)
			groupID, members := newGroup(tt.size, "Laptop")
			target := members[tt.target-1]

			m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, target.ID).Return(target, nil)
			m.expectUnitOfWork()
			m.uow.EXPECT().LockGroup(gomock.Any(), groupID).Return(members, nil)
			m.uow.EXPECT().DeleteTransactions(gomock.Any(), gomock.Len(tt.wantDeleted)).Return(nil)

			var updated []*transaction.Transaction
			if tt.wantUpdated > 0 {
				m.uow.EXPECT().UpdateTransactions(gomock.Any(), gomock.Len(tt.wantUpdated)).
					DoAndReturn(func(_ context.Context, txs []*transaction.Transaction) error {
						updated = txs
						return nil
					})
			}

			m.uow.EXPECT().Commit().Return(nil)

			deleted, err := svc.Delete(context.Background(), profileID, target.ID, tt.option)
			require.NoError(t, err)

			assert.Len(t, deleted, tt.wantDeleted)
			assert.Contains(t, deleted, target.ID)
			assert.Equal(t, []events.Type{events.TransactionDeleted}, pub.published)

			for i, u := range updated {
				assert.Equal(t, i+1, *u.InstallmentNumber)
				assert.Equal(t, tt.wantUpdated, *u.TotalInstallments)
				assert.Equal(t, transaction.InstallmentDescription("Laptop", i+1, tt.wantUpdated), u.Description)
				assert.NotContains(t, deleted, u.ID)
			}
		})
	}
}

func TestService_Delete_InstallmentRequiresOption(t *testing.T) {
	svc, m, _ := newService(t)
	profileID := uuid.New()
	_, members := newGroup(3, "Laptop")

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, members[0].ID).Return(members[0], nil).Times(2)

	_, err := svc.Delete(context.Background(), profileID, members[0].ID, nil)
	require.Error(t, err)
	assert.Equal(t, "deletion_option", apperr.Field(err))

	_, err = svc.Delete(context.Background(), profileID, members[0].ID, ptr(transaction.DeletionOption("ALL")))
	require.Error(t, err)
	assert.Equal(t, "deletion_option", apperr.Field(err))
}

func TestService_Delete_SingleTransactionIgnoresOption(t *testing.T) {
	svc, m, pub := newService(t)
	profileID := uuid.New()
	accountID := uuid.New()
	tx := &transaction.Transaction{
		ID: uuid.New(), ProfileID: profileID, SourceType: transaction.SourceBankAccount, BankAccountID: &accountID,
	}

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, tx.ID).Return(tx, nil)
	m.expectUnitOfWork()
	m.uow.EXPECT().DeleteTransactions(gomock.Any(), []uuid.UUID{tx.ID}).Return(nil)
	m.uow.EXPECT().Commit().Return(nil)

	deleted, err := svc.Delete(context.Background(), profileID, tx.ID, ptr(transaction.DeleteCurrentAndFuture))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tx.ID}, deleted)
	assert.Equal(t, []events.Type{events.TransactionDeleted}, pub.published)
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, m, _ := newService(t)
	profileID, id := uuid.New(), uuid.New()

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, id).Return(nil, transaction.ErrNotFound)

	_, err := svc.Delete(context.Background(), profileID, id, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_Update_ApplyToAllInstallments(t *testing.T) {
	svc, m, _ := newService(t)
	profileID := uuid.New()
	groupID, members := newGroup(3, "Laptop")
	card := &creditcard.CreditCard{ID: *members[0].CreditCardID, CreditLimit: decimal.NewFromInt(1000), ClosingDay: 25, DueDay: 10}

	current := *members[1]
	newAmount := decimal.NewFromInt(150)

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, current.ID).Return(&current, nil)
	m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
	m.expectUnitOfWork()
	m.uow.EXPECT().LockGroup(gomock.Any(), groupID).Return(members, nil)
	m.uow.EXPECT().UpdateTransactions(gomock.Any(), gomock.Len(3)).Return(nil)
	m.uow.EXPECT().Commit().Return(nil)

	got, err := svc.Update(context.Background(), profileID, current.ID, transaction.UpdateParams{
		Description:            ptr("Notebook"),
		Amount:                 &newAmount,
		TotalInstallments:      ptr(3),
		ApplyToAllInstallments: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Notebook (2/3)", got.Description)

	for i, mbr := range members {
		assert.Equal(t, transaction.InstallmentDescription("Notebook", i+1, 3), mbr.Description)
		assert.True(t, mbr.Amount.Equal(newAmount))
		assert.Equal(t, "Notebook", *mbr.OriginalPurchaseDescription)
	}
}

func TestService_Update_GroupDescriptionMustFitSuffix(t *testing.T) {
	svc, m, _ := newService(t)
	profileID := uuid.New()
	groupID, members := newGroup(3, "Laptop")
	current := *members[0]

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, current.ID).Return(&current, nil)
	m.expectUnitOfWork()
	m.uow.EXPECT().LockGroup(gomock.Any(), groupID).Return(members, nil)

	// 253 runes fit a single transaction but not with " (3/3)".
	_, err := svc.Update(context.Background(), profileID, current.ID, transaction.UpdateParams{
		Description:            ptr(strings.Repeat("b", 253)),
		ApplyToAllInstallments: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "description", apperr.Field(err))

	for _, mbr := range members {
		assert.Equal(t, "Laptop", *mbr.OriginalPurchaseDescription)
	}
}

func TestService_Update_SingleCardChargeFollowsDate(t *testing.T) {
	svc, m, _ := newService(t)
	profileID := uuid.New()
	cardID, invoiceID := uuid.New(), uuid.New()
	card := &creditcard.CreditCard{ID: cardID, CreditLimit: decimal.NewFromInt(1000), ClosingDay: 25, DueDay: 10}
	tx := &transaction.Transaction{
		ID: uuid.New(), ProfileID: profileID, SourceType: transaction.SourceCreditCard,
		CreditCardID: &cardID, InvoiceID: &invoiceID, Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(40), Description: "Cinema",
	}
	newDate := time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC)

	m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, tx.ID).Return(tx, nil)
	m.expectUnitOfWork()
	m.cards.EXPECT().GetCard(gomock.Any(), profileID, cardID).Return(card, nil)
	m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), cardID, card.PeriodFor(newDate)).DoAndReturn(fakeInvoices)
	m.uow.EXPECT().UpdateTransactions(gomock.Any(), gomock.Len(1)).Return(nil)
	m.uow.EXPECT().Commit().Return(nil)

	got, err := svc.Update(context.Background(), profileID, tx.ID, transaction.UpdateParams{Date: &newDate})
	require.NoError(t, err)

	assert.Equal(t, newDate, got.Date)
	assert.NotEqual(t, invoiceID, *got.InvoiceID)
	assert.Equal(t, time.April, got.Invoice.Month)
}

func TestService_Update_Immutable(t *testing.T) {
	profileID := uuid.New()
	_, members := newGroup(3, "Laptop")
	accountID := uuid.New()
	bankTx := &transaction.Transaction{ID: uuid.New(), SourceType: transaction.SourceBankAccount, BankAccountID: &accountID}

	tests := []struct {
		name      string
		current   *transaction.Transaction
		params    transaction.UpdateParams
		wantField string
	}{
		{
			name:      "SourceType",
			current:   bankTx,
			params:    transaction.UpdateParams{SourceType: ptr(transaction.SourceCreditCard)},
			wantField: "source_type",
		},
		{
			name:      "BankTransactionWithCard",
			current:   bankTx,
			params:    transaction.UpdateParams{CreditCardID: ptr(uuid.New())},
			wantField: "credit_card",
		},
		{
			name:      "TotalInstallments",
			current:   members[0],
			params:    transaction.UpdateParams{TotalInstallments: ptr(6)},
			wantField: "total_installments",
		},
		{
			name:      "PurchaseGroup",
			current:   members[0],
			params:    transaction.UpdateParams{PurchaseGroupID: ptr(uuid.New())},
			wantField: "purchase_group",
		},
		{
			name:      "InstallmentDate",
			current:   members[0],
			params:    transaction.UpdateParams{Date: ptr(time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC))},
			wantField: "transaction_date",
		},
		{
			name:      "Invoice",
			current:   members[0],
			params:    transaction.UpdateParams{InvoiceID: ptr(uuid.New())},
			wantField: "invoice",
		},
		{
			name:      "InstallmentFlag",
			current:   members[0],
			params:    transaction.UpdateParams{IsInstallment: ptr(false)},
			wantField: "is_installment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m, _ := newService(t)
			m.repo.EXPECT().GetTransaction(gomock.Any(), profileID, tt.current.ID).Return(tt.current, nil)

			_, err := svc.Update(context.Background(), profileID, tt.current.ID, tt.params)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Equal(t, tt.wantField, apperr.Field(err))
		})
	}
}

func TestService_DeleteInvoice(t *testing.T) {
	svc, m, pub := newService(t)
	profileID := uuid.New()
	groupID, members := newGroup(3, "Laptop")
	invoiceID := *members[1].InvoiceID
	inv := &creditcard.Invoice{ID: invoiceID, CreditCardID: *members[1].CreditCardID}
	single := &transaction.Transaction{ID: uuid.New(), SourceType: transaction.SourceCreditCard, InvoiceID: &invoiceID}

	var updated []*transaction.Transaction

	m.expectUnitOfWork()
	m.uow.EXPECT().GetInvoice(gomock.Any(), profileID, invoiceID).Return(inv, nil)
	m.uow.EXPECT().ListInvoiceTransactions(gomock.Any(), invoiceID).Return([]*transaction.Transaction{single, members[1]}, nil)
	m.uow.EXPECT().LockGroup(gomock.Any(), groupID).Return(members, nil)
	m.uow.EXPECT().DeleteTransactions(gomock.Any(), []uuid.UUID{single.ID, members[1].ID}).Return(nil)
	m.uow.EXPECT().UpdateTransactions(gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(_ context.Context, txs []*transaction.Transaction) error {
			updated = txs
			return nil
		})
	m.uow.EXPECT().DeleteInvoice(gomock.Any(), invoiceID).Return(nil)
	m.uow.EXPECT().Commit().Return(nil)

	require.NoError(t, svc.DeleteInvoice(context.Background(), profileID, invoiceID))

	require.Len(t, updated, 2)
	assert.Equal(t, members[0].ID, updated[0].ID)
	assert.Equal(t, members[2].ID, updated[1].ID)
	assert.Equal(t, "Laptop (2/2)", updated[1].Description)
	assert.Equal(t, []events.Type{events.InvoiceDeleted}, pub.published)
}

func TestService_DeleteInvoice_NotFound(t *testing.T) {
	svc, m, pub := newService(t)
	profileID, invoiceID := uuid.New(), uuid.New()

	m.expectUnitOfWork()
	m.uow.EXPECT().GetInvoice(gomock.Any(), profileID, invoiceID).Return(nil, creditcard.ErrInvoiceNotFound)

	err := svc.DeleteInvoice(context.Background(), profileID, invoiceID)
	assert.ErrorIs(t, err, creditcard.ErrInvoiceNotFound)
	assert.Empty(t, pub.published)
}

func TestService_ImportStatement(t *testing.T) {
	profileID := uuid.New()
	card := &creditcard.CreditCard{ID: uuid.New(), ProfileID: profileID, CreditLimit: decimal.NewFromInt(2000), ClosingDay: 25, DueDay: 10}
	expense := &category.Category{ID: uuid.New(), ProfileID: profileID, Type: category.TypeExpense}

	lines := []transaction.StatementLine{
		{Date: time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), RawDescription: "UBER *TRIP", Amount: decimal.RequireFromString("23.90")},
		{Date: time.Date(2024, time.March, 27, 0, 0, 0, 0, time.UTC), RawDescription: "MERCADO CENTRAL", Description: "Groceries", Amount: decimal.RequireFromString("180.00")},
		{Date: time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC), RawDescription: "PAGAMENTO", Amount: decimal.RequireFromString("900.00"), Credit: true},
	}

	t.Run("Conflicts", func(t *testing.T) {
		svc, m, pub := newService(t)
		raw := "UBER *TRIP"
		existing := &transaction.Transaction{
			ID: uuid.New(), Date: lines[0].Date, Amount: decimal.RequireFromString("23.9"), OriginalStatementDescription: &raw,
		}

		m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
		m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
		m.repo.EXPECT().BeginImport(gomock.Any(), card.ID).Return(m.uow, nil)
		m.uow.EXPECT().Rollback().Return(nil)
		m.uow.EXPECT().FindDuplicates(gomock.Any(), card.ID, gomock.Len(2)).Return([]*transaction.Transaction{existing}, nil)

		result, err := svc.ImportStatement(context.Background(), transaction.ImportParams{
			ProfileID: profileID, CreditCardID: card.ID, CategoryID: expense.ID, Lines: lines,
		})
		require.NoError(t, err)

		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, existing, result.Conflicts[0].Existing)
		assert.Len(t, result.New, 1)
		assert.Len(t, result.Skipped, 1)
		assert.Empty(t, result.Imported)
		assert.Empty(t, pub.published)
	})

	t.Run("Imported", func(t *testing.T) {
		svc, m, pub := newService(t)

		m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)
		m.categories.EXPECT().Get(gomock.Any(), profileID, expense.ID).Return(expense, nil)
		m.repo.EXPECT().BeginImport(gomock.Any(), card.ID).Return(m.uow, nil)
		m.uow.EXPECT().Rollback().Return(nil)
		m.uow.EXPECT().FindDuplicates(gomock.Any(), card.ID, gomock.Any()).Return(nil, nil)
		m.uow.EXPECT().GetOrCreateInvoice(gomock.Any(), card.ID, gomock.Any()).DoAndReturn(fakeInvoices).Times(2)
		m.uow.EXPECT().CreateTransactions(gomock.Any(), gomock.Len(2)).Return(nil)
		m.uow.EXPECT().Commit().Return(nil)

		result, err := svc.ImportStatement(context.Background(), transaction.ImportParams{
			ProfileID: profileID, CreditCardID: card.ID, CategoryID: expense.ID, Lines: lines,
		})
		require.NoError(t, err)

		require.Len(t, result.Imported, 2)
		assert.Equal(t, "UBER *TRIP", result.Imported[0].Description)
		assert.Equal(t, time.March, result.Imported[0].Invoice.Month)
		assert.Equal(t, "Groceries", result.Imported[1].Description)
		assert.Equal(t, "MERCADO CENTRAL", *result.Imported[1].OriginalStatementDescription)
		assert.Equal(t, time.April, result.Imported[1].Invoice.Month)
		assert.Len(t, result.Skipped, 1)
		assert.Equal(t, []events.Type{events.StatementImported}, pub.published)
	})

	t.Run("OnlyCredits", func(t *testing.T) {
		svc, m, _ := newService(t)

		m.cards.EXPECT().GetCard(gomock.Any(), profileID, card.ID).Return(card, nil)

		result, err := svc.ImportStatement(context.Background(), transaction.ImportParams{
			ProfileID: profileID, CreditCardID: card.ID, CategoryID: expense.ID, Lines: lines[2:],
		})
		require.NoError(t, err)
		assert.Empty(t, result.Imported)
		assert.Len(t, result.Skipped, 1)
	})
}

func TestService_List_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.List(context.Background(), uuid.New(), transaction.ListFilter{Status: ptr(transaction.Status("LATE"))})
	require.Error(t, err)
	assert.Equal(t, "status", apperr.Field(err))
}

func TestService_List_AnchorsToday(t *testing.T) {
	svc, m, _ := newService(t)
	profileID := uuid.New()

	m.repo.EXPECT().ListTransactions(gomock.Any(), profileID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, f transaction.ListFilter) ([]*transaction.Transaction, error) {
			assert.Equal(t, time.Date(2024, time.April, 8, 0, 0, 0, 0, time.UTC), f.Today)
			return nil, nil
		})

	_, err := svc.List(context.Background(), profileID, transaction.ListFilter{})
	require.NoError(t, err)
}
