package export_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/export"
	"github.com/MrJamesThe3rd/ledger/internal/resilience"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type fakeInvoices struct {
	inv *creditcard.Invoice
}

func (f fakeInvoices) GetInvoice(_ context.Context, _, id uuid.UUID) (*creditcard.Invoice, error) {
	if f.inv == nil || f.inv.ID != id {
		return nil, creditcard.ErrInvoiceNotFound
	}

	return f.inv, nil
}

type fakeTransactions struct {
	txs    []*transaction.Transaction
	filter transaction.ListFilter
}

func (f *fakeTransactions) List(_ context.Context, _ uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	f.filter = filter
	return f.txs, nil
}

func ptr[T any](v T) *T { return &v }

var noRetry = resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond}

func TestService_Export(t *testing.T) {
	var flaky atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/receipt.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="receipt 123.pdf"`)
			_, _ = w.Write([]byte("fake pdf content"))
		case "/no_filename":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("fake pdf content"))
		case "/flaky":
			if flaky.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}

			_, _ = w.Write([]byte("eventually"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	date := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	inv := &creditcard.Invoice{ID: uuid.New(), CardName: "Visa", Month: time.April, Year: 2024}
	txs := []*transaction.Transaction{
		{ID: uuid.New(), Description: "Hosting", Amount: decimal.NewFromInt(10), Date: date, Attachment: ptr(ts.URL + "/receipt.pdf")},
		{ID: uuid.New(), Description: "Domain Renewal", Amount: decimal.NewFromInt(20), Date: date, Attachment: ptr(ts.URL + "/no_filename")},
		{ID: uuid.New(), Description: "Coffee", Amount: decimal.NewFromInt(3), Date: date},
		{ID: uuid.New(), Description: "Cloud", Amount: decimal.NewFromInt(7), Date: date, Attachment: ptr(ts.URL + "/flaky")},
	}
	lister := &fakeTransactions{txs: txs}

	svc := export.NewService(fakeInvoices{inv: inv}, lister, "test-token",
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}, zap.NewNop())

	dir := t.TempDir()

	result, err := svc.Export(context.Background(), uuid.New(), inv.ID, dir)
	require.NoError(t, err)
	require.Len(t, result.Items, 4)

	assert.Equal(t, inv, result.Invoice)
	assert.Equal(t, &inv.ID, lister.filter.InvoiceID)

	for i, item := range result.Items {
		assert.Same(t, txs[i], item.Transaction)
	}

	assert.Equal(t, "001_receipt_123.pdf", filepath.Base(result.Items[0].FilePath))
	content, err := os.ReadFile(result.Items[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "fake pdf content", string(content))

	assert.Equal(t, "002_20240312_Domain_Renewal.pdf", filepath.Base(result.Items[1].FilePath))
	assert.Empty(t, result.Items[2].FilePath)

	content, err = os.ReadFile(result.Items[3].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "eventually", string(content))
}

func TestService_Export_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	inv := &creditcard.Invoice{ID: uuid.New()}
	lister := &fakeTransactions{txs: []*transaction.Transaction{
		{ID: uuid.New(), Description: "Gone", Attachment: ptr(ts.URL + "/missing")},
	}}

	svc := export.NewService(fakeInvoices{inv: inv}, lister, "",
		resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}, zap.NewNop())

	_, err := svc.Export(context.Background(), uuid.New(), inv.ID, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestService_Export_UnknownInvoice(t *testing.T) {
	svc := export.NewService(fakeInvoices{}, &fakeTransactions{}, "", noRetry, zap.NewNop())

	_, err := svc.Export(context.Background(), uuid.New(), uuid.New(), t.TempDir())
	assert.ErrorIs(t, err, creditcard.ErrInvoiceNotFound)
}

func TestService_GenerateSummary(t *testing.T) {
	svc := export.NewService(fakeInvoices{}, &fakeTransactions{}, "", noRetry, zap.NewNop())

	date := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	inv := &creditcard.Invoice{
		CardName:    "Visa Gold",
		Month:       time.April,
		Year:        2024,
		DueDate:     time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.RequireFromString("17.5"),
	}
	items := []export.Item{
		{Transaction: &transaction.Transaction{Date: date, Amount: decimal.RequireFromString("12.5"), Description: "Hosting"}, FilePath: "/tmp/001_receipt.pdf"},
		{Transaction: &transaction.Transaction{Date: date, Amount: decimal.NewFromInt(5), Description: "Coffee"}},
	}

	got := svc.GenerateSummary(inv, items, time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC))

	want := "Visa Gold 04/2024 | due 2024-04-10 | total 17.50 | OVERDUE\n" +
		"* 2024-03-12 | Hosting | 12.50 | 001_receipt.pdf\n" +
		"* 2024-03-12 | Coffee | 5.00 | no attachment\n"
	assert.Equal(t, want, got)
}
