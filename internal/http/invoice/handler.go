package invoice

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/export"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
	txhttp "github.com/MrJamesThe3rd/ledger/internal/http/transaction"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type Invoices interface {
	GetInvoice(ctx context.Context, profileID, id uuid.UUID) (*creditcard.Invoice, error)
	PayInvoice(ctx context.Context, profileID, id uuid.UUID, params creditcard.PaymentParams) (*creditcard.Invoice, error)
	ReopenInvoice(ctx context.Context, profileID, id uuid.UUID) (*creditcard.Invoice, error)
}

type Transactions interface {
	List(ctx context.Context, profileID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	DeleteInvoice(ctx context.Context, profileID, invoiceID uuid.UUID) error
	Today() time.Time
}

type Exporter interface {
	Export(ctx context.Context, profileID, invoiceID uuid.UUID, outputDir string) (*export.Result, error)
	GenerateSummary(inv *creditcard.Invoice, items []export.Item, today time.Time) string
}

type Handler struct {
	invoices     Invoices
	transactions Transactions
	exporter     Exporter
	logger       *zap.Logger
}

func NewHandler(invoices Invoices, transactions Transactions, exporter Exporter, logger *zap.Logger) *Handler {
	return &Handler{
		invoices:     invoices,
		transactions: transactions,
		exporter:     exporter,
		logger:       logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/transactions", h.listTransactions)
	r.Post("/{id}/payment", h.pay)
	r.Post("/{id}/reopen", h.reopen)
	r.Get("/{id}/export", h.export)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	inv, err := h.invoices.GetInvoice(r.Context(), auth.ProfileID(r.Context()), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(inv, h.transactions.Today()))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	profileID := auth.ProfileID(r.Context())

	// Resolve first so a foreign invoice is not-found rather than empty.
	if _, err := h.invoices.GetInvoice(r.Context(), profileID, id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	txs, err := h.transactions.List(r.Context(), profileID, transaction.ListFilter{InvoiceID: &id})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, txhttp.ToResponseList(txs, h.transactions.Today()))
}

type paymentRequest struct {
	BankAccountID uuid.UUID     `json:"bank_account_id"`
	PaymentDate   *respond.Date `json:"payment_date,omitempty"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req paymentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	params := creditcard.PaymentParams{BankAccountID: req.BankAccountID}
	if req.PaymentDate != nil {
		params.PaymentDate = new(req.PaymentDate.Time)
	}

	inv, err := h.invoices.PayInvoice(r.Context(), auth.ProfileID(r.Context()), id, params)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(inv, h.transactions.Today()))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	inv, err := h.invoices.ReopenInvoice(r.Context(), auth.ProfileID(r.Context()), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(inv, h.transactions.Today()))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if err := h.transactions.DeleteInvoice(r.Context(), auth.ProfileID(r.Context()), id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// export streams a zip with every downloaded attachment and summary.txt.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "ledger-export-*")
	if err != nil {
		respond.Error(w, h.logger, fmt.Errorf("creating export dir: %w", err))
		return
	}
	defer os.RemoveAll(tmpDir)

	result, err := h.exporter.Export(r.Context(), auth.ProfileID(r.Context()), id, tmpDir)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	summary := h.exporter.GenerateSummary(result.Invoice, result.Items, h.transactions.Today())
	if err := os.WriteFile(filepath.Join(tmpDir, "summary.txt"), []byte(summary), 0o644); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("writing summary: %w", err))
		return
	}

	inv := result.Invoice

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"invoice_%d%02d.zip\"", inv.Year, int(inv.Month)))

	zipWriter := zip.NewWriter(w)
	defer zipWriter.Close()

	err = filepath.WalkDir(tmpDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(tmpDir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		h.logger.Error("failed to write export zip", zap.Stringer("invoice_id", id), zap.Error(err))
	}
}
