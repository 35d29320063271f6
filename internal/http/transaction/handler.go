package transaction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

//go:generate mockgen -source=handler.go -destination=service_mock.go -package=transaction

type Service interface {
	Create(ctx context.Context, params transaction.CreateParams) ([]*transaction.Transaction, error)
	Get(ctx context.Context, profileID, id uuid.UUID) (*transaction.Transaction, error)
	List(ctx context.Context, profileID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	Update(ctx context.Context, profileID, id uuid.UUID, params transaction.UpdateParams) (*transaction.Transaction, error)
	Delete(ctx context.Context, profileID, id uuid.UUID, option *transaction.DeletionOption) ([]uuid.UUID, error)
	Today() time.Time
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createTransactionRequest struct {
	CategoryID      uuid.UUID              `json:"category_id"`
	Description     string                 `json:"description"`
	Amount          decimal.Decimal        `json:"amount"`
	TransactionDate respond.Date           `json:"transaction_date"`
	SourceType      transaction.SourceType `json:"source_type"`
	BankAccountID   *uuid.UUID             `json:"bank_account_id,omitempty"`
	CreditCardID    *uuid.UUID             `json:"credit_card_id,omitempty"`

	IsInstallment     bool `json:"is_installment"`
	InstallmentNumber *int `json:"installment_number,omitempty"`
	TotalInstallments *int `json:"total_installments,omitempty"`

	OriginalTransactionID        *string `json:"original_transaction_id,omitempty"`
	OriginalStatementDescription *string `json:"original_statement_description,omitempty"`
	Attachment                   *string `json:"attachment,omitempty"`
}

// create answers with every created row: one for a plain transaction, the
// whole group for an installment purchase.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if req.TransactionDate.IsZero() {
		respond.Error(w, h.logger, apperr.Validation("transaction_date", "Transaction date is required."))
		return
	}

	txs, err := h.svc.Create(r.Context(), transaction.CreateParams{
		ProfileID:                    auth.ProfileID(r.Context()),
		CategoryID:                   req.CategoryID,
		Description:                  req.Description,
		Amount:                       req.Amount,
		Date:                         req.TransactionDate.Time,
		SourceType:                   req.SourceType,
		BankAccountID:                req.BankAccountID,
		CreditCardID:                 req.CreditCardID,
		IsInstallment:                req.IsInstallment,
		InstallmentNumber:            req.InstallmentNumber,
		TotalInstallments:            req.TotalInstallments,
		OriginalTransactionID:        req.OriginalTransactionID,
		OriginalStatementDescription: req.OriginalStatementDescription,
		Attachment:                   req.Attachment,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, ToResponseList(txs, h.svc.Today()))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	txs, err := h.svc.List(r.Context(), auth.ProfileID(r.Context()), filter)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponseList(txs, h.svc.Today()))
}

func parseFilter(q url.Values) (transaction.ListFilter, error) {
	filter := transaction.ListFilter{Search: q.Get("search")}

	if s := q.Get("status"); s != "" {
		filter.Status = new(transaction.Status(s))
	}

	if s := q.Get("type"); s != "" {
		filter.Type = new(transaction.Type(s))
	}

	if s := q.Get("source_type"); s != "" {
		filter.SourceType = new(transaction.SourceType(s))
	}

	ids := []struct {
		key string
		dst **uuid.UUID
	}{
		{"category_id", &filter.CategoryID},
		{"invoice_id", &filter.InvoiceID},
		{"credit_card_id", &filter.CreditCardID},
		{"purchase_group_id", &filter.PurchaseGroupID},
	}
	for _, f := range ids {
		s := q.Get(f.key)
		if s == "" {
			continue
		}

		id, err := uuid.Parse(s)
		if err != nil {
			return filter, apperr.Validation(f.key, "Invalid id.")
		}

		*f.dst = new(id)
	}

	dates := []struct {
		key string
		dst **time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	}
	for _, f := range dates {
		s := q.Get(f.key)
		if s == "" {
			continue
		}

		t, err := respond.ParseDate(s)
		if err != nil {
			return filter, apperr.Validation(f.key, "Date must be formatted as YYYY-MM-DD.")
		}

		*f.dst = new(t)
	}

	return filter, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	tx, err := h.svc.Get(r.Context(), auth.ProfileID(r.Context()), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(tx, h.svc.Today()))
}

type updateTransactionRequest struct {
	CategoryID      *uuid.UUID              `json:"category_id,omitempty"`
	Description     *string                 `json:"description,omitempty"`
	Amount          *decimal.Decimal        `json:"amount,omitempty"`
	TransactionDate *respond.Date           `json:"transaction_date,omitempty"`
	SourceType      *transaction.SourceType `json:"source_type,omitempty"`
	BankAccountID   *uuid.UUID              `json:"bank_account_id,omitempty"`
	CreditCardID    *uuid.UUID              `json:"credit_card_id,omitempty"`
	InvoiceID       *uuid.UUID              `json:"invoice_id,omitempty"`
	Attachment      *string                 `json:"attachment,omitempty"`

	IsInstallment     *bool      `json:"is_installment,omitempty"`
	TotalInstallments *int       `json:"total_installments,omitempty"`
	PurchaseGroupID   *uuid.UUID `json:"purchase_group_id,omitempty"`

	ApplyToAllInstallments bool `json:"apply_to_all_installments"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req updateTransactionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	params := transaction.UpdateParams{
		CategoryID:             req.CategoryID,
		Description:            req.Description,
		Amount:                 req.Amount,
		SourceType:             req.SourceType,
		BankAccountID:          req.BankAccountID,
		CreditCardID:           req.CreditCardID,
		InvoiceID:              req.InvoiceID,
		Attachment:             req.Attachment,
		IsInstallment:          req.IsInstallment,
		TotalInstallments:      req.TotalInstallments,
		PurchaseGroupID:        req.PurchaseGroupID,
		ApplyToAllInstallments: req.ApplyToAllInstallments,
	}
	if req.TransactionDate != nil {
		params.Date = new(req.TransactionDate.Time)
	}

	tx, err := h.svc.Update(r.Context(), auth.ProfileID(r.Context()), id, params)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(tx, h.svc.Today()))
}

type deleteRequest struct {
	DeletionOption *transaction.DeletionOption `json:"deletion_option,omitempty"`
}

type deleteResponse struct {
	DeletedIDs []uuid.UUID `json:"deleted_ids"`
}

// delete takes deletion_option from the query string or, failing that, from
// a JSON body.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	option, err := deletionOption(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	deleted, err := h.svc.Delete(r.Context(), auth.ProfileID(r.Context()), id, option)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, deleteResponse{DeletedIDs: deleted})
}

func deletionOption(r *http.Request) (*transaction.DeletionOption, error) {
	if s := r.URL.Query().Get("deletion_option"); s != "" {
		return new(transaction.DeletionOption(s)), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil || len(body) == 0 {
		return nil, nil
	}

	var req deleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperr.Validation("body", "Invalid request body.")
	}

	return req.DeletionOption, nil
}
