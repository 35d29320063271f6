package creditcard

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	"github.com/MrJamesThe3rd/ledger/internal/http/invoice"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
)

type Service interface {
	CreateCard(ctx context.Context, params creditcard.CreateCardParams) (*creditcard.CreditCard, error)
	GetCard(ctx context.Context, profileID, id uuid.UUID) (*creditcard.CreditCard, error)
	ListCards(ctx context.Context, profileID uuid.UUID) ([]*creditcard.CreditCard, error)
	UpdateCard(ctx context.Context, profileID, id uuid.UUID, params creditcard.UpdateCardParams) (*creditcard.CreditCard, error)
	DeleteCard(ctx context.Context, profileID, id uuid.UUID) error
	ListInvoices(ctx context.Context, profileID, cardID uuid.UUID) ([]*creditcard.Invoice, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/invoices", h.listInvoices)
}

type createCardRequest struct {
	Name           string           `json:"name"`
	CreditLimit    decimal.Decimal  `json:"credit_limit"`
	AdditionalInfo string           `json:"additional_info"`
	ClosingDay     int              `json:"closing_day"`
	DueDay         int              `json:"due_day"`
	Brand          creditcard.Brand `json:"brand"`
}

type updateCardRequest struct {
	Name           *string           `json:"name"`
	CreditLimit    *decimal.Decimal  `json:"credit_limit"`
	AdditionalInfo *string           `json:"additional_info"`
	ClosingDay     *int              `json:"closing_day"`
	DueDay         *int              `json:"due_day"`
	Brand          *creditcard.Brand `json:"brand"`
}

type cardResponse struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	CreditLimit    string           `json:"credit_limit"`
	AdditionalInfo string           `json:"additional_info,omitempty"`
	ClosingDay     int              `json:"closing_day"`
	DueDay         int              `json:"due_day"`
	Brand          creditcard.Brand `json:"brand"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      *time.Time       `json:"updated_at,omitempty"`
}

func toCardResponse(c *creditcard.CreditCard) cardResponse {
	return cardResponse{
		ID:             c.ID,
		Name:           c.Name,
		CreditLimit:    c.CreditLimit.StringFixed(2),
		AdditionalInfo: c.AdditionalInfo,
		ClosingDay:     c.ClosingDay,
		DueDay:         c.DueDay,
		Brand:          c.Brand,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	card, err := h.svc.CreateCard(r.Context(), creditcard.CreateCardParams{
		ProfileID:      auth.ProfileID(r.Context()),
		Name:           req.Name,
		CreditLimit:    req.CreditLimit,
		AdditionalInfo: req.AdditionalInfo,
		ClosingDay:     req.ClosingDay,
		DueDay:         req.DueDay,
		Brand:          req.Brand,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toCardResponse(card))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ListCards(r.Context(), auth.ProfileID(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := make([]cardResponse, len(cards))
	for i, c := range cards {
		resp[i] = toCardResponse(c)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	card, err := h.svc.GetCard(r.Context(), auth.ProfileID(r.Context()), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCardResponse(card))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req updateCardRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	card, err := h.svc.UpdateCard(r.Context(), auth.ProfileID(r.Context()), id, creditcard.UpdateCardParams{
		Name:           req.Name,
		CreditLimit:    req.CreditLimit,
		AdditionalInfo: req.AdditionalInfo,
		ClosingDay:     req.ClosingDay,
		DueDay:         req.DueDay,
		Brand:          req.Brand,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCardResponse(card))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if err := h.svc.DeleteCard(r.Context(), auth.ProfileID(r.Context()), id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	invs, err := h.svc.ListInvoices(r.Context(), auth.ProfileID(r.Context()), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, invoice.ToResponseList(invs, calendar.Date(h.now())))
}
