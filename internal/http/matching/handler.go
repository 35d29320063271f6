package matching

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
	"github.com/MrJamesThe3rd/ledger/internal/matching"
)

type Service interface {
	Suggest(ctx context.Context, profileID uuid.UUID, rawDescription string) (*matching.Suggestion, error)
	Learn(ctx context.Context, profileID uuid.UUID, rawPattern string, suggestion matching.Suggestion) error
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Post("/", h.learn)
}

type suggestResponse struct {
	RawDescription       string     `json:"raw_description"`
	PreferredDescription string     `json:"preferred_description"`
	CategoryID           *uuid.UUID `json:"category_id"`
	Matched              bool       `json:"matched"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	rawDesc := r.URL.Query().Get("raw_description")
	if rawDesc == "" {
		respond.Error(w, h.logger, apperr.Validation("raw_description", "Raw description is required."))
		return
	}

	suggestion, err := h.svc.Suggest(r.Context(), auth.ProfileID(r.Context()), rawDesc)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := suggestResponse{RawDescription: rawDesc}
	if suggestion != nil {
		resp.PreferredDescription = suggestion.Description
		resp.CategoryID = suggestion.CategoryID
		resp.Matched = true
	}

	respond.JSON(w, http.StatusOK, resp)
}

type learnRequest struct {
	RawPattern           string     `json:"raw_pattern"`
	PreferredDescription string     `json:"preferred_description"`
	CategoryID           *uuid.UUID `json:"category_id,omitempty"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	err := h.svc.Learn(r.Context(), auth.ProfileID(r.Context()), req.RawPattern, matching.Suggestion{
		Description: req.PreferredDescription,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
