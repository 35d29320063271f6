package importcsv

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
	txhttp "github.com/MrJamesThe3rd/ledger/internal/http/transaction"
	"github.com/MrJamesThe3rd/ledger/internal/importer"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

type Parser interface {
	Parse(ctx context.Context, profileID uuid.UUID, bank importer.Bank, r io.Reader) ([]transaction.StatementLine, error)
}

type Importer interface {
	ImportStatement(ctx context.Context, params transaction.ImportParams) (*transaction.ImportResult, error)
	ConfirmStatement(ctx context.Context, params transaction.ImportParams) (*transaction.ImportResult, error)
	Today() time.Time
}

type Handler struct {
	parser   Parser
	importer Importer
	logger   *zap.Logger
}

func NewHandler(parser Parser, importer Importer, logger *zap.Logger) *Handler {
	return &Handler{parser: parser, importer: importer, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
	r.Post("/confirm", h.confirmImport)
}

type lineDTO struct {
	Date           respond.Date    `json:"date"`
	Description    string          `json:"description"`
	RawDescription string          `json:"raw_description"`
	Amount         decimal.Decimal `json:"amount"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
}

type conflictDTO struct {
	Incoming lineDTO         `json:"incoming"`
	Existing txhttp.Response `json:"existing"`
}

type importSuccessResponse struct {
	Imported     int               `json:"imported"`
	Skipped      []lineDTO         `json:"skipped"`
	Transactions []txhttp.Response `json:"transactions"`
}

type importConflictResponse struct {
	New       []lineDTO     `json:"new"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type confirmRequest struct {
	CreditCardID uuid.UUID `json:"credit_card_id"`
	CategoryID   uuid.UUID `json:"category_id"`
	Lines        []lineDTO `json:"lines"`
}

// importCSV parses the uploaded statement and imports its debits onto a
// card. Possible duplicates abort the import with 409 and are listed for
// /confirm.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respond.Error(w, h.logger, apperr.Validation("file", "Failed to parse form."))
		return
	}

	bank := importer.Bank(r.FormValue("bank"))
	if bank == "" {
		respond.Error(w, h.logger, apperr.Validation("bank", "Bank is required."))
		return
	}

	cardID, err := uuid.Parse(r.FormValue("credit_card_id"))
	if err != nil {
		respond.Error(w, h.logger, apperr.Validation("credit_card_id", "Invalid id."))
		return
	}

	categoryID, err := uuid.Parse(r.FormValue("category_id"))
	if err != nil {
		respond.Error(w, h.logger, apperr.Validation("category_id", "Invalid id."))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, h.logger, apperr.Validation("file", "File is required."))
		return
	}
	defer file.Close()

	profileID := auth.ProfileID(r.Context())

	lines, err := h.parser.Parse(r.Context(), profileID, bank, file)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	result, err := h.importer.ImportStatement(r.Context(), transaction.ImportParams{
		ProfileID:    profileID,
		CreditCardID: cardID,
		CategoryID:   categoryID,
		Lines:        lines,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if len(result.Conflicts) > 0 {
		resp := importConflictResponse{
			New:       toLineDTOs(result.New),
			Conflicts: make([]conflictDTO, 0, len(result.Conflicts)),
		}
		for _, c := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, conflictDTO{
				Incoming: toLineDTO(c.Incoming),
				Existing: txhttp.ToResponse(c.Existing, h.importer.Today()),
			})
		}

		respond.JSON(w, http.StatusConflict, resp)

		return
	}

	respond.JSON(w, http.StatusCreated, h.toSuccessResponse(result))
}

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	lines := make([]transaction.StatementLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, transaction.StatementLine{
			Date:           l.Date.Time,
			Description:    l.Description,
			RawDescription: l.RawDescription,
			Amount:         l.Amount,
			CategoryID:     l.CategoryID,
		})
	}

	result, err := h.importer.ConfirmStatement(r.Context(), transaction.ImportParams{
		ProfileID:    auth.ProfileID(r.Context()),
		CreditCardID: req.CreditCardID,
		CategoryID:   req.CategoryID,
		Lines:        lines,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, h.toSuccessResponse(result))
}

func (h *Handler) toSuccessResponse(result *transaction.ImportResult) importSuccessResponse {
	return importSuccessResponse{
		Imported:     len(result.Imported),
		Skipped:      toLineDTOs(result.Skipped),
		Transactions: txhttp.ToResponseList(result.Imported, h.importer.Today()),
	}
}

func toLineDTO(l transaction.StatementLine) lineDTO {
	return lineDTO{
		Date:           respond.NewDate(l.Date),
		Description:    l.Description,
		RawDescription: l.RawDescription,
		Amount:         l.Amount,
		CategoryID:     l.CategoryID,
	}
}

func toLineDTOs(lines []transaction.StatementLine) []lineDTO {
	out := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, toLineDTO(l))
	}

	return out
}
