package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/category"
	"github.com/MrJamesThe3rd/ledger/internal/events"
)

// StatementLine is one movement read from a card statement export.
type StatementLine struct {
	Date time.Time
	// Description is what the transaction will be called; RawDescription is
	// the statement text kept for duplicate detection.
	Description    string
	RawDescription string
	Amount         decimal.Decimal
	// Credit marks refunds and payments, which are not imported.
	Credit     bool
	CategoryID *uuid.UUID
}

type ImportParams struct {
	ProfileID    uuid.UUID
	CreditCardID uuid.UUID
	// CategoryID is used for lines that carry no category of their own.
	CategoryID uuid.UUID
	Lines      []StatementLine
}

type ImportResult struct {
	Imported  []*Transaction
	New       []StatementLine
	Skipped   []StatementLine
	Conflicts []Conflict
}

type Conflict struct {
	Incoming StatementLine
	Existing *Transaction
}

type dupKey struct {
	Date           string
	Amount         string
	RawDescription string
}

func lineKey(l StatementLine) dupKey {
	return dupKey{
		Date:           l.Date.Format(time.DateOnly),
		Amount:         l.Amount.StringFixed(2),
		RawDescription: l.RawDescription,
	}
}

func transactionKey(tx *Transaction) dupKey {
	var raw string
	if tx.OriginalStatementDescription != nil {
		raw = *tx.OriginalStatementDescription
	}

	return dupKey{
		Date:           tx.Date.Format(time.DateOnly),
		Amount:         tx.Amount.StringFixed(2),
		RawDescription: raw,
	}
}

// ImportStatement creates one credit-card charge per debit line of a card
// statement. When any line matches an existing charge of the card (same
// date, amount and statement text) nothing is imported and the conflicts are
// returned so the caller can confirm the lines to keep.
func (s *Service) ImportStatement(ctx context.Context, params ImportParams) (result *ImportResult, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.ImportStatement")
	defer span.End()

	done := s.metrics.Track("import_statement")
	defer func() { done(err) }()

	return s.importLines(ctx, params, true)
}

// ConfirmStatement imports the given lines without duplicate detection.
func (s *Service) ConfirmStatement(ctx context.Context, params ImportParams) (result *ImportResult, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.ConfirmStatement")
	defer span.End()

	done := s.metrics.Track("confirm_statement")
	defer func() { done(err) }()

	return s.importLines(ctx, params, false)
}

func (s *Service) importLines(ctx context.Context, params ImportParams, detectDuplicates bool) (*ImportResult, error) {
	card, err := s.ownedCard(ctx, params.ProfileID, params.CreditCardID)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}

	var debits []StatementLine

	for _, l := range params.Lines {
		if l.Credit {
			result.Skipped = append(result.Skipped, l)
			continue
		}

		l.Date = calendar.Date(l.Date)
		if l.Description == "" {
			l.Description = l.RawDescription
		}

		if err := validateDescription(l.Description); err != nil {
			return nil, err
		}

		if err := validateAmount(l.Amount); err != nil {
			return nil, err
		}

		if !card.Covers(l.Amount) {
			return nil, apperr.Validation("credit_card", "Credit card limit is not enough.")
		}

		debits = append(debits, l)
	}

	if len(debits) == 0 {
		return result, nil
	}

	categories, err := s.importCategories(ctx, params.ProfileID, params.CategoryID, debits)
	if err != nil {
		return nil, err
	}

	uow, err := s.repo.BeginImport(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer uow.Rollback()

	if detectDuplicates {
		duplicates, err := uow.FindDuplicates(ctx, card.ID, debits)
		if err != nil {
			return nil, fmt.Errorf("find duplicates: %w", err)
		}

		lookup := make(map[dupKey]*Transaction, len(duplicates))
		for _, d := range duplicates {
			lookup[transactionKey(d)] = d
		}

		for _, l := range debits {
			if existing, found := lookup[lineKey(l)]; found {
				result.Conflicts = append(result.Conflicts, Conflict{Incoming: l, Existing: existing})
				continue
			}

			result.New = append(result.New, l)
		}

		if len(result.Conflicts) > 0 {
			return result, nil
		}
	}

	txs := make([]*Transaction, 0, len(debits))

	for _, l := range debits {
		inv, err := uow.GetOrCreateInvoice(ctx, card.ID, card.PeriodFor(l.Date))
		if err != nil {
			return nil, fmt.Errorf("get or create invoice: %w", err)
		}

		categoryID := params.CategoryID
		if l.CategoryID != nil {
			categoryID = *l.CategoryID
		}

		tx := newCardTransaction(params.ProfileID, categories[categoryID].ID, card, inv, l.Description, l.Amount, l.Date)
		if l.RawDescription != "" {
			raw := l.RawDescription
			tx.OriginalStatementDescription = &raw
		}

		txs = append(txs, tx)
	}

	if err := uow.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	result.Imported = txs
	result.New = nil

	s.logger.Info("statement imported",
		zap.Stringer("profile_id", params.ProfileID),
		zap.Stringer("credit_card_id", card.ID),
		zap.Int("imported", len(txs)),
		zap.Int("skipped", len(result.Skipped)),
	)

	s.publisher.Publish(ctx, events.StatementImported, events.Payload{
		"profile_id":     params.ProfileID,
		"credit_card_id": card.ID,
		"imported":       len(txs),
	})

	return result, nil
}

// importCategories resolves every category used by lines, each of which must
// be an expense category owned by the profile.
func (s *Service) importCategories(ctx context.Context, profileID, fallback uuid.UUID, lines []StatementLine) (map[uuid.UUID]*category.Category, error) {
	wanted := map[uuid.UUID]struct{}{}

	for _, l := range lines {
		if l.CategoryID != nil {
			wanted[*l.CategoryID] = struct{}{}
		} else {
			wanted[fallback] = struct{}{}
		}
	}

	resolved := make(map[uuid.UUID]*category.Category, len(wanted))

	for id := range wanted {
		cat, err := s.ownedCategory(ctx, profileID, id)
		if err != nil {
			return nil, err
		}

		if cat.Type != category.TypeExpense {
			return nil, apperr.Validation("category", "Credit card transactions must use an expense category.")
		}

		resolved[id] = cat
	}

	return resolved, nil
}
