package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/category"
)

// UpdateParams holds the fields to change; nil fields are left untouched.
// Fields that define a transaction's place in its source or installment
// group can be echoed back unchanged but not modified.
type UpdateParams struct {
	CategoryID    *uuid.UUID
	Description   *string
	Amount        *decimal.Decimal
	Date          *time.Time
	SourceType    *SourceType
	BankAccountID *uuid.UUID
	CreditCardID  *uuid.UUID
	InvoiceID     *uuid.UUID
	Attachment    *string

	IsInstallment     *bool
	TotalInstallments *int
	PurchaseGroupID   *uuid.UUID

	// ApplyToAllInstallments spreads category, amount and description over
	// every member of the installment group.
	ApplyToAllInstallments bool
}

func (s *Service) Update(ctx context.Context, profileID, id uuid.UUID, params UpdateParams) (tx *Transaction, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction_id", id.String()),
		attribute.Bool("apply_to_all", params.ApplyToAllInstallments),
	)

	done := s.metrics.Track("update_transaction")
	defer func() { done(err) }()

	current, err := s.repo.GetTransaction(ctx, profileID, id)
	if err != nil {
		return nil, err
	}

	if err := checkImmutable(current, params); err != nil {
		return nil, err
	}

	if params.Description != nil {
		if err := validateDescription(*params.Description); err != nil {
			return nil, err
		}
	}

	var cat *category.Category

	if params.CategoryID != nil {
		if cat, err = s.ownedCategory(ctx, profileID, *params.CategoryID); err != nil {
			return nil, err
		}

		if current.SourceType == SourceCreditCard && cat.Type != category.TypeExpense {
			return nil, apperr.Validation("category", "Credit card transactions must use an expense category.")
		}
	}

	if params.Amount != nil {
		if err := validateAmount(*params.Amount); err != nil {
			return nil, err
		}

		if current.SourceType == SourceCreditCard {
			card, err := s.ownedCard(ctx, profileID, *current.CreditCardID)
			if err != nil {
				return nil, err
			}

			if !card.Covers(*params.Amount) {
				return nil, apperr.Validation("credit_card", "Credit card limit is not enough.")
			}
		}
	}

	if params.ApplyToAllInstallments && current.isCardInstallment() {
		tx, err = s.updateGroup(ctx, current, params, cat)
	} else {
		tx, err = s.updateSingle(ctx, current, params, cat)
	}

	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction updated",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("transaction_id", id),
		zap.Bool("apply_to_all", params.ApplyToAllInstallments),
	)

	return tx, nil
}

func checkImmutable(current *Transaction, params UpdateParams) error {
	if params.SourceType != nil && *params.SourceType != current.SourceType {
		return apperr.Validation("source_type", "Source type cannot be changed.")
	}

	if current.SourceType == SourceBankAccount {
		switch {
		case params.CreditCardID != nil:
			return apperr.Validation("credit_card", "Credit card must be empty for bank account transactions.")
		case params.InvoiceID != nil:
			return apperr.Validation("invoice", "Invoice must be empty for bank account transactions.")
		case (params.IsInstallment != nil && *params.IsInstallment) || params.TotalInstallments != nil || params.PurchaseGroupID != nil:
			return apperr.Validation("is_installment", "Installments are only allowed for credit card transactions.")
		}

		return nil
	}

	switch {
	case params.BankAccountID != nil:
		return apperr.Validation("bank_account", "Bank account must be empty for credit card transactions.")
	case params.CreditCardID != nil && *params.CreditCardID != *current.CreditCardID:
		return apperr.Validation("credit_card", "Credit card cannot be changed.")
	case params.InvoiceID != nil && (current.InvoiceID == nil || *params.InvoiceID != *current.InvoiceID):
		return apperr.Validation("invoice", "Invoice is derived from the transaction date and cannot be set.")
	case params.IsInstallment != nil && *params.IsInstallment != current.IsInstallment:
		return apperr.Validation("is_installment", "Installment flag cannot be changed.")
	}

	if !current.IsInstallment {
		if params.TotalInstallments != nil || params.PurchaseGroupID != nil {
			return apperr.Validation("is_installment", "A single transaction cannot be turned into installments.")
		}

		return nil
	}

	switch {
	case params.TotalInstallments != nil && (current.TotalInstallments == nil || *params.TotalInstallments != *current.TotalInstallments):
		return apperr.Validation("total_installments", "Total installments cannot be changed.")
	case params.PurchaseGroupID != nil && (current.PurchaseGroupID == nil || *params.PurchaseGroupID != *current.PurchaseGroupID):
		return apperr.Validation("purchase_group", "Purchase group cannot be changed.")
	case params.Date != nil && !calendar.Date(*params.Date).Equal(calendar.Date(current.Date)):
		return apperr.Validation("transaction_date", "Installment dates cannot be changed.")
	}

	return nil
}

// updateGroup applies category, amount and description to every member of
// the current transaction's installment group under the group lock.
func (s *Service) updateGroup(ctx context.Context, current *Transaction, params UpdateParams, cat *category.Category) (*Transaction, error) {
	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer uow.Rollback()

	members, err := uow.LockGroup(ctx, *current.PurchaseGroupID)
	if err != nil {
		return nil, fmt.Errorf("lock installment group: %w", err)
	}

	group, err := NewInstallmentGroup(*current.PurchaseGroupID, members)
	if err != nil {
		return nil, err
	}

	if params.Description != nil {
		if err := validateInstallmentDescription(*params.Description, group.Len()); err != nil {
			return nil, err
		}
	}

	var updated *Transaction

	for _, m := range group.Members() {
		if cat != nil {
			m.CategoryID = cat.ID
			m.Type = Type(cat.Type)
		}

		if params.Amount != nil {
			m.Amount = *params.Amount
		}

		if params.Description != nil {
			original := *params.Description
			m.OriginalPurchaseDescription = &original
		}

		if m.ID == current.ID {
			if params.Attachment != nil {
				m.Attachment = params.Attachment
			}

			updated = m
		}
	}

	if updated == nil {
		return nil, ErrNotFound
	}

	group.Renumber()

	if err := uow.UpdateTransactions(ctx, group.Members()); err != nil {
		return nil, fmt.Errorf("update installments: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return updated, nil
}

func (s *Service) updateSingle(ctx context.Context, current *Transaction, params UpdateParams, cat *category.Category) (*Transaction, error) {
	tx := current

	if cat != nil {
		tx.CategoryID = cat.ID
		tx.Type = Type(cat.Type)
	}

	if params.Amount != nil {
		tx.Amount = *params.Amount
	}

	if params.Description != nil {
		tx.Description = *params.Description
	}

	if params.Attachment != nil {
		tx.Attachment = params.Attachment
	}

	if params.BankAccountID != nil && (tx.BankAccountID == nil || *params.BankAccountID != *tx.BankAccountID) {
		account, err := s.resolveBankAccount(ctx, tx.ProfileID, params.BankAccountID)
		if err != nil {
			return nil, err
		}

		tx.BankAccountID = &account.ID
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer uow.Rollback()

	if params.Date != nil && !calendar.Date(*params.Date).Equal(calendar.Date(tx.Date)) {
		tx.Date = calendar.Date(*params.Date)

		// A single card charge follows its date to the matching invoice.
		if tx.SourceType == SourceCreditCard {
			card, err := s.ownedCard(ctx, tx.ProfileID, *tx.CreditCardID)
			if err != nil {
				return nil, err
			}

			inv, err := uow.GetOrCreateInvoice(ctx, card.ID, card.PeriodFor(tx.Date))
			if err != nil {
				return nil, fmt.Errorf("get or create invoice: %w", err)
			}

			tx.InvoiceID = &inv.ID
			tx.Invoice = invoiceRef(inv)
			tx.PaymentBankAccountID = inv.BankAccountID
			tx.PaymentDate = inv.PaymentDate
		}
	}

	if err := uow.UpdateTransactions(ctx, []*Transaction{tx}); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return tx, nil
}
