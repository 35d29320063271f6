package transaction

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/events"
)

// Delete removes a transaction and returns the ids of every deleted row.
// Deleting an installment requires an option: CURRENT_ONLY removes just that
// installment and renumbers the later ones down, CURRENT_AND_FUTURE removes it
// and every later installment. Either way the remaining members end up
// numbered 1..N with total N. The option is ignored for other transactions.
func (s *Service) Delete(ctx context.Context, profileID, id uuid.UUID, option *DeletionOption) (deleted []uuid.UUID, err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", id.String()))

	done := s.metrics.Track("delete_transaction")
	defer func() { done(err) }()

	current, err := s.repo.GetTransaction(ctx, profileID, id)
	if err != nil {
		return nil, err
	}

	if current.isCardInstallment() {
		if option == nil {
			return nil, apperr.Validation("deletion_option", "Deletion option is required for installment transactions.")
		}

		if !option.Valid() {
			return nil, apperr.Validation("deletion_option", "Deletion option must be CURRENT_ONLY or CURRENT_AND_FUTURE.")
		}

		span.SetAttributes(attribute.String("deletion_option", string(*option)))
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer uow.Rollback()

	var remaining []*Transaction

	if current.isCardInstallment() {
		deleted, remaining, err = s.deleteInstallment(ctx, uow, current, *option)
		if err != nil {
			return nil, err
		}
	} else {
		deleted = []uuid.UUID{current.ID}
		if err := uow.DeleteTransactions(ctx, deleted); err != nil {
			return nil, fmt.Errorf("delete transactions: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}

	s.logger.Info("transaction deleted",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("transaction_id", id),
		zap.Int("deleted", len(deleted)),
		zap.Int("remaining_installments", len(remaining)),
	)

	payload := events.Payload{
		"profile_id":      profileID,
		"transaction_ids": deleted,
	}
	if current.PurchaseGroupID != nil {
		payload["purchase_group_id"] = *current.PurchaseGroupID
		payload["remaining_installments"] = len(remaining)
	}

	s.publisher.Publish(ctx, events.TransactionDeleted, payload)

	return deleted, nil
}

func (s *Service) deleteInstallment(ctx context.Context, uow UnitOfWork, current *Transaction, option DeletionOption) ([]uuid.UUID, []*Transaction, error) {
	members, err := uow.LockGroup(ctx, *current.PurchaseGroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock installment group: %w", err)
	}

	group, err := NewInstallmentGroup(*current.PurchaseGroupID, members)
	if err != nil {
		return nil, nil, err
	}

	idx := slices.IndexFunc(group.Members(), func(m *Transaction) bool { return m.ID == current.ID })
	if idx < 0 {
		return nil, nil, ErrNotFound
	}

	var removed []*Transaction

	switch option {
	case DeleteCurrentOnly:
		removed = group.Remove(current.ID)
	case DeleteCurrentAndFuture:
		removed = group.Truncate(*group.Members()[idx].InstallmentNumber)
	}

	deleted := ids(removed)
	if err := uow.DeleteTransactions(ctx, deleted); err != nil {
		return nil, nil, fmt.Errorf("delete transactions: %w", err)
	}

	if group.Len() > 0 {
		if err := uow.UpdateTransactions(ctx, group.Members()); err != nil {
			return nil, nil, fmt.Errorf("renumber installments: %w", err)
		}
	}

	return deleted, group.Members(), nil
}

// DeleteInvoice removes an invoice with all of its transactions. Installment
// groups that had a member on the invoice are renumbered as if that member had
// been deleted with CURRENT_ONLY.
func (s *Service) DeleteInvoice(ctx context.Context, profileID, invoiceID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "TransactionService.DeleteInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", invoiceID.String()))

	done := s.metrics.Track("delete_invoice")
	defer func() { done(err) }()

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin invoice delete: %w", err)
	}
	defer uow.Rollback()

	inv, err := uow.GetInvoice(ctx, profileID, invoiceID)
	if err != nil {
		return err
	}

	txs, err := uow.ListInvoiceTransactions(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("list invoice transactions: %w", err)
	}

	var deleted []uuid.UUID

	byGroup := make(map[uuid.UUID][]uuid.UUID)

	for _, tx := range txs {
		if tx.isCardInstallment() {
			byGroup[*tx.PurchaseGroupID] = append(byGroup[*tx.PurchaseGroupID], tx.ID)
			continue
		}

		deleted = append(deleted, tx.ID)
	}

	// Lock groups in a fixed order so concurrent invoice deletes cannot deadlock.
	groupIDs := make([]uuid.UUID, 0, len(byGroup))
	for id := range byGroup {
		groupIDs = append(groupIDs, id)
	}

	slices.SortFunc(groupIDs, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })

	var renumbered []*Transaction

	for _, groupID := range groupIDs {
		members, err := uow.LockGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("lock installment group: %w", err)
		}

		group, err := NewInstallmentGroup(groupID, members)
		if err != nil {
			return err
		}

		deleted = append(deleted, ids(group.Remove(byGroup[groupID]...))...)
		renumbered = append(renumbered, group.Members()...)
	}

	if len(deleted) > 0 {
		if err := uow.DeleteTransactions(ctx, deleted); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
	}

	if len(renumbered) > 0 {
		if err := uow.UpdateTransactions(ctx, renumbered); err != nil {
			return fmt.Errorf("renumber installments: %w", err)
		}
	}

	if err := uow.DeleteInvoice(ctx, invoiceID); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit invoice delete: %w", err)
	}

	s.logger.Info("invoice deleted",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("invoice_id", invoiceID),
		zap.Int("transactions", len(deleted)),
		zap.Int("groups_renumbered", len(groupIDs)),
	)

	s.publisher.Publish(ctx, events.InvoiceDeleted, events.Payload{
		"profile_id":      profileID,
		"invoice_id":      invoiceID,
		"credit_card_id":  inv.CreditCardID,
		"transaction_ids": deleted,
	})

	return nil
}

func ids(txs []*Transaction) []uuid.UUID {
	out := make([]uuid.UUID, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}

	return out
}
