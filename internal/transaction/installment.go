package transaction

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// InstallmentDescription renders the per-installment description.
func InstallmentDescription(original string, number, total int) string {
	return fmt.Sprintf("%s (%d/%d)", original, number, total)
}

// InstallmentGroup holds the live members of one installment purchase,
// ordered by installment number. After Remove or Truncate the members are
// numbered 1..N with N = Len() and their descriptions regenerated.
type InstallmentGroup struct {
	ID      uuid.UUID
	members []*Transaction
}

func NewInstallmentGroup(id uuid.UUID, members []*Transaction) (*InstallmentGroup, error) {
	for _, m := range members {
		if m.PurchaseGroupID == nil || *m.PurchaseGroupID != id || m.InstallmentNumber == nil {
			return nil, fmt.Errorf("transaction %s is not a member of installment group %s", m.ID, id)
		}
	}

	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b *Transaction) int {
		return *a.InstallmentNumber - *b.InstallmentNumber
	})

	return &InstallmentGroup{ID: id, members: sorted}, nil
}

func (g *InstallmentGroup) Members() []*Transaction {
	return g.members
}

func (g *InstallmentGroup) Len() int {
	return len(g.members)
}

// Remove drops the members with the given ids and closes the gaps they leave.
func (g *InstallmentGroup) Remove(ids ...uuid.UUID) (removed []*Transaction) {
	g.members = slices.DeleteFunc(g.members, func(m *Transaction) bool {
		if slices.Contains(ids, m.ID) {
			removed = append(removed, m)
			return true
		}

		return false
	})

	g.Renumber()

	return removed
}

// Truncate drops every member numbered from or later.
func (g *InstallmentGroup) Truncate(from int) (removed []*Transaction) {
	g.members = slices.DeleteFunc(g.members, func(m *Transaction) bool {
		if *m.InstallmentNumber >= from {
			removed = append(removed, m)
			return true
		}

		return false
	})

	g.Renumber()

	return removed
}

// Renumber assigns contiguous numbers 1..N in the current order, sets every
// total to N and regenerates the suffixed descriptions.
func (g *InstallmentGroup) Renumber() {
	total := len(g.members)

	for i, m := range g.members {
		number, n := i+1, total
		m.InstallmentNumber = &number
		m.TotalInstallments = &n

		if m.OriginalPurchaseDescription != nil {
			m.Description = InstallmentDescription(*m.OriginalPurchaseDescription, number, total)
		}
	}
}
