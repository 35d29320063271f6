// Package category reads the categories a profile owns. A category fixes the
// type (income or expense) of every transaction filed under it.
package category

import (
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
)

var ErrNotFound = apperr.NotFound("category")

type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

type Category struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Name      string
	Type      Type
}
