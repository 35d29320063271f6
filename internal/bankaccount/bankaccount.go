// Package bankaccount exposes the bank accounts a profile owns. Accounts are
// managed elsewhere; the ledger only reads them to pick a default source,
// check ownership and compute balances for invoice payments.
package bankaccount

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
)

var ErrNotFound = apperr.NotFound("bank_account")

type Account struct {
	ID             uuid.UUID
	ProfileID      uuid.UUID
	Name           string
	InitialBalance decimal.Decimal
	IsDefault      bool
	CreatedAt      time.Time
}
