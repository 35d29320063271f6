package importer

import (
	"io"

	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

// Bank selects the statement format of an upload.
type Bank string

const (
	BankCGD Bank = "cgd"
)

// StatementParser turns one bank's CSV export into statement lines.
type StatementParser interface {
	Parse(r io.Reader) ([]transaction.StatementLine, error)
}
