package importer

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
	"github.com/MrJamesThe3rd/ledger/internal/importer/cgd"
	"github.com/MrJamesThe3rd/ledger/internal/matching"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

//go:generate mockgen -source=service.go -destination=matcher_mock.go -package=importer
type Matcher interface {
	Suggest(ctx context.Context, profileID uuid.UUID, rawDescription string) (*matching.Suggestion, error)
}

type Service struct {
	parsers map[Bank]StatementParser
	matcher Matcher
	logger  *zap.Logger
}

func NewService(matcher Matcher, logger *zap.Logger) *Service {
	return &Service{
		parsers: map[Bank]StatementParser{
			BankCGD: cgd.NewParser(),
		},
		matcher: matcher,
		logger:  logger,
	}
}

// Parse reads a bank export into statement lines, renaming and categorizing
// each line with the profile's learned mappings. A failed lookup leaves the
// line as parsed.
func (s *Service) Parse(ctx context.Context, profileID uuid.UUID, bank Bank, r io.Reader) ([]transaction.StatementLine, error) {
	parser, ok := s.parsers[bank]
	if !ok {
		return nil, apperr.Validation("bank", "Unknown bank: "+string(bank)+".")
	}

	lines, err := parser.Parse(r)
	if err != nil {
		return nil, apperr.Validation("file", err.Error())
	}

	for i, l := range lines {
		sg, err := s.matcher.Suggest(ctx, profileID, l.RawDescription)
		if err != nil {
			s.logger.Warn("matching suggestion failed", zap.String("raw_description", l.RawDescription), zap.Error(err))
			continue
		}

		if sg == nil {
			continue
		}

		lines[i].Description = sg.Description
		if sg.CategoryID != nil {
			lines[i].CategoryID = sg.CategoryID
		}
	}

	return lines, nil
}
