// Package matching remembers how a profile likes statement descriptions to be
// named and categorized.
package matching

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
)

// Suggestion is the preferred rendering of a raw statement description.
type Suggestion struct {
	Description string
	CategoryID  *uuid.UUID
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	// FindMatch returns the mapping with the longest pattern contained in
	// rawDescription, or nil when none matches.
	FindMatch(ctx context.Context, profileID uuid.UUID, rawDescription string) (*Suggestion, error)
	UpsertMapping(ctx context.Context, profileID uuid.UUID, rawPattern string, s Suggestion) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns nil when no mapping applies.
func (s *Service) Suggest(ctx context.Context, profileID uuid.UUID, rawDescription string) (*Suggestion, error) {
	raw := strings.TrimSpace(rawDescription)
	if raw == "" {
		return nil, nil
	}

	return s.repo.FindMatch(ctx, profileID, raw)
}

// Learn remembers a mapping, replacing any previous one for the same pattern.
func (s *Service) Learn(ctx context.Context, profileID uuid.UUID, rawPattern string, suggestion Suggestion) error {
	pattern := strings.TrimSpace(rawPattern)
	if pattern == "" {
		return apperr.Validation("raw_pattern", "Raw pattern is required.")
	}

	suggestion.Description = strings.TrimSpace(suggestion.Description)
	if suggestion.Description == "" {
		return apperr.Validation("preferred_description", "Preferred description is required.")
	}

	return s.repo.UpsertMapping(ctx, profileID, pattern, suggestion)
}
