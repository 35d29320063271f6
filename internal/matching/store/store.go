package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/matching"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, profileID uuid.UUID, rawDescription string) (*matching.Suggestion, error) {
	query := `
		SELECT preferred_description, category_id
		FROM description_mappings
		WHERE profile_id = $1 AND $2 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var (
		sg         matching.Suggestion
		categoryID uuid.NullUUID
	)

	err := s.db.QueryRowContext(ctx, query, profileID, rawDescription).Scan(&sg.Description, &categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding match: %w", err)
	}

	if categoryID.Valid {
		sg.CategoryID = &categoryID.UUID
	}

	return &sg, nil
}

func (s *Store) UpsertMapping(ctx context.Context, profileID uuid.UUID, rawPattern string, sg matching.Suggestion) error {
	query := `
		INSERT INTO description_mappings (profile_id, raw_pattern, preferred_description, category_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (profile_id, raw_pattern) DO UPDATE
		SET preferred_description = EXCLUDED.preferred_description,
			category_id = EXCLUDED.category_id,
			created_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, profileID, rawPattern, sg.Description, sg.CategoryID)
	if err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}

	return nil
}
