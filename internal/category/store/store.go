package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/ledger/internal/category"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the category only when it belongs to profileID.
func (s *Store) Get(ctx context.Context, profileID, id uuid.UUID) (*category.Category, error) {
	query := `SELECT id, profile_id, name, type FROM categories WHERE id = $1 AND profile_id = $2`

	var c category.Category

	var typeStr string

	err := s.db.QueryRowContext(ctx, query, id, profileID).Scan(&c.ID, &c.ProfileID, &c.Name, &typeStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, category.ErrNotFound
		}

		return nil, fmt.Errorf("getting category: %w", err)
	}

	c.Type = category.Type(typeStr)

	return &c, nil
}

func (s *Store) List(ctx context.Context, profileID uuid.UUID) ([]*category.Category, error) {
	query := `SELECT id, profile_id, name, type FROM categories WHERE profile_id = $1 ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*category.Category

	for rows.Next() {
		var c category.Category

		var typeStr string

		if err := rows.Scan(&c.ID, &c.ProfileID, &c.Name, &typeStr); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		c.Type = category.Type(typeStr)
		categories = append(categories, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}

	return categories, nil
}
