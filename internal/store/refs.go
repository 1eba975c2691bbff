package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/IgorDroma/reports-admin/internal/core"
)

// GetProductID looks a product up by its external key.
// Returns core.ErrNotFound when no product carries the key.
func (s *Store) GetProductID(ctx context.Context, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id FROM products WHERE external_key = $1`, key,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	return id, nil
}

// CreateProduct inserts a product. A concurrent insert of the same key
// surfaces as core.ErrDuplicate, which callers resolve with a re-fetch.
func (s *Store) CreateProduct(ctx context.Context, p core.Product) error {
	var categoryID any
	if p.CategoryID != uuid.Nil {
		categoryID = pgUUID(p.CategoryID)
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO products (id, external_key, name, category_id) VALUES ($1, $2, $3, $4)`,
		pgUUID(p.ID), p.Key, p.Name, categoryID,
	)
	if err != nil {
		return fmt.Errorf("create product %s: %w", p.Key, mapError(err))
	}
	return nil
}

// GetCategoryID looks a category up by name.
func (s *Store) GetCategoryID(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id FROM product_categories WHERE name = $1`, name,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	return id, nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO product_categories (id, name) VALUES ($1, $2)`,
		pgUUID(c.ID), c.Name,
	)
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Name, mapError(err))
	}
	return nil
}
