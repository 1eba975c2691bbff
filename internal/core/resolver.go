package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Resolver idempotently maps natural keys (external product id, category
// name) to stored entity ids, creating entities on first sight.
//
// Creation is an explicit two-step contract rather than a store-native
// upsert: attempt the insert, and on a uniqueness violation re-fetch the
// row a concurrent import just created. Resolving the same natural key
// twice therefore always yields the same id and never a second row.
type Resolver struct {
	refs ReferenceStore

	// Per-run memo so a thousand line items naming the same product cost
	// one round trip.
	products   map[string]uuid.UUID
	categories map[string]uuid.UUID
}

// NewResolver creates a resolver over the given reference store.
func NewResolver(refs ReferenceStore) *Resolver {
	return &Resolver{
		refs:       refs,
		products:   make(map[string]uuid.UUID),
		categories: make(map[string]uuid.UUID),
	}
}

// ResolveProduct returns the stored id for the line item's product,
// creating the product (and its category, when named) on first sight.
func (r *Resolver) ResolveProduct(ctx context.Context, item LineItem) (uuid.UUID, error) {
	key := strings.TrimSpace(item.ProductKey)
	if key == "" {
		return uuid.Nil, fmt.Errorf("line item %q has no product key", item.ProductName)
	}

	if id, ok := r.products[key]; ok {
		return id, nil
	}

	id, err := r.refs.GetProductID(ctx, key)
	switch {
	case err == nil:
		r.products[key] = id
		return id, nil
	case !errors.Is(err, ErrNotFound):
		return uuid.Nil, fmt.Errorf("look up product %q: %w", key, err)
	}

	// First sight: resolve the parent category, then create.
	var categoryID uuid.UUID
	if name := strings.TrimSpace(item.CategoryName); name != "" {
		categoryID, err = r.resolveCategory(ctx, name)
		if err != nil {
			return uuid.Nil, err
		}
	}

	product := Product{
		ID:         uuid.New(),
		Key:        key,
		Name:       item.ProductName,
		CategoryID: categoryID,
	}

	err = r.refs.CreateProduct(ctx, product)
	switch {
	case err == nil:
		r.products[key] = product.ID
		return product.ID, nil
	case errors.Is(err, ErrDuplicate):
		// A concurrent import created it between our lookup and insert.
		id, err := r.refs.GetProductID(ctx, key)
		if err != nil {
			return uuid.Nil, fmt.Errorf("re-fetch product %q after conflict: %w", key, err)
		}
		r.products[key] = id
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("create product %q: %w", key, err)
	}
}

// resolveCategory returns the stored id for a category name, creating it on
// first sight with the same insert-then-refetch contract.
func (r *Resolver) resolveCategory(ctx context.Context, name string) (uuid.UUID, error) {
	if id, ok := r.categories[name]; ok {
		return id, nil
	}

	id, err := r.refs.GetCategoryID(ctx, name)
	switch {
	case err == nil:
		r.categories[name] = id
		return id, nil
	case !errors.Is(err, ErrNotFound):
		return uuid.Nil, fmt.Errorf("look up category %q: %w", name, err)
	}

	category := Category{ID: uuid.New(), Name: name}

	err = r.refs.CreateCategory(ctx, category)
	switch {
	case err == nil:
		r.categories[name] = category.ID
		return category.ID, nil
	case errors.Is(err, ErrDuplicate):
		id, err := r.refs.GetCategoryID(ctx, name)
		if err != nil {
			return uuid.Nil, fmt.Errorf("re-fetch category %q after conflict: %w", name, err)
		}
		r.categories[name] = id
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("create category %q: %w", name, err)
	}
}
