package store

import (
	"context"
	"database/sql"
	"strings"

	"sacolao-service/internal/models"
)

// ListCategories retrieves all categories in display order
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories,
		"SELECT * FROM categories ORDER BY position, name")
	return categories, err
}

// ListUnits retrieves all sales units
func (s *Store) ListUnits(ctx context.Context) ([]models.Unit, error) {
	var units []models.Unit
	err := s.db.SelectContext(ctx, &units, "SELECT * FROM units ORDER BY name")
	return units, err
}

// ResolveCategory maps a free-text category name to a category id: exact
// case-insensitive match first, then substring containment either way, else a
// new category is created. This is the bulk importer's contract.
func (s *Store) ResolveCategory(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM categories WHERE LOWER(name) = LOWER($1)", name)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	categories, err := s.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(name)
	for _, c := range categories {
		cl := strings.ToLower(c.Name)
		if strings.Contains(lower, cl) || strings.Contains(cl, lower) {
			return c.ID, nil
		}
	}

	err = s.db.GetContext(ctx, &id,
		"INSERT INTO categories (name) VALUES ($1) RETURNING id", name)
	return id, err
}

// ResolveUnit maps a free-text unit name to a unit id with the same matching
// rules as ResolveCategory.
func (s *Store) ResolveUnit(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM units WHERE LOWER(name) = LOWER($1)", name)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	units, err := s.ListUnits(ctx)
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(name)
	for _, u := range units {
		ul := strings.ToLower(u.Name)
		if strings.Contains(lower, ul) || strings.Contains(ul, lower) {
			return u.ID, nil
		}
	}

	err = s.db.GetContext(ctx, &id,
		"INSERT INTO units (name) VALUES ($1) RETURNING id", name)
	return id, err
}
