// internal/storage/menu.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/models"
)

var _ catalog.Source = (*Storage)(nil)

// Load reads the menu and current stock into a fresh catalog snapshot.
func (s *Storage) Load(ctx context.Context) (*catalog.Catalog, error) {
	sizes, err := s.loadSizes(ctx)
	if err != nil {
		return nil, err
	}
	bases, err := s.loadBases(ctx)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.loadIngredients(ctx)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(sizes, bases, ingredients)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return cat, nil
}

func (s *Storage) loadSizes(ctx context.Context) ([]models.Size, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT size, price, max_ingredients FROM sizes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sizes: %w", err)
	}
	defer rows.Close()

	var sizes []models.Size
	for rows.Next() {
		var size models.Size
		if err := rows.Scan(&size.Name, &size.Price, &size.MaxIngredients); err != nil {
			return nil, fmt.Errorf("failed to scan size: %w", err)
		}
		sizes = append(sizes, size)
	}
	return sizes, rows.Err()
}

func (s *Storage) loadBases(ctx context.Context) ([]models.Base, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT base FROM bases ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bases: %w", err)
	}
	defer rows.Close()

	var bases []models.Base
	for rows.Next() {
		var base models.Base
		if err := rows.Scan(&base.Name); err != nil {
			return nil, fmt.Errorf("failed to scan base: %w", err)
		}
		bases = append(bases, base)
	}
	return bases, rows.Err()
}

func (s *Storage) loadIngredients(ctx context.Context) ([]models.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, price, quantity, requires FROM ingredients ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []models.Ingredient
	index := make(map[string]int)
	for rows.Next() {
		var (
			in       models.Ingredient
			quantity sql.NullInt64
			requires sql.NullString
		)
		if err := rows.Scan(&in.Name, &in.Price, &quantity, &requires); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		if quantity.Valid {
			in.Quantity = models.Limited(int(quantity.Int64))
		}
		in.Requires = requires.String
		index[in.Name] = len(ingredients)
		ingredients = append(ingredients, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ingredients: %w", err)
	}
	rows.Close()

	// One row per pair; both members learn about the other.
	pairs, err := s.db.QueryContext(ctx, `SELECT ingredient1, ingredient2 FROM incompatibilities`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incompatibilities: %w", err)
	}
	defer pairs.Close()

	for pairs.Next() {
		var a, b string
		if err := pairs.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("failed to scan incompatibility: %w", err)
		}
		i, okA := index[a]
		j, okB := index[b]
		if !okA || !okB {
			continue
		}
		ingredients[i].Incompatibilities = appendUnique(ingredients[i].Incompatibilities, b)
		ingredients[j].Incompatibilities = appendUnique(ingredients[j].Incompatibilities, a)
	}
	return ingredients, pairs.Err()
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}

// MenuEmpty reports whether no size has been stored yet.
func (s *Storage) MenuEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sizes`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count sizes: %w", err)
	}
	return n == 0, nil
}

// SeedMenu writes a validated catalog into empty tables in one transaction.
func (s *Storage) SeedMenu(ctx context.Context, cat *catalog.Catalog) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		for i, size := range cat.Sizes() {
			if _, err := tx.exec(ctx,
				`INSERT INTO sizes (size, position, price, max_ingredients) VALUES (?, ?, ?, ?)`,
				size.Name, i, size.Price, size.MaxIngredients); err != nil {
				return fmt.Errorf("failed to insert size %s: %w", size.Name, err)
			}
		}
		for i, base := range cat.Bases() {
			if _, err := tx.exec(ctx, `INSERT INTO bases (base, position) VALUES (?, ?)`, base.Name, i); err != nil {
				return fmt.Errorf("failed to insert base %s: %w", base.Name, err)
			}
		}

		ingredients := cat.AllIngredients()
		position := make(map[string]int, len(ingredients))
		for i, in := range ingredients {
			position[in.Name] = i
			var quantity, requires any
			if !in.Quantity.IsUnlimited() {
				quantity = in.Quantity.Value()
			}
			if in.Requires != "" {
				requires = in.Requires
			}
			if _, err := tx.exec(ctx,
				`INSERT INTO ingredients (name, position, price, quantity, requires) VALUES (?, ?, ?, ?, ?)`,
				in.Name, i, in.Price, quantity, requires); err != nil {
				return fmt.Errorf("failed to insert ingredient %s: %w", in.Name, err)
			}
		}
		for _, in := range ingredients {
			for _, other := range in.Incompatibilities {
				if position[other] < position[in.Name] {
					continue
				}
				if _, err := tx.exec(ctx,
					`INSERT INTO incompatibilities (ingredient1, ingredient2) VALUES (?, ?)`,
					in.Name, other); err != nil {
					return fmt.Errorf("failed to insert incompatibility %s/%s: %w", in.Name, other, err)
				}
			}
		}
		return nil
	})
}

// IngredientQuantity reads the live stock of one ingredient.
func (s *Storage) IngredientQuantity(ctx context.Context, name string) (models.Quantity, error) {
	var quantity sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT quantity FROM ingredients WHERE name = ?`), name).Scan(&quantity)
	if err != nil {
		return models.Quantity{}, fmt.Errorf("failed to query quantity of %s: %w", name, err)
	}
	if !quantity.Valid {
		return models.Unlimited, nil
	}
	return models.Limited(int(quantity.Int64)), nil
}
