// internal/catalog/catalog.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"mcp-dish-order/internal/models"
)

var (
	ErrAsymmetricIncompatibility = errors.New("incompatibility is not symmetric")
	ErrDuplicateEntry            = errors.New("duplicate catalog entry")
	ErrUnknownReference          = errors.New("unknown ingredient reference")
)

// Source pulls a complete catalog snapshot from the menu store.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Catalog is an immutable snapshot of what can be ordered. Lookups are by
// name; iteration preserves the order the entries were supplied in.
type Catalog struct {
	sizes       []models.Size
	bases       []models.Base
	ingredients []models.Ingredient

	sizeIndex       map[string]int
	baseIndex       map[string]int
	ingredientIndex map[string]int
	incompatible    map[string]map[string]struct{}
}

// New builds a snapshot and checks the data invariants the engines rely on:
// unique names, requires/incompatibility targets that exist, and symmetric
// incompatibilities.
func New(sizes []models.Size, bases []models.Base, ingredients []models.Ingredient) (*Catalog, error) {
	c := &Catalog{
		sizes:           make([]models.Size, 0, len(sizes)),
		bases:           make([]models.Base, 0, len(bases)),
		ingredients:     make([]models.Ingredient, 0, len(ingredients)),
		sizeIndex:       make(map[string]int, len(sizes)),
		baseIndex:       make(map[string]int, len(bases)),
		ingredientIndex: make(map[string]int, len(ingredients)),
		incompatible:    make(map[string]map[string]struct{}, len(ingredients)),
	}

	for _, s := range sizes {
		if _, ok := c.sizeIndex[s.Name]; ok {
			return nil, fmt.Errorf("size %q: %w", s.Name, ErrDuplicateEntry)
		}
		c.sizeIndex[s.Name] = len(c.sizes)
		c.sizes = append(c.sizes, s)
	}
	for _, b := range bases {
		if _, ok := c.baseIndex[b.Name]; ok {
			return nil, fmt.Errorf("base %q: %w", b.Name, ErrDuplicateEntry)
		}
		c.baseIndex[b.Name] = len(c.bases)
		c.bases = append(c.bases, b)
	}
	for _, in := range ingredients {
		if _, ok := c.ingredientIndex[in.Name]; ok {
			return nil, fmt.Errorf("ingredient %q: %w", in.Name, ErrDuplicateEntry)
		}
		in.Incompatibilities = append([]string(nil), in.Incompatibilities...)
		c.ingredientIndex[in.Name] = len(c.ingredients)
		c.ingredients = append(c.ingredients, in)

		set := make(map[string]struct{}, len(in.Incompatibilities))
		for _, other := range in.Incompatibilities {
			set[other] = struct{}{}
		}
		c.incompatible[in.Name] = set
	}

	for _, in := range c.ingredients {
		if in.Requires != "" {
			if _, ok := c.ingredientIndex[in.Requires]; !ok {
				return nil, fmt.Errorf("%s requires %s: %w", in.Name, in.Requires, ErrUnknownReference)
			}
		}
		for other := range c.incompatible[in.Name] {
			if _, ok := c.ingredientIndex[other]; !ok {
				return nil, fmt.Errorf("%s incompatible with %s: %w", in.Name, other, ErrUnknownReference)
			}
			if _, ok := c.incompatible[other][in.Name]; !ok {
				return nil, fmt.Errorf("%s lists %s but not the reverse: %w", in.Name, other, ErrAsymmetricIncompatibility)
			}
		}
	}
	return c, nil
}

func (c *Catalog) SizeOf(name string) (models.Size, bool) {
	i, ok := c.sizeIndex[name]
	if !ok {
		return models.Size{}, false
	}
	return c.sizes[i], true
}

func (c *Catalog) BaseOf(name string) (models.Base, bool) {
	i, ok := c.baseIndex[name]
	if !ok {
		return models.Base{}, false
	}
	return c.bases[i], true
}

// IngredientOf returns a copy; callers cannot reach the snapshot's slices.
func (c *Catalog) IngredientOf(name string) (models.Ingredient, bool) {
	i, ok := c.ingredientIndex[name]
	if !ok {
		return models.Ingredient{}, false
	}
	return cloneIngredient(c.ingredients[i]), true
}

func (c *Catalog) AllIngredients() []models.Ingredient {
	out := make([]models.Ingredient, len(c.ingredients))
	for i, in := range c.ingredients {
		out[i] = cloneIngredient(in)
	}
	return out
}

func (c *Catalog) Sizes() []models.Size {
	return append([]models.Size(nil), c.sizes...)
}

func (c *Catalog) Bases() []models.Base {
	return append([]models.Base(nil), c.bases...)
}

// Incompatible reports whether a and b exclude each other.
func (c *Catalog) Incompatible(a, b string) bool {
	_, ok := c.incompatible[a][b]
	return ok
}

// DefaultSize and DefaultBase are the first entries, used to open a new draft.
func (c *Catalog) DefaultSize() string {
	if len(c.sizes) == 0 {
		return ""
	}
	return c.sizes[0].Name
}

func (c *Catalog) DefaultBase() string {
	if len(c.bases) == 0 {
		return ""
	}
	return c.bases[0].Name
}

// Menu is the whole snapshot in catalog order, as served to clients.
func (c *Catalog) Menu() models.Menu {
	return models.Menu{
		Sizes:       c.Sizes(),
		Bases:       c.Bases(),
		Ingredients: c.AllIngredients(),
	}
}

func cloneIngredient(in models.Ingredient) models.Ingredient {
	in.Incompatibilities = append([]string{}, in.Incompatibilities...)
	return in
}
