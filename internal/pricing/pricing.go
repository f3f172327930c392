// internal/pricing/pricing.go
package pricing

import (
	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/draft"
)

// Tolerance is the largest difference at which two prices are considered equal.
const Tolerance = 0.001

// Price returns the total of a draft selection. It is recomputed on demand
// and never cached alongside the selection.
func Price(sel draft.Selection, cat *catalog.Catalog) float64 {
	return Total(sel.Size, sel.Ingredients, cat)
}

// Total is the size price plus every named ingredient's price. Unknown
// sizes contribute nothing, and so do unknown ingredients.
func Total(size string, ingredients []string, cat *catalog.Catalog) float64 {
	s, ok := cat.SizeOf(size)
	if !ok {
		return 0
	}
	total := s.Price
	for _, name := range ingredients {
		if in, ok := cat.IngredientOf(name); ok {
			total += in.Price
		}
	}
	return total
}

// Matches reports whether a claimed price agrees with the computed one.
func Matches(claimed, computed float64) bool {
	diff := claimed - computed
	if diff < 0 {
		diff = -diff
	}
	return diff <= Tolerance
}
