// internal/validation/validation.go
package validation

import (
	"fmt"

	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/models"
	"mcp-dish-order/internal/pricing"
)

const (
	CodeUnknownBase        = "unknown_base"
	CodeUnknownSize        = "unknown_size"
	CodeTooManyIngredients = "too_many_ingredients"
	CodeDuplicate          = "duplicate_ingredient"
	CodeUnknownIngredient  = "unknown_ingredient"
	CodeUnavailable        = "unavailable_ingredient"
	CodeMissingRequirement = "missing_requirement"
	CodeIncompatible       = "incompatible_ingredients"
	CodePriceMismatch      = "price_mismatch"
)

// Candidate is a client-submitted order before the server stamps it.
type Candidate = models.OrderRequest

// Error is a rejection the client can act on. Message is safe to echo back.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func reject(code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a candidate against the catalog and returns the first
// violated rule, or nil. Availability here is advisory: the inventory
// transaction re-checks it atomically.
func Validate(c Candidate, cat *catalog.Catalog) error {
	if _, ok := cat.BaseOf(c.Base); !ok {
		return reject(CodeUnknownBase, "This base dish does not exist.")
	}
	size, ok := cat.SizeOf(c.Size)
	if !ok {
		return reject(CodeUnknownSize, "This size of dish does not exist.")
	}
	if len(c.Ingredients) > size.MaxIngredients {
		return reject(CodeTooManyIngredients, "Too many ingredients selected.")
	}

	chosen := make(map[string]struct{}, len(c.Ingredients))
	for _, name := range c.Ingredients {
		if _, dup := chosen[name]; dup {
			return reject(CodeDuplicate, "An ingredient cannot be chosen twice.")
		}
		chosen[name] = struct{}{}
	}

	ingredients := make([]models.Ingredient, 0, len(c.Ingredients))
	for _, name := range c.Ingredients {
		in, ok := cat.IngredientOf(name)
		if !ok {
			return reject(CodeUnknownIngredient, "The ingredient %s does not exist.", name)
		}
		ingredients = append(ingredients, in)
	}
	for _, in := range ingredients {
		if !in.Quantity.Available() {
			return reject(CodeUnavailable, "One of the chosen ingredients (%s) is no more available.", in.Name)
		}
	}
	for _, in := range ingredients {
		if in.Requires == "" {
			continue
		}
		if _, ok := chosen[in.Requires]; !ok {
			return reject(CodeMissingRequirement, "A required ingredient is missing: %s -> %s.", in.Name, in.Requires)
		}
	}
	for _, in := range ingredients {
		for _, other := range in.Incompatibilities {
			if _, ok := chosen[other]; ok {
				return reject(CodeIncompatible, "Incompatible ingredients present in the list: %s incompatible with %s.", in.Name, other)
			}
		}
	}

	if !pricing.Matches(c.Price, pricing.Total(c.Size, c.Ingredients, cat)) {
		return reject(CodePriceMismatch, "Wrong price")
	}
	return nil
}
