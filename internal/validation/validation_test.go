package validation_test

import (
	"errors"
	"testing"

	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/models"
	"mcp-dish-order/internal/validation"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]models.Size{{Name: "small", Price: 4, MaxIngredients: 2}, {Name: "large", Price: 8, MaxIngredients: 4}},
		[]models.Base{{Name: "pizza"}, {Name: "salad"}},
		[]models.Ingredient{
			{Name: "mushroom", Price: 0.8},
			{Name: "truffle", Price: 3, Quantity: models.Limited(0)},
			{Name: "tomato", Price: 0.5, Quantity: models.Limited(2)},
			{Name: "mozzarella", Price: 1, Requires: "tomato"},
			{Name: "pineapple", Price: 0.7, Incompatibilities: []string{"anchovy"}},
			{Name: "anchovy", Price: 1.2, Incompatibilities: []string{"pineapple"}},
		},
	)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func TestValidate(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		name      string
		candidate validation.Candidate
		wantCode  string
		wantMsg   string
	}{
		{
			name:      "valid order",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"tomato", "mozzarella"}, Price: 5.5},
		},
		{
			name:      "empty ingredient list",
			candidate: validation.Candidate{Size: "large", Base: "salad", Price: 8},
		},
		{
			name:      "unknown base",
			candidate: validation.Candidate{Size: "small", Base: "soup", Price: 4},
			wantCode:  validation.CodeUnknownBase,
			wantMsg:   "This base dish does not exist.",
		},
		{
			name:      "unknown size",
			candidate: validation.Candidate{Size: "huge", Base: "pizza", Price: 4},
			wantCode:  validation.CodeUnknownSize,
			wantMsg:   "This size of dish does not exist.",
		},
		{
			name:      "too many",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"mushroom", "tomato", "anchovy"}, Price: 6.5},
			wantCode:  validation.CodeTooManyIngredients,
			wantMsg:   "Too many ingredients selected.",
		},
		{
			name:      "duplicate",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"mushroom", "mushroom"}, Price: 5.6},
			wantCode:  validation.CodeDuplicate,
			wantMsg:   "An ingredient cannot be chosen twice.",
		},
		{
			name:      "unknown ingredient",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"caviar"}, Price: 4},
			wantCode:  validation.CodeUnknownIngredient,
			wantMsg:   "The ingredient caviar does not exist.",
		},
		{
			name:      "sold out",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"truffle"}, Price: 7},
			wantCode:  validation.CodeUnavailable,
			wantMsg:   "One of the chosen ingredients (truffle) is no more available.",
		},
		{
			name:      "missing requirement",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"mozzarella"}, Price: 5},
			wantCode:  validation.CodeMissingRequirement,
			wantMsg:   "A required ingredient is missing: mozzarella -> tomato.",
		},
		{
			name:      "incompatible",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"pineapple", "anchovy"}, Price: 5.9},
			wantCode:  validation.CodeIncompatible,
			wantMsg:   "Incompatible ingredients present in the list: pineapple incompatible with anchovy.",
		},
		{
			name:      "price off by a cent",
			candidate: validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"tomato", "mozzarella"}, Price: 5.51},
			wantCode:  validation.CodePriceMismatch,
			wantMsg:   "Wrong price",
		},
		{
			name:      "base checked before size",
			candidate: validation.Candidate{Size: "huge", Base: "soup"},
			wantCode:  validation.CodeUnknownBase,
			wantMsg:   "This base dish does not exist.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.candidate, cat)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *validation.Error, got %v", err)
			}
			if verr.Code != tt.wantCode || verr.Message != tt.wantMsg {
				t.Fatalf("got %s %q, want %s %q", verr.Code, verr.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestValidateDoesNotMutateCatalog(t *testing.T) {
	cat := testCatalog(t)
	c := validation.Candidate{Size: "small", Base: "pizza", Ingredients: []string{"tomato"}, Price: 4.5}
	if err := validation.Validate(c, cat); err != nil {
		t.Fatalf("validate: %v", err)
	}
	tomato, _ := cat.IngredientOf("tomato")
	if tomato.Quantity.Value() != 2 {
		t.Fatalf("validation must not touch stock, got %v", tomato.Quantity)
	}
}
