// internal/seed/menu.go
package seed

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/models"
)

// menuDocument is the on-disk menu format. An incompatibility may be listed
// on either side of the pair; it is mirrored before the catalog is built.
type menuDocument struct {
	Sizes []struct {
		Name           string  `yaml:"name"`
		Price          float64 `yaml:"price"`
		MaxIngredients int     `yaml:"max_ingredients"`
	} `yaml:"sizes"`
	Bases       []string `yaml:"bases"`
	Ingredients []struct {
		Name             string   `yaml:"name"`
		Price            float64  `yaml:"price"`
		Quantity         *int     `yaml:"quantity"`
		Requires         string   `yaml:"requires"`
		IncompatibleWith []string `yaml:"incompatible_with"`
	} `yaml:"ingredients"`
}

// Parse decodes a YAML menu into a validated catalog.
func Parse(data []byte) (*catalog.Catalog, error) {
	var doc menuDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse menu: %w", err)
	}

	sizes := make([]models.Size, 0, len(doc.Sizes))
	for _, s := range doc.Sizes {
		sizes = append(sizes, models.Size{Name: s.Name, Price: s.Price, MaxIngredients: s.MaxIngredients})
	}
	bases := make([]models.Base, 0, len(doc.Bases))
	for _, b := range doc.Bases {
		bases = append(bases, models.Base{Name: b})
	}

	pairs := make(map[string][]string)
	for _, in := range doc.Ingredients {
		for _, other := range in.IncompatibleWith {
			pairs[in.Name] = appendMissing(pairs[in.Name], other)
			pairs[other] = appendMissing(pairs[other], in.Name)
		}
	}

	ingredients := make([]models.Ingredient, 0, len(doc.Ingredients))
	for _, in := range doc.Ingredients {
		quantity := models.Unlimited
		if in.Quantity != nil {
			if *in.Quantity < 0 {
				return nil, fmt.Errorf("ingredient %s has negative quantity %d", in.Name, *in.Quantity)
			}
			quantity = models.Limited(*in.Quantity)
		}
		ingredients = append(ingredients, models.Ingredient{
			Name:              in.Name,
			Price:             in.Price,
			Quantity:          quantity,
			Requires:          in.Requires,
			Incompatibilities: pairs[in.Name],
		})
	}

	cat, err := catalog.New(sizes, bases, ingredients)
	if err != nil {
		return nil, fmt.Errorf("invalid menu: %w", err)
	}
	return cat, nil
}

func appendMissing(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}
