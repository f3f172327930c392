// internal/models/menu.go
package models

import (
	"encoding/json"
	"fmt"
)

type Size struct {
	Name           string  `json:"size"`
	Price          float64 `json:"price"`
	MaxIngredients int     `json:"maxIngredients"`
}

type Base struct {
	Name string `json:"base"`
}

type Ingredient struct {
	Name              string   `json:"name"`
	Price             float64  `json:"price"`
	Quantity          Quantity `json:"quantity"`
	Requires          string   `json:"requires,omitempty"`
	Incompatibilities []string `json:"incompatibilities"`
}

// Quantity is a stock counter. The zero value is Unlimited, which is how
// untracked ingredients are stored (NULL column, null in JSON).
type Quantity struct {
	value   int
	limited bool
}

// Unlimited is the sentinel for ingredients whose stock is not tracked.
var Unlimited = Quantity{}

// Limited returns a tracked quantity of n units.
func Limited(n int) Quantity {
	return Quantity{value: n, limited: true}
}

func (q Quantity) IsUnlimited() bool { return !q.limited }

// Value returns the tracked count; it is meaningless for Unlimited.
func (q Quantity) Value() int { return q.value }

// Available reports whether at least one unit can be consumed.
func (q Quantity) Available() bool {
	return !q.limited || q.value > 0
}

// SoldOut reports a tracked quantity that has reached zero.
func (q Quantity) SoldOut() bool {
	return q.limited && q.value <= 0
}

func (q Quantity) String() string {
	if !q.limited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", q.value)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.limited {
		return []byte("null"), nil
	}
	return json.Marshal(q.value)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var n *int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}
	if n == nil {
		*q = Unlimited
		return nil
	}
	*q = Limited(*n)
	return nil
}

type Menu struct {
	Sizes       []Size       `json:"sizes"`
	Bases       []Base       `json:"bases"`
	Ingredients []Ingredient `json:"ingredients"`
}
