// internal/draft/draft.go
package draft

import (
	"fmt"

	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/models"
)

const (
	ReasonNotAvailable    = "not available"
	ReasonRequiredBy      = "required by another ingredient"
	ReasonMaxReached      = "max ingredients for this size reached"
	ReasonRequiredMissing = "required ingredient missing"
	ReasonIncompatible    = "incompatible ingredient selected"
	ReasonSizeTooSmall    = "too many ingredients for this size"
)

type Annotation struct {
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Selection is one fully annotated state of a draft. Every edit produces a
// new value; nothing in it is shared with the previous one.
type Selection struct {
	Size            string                `json:"size"`
	Base            string                `json:"base"`
	Ingredients     []string              `json:"ingredients"`
	Annotations     map[string]Annotation `json:"annotations"`
	SizeAnnotations map[string]Annotation `json:"sizeAnnotations"`
	ReadOnly        bool                  `json:"readOnly"`
}

func (s Selection) IsSelected(name string) bool {
	return s.Annotations[name].Selected
}

func (s Selection) Count() int {
	return len(s.Ingredients)
}

// Event is one of Init, ToggleIngredient, ChangeSize, ChangeBase or Refresh.
type Event interface {
	isEvent()
}

// Init starts an empty draft. Unknown or empty names fall back to the
// catalog defaults.
type Init struct {
	Size string
	Base string
}

type ToggleIngredient struct {
	Name string
}

type ChangeSize struct {
	Size string
}

type ChangeBase struct {
	Base string
}

// Refresh re-annotates the current choices against a newer catalog.
type Refresh struct{}

func (Init) isEvent()             {}
func (ToggleIngredient) isEvent() {}
func (ChangeSize) isEvent()       {}
func (ChangeBase) isEvent()       {}
func (Refresh) isEvent()          {}

// working is the mutable scratch state used while a single recompute runs.
type working struct {
	cat      *catalog.Catalog
	size     string
	base     string
	selected map[string]bool
	ann      map[string]Annotation
}

// Recompute applies ev to prev and re-derives every annotation against cat.
// It never fails: impossible edits (unknown names, disabled targets) are
// ignored and the result is still fully recomputed. A nil prev means a fresh
// draft; a read-only prev is returned unchanged.
func Recompute(prev *Selection, ev Event, cat *catalog.Catalog) Selection {
	if prev != nil && prev.ReadOnly {
		return clone(*prev)
	}
	if prev == nil {
		start, ok := ev.(Init)
		if !ok {
			fresh := Recompute(nil, Init{}, cat)
			return Recompute(&fresh, ev, cat)
		}
		w := newWorking(cat, nil)
		w.applyInit(start)
		return w.run()
	}

	w := newWorking(cat, prev)
	switch e := ev.(type) {
	case Init:
		w.applyInit(e)
	case ToggleIngredient:
		if _, ok := cat.IngredientOf(e.Name); ok && !prev.Annotations[e.Name].Disabled {
			w.selected[e.Name] = !w.selected[e.Name]
		}
	case ChangeSize:
		if _, ok := cat.SizeOf(e.Size); ok && !prev.SizeAnnotations[e.Size].Disabled {
			w.size = e.Size
		}
	case ChangeBase:
		if _, ok := cat.BaseOf(e.Base); ok {
			w.base = e.Base
		}
	case Refresh:
	}
	return w.run()
}

func newWorking(cat *catalog.Catalog, prev *Selection) *working {
	w := &working{
		cat:      cat,
		size:     cat.DefaultSize(),
		base:     cat.DefaultBase(),
		selected: make(map[string]bool),
		ann:      make(map[string]Annotation),
	}
	if prev == nil {
		return w
	}
	if _, ok := cat.SizeOf(prev.Size); ok {
		w.size = prev.Size
	}
	if _, ok := cat.BaseOf(prev.Base); ok {
		w.base = prev.Base
	}
	for _, name := range prev.Ingredients {
		if _, ok := cat.IngredientOf(name); ok {
			w.selected[name] = true
		}
	}
	return w
}

func (w *working) applyInit(e Init) {
	if _, ok := w.cat.SizeOf(e.Size); ok {
		w.size = e.Size
	}
	if _, ok := w.cat.BaseOf(e.Base); ok {
		w.base = e.Base
	}
	w.selected = make(map[string]bool)
}

func (w *working) run() Selection {
	ingredients := w.cat.AllIngredients()

	w.markUnavailable(ingredients)
	w.lockRequired(ingredients)
	if !w.capReached(ingredients) {
		w.disableMissingRequirement(ingredients)
		w.disableIncompatible(ingredients)
	}
	return w.result(ingredients)
}

// disable sets a reason only if no earlier pass has explained the ingredient.
func (w *working) disable(name, reason, detail string) bool {
	if w.ann[name].Reason != "" {
		return false
	}
	w.ann[name] = Annotation{Disabled: true, Reason: reason, Detail: detail}
	return true
}

func (w *working) markUnavailable(ingredients []models.Ingredient) {
	for _, in := range ingredients {
		if in.Quantity.SoldOut() {
			w.selected[in.Name] = false
			w.disable(in.Name, ReasonNotAvailable, "")
		}
	}
}

// lockRequired keeps a prerequisite selected while something that needs it is.
func (w *working) lockRequired(ingredients []models.Ingredient) {
	for _, dependent := range ingredients {
		target := dependent.Requires
		if target == "" || target == dependent.Name {
			continue
		}
		if w.selected[dependent.Name] && w.selected[target] {
			w.disable(target, ReasonRequiredBy, dependent.Name)
		}
	}
}

func (w *working) capReached(ingredients []models.Ingredient) bool {
	size, _ := w.cat.SizeOf(w.size)
	if w.count() < size.MaxIngredients {
		return false
	}
	detail := fmt.Sprintf("with a %s dish you can select up to %d ingredients", size.Name, size.MaxIngredients)
	for _, in := range ingredients {
		if !w.selected[in.Name] {
			w.disable(in.Name, ReasonMaxReached, detail)
		}
	}
	return true
}

func (w *working) disableMissingRequirement(ingredients []models.Ingredient) {
	before := w.snapshot()
	for _, in := range ingredients {
		if in.Requires == "" || before[in.Requires] {
			continue
		}
		if w.disable(in.Name, ReasonRequiredMissing, in.Requires) {
			w.selected[in.Name] = false
		}
	}
}

func (w *working) disableIncompatible(ingredients []models.Ingredient) {
	before := w.snapshot()
	for _, in := range ingredients {
		for _, other := range in.Incompatibilities {
			if !before[other] {
				continue
			}
			if w.disable(in.Name, ReasonIncompatible, other) {
				w.selected[in.Name] = false
			}
			break
		}
	}
}

func (w *working) snapshot() map[string]bool {
	out := make(map[string]bool, len(w.selected))
	for name, on := range w.selected {
		if on {
			out[name] = true
		}
	}
	return out
}

func (w *working) count() int {
	n := 0
	for _, on := range w.selected {
		if on {
			n++
		}
	}
	return n
}

func (w *working) result(ingredients []models.Ingredient) Selection {
	sel := Selection{
		Size:            w.size,
		Base:            w.base,
		Ingredients:     []string{},
		Annotations:     make(map[string]Annotation, len(ingredients)),
		SizeAnnotations: make(map[string]Annotation),
	}
	for _, in := range ingredients {
		a := w.ann[in.Name]
		a.Selected = w.selected[in.Name]
		if a.Selected {
			sel.Ingredients = append(sel.Ingredients, in.Name)
		}
		sel.Annotations[in.Name] = a
	}

	count := len(sel.Ingredients)
	for _, size := range w.cat.Sizes() {
		switch {
		case size.Name == w.size:
			sel.SizeAnnotations[size.Name] = Annotation{Selected: true}
		case count > size.MaxIngredients:
			sel.SizeAnnotations[size.Name] = Annotation{
				Disabled: true,
				Reason:   ReasonSizeTooSmall,
				Detail:   fmt.Sprintf("with this size you can choose only %d ingredients (now %d)", size.MaxIngredients, count),
			}
		default:
			sel.SizeAnnotations[size.Name] = Annotation{}
		}
	}
	return sel
}

// ReadOnly renders a placed order for viewing. No rule is re-evaluated:
// the order's choices are shown as chosen and everything else is disabled.
func ReadOnly(order models.Order, cat *catalog.Catalog) Selection {
	chosen := make(map[string]bool, len(order.Ingredients))
	for _, name := range order.Ingredients {
		chosen[name] = true
	}
	sel := Selection{
		Size:            order.Size,
		Base:            order.Base,
		Ingredients:     append([]string{}, order.Ingredients...),
		Annotations:     make(map[string]Annotation),
		SizeAnnotations: make(map[string]Annotation),
		ReadOnly:        true,
	}
	for _, in := range cat.AllIngredients() {
		sel.Annotations[in.Name] = Annotation{Selected: chosen[in.Name], Disabled: !chosen[in.Name]}
	}
	// Ingredients since removed from the menu still show as part of the order.
	for name := range chosen {
		if _, ok := sel.Annotations[name]; !ok {
			sel.Annotations[name] = Annotation{Selected: true}
		}
	}
	for _, size := range cat.Sizes() {
		sel.SizeAnnotations[size.Name] = Annotation{Selected: size.Name == order.Size, Disabled: size.Name != order.Size}
	}
	return sel
}

func clone(s Selection) Selection {
	out := s
	out.Ingredients = append([]string{}, s.Ingredients...)
	out.Annotations = make(map[string]Annotation, len(s.Annotations))
	for k, v := range s.Annotations {
		out.Annotations[k] = v
	}
	out.SizeAnnotations = make(map[string]Annotation, len(s.SizeAnnotations))
	for k, v := range s.SizeAnnotations {
		out.SizeAnnotations[k] = v
	}
	return out
}
