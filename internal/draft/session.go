// internal/draft/session.go
package draft

import (
	"mcp-dish-order/internal/catalog"
)

// Session holds one customer's in-progress dish. It is not safe for
// concurrent use; each editing session owns its own.
type Session struct {
	catalog *catalog.Catalog
	current Selection
}

func NewSession(cat *catalog.Catalog, size, base string) *Session {
	return &Session{
		catalog: cat,
		current: Recompute(nil, Init{Size: size, Base: base}, cat),
	}
}

// Apply feeds one event through the engine and returns the new selection.
func (s *Session) Apply(ev Event) Selection {
	s.current = Recompute(&s.current, ev, s.catalog)
	return clone(s.current)
}

func (s *Session) Toggle(name string) Selection {
	return s.Apply(ToggleIngredient{Name: name})
}

func (s *Session) ChangeSize(size string) Selection {
	return s.Apply(ChangeSize{Size: size})
}

func (s *Session) ChangeBase(base string) Selection {
	return s.Apply(ChangeBase{Base: base})
}

// Refresh swaps in a newer catalog and re-annotates the current choices.
func (s *Session) Refresh(cat *catalog.Catalog) Selection {
	s.catalog = cat
	return s.Apply(Refresh{})
}

func (s *Session) Selection() Selection {
	return clone(s.current)
}

func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}
