package cart

import "github.com/noah-isme/storefront/internal/catalog"

// Catalog resolves item ids to listing entries.
type Catalog interface {
	Lookup(id string) (catalog.Item, bool)
}

// Line is a catalog item held in the cart. The item fields are copied when the
// line is first created and never refreshed from the catalog.
type Line struct {
	catalog.Item
	Qty int `json:"qty"`
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() int64 {
	return l.Price * int64(l.Qty)
}

// Totals summarises the cart.
type Totals struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
}

// Empty reports whether there is nothing to pay for.
func (t Totals) Empty() bool {
	return t.Count <= 0 || t.Total <= 0
}

// Snapshot captures the cart lines and totals at one point in time.
type Snapshot struct {
	Lines  []Line `json:"lines"`
	Totals Totals `json:"totals"`
}

// Renderer is notified with a fresh snapshot after every mutation.
type Renderer interface {
	Render(Snapshot)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(Snapshot)

// Render calls f(s).
func (f RenderFunc) Render(s Snapshot) { f(s) }

// Manager owns the cart for one session. It is not safe for concurrent use:
// callers serialise access, normally through session.Loop.
type Manager struct {
	catalog   Catalog
	lines     []Line
	renderers []Renderer
}

// NewManager returns an empty cart backed by c.
func NewManager(c Catalog, renderers ...Renderer) *Manager {
	return &Manager{catalog: c, renderers: renderers}
}

// Subscribe registers r for render notifications.
func (m *Manager) Subscribe(r Renderer) {
	if r == nil {
		return
	}
	m.renderers = append(m.renderers, r)
}

// Add puts one unit of id in the cart. Unknown ids are ignored.
func (m *Manager) Add(id string) bool {
	if i := m.index(id); i >= 0 {
		m.lines[i].Qty++
		m.render()
		return true
	}
	if m.catalog == nil {
		return false
	}
	item, ok := m.catalog.Lookup(id)
	if !ok {
		return false
	}
	m.lines = append(m.lines, Line{Item: item, Qty: 1})
	m.render()
	return true
}

// UpdateQty adjusts the quantity of an existing line by delta, removing the
// line once its quantity drops to zero or below. Ids not in the cart are ignored.
func (m *Manager) UpdateQty(id string, delta int) bool {
	i := m.index(id)
	if i < 0 {
		return false
	}
	qty := m.lines[i].Qty + delta
	if qty <= 0 {
		m.removeAt(i)
	} else {
		m.lines[i].Qty = qty
	}
	m.render()
	return true
}

// Remove drops the line for id if present. It renders either way; Add and
// UpdateQty render only when the cart changed.
func (m *Manager) Remove(id string) bool {
	defer m.render()
	i := m.index(id)
	if i < 0 {
		return false
	}
	m.removeAt(i)
	return true
}

// Clear empties the cart.
func (m *Manager) Clear() {
	m.lines = nil
	m.render()
}

// Totals recomputes count and total from the current lines.
func (m *Manager) Totals() Totals {
	var t Totals
	for _, l := range m.lines {
		t.Count += l.Qty
		t.Total += l.Subtotal()
	}
	return t
}

// Lines returns a copy of the cart lines in insertion order.
func (m *Manager) Lines() []Line {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

// Snapshot returns the current lines and totals.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{Lines: m.Lines(), Totals: m.Totals()}
}

func (m *Manager) index(id string) int {
	for i := range m.lines {
		if m.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) removeAt(i int) {
	m.lines = append(m.lines[:i], m.lines[i+1:]...)
	if len(m.lines) == 0 {
		m.lines = nil
	}
}

func (m *Manager) render() {
	if len(m.renderers) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, r := range m.renderers {
		r.Render(snap)
	}
}
