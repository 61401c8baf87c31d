package visual

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ============================================================================
// LAYOUT — Grid placement and the "currently editing" pointer
// ============================================================================
// Placements live on a fixed-width grid. New visuals flow into the first
// free slot scanning rows top to bottom. The store prunes entries in the
// same call that deletes a visual.
// ============================================================================

const (
	DefaultGridColumns = 12
	DefaultWidth       = 6
	DefaultHeight      = 4
)

// Placement is a rectangle on the grid, in grid units.
type Placement struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

func (p Placement) overlaps(q Placement) bool {
	return p.X < q.X+q.W && q.X < p.X+p.W && p.Y < q.Y+q.H && q.Y < p.Y+p.H
}

// Entry pairs a visual with its placement.
type Entry struct {
	ID        ID        `json:"id" yaml:"id"`
	Placement Placement `json:"placement" yaml:"placement"`
}

// Layout tracks placements and which visual is being edited.
type Layout struct {
	columns int
	items   map[ID]Placement
	editing *ID
}

// NewLayout returns an empty grid with the given width.
func NewLayout(columns int) *Layout {
	if columns <= 0 {
		columns = DefaultGridColumns
	}
	return &Layout{columns: columns, items: make(map[ID]Placement)}
}

// Columns returns the grid width.
func (l *Layout) Columns() int { return l.columns }

// Get returns the placement of id.
func (l *Layout) Get(id ID) (Placement, bool) {
	p, ok := l.items[id]
	return p, ok
}

// Len returns the number of placed visuals.
func (l *Layout) Len() int { return len(l.items) }

// place auto-flows id into the first free default-size slot.
func (l *Layout) place(id ID) Placement {
	w := min(DefaultWidth, l.columns)
	for y := 0; ; y++ {
		for x := 0; x+w <= l.columns; x++ {
			p := Placement{X: x, Y: y, W: w, H: DefaultHeight}
			if l.free(p, id) {
				l.items[id] = p
				return p
			}
		}
	}
}

func (l *Layout) free(p Placement, self ID) bool {
	for id, q := range l.items {
		if id != self && p.overlaps(q) {
			return false
		}
	}
	return true
}

// set stores an explicit placement after bounds checks.
func (l *Layout) set(id ID, p Placement) error {
	if p.W < 1 || p.H < 1 || p.X < 0 || p.Y < 0 || p.X+p.W > l.columns {
		return errors.Newf("placement %+v does not fit a %d-column grid", p, l.columns)
	}
	l.items[id] = p
	return nil
}

func (l *Layout) remove(id ID) {
	delete(l.items, id)
	if l.editing != nil && *l.editing == id {
		l.editing = nil
	}
}

// Entries returns every placement ordered top to bottom, then left to right.
func (l *Layout) Entries() []Entry {
	out := make([]Entry, 0, len(l.items))
	for id, p := range l.items {
		out = append(out, Entry{ID: id, Placement: p})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Placement, out[j].Placement
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Editing returns the visual currently being edited.
func (l *Layout) Editing() (ID, bool) {
	if l.editing == nil {
		return 0, false
	}
	return *l.editing, true
}

func (l *Layout) setEditing(id ID) { l.editing = &id }

func (l *Layout) clearEditing() { l.editing = nil }

func (l *Layout) clone() *Layout {
	out := NewLayout(l.columns)
	for id, p := range l.items {
		out.items[id] = p
	}
	if l.editing != nil {
		out.setEditing(*l.editing)
	}
	return out
}
