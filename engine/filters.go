package engine

import (
	"sort"
	"time"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// FILTERS — Column predicates applied via RecordView
// ============================================================================
// Single-pass filter: checks ALL column constraints per row in one loop.
// Returns a SubView (index list into parent) with zero data copy.
// Columns are AND-combined; values within a column are OR-combined.
// ============================================================================

// TimeRange is an inclusive instant interval.
type TimeRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Predicate restricts one column. An empty predicate imposes nothing.
type Predicate struct {
	In      []string   `json:"in,omitempty" yaml:"in,omitempty"`
	Between *TimeRange `json:"between,omitempty" yaml:"between,omitempty"`
}

// IsEmpty reports whether the predicate restricts nothing.
func (p Predicate) IsEmpty() bool {
	return len(p.In) == 0 && p.Between == nil
}

// FilterSpec maps column names to predicates.
type FilterSpec map[string]Predicate

// HasFilter returns true if a specific column filter is set.
func (f FilterSpec) HasFilter(column string) bool {
	p, ok := f[column]
	return ok && !p.IsEmpty()
}

// IsEmpty returns true if no filters are set.
func (f FilterSpec) IsEmpty() bool {
	for _, p := range f {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// Columns returns the filtered column names in sorted order.
func (f FilterSpec) Columns() []string {
	cols := make([]string, 0, len(f))
	for c, p := range f {
		if !p.IsEmpty() {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

// Clone returns an independent copy.
func (f FilterSpec) Clone() FilterSpec {
	if f == nil {
		return nil
	}
	out := make(FilterSpec, len(f))
	for c, p := range f {
		cp := Predicate{}
		if p.In != nil {
			cp.In = append([]string(nil), p.In...)
		}
		if p.Between != nil {
			r := *p.Between
			cp.Between = &r
		}
		out[c] = cp
	}
	return out
}

type compiledPredicate struct {
	col     *dataset.Column
	allowed map[string]bool
	between *TimeRange
}

// Apply returns a view of rows matching every predicate of spec.
// Predicates on columns absent from the dataset are ignored, as are range
// predicates on non-temporal columns. Missing cells never match.
func Apply(view RecordView, spec FilterSpec) RecordView {
	if spec.IsEmpty() {
		return view
	}

	ds := view.Dataset()
	var preds []compiledPredicate
	for _, name := range spec.Columns() {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		p := spec[name]
		cp := compiledPredicate{col: col}
		if len(p.In) > 0 {
			cp.allowed = make(map[string]bool, len(p.In))
			for _, v := range p.In {
				cp.allowed[v] = true
			}
		}
		if p.Between != nil && col.Type == dataset.Temporal {
			cp.between = p.Between
		}
		if cp.allowed == nil && cp.between == nil {
			continue
		}
		preds = append(preds, cp)
	}
	if len(preds) == 0 {
		return view
	}

	// Single pass: row passes if it matches ALL predicates
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if matchAll(preds, view.Row(i)) {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}

func matchAll(preds []compiledPredicate, row int) bool {
	for _, p := range preds {
		if p.col.Missing(row) {
			return false
		}
		if p.allowed != nil && !p.allowed[p.col.Text(row)] {
			return false
		}
		if p.between != nil {
			t, _ := p.col.Time(row)
			if !p.between.Contains(t) {
				return false
			}
		}
	}
	return true
}

// ApplyAll applies specs in order (global first, then per-visual).
func ApplyAll(view RecordView, specs ...FilterSpec) RecordView {
	for _, s := range specs {
		view = Apply(view, s)
	}
	return view
}
