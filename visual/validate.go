package visual

import (
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
)

// ============================================================================
// VALIDATION — Bindings against the current schema
// ============================================================================
// Validate rejects anything structurally impossible. Check reports columns
// that have disappeared from the working dataset or lost the numeric type a
// field needs, which is how a previously valid visual falls out of step
// after column selection or type overrides change.
// ============================================================================

// fieldRef is one column reference of a shape.
type fieldRef struct {
	role     string
	column   string
	required bool
	numeric  bool
}

func refs(s Shape) []fieldRef {
	b := s.Bindings()
	k := s.Kind()

	switch k {
	case BoxPlot:
		return []fieldRef{
			{role: "category", column: b.Category},
			{role: "value", column: b.Value, required: true, numeric: true},
		}
	case Histogram:
		return []fieldRef{
			{role: "value", column: b.Value, required: true, numeric: true},
			{role: "facet", column: b.Facet},
		}
	}

	out := []fieldRef{
		{role: "category", column: b.Category, required: true},
		{role: "value", column: b.Value, required: b.Aggregation.NeedsValue()},
	}
	switch k {
	case Bubble:
		out = append(out, fieldRef{role: "size", column: b.Size, required: true, numeric: true})
	case Sunburst:
		out = append(out, fieldRef{role: "parent", column: b.Parent, required: true})
	}
	if k.Facetable() {
		out = append(out, fieldRef{role: "facet", column: b.Facet})
	}
	return out
}

// Validate checks a shape against sch. The returned error is a
// *ValidationError wrapping ErrInvalidBinding.
func Validate(s Shape, sch *schema.Schema) error {
	for _, r := range refs(s) {
		if r.column == "" {
			if r.required {
				return invalid(r.role, "is required")
			}
			continue
		}
		col, ok := sch.Column(r.column)
		if !ok {
			return invalid(r.role, "column %q is not in the working dataset", r.column)
		}
		if r.numeric && !col.IsNumeric() {
			return invalid(r.role, "column %q must be numeric, it is %s", r.column, col.Type)
		}
	}

	b := s.Bindings()
	k := s.Kind()
	if b.Facet != "" {
		role, distinct := "category", b.Category
		if k == Histogram {
			role, distinct = "value", b.Value
		}
		if b.Facet == distinct {
			return invalid("facet", "must differ from the %s field", role)
		}
	}
	if k == Sunburst && b.Parent == b.Category {
		return invalid("parent", "must differ from the category field")
	}
	if k == Histogram && (b.Bins < 1 || b.Bins > MaxBins) {
		return invalid("bins", "must be between 1 and %d, got %d", MaxBins, b.Bins)
	}
	if b.Aggregation < engine.Count || b.Aggregation > engine.Max {
		return invalid("aggregation", "is unknown")
	}
	if b.Sort.Mode < engine.SortNone || b.Sort.Mode > engine.ManualOrder {
		return invalid("sort", "is unknown")
	}
	if k.HasLabels() {
		if b.Labels.Precision < 0 || b.Labels.Precision > 10 {
			return invalid("labels", "precision must be between 0 and 10")
		}
		if !b.Labels.Position.valid() {
			return invalid("labels", "position %q is unknown", b.Labels.Position)
		}
	}
	if k == Pie || k == Donut {
		if _, err := ParseLabelMode(string(b.LabelMode)); err != nil {
			return invalid("label_mode", "%q is unknown", b.LabelMode)
		}
	}
	return nil
}

// Check reports every reference to a column missing from sch, and every
// numeric-only field whose column is no longer numeric.
func Check(s Shape, sch *schema.Schema) []*ValidationError {
	var problems []*ValidationError
	for _, r := range refs(s) {
		if r.column == "" {
			continue
		}
		col, ok := sch.Column(r.column)
		switch {
		case !ok:
			problems = append(problems, mismatch(r.role, r.column))
		case r.numeric && !col.IsNumeric():
			problems = append(problems, retyped(r.role, r.column, col.Type))
		}
	}
	return problems
}

// ============================================================================
// DEFAULTS
// ============================================================================

// defaultBindings derives a starting configuration for k from sch.
func defaultBindings(k Kind, sch *schema.Schema) (Bindings, error) {
	names := sch.Names()
	if len(names) == 0 {
		return Bindings{}, ErrNoColumns
	}
	b := Bindings{
		Category:    firstOr(sch.Categorical(), names[0]),
		Value:       firstOr(sch.Numeric(), ""),
		Aggregation: engine.Count,
		Labels:      DefaultLabels(),
		Bins:        DefaultBins,
		LabelMode:   LabelPercent,
	}
	if b.Value == "" && len(names) > 1 {
		b.Value = names[1]
	}

	switch k {
	case Bubble:
		b.Size = firstOr(sch.Numeric(), "")
		if b.Size == "" {
			return b, invalid("size", "needs a numeric column and the dataset has none")
		}
	case BoxPlot, Histogram:
		b.Value = firstOr(sch.Numeric(), "")
		if b.Value == "" {
			return b, invalid("value", "needs a numeric column and the dataset has none")
		}
		if k == BoxPlot && b.Category == b.Value {
			b.Category = ""
		}
	case Sunburst:
		b.Parent = defaultParent(sch, b.Category)
		if b.Parent == "" {
			return b, invalid("parent", "needs a second non-numeric column")
		}
	}
	return b, nil
}

// defaultParent prefers a detected hierarchy parent, else the next
// non-numeric column.
func defaultParent(sch *schema.Schema, category string) string {
	if c, ok := sch.Column(category); ok && c.Parent != "" {
		return c.Parent
	}
	for _, n := range sch.Categorical() {
		if n != category {
			return n
		}
	}
	return ""
}

// fillDefaults repairs the bindings k needs: empty or absent columns and
// type-incompatible numeric fields are replaced by the defaults.
func fillDefaults(k Kind, b Bindings, sch *schema.Schema) (Bindings, error) {
	d, err := defaultBindings(k, sch)
	if err != nil {
		return b, err
	}
	usable := func(col string, numeric bool) bool {
		c, ok := sch.Column(col)
		return ok && (!numeric || c.IsNumeric())
	}
	numericValue := k == BoxPlot || k == Histogram

	if !usable(b.Category, false) {
		b.Category = d.Category
	}
	if (b.Value != "" && !usable(b.Value, numericValue)) || (b.Value == "" && (numericValue || b.Aggregation.NeedsValue())) {
		b.Value = d.Value
	}
	if k == Bubble && !usable(b.Size, true) {
		b.Size = d.Size
	}
	if b.Facet != "" && !sch.Has(b.Facet) {
		b.Facet = ""
	}
	if k == Sunburst && (!usable(b.Parent, false) || b.Parent == b.Category) {
		b.Parent = defaultParent(sch, b.Category)
	}
	if b.Bins <= 0 {
		b.Bins = DefaultBins
	}
	if b.Labels.Position == "" {
		b.Labels = DefaultLabels()
	}
	return b, nil
}

func firstOr(xs []string, fallback string) string {
	if len(xs) > 0 {
		return xs[0]
	}
	return fallback
}
