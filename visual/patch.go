package visual

import (
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
)

// ============================================================================
// PATCH — Partial updates from the widget layer
// ============================================================================
// A nil field leaves the setting untouched. Patches are applied to a clone
// and validated before the store commits, so a rejected patch changes
// nothing.
// ============================================================================

// Patch is a partial visual update.
type Patch struct {
	Kind *Kind `json:"kind,omitempty"`

	Category    *string             `json:"category,omitempty"`
	Value       *string             `json:"value,omitempty"`
	Size        *string             `json:"size,omitempty"`
	Facet       *string             `json:"facet,omitempty"`
	Parent      *string             `json:"parent,omitempty"`
	Aggregation *engine.Aggregation `json:"aggregation,omitempty"`
	Sort        *engine.SortSpec    `json:"sort,omitempty"`
	Bins        *int                `json:"bins,omitempty"`
	LabelMode   *LabelMode          `json:"labelMode,omitempty"`
	Labels      *Labels             `json:"labels,omitempty"`

	// SwapAxes exchanges the category and value fields along with the axis
	// titles.
	SwapAxes bool `json:"swapAxes,omitempty"`

	Title             *string           `json:"title,omitempty"`
	XTitle            *string           `json:"xTitle,omitempty"`
	YTitle            *string           `json:"yTitle,omitempty"`
	ShowXAxis         *bool             `json:"showXAxis,omitempty"`
	ShowYAxis         *bool             `json:"showYAxis,omitempty"`
	XScale            *AxisScale        `json:"xScale,omitempty"`
	YScale            *AxisScale        `json:"yScale,omitempty"`
	ShowLegend        *bool             `json:"showLegend,omitempty"`
	LegendOrientation *Orientation      `json:"legendOrientation,omitempty"`
	Colors            map[string]string `json:"colors,omitempty"` // merged; an empty color removes the override
	Palette           *string           `json:"palette,omitempty"`
	Background        *bool             `json:"background,omitempty"`

	// Filters replaces the visual's own filter spec.
	Filters *engine.FilterSpec `json:"filters,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Kind == nil && p.Category == nil && p.Value == nil && p.Size == nil &&
		p.Facet == nil && p.Parent == nil && p.Aggregation == nil && p.Sort == nil &&
		p.Bins == nil && p.LabelMode == nil && p.Labels == nil && !p.SwapAxes &&
		p.Title == nil && p.XTitle == nil && p.YTitle == nil && p.ShowXAxis == nil &&
		p.ShowYAxis == nil && p.XScale == nil && p.YScale == nil && p.ShowLegend == nil &&
		p.LegendOrientation == nil && len(p.Colors) == 0 && p.Palette == nil &&
		p.Background == nil && p.Filters == nil
}

// apply mutates v, which must be a private clone. Titles and the x scale
// still at their derived defaults follow binding and kind changes; anything
// the user set explicitly is kept.
func (p Patch) apply(v *Visual, sch *schema.Schema) error {
	k := v.Kind()
	b := v.Shape.Bindings()
	st := &v.Style

	autoX, autoY := axisTitles(k, b, sch)
	followX, followY := st.XAxis.Title == autoX, st.YAxis.Title == autoY
	followTitle := st.Title == defaultTitle(k)
	followScale := st.XAxis.Scale == defaultXScale(k)

	if p.Kind != nil && *p.Kind != k {
		if !p.Kind.valid() {
			return invalid("kind", "is unknown")
		}
		k = *p.Kind
		var err error
		if b, err = fillDefaults(k, b, sch); err != nil {
			return err
		}
	}

	steps := []struct {
		present bool
		field   string
		ok      bool
		apply   func()
	}{
		{p.Category != nil, "category", k != Histogram, func() { b.Category = *p.Category }},
		{p.Value != nil, "value", true, func() { b.Value = *p.Value }},
		{p.Size != nil, "size", k == Bubble, func() { b.Size = *p.Size }},
		{p.Facet != nil, "facet", k.Facetable(), func() { b.Facet = *p.Facet }},
		{p.Parent != nil, "parent", k == Sunburst, func() { b.Parent = *p.Parent }},
		{p.Aggregation != nil, "aggregation", k.Aggregates(), func() { b.Aggregation = *p.Aggregation }},
		{p.Sort != nil, "sort", k.Sortable(), func() { b.Sort = cloneSort(*p.Sort) }},
		{p.Bins != nil, "bins", k == Histogram, func() { b.Bins = *p.Bins }},
		{p.LabelMode != nil, "label_mode", k == Pie || k == Donut, func() { b.LabelMode = *p.LabelMode }},
		{p.Labels != nil, "labels", k.HasLabels(), func() { b.Labels = *p.Labels }},
	}
	for _, s := range steps {
		if !s.present {
			continue
		}
		if !s.ok {
			return unsupported(s.field, k)
		}
		s.apply()
	}

	if p.SwapAxes {
		if !k.Cartesian() || !k.Aggregates() {
			return unsupported("swap_axes", k)
		}
		b.Category, b.Value = b.Value, b.Category
		if !followX || !followY {
			st.XAxis.Title, st.YAxis.Title = st.YAxis.Title, st.XAxis.Title
			followX, followY = followY, followX
		}
	}

	shape, err := NewShape(k, b)
	if err != nil {
		return invalid("kind", "is unknown")
	}
	v.Shape = shape

	x, y := axisTitles(k, b, sch)
	if followX {
		st.XAxis.Title = x
	}
	if followY {
		st.YAxis.Title = y
	}
	if followTitle {
		st.Title = defaultTitle(k)
	}
	if followScale {
		st.XAxis.Scale = defaultXScale(k)
	}

	p.applyStyle(st)
	if p.Filters != nil {
		v.Filters = p.Filters.Clone()
	}
	return nil
}

func (p Patch) applyStyle(st *Style) {
	if p.Title != nil {
		st.Title = *p.Title
	}
	if p.XTitle != nil {
		st.XAxis.Title = *p.XTitle
	}
	if p.YTitle != nil {
		st.YAxis.Title = *p.YTitle
	}
	if p.ShowXAxis != nil {
		st.XAxis.Show = *p.ShowXAxis
	}
	if p.ShowYAxis != nil {
		st.YAxis.Show = *p.ShowYAxis
	}
	if p.XScale != nil {
		st.XAxis.Scale = *p.XScale
	}
	if p.YScale != nil {
		st.YAxis.Scale = *p.YScale
	}
	if p.ShowLegend != nil {
		st.Legend.Show = *p.ShowLegend
	}
	if p.LegendOrientation != nil {
		st.Legend.Orientation = *p.LegendOrientation
	}
	for cat, color := range p.Colors {
		if color == "" {
			delete(st.Colors, cat)
			continue
		}
		if st.Colors == nil {
			st.Colors = make(map[string]string)
		}
		st.Colors[cat] = color
	}
	if len(st.Colors) == 0 {
		st.Colors = nil
	}
	if p.Palette != nil {
		st.Palette = *p.Palette
	}
	if p.Background != nil {
		st.Background = *p.Background
	}
}
