package chart

import (
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// CHART ASSEMBLY — Produces a Spec from a visual + finalized data
// ============================================================================
// Assembly never groups or reduces. Aggregating kinds arrive as ordered
// series, box plots as raw (category, value) samples and histograms as raw
// values plus a bin count. One Data entry per facet panel.
// ============================================================================

// DonutHole is the inner radius fraction of donut charts.
const DonutHole = 0.4

// NoDataMessage is shown when filtering leaves nothing to plot.
const NoDataMessage = "No data for the current filters"

// Data is the finalized input of one panel.
type Data struct {
	Facet   string
	Series  engine.Series
	Samples []engine.Sample
	Values  []float64
}

// Option configures assembly.
type Option func(*config)

type config struct {
	fallbackPalette string
	noData          string
}

// WithFallbackPalette sets the palette used when a visual names an unknown
// one.
func WithFallbackPalette(name string) Option {
	return func(c *config) { c.fallbackPalette = name }
}

// WithNoDataMessage replaces the empty-state message.
func WithNoDataMessage(msg string) Option {
	return func(c *config) { c.noData = msg }
}

func applyOptions(opts []Option) *config {
	cfg := &config{fallbackPalette: visual.DefaultPalette, noData: NoDataMessage}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Assemble builds the Spec for v from data.
func Assemble(v *visual.Visual, data []Data, opts ...Option) *Spec {
	cfg := applyOptions(opts)
	k := v.Kind()
	b := v.Bindings()
	st := v.Style

	spec := &Spec{
		VisualID:   v.ID.String(),
		Kind:       k,
		Title:      st.Title,
		Legend:     Legend{Show: st.Legend.Show, Orientation: st.Legend.Orientation},
		Background: st.Background,
		Labels: Labels{
			Show:     k.HasLabels() && (b.Labels.Show || k == visual.Pie || k == visual.Donut),
			Position: b.Labels.Position,
		},
		Panels: make([]Panel, 0, len(data)),
	}
	if k == visual.Donut {
		spec.Hole = DonutHole
	}
	if k == visual.Histogram {
		spec.Bins = b.Bins
	}
	if k.Cartesian() {
		spec.XAxis = &Axis{Title: st.XAxis.Title, Visible: st.XAxis.Show, Scale: st.XAxis.Scale}
		spec.YAxis = &Axis{Title: st.YAxis.Title, Visible: st.YAxis.Show, Scale: st.YAxis.Scale}
	}

	pal := st.Palette
	if !HasPalette(pal) {
		pal = cfg.fallbackPalette
	}
	colors := newColorizer(pal, categoriesOf(data), st.Colors)

	for _, d := range data {
		p := Panel{Facet: d.Facet}
		switch k {
		case visual.BoxPlot:
			p.Samples = append([]engine.Sample(nil), d.Samples...)
			for _, cat := range sampleCategories(d.Samples) {
				p.Colors = append(p.Colors, colors.color(cat))
			}
		case visual.Histogram:
			p.Values = append([]float64(nil), d.Values...)
			p.Colors = []string{colors.color("")}
		default:
			p.Points = points(k, b, d.Series, colors)
		}
		spec.Panels = append(spec.Panels, p)
	}

	if spec.Empty() {
		spec.NoData = true
		spec.Message = cfg.noData
		return spec
	}
	assignTicks(spec)
	return spec
}

func points(k visual.Kind, b visual.Bindings, series engine.Series, colors *colorizer) []Point {
	var total float64
	for _, pt := range series {
		total += pt.Value
	}
	out := make([]Point, 0, len(series))
	for _, pt := range series {
		p := Point{
			Parent:   pt.Parent,
			Category: pt.Category,
			Value:    pt.Value,
			Size:     pt.Size,
			Count:    pt.Count,
			Color:    colors.color(pt.Category),
		}
		if k == visual.Pie || k == visual.Donut {
			p.Label = sliceLabel(b.LabelMode, pt.Category, pt.Value, total, b.Labels.Precision)
		} else {
			p.Label = FormatLabel(pt.Value, b.Labels.Precision)
		}
		out = append(out, p)
	}
	return out
}

// assignTicks fills numeric ticks for axes that carry numbers.
func assignTicks(s *Spec) {
	if s.XAxis == nil {
		return
	}
	var values, xs []float64
	numericX := true
	for _, p := range s.Panels {
		for _, pt := range p.Points {
			values = append(values, pt.Value)
			if x, ok := dataset.ParseNumber(pt.Category); ok {
				xs = append(xs, x)
			} else {
				numericX = false
			}
		}
		for _, sm := range p.Samples {
			values = append(values, sm.Value)
		}
		xs = append(xs, p.Values...)
	}

	switch s.Kind {
	case visual.Histogram:
		s.XAxis.Ticks = Ticks(xs, s.XAxis.Scale)
	case visual.HorizontalBar:
		s.XAxis.Ticks = Ticks(values, s.XAxis.Scale)
	default:
		s.YAxis.Ticks = Ticks(values, s.YAxis.Scale)
		if numericX && len(xs) > 0 {
			s.XAxis.Ticks = Ticks(xs, s.XAxis.Scale)
		}
	}
}

func categoriesOf(data []Data) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range data {
		cats := d.Series.Categories()
		cats = append(cats, sampleCategories(d.Samples)...)
		for _, c := range cats {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func sampleCategories(samples []engine.Sample) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range samples {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}
