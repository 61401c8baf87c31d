package chart

import (
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// CHART TYPES — Render-ready output of assembly
// ============================================================================
// A Spec is everything a rendering backend needs: no further grouping or
// reduction happens downstream. Box plot and histogram panels carry
// row-level data; every other kind carries aggregated points.
// ============================================================================

// Spec is the finalized description of one chart.
type Spec struct {
	VisualID   string      `json:"visualId"`
	Kind       visual.Kind `json:"chartType"`
	Title      string      `json:"title"`
	NoData     bool        `json:"noData"`
	Message    string      `json:"message,omitempty"`
	XAxis      *Axis       `json:"xAxis,omitempty"` // nil for Pie, Donut, Sunburst
	YAxis      *Axis       `json:"yAxis,omitempty"`
	Legend     Legend      `json:"legend"`
	Labels     Labels      `json:"labels"`
	Background bool        `json:"background"`
	Hole       float64     `json:"hole,omitempty"` // donut inner radius fraction
	Bins       int         `json:"bins,omitempty"`
	Panels     []Panel     `json:"panels"`

	// Filled by the pipeline.
	Rows    int      `json:"rows"`
	Filters []string `json:"filters,omitempty"`
}

// Axis is one Cartesian axis.
type Axis struct {
	Title   string           `json:"title"`
	Visible bool             `json:"visible"`
	Scale   visual.AxisScale `json:"scale"`
	Ticks   []float64        `json:"ticks,omitempty"`
}

// Legend places the legend.
type Legend struct {
	Show        bool               `json:"show"`
	Orientation visual.Orientation `json:"orientation"`
}

// Labels controls data label rendering.
type Labels struct {
	Show     bool                 `json:"show"`
	Position visual.LabelPosition `json:"position"`
}

// Panel is one facet of a chart. Unfaceted charts have a single panel
// with an empty Facet.
type Panel struct {
	Facet   string          `json:"facet,omitempty"`
	Points  []Point         `json:"points,omitempty"`
	Samples []engine.Sample `json:"samples,omitempty"` // box plot
	Values  []float64       `json:"values,omitempty"`  // histogram
	Colors  []string        `json:"colors,omitempty"`  // box plot: one per category, in first-appearance order
}

// Point is one mark of an aggregated chart.
type Point struct {
	Parent   string  `json:"parent,omitempty"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Size     float64 `json:"size,omitempty"`
	Count    int     `json:"count"`
	Label    string  `json:"label,omitempty"`
	Color    string  `json:"color"`
}

// Empty reports whether no panel has anything to draw.
func (s *Spec) Empty() bool {
	for _, p := range s.Panels {
		if len(p.Points) > 0 || len(p.Samples) > 0 || len(p.Values) > 0 {
			return false
		}
	}
	return true
}

// Categories returns the distinct categories across panels in first
// appearance order.
func (s *Spec) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, p := range s.Panels {
		for _, pt := range p.Points {
			add(pt.Category)
		}
		for _, sm := range p.Samples {
			add(sm.Category)
		}
	}
	return out
}
