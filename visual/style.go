package visual

import (
	"strings"

	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
)

// ============================================================================
// STYLE — Presentation settings shared by every kind
// ============================================================================
// Kinds without Cartesian axes keep their axis settings but chart assembly
// ignores them.
// ============================================================================

// AxisScale selects how an axis maps values.
type AxisScale string

const (
	ScaleCategory AxisScale = "category"
	ScaleLinear   AxisScale = "linear"
	ScaleLog      AxisScale = "log"
)

// Orientation lays out the legend.
type Orientation string

const (
	Vertical   Orientation = "v"
	Horizontal Orientation = "h"
)

// Axis styles one axis.
type Axis struct {
	Title string    `json:"title" yaml:"title"`
	Show  bool      `json:"show" yaml:"show"`
	Scale AxisScale `json:"scale" yaml:"scale"`
}

// Legend styles the legend.
type Legend struct {
	Show        bool        `json:"show" yaml:"show"`
	Orientation Orientation `json:"orientation" yaml:"orientation"`
}

// Style is the presentation part of a visual.
type Style struct {
	Title      string            `json:"title" yaml:"title"`
	XAxis      Axis              `json:"xAxis" yaml:"x_axis"`
	YAxis      Axis              `json:"yAxis" yaml:"y_axis"`
	Legend     Legend            `json:"legend" yaml:"legend"`
	Colors     map[string]string `json:"colors,omitempty" yaml:"colors,omitempty"` // category → color override
	Palette    string            `json:"palette" yaml:"palette"`
	Background bool              `json:"background" yaml:"background"`
}

// DefaultPalette names the palette used when none is chosen.
const DefaultPalette = "default"

func defaultStyle(k Kind, b Bindings, sch *schema.Schema, palette string) Style {
	if palette == "" {
		palette = DefaultPalette
	}
	st := Style{
		Title:      defaultTitle(k),
		XAxis:      Axis{Show: true, Scale: defaultXScale(k)},
		YAxis:      Axis{Show: true, Scale: ScaleLinear},
		Legend:     Legend{Show: true, Orientation: Vertical},
		Palette:    palette,
		Background: true,
	}
	st.XAxis.Title, st.YAxis.Title = axisTitles(k, b, sch)
	return st
}

func defaultTitle(k Kind) string { return k.Title() + " Chart" }

func defaultXScale(k Kind) AxisScale {
	if k == Scatter || k == Histogram {
		return ScaleLinear
	}
	return ScaleCategory
}

// axisTitles derives the default axis titles from the bindings.
func axisTitles(k Kind, b Bindings, sch *schema.Schema) (string, string) {
	display := func(col string) string {
		if c, ok := sch.Column(col); ok {
			return c.DisplayName
		}
		return schema.DisplayName(col)
	}

	switch k {
	case Histogram:
		return display(b.Value), "Count"
	case BoxPlot:
		return display(b.Category), display(b.Value)
	}
	y := engine.Count.Label()
	if b.Aggregation.NeedsValue() {
		y = b.Aggregation.Label() + " of " + display(b.Value)
	}
	x := display(b.Category)
	if k == HorizontalBar {
		return y, x
	}
	return x, y
}

func (s Style) validate(k Kind) error {
	switch s.XAxis.Scale {
	case ScaleCategory, ScaleLinear:
	default:
		return invalid("x_scale", "must be %q or %q, got %q", ScaleCategory, ScaleLinear, s.XAxis.Scale)
	}
	switch s.YAxis.Scale {
	case ScaleLinear, ScaleLog:
	default:
		return invalid("y_scale", "must be %q or %q, got %q", ScaleLinear, ScaleLog, s.YAxis.Scale)
	}
	switch s.Legend.Orientation {
	case Vertical, Horizontal:
	default:
		return invalid("legend_orientation", "must be %q or %q", Vertical, Horizontal)
	}
	for cat, color := range s.Colors {
		if strings.TrimSpace(color) == "" {
			return invalid("colors", "has an empty color for %q", cat)
		}
	}
	return nil
}
