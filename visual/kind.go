package visual

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ============================================================================
// KIND — The fixed set of chart kinds
// ============================================================================

// Kind identifies a chart kind.
type Kind int

const (
	Bar Kind = iota
	HorizontalBar
	Line
	Area
	Scatter
	Bubble
	BoxPlot
	Histogram
	Pie
	Donut
	Sunburst
	Funnel
)

var kindNames = []string{
	"bar", "horizontal_bar", "line", "area", "scatter", "bubble",
	"box", "histogram", "pie", "donut", "sunburst", "funnel",
}

var kindTitles = []string{
	"Bar", "Horizontal Bar", "Line", "Area", "Scatter", "Bubble",
	"Box Plot", "Histogram", "Pie", "Donut", "Sunburst", "Funnel",
}

// Kinds returns every kind in menu order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindNames) }

func (k Kind) String() string {
	if !k.valid() {
		return "unknown"
	}
	return kindNames[k]
}

// Title is the human name used in default chart titles.
func (k Kind) Title() string {
	if !k.valid() {
		return "Chart"
	}
	return kindTitles[k]
}

// ParseKind accepts a kind name or title in any case.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "boxplot", "box_plot":
		return BoxPlot, nil
	case "horizontalbar", "hbar":
		return HorizontalBar, nil
	}
	for i, n := range kindNames {
		if n == norm {
			return Kind(i), nil
		}
	}
	return Bar, errors.Newf("unknown chart kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, errors.Newf("invalid chart kind %s", strconv.Itoa(int(k)))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Cartesian reports whether the kind has x/y axes.
func (k Kind) Cartesian() bool {
	return k != Pie && k != Donut && k != Sunburst
}

// Facetable reports whether the kind can be split into facet panels.
func (k Kind) Facetable() bool {
	switch k {
	case Bar, Line, Area, Scatter, Histogram:
		return true
	}
	return false
}

// Sortable reports whether the kind accepts a sort spec.
func (k Kind) Sortable() bool {
	return k != BoxPlot && k != Histogram && k != Sunburst
}

// Aggregates reports whether the kind consumes an aggregated series rather
// than row-level data.
func (k Kind) Aggregates() bool {
	return k != BoxPlot && k != Histogram
}

// HasLabels reports whether the kind supports data labels.
func (k Kind) HasLabels() bool {
	return k != BoxPlot
}
