package visual

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spektr-org/chartdeck/engine"
)

// ============================================================================
// SHAPE — Kind-specific configuration as a tagged variant
// ============================================================================
// Every kind maps to exactly one variant, and each variant carries only the
// settings that kind supports:
//
//   CategoryShape  — Bar, HorizontalBar, Line, Area, Scatter, Funnel
//   BubbleShape    — Bubble (adds a numeric size field)
//   BoxPlotShape   — BoxPlot (row-level, no labels, no sort)
//   HistogramShape — Histogram (row-level, bin count, facet)
//   PieShape       — Pie, Donut (label composition mode)
//   SunburstShape  — Sunburst (parent ring, no sort)
//
// Bindings is the flat union of all variant settings. It is the exchange
// format for kind changes and the dashboard document.
// ============================================================================

// Shape is the kind-specific part of a visual.
type Shape interface {
	Kind() Kind
	Bindings() Bindings
}

// LabelPosition places data labels.
type LabelPosition string

const (
	LabelAuto    LabelPosition = "auto"
	LabelInside  LabelPosition = "inside"
	LabelOutside LabelPosition = "outside"
	LabelTop     LabelPosition = "top"
	LabelCenter  LabelPosition = "center"
)

func (p LabelPosition) valid() bool {
	switch p {
	case LabelAuto, LabelInside, LabelOutside, LabelTop, LabelCenter:
		return true
	}
	return false
}

// Labels controls data labels.
type Labels struct {
	Show      bool          `json:"show" yaml:"show"`
	Position  LabelPosition `json:"position" yaml:"position"`
	Precision int           `json:"precision" yaml:"precision"`
}

// DefaultLabels returns hidden labels with two decimals.
func DefaultLabels() Labels {
	return Labels{Position: LabelAuto, Precision: 2}
}

// LabelMode composes pie and donut slice labels.
type LabelMode string

const (
	LabelPercent     LabelMode = "percent"
	LabelValue       LabelMode = "value"
	LabelName        LabelMode = "label"
	LabelNamePercent LabelMode = "label+percent"
	LabelNameValue   LabelMode = "label+value"
)

// ParseLabelMode validates a label mode name.
func ParseLabelMode(s string) (LabelMode, error) {
	m := LabelMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case LabelPercent, LabelValue, LabelName, LabelNamePercent, LabelNameValue:
		return m, nil
	}
	return LabelPercent, errors.Newf("unknown label mode %q", s)
}

// Bindings is the flat union of every variant setting.
type Bindings struct {
	Category    string             `json:"category,omitempty" yaml:"category,omitempty"`
	Value       string             `json:"value,omitempty" yaml:"value,omitempty"`
	Size        string             `json:"size,omitempty" yaml:"size,omitempty"`
	Facet       string             `json:"facet,omitempty" yaml:"facet,omitempty"`
	Parent      string             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Aggregation engine.Aggregation `json:"aggregation" yaml:"aggregation"`
	Sort        engine.SortSpec    `json:"sort" yaml:"sort"`
	Labels      Labels             `json:"labels" yaml:"labels"`
	Bins        int                `json:"bins,omitempty" yaml:"bins,omitempty"`
	LabelMode   LabelMode          `json:"labelMode,omitempty" yaml:"label_mode,omitempty"`
}

// DefaultBins is the histogram bin count for new visuals.
const DefaultBins = 20

// MaxBins bounds the histogram bin count.
const MaxBins = 500

// ============================================================================
// VARIANTS
// ============================================================================

// CategoryShape groups rows by a category and reduces a value.
type CategoryShape struct {
	Type        Kind
	Category    string
	Value       string
	Aggregation engine.Aggregation
	Sort        engine.SortSpec
	Facet       string
	Labels      Labels
}

func (s *CategoryShape) Kind() Kind { return s.Type }

func (s *CategoryShape) Bindings() Bindings {
	return Bindings{
		Category: s.Category, Value: s.Value, Facet: s.Facet,
		Aggregation: s.Aggregation, Sort: cloneSort(s.Sort), Labels: s.Labels,
	}
}

// BubbleShape is a scatter of aggregated groups sized by a numeric field.
type BubbleShape struct {
	Category    string
	Value       string
	Size        string
	Aggregation engine.Aggregation
	Sort        engine.SortSpec
	Labels      Labels
}

func (s *BubbleShape) Kind() Kind { return Bubble }

func (s *BubbleShape) Bindings() Bindings {
	return Bindings{
		Category: s.Category, Value: s.Value, Size: s.Size,
		Aggregation: s.Aggregation, Sort: cloneSort(s.Sort), Labels: s.Labels,
	}
}

// BoxPlotShape plots the distribution of a numeric field, optionally split
// by category.
type BoxPlotShape struct {
	Category string
	Value    string
}

func (s *BoxPlotShape) Kind() Kind { return BoxPlot }

func (s *BoxPlotShape) Bindings() Bindings {
	return Bindings{Category: s.Category, Value: s.Value}
}

// HistogramShape bins a numeric field.
type HistogramShape struct {
	Value  string
	Bins   int
	Facet  string
	Labels Labels
}

func (s *HistogramShape) Kind() Kind { return Histogram }

func (s *HistogramShape) Bindings() Bindings {
	return Bindings{Value: s.Value, Bins: s.Bins, Facet: s.Facet, Labels: s.Labels}
}

// PieShape is a pie or donut of aggregated groups.
type PieShape struct {
	Type        Kind
	Category    string
	Value       string
	Aggregation engine.Aggregation
	Sort        engine.SortSpec
	LabelMode   LabelMode
	Labels      Labels
}

func (s *PieShape) Kind() Kind { return s.Type }

func (s *PieShape) Bindings() Bindings {
	return Bindings{
		Category: s.Category, Value: s.Value,
		Aggregation: s.Aggregation, Sort: cloneSort(s.Sort),
		LabelMode: s.LabelMode, Labels: s.Labels,
	}
}

// SunburstShape nests category groups inside parent groups.
type SunburstShape struct {
	Parent      string
	Category    string
	Value       string
	Aggregation engine.Aggregation
	Labels      Labels
}

func (s *SunburstShape) Kind() Kind { return Sunburst }

func (s *SunburstShape) Bindings() Bindings {
	return Bindings{
		Parent: s.Parent, Category: s.Category, Value: s.Value,
		Aggregation: s.Aggregation, Labels: s.Labels,
	}
}

// NewShape builds the variant for k from b, keeping only the settings k
// supports.
func NewShape(k Kind, b Bindings) (Shape, error) {
	switch k {
	case Bar, HorizontalBar, Line, Area, Scatter, Funnel:
		s := &CategoryShape{
			Type: k, Category: b.Category, Value: b.Value,
			Aggregation: b.Aggregation, Sort: cloneSort(b.Sort), Labels: b.Labels,
		}
		if k.Facetable() {
			s.Facet = b.Facet
		}
		return s, nil
	case Bubble:
		return &BubbleShape{
			Category: b.Category, Value: b.Value, Size: b.Size,
			Aggregation: b.Aggregation, Sort: cloneSort(b.Sort), Labels: b.Labels,
		}, nil
	case BoxPlot:
		return &BoxPlotShape{Category: b.Category, Value: b.Value}, nil
	case Histogram:
		bins := b.Bins
		if bins <= 0 {
			bins = DefaultBins
		}
		return &HistogramShape{Value: b.Value, Bins: bins, Facet: b.Facet, Labels: b.Labels}, nil
	case Pie, Donut:
		mode := b.LabelMode
		if mode == "" {
			mode = LabelPercent
		}
		return &PieShape{
			Type: k, Category: b.Category, Value: b.Value,
			Aggregation: b.Aggregation, Sort: cloneSort(b.Sort),
			LabelMode: mode, Labels: b.Labels,
		}, nil
	case Sunburst:
		return &SunburstShape{
			Parent: b.Parent, Category: b.Category, Value: b.Value,
			Aggregation: b.Aggregation, Labels: b.Labels,
		}, nil
	}
	return nil, errors.Newf("unknown chart kind %d", int(k))
}

func cloneShape(s Shape) Shape {
	out, _ := NewShape(s.Kind(), s.Bindings())
	return out
}

func cloneSort(s engine.SortSpec) engine.SortSpec {
	if s.Manual != nil {
		s.Manual = append([]string(nil), s.Manual...)
	}
	return s
}
