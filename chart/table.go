package chart

import (
	"strconv"

	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// TABLE — Tabular form of a Spec
// ============================================================================
// Used for the text export fallback and the CLI. Aggregated kinds become
// one row per point; distribution kinds list their raw values.
// ============================================================================

// TableData is a rendered table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// Header returns the column labels.
func (t *TableData) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// Table flattens spec into rows.
func Table(spec *Spec) *TableData {
	faceted := false
	for _, p := range spec.Panels {
		if p.Facet != "" {
			faceted = true
		}
	}
	switch spec.Kind {
	case visual.BoxPlot, visual.Histogram:
		return buildListTable(spec, faceted)
	}
	return buildAggregatedTable(spec, faceted)
}

// ============================================================================
// LIST TABLE — Row per record
// ============================================================================

func buildListTable(spec *Spec, faceted bool) *TableData {
	valueLabel := "Value"
	if spec.YAxis != nil && spec.Kind == visual.BoxPlot && spec.YAxis.Title != "" {
		valueLabel = spec.YAxis.Title
	} else if spec.XAxis != nil && spec.Kind == visual.Histogram && spec.XAxis.Title != "" {
		valueLabel = spec.XAxis.Title
	}

	var columns []Column
	if faceted {
		columns = append(columns, Column{Key: "facet", Label: "Facet", Type: "text", Align: "left"})
	}
	if spec.Kind == visual.BoxPlot {
		columns = append(columns, Column{Key: "category", Label: categoryLabel(spec), Type: "text", Align: "left"})
	}
	columns = append(columns, Column{Key: "value", Label: valueLabel, Type: "number", Align: "right"})

	rows := make([][]string, 0)
	n := 0
	for _, p := range spec.Panels {
		add := func(cat string, v float64) {
			var row []string
			if faceted {
				row = append(row, p.Facet)
			}
			if spec.Kind == visual.BoxPlot {
				row = append(row, cat)
			}
			rows = append(rows, append(row, dataset.FormatNumber(v)))
			n++
		}
		for _, s := range p.Samples {
			add(s.Category, s.Value)
		}
		for _, v := range p.Values {
			add("", v)
		}
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label:  "Total (" + strconv.Itoa(n) + " records)",
			Values: map[string]string{},
		},
	}
}

// ============================================================================
// AGGREGATED TABLE — Summary rows
// ============================================================================

func buildAggregatedTable(spec *Spec, faceted bool) *TableData {
	valueLabel := "Value"
	if spec.YAxis != nil && spec.YAxis.Title != "" {
		valueLabel = spec.YAxis.Title
		if spec.Kind == visual.HorizontalBar {
			valueLabel = spec.XAxis.Title
		}
	}
	nested := false
	for _, p := range spec.Panels {
		for _, pt := range p.Points {
			if pt.Parent != "" {
				nested = true
			}
		}
	}

	var columns []Column
	if faceted {
		columns = append(columns, Column{Key: "facet", Label: "Facet", Type: "text", Align: "left"})
	}
	if nested {
		columns = append(columns, Column{Key: "parent", Label: "Parent", Type: "text", Align: "left"})
	}
	columns = append(columns,
		Column{Key: "group", Label: categoryLabel(spec), Type: "text", Align: "left"},
		Column{Key: "value", Label: valueLabel, Type: "number", Align: "right"},
		Column{Key: "count", Label: "Count", Type: "number", Align: "center"},
	)

	rows := make([][]string, 0)
	var totalValue float64
	var totalCount int
	for _, p := range spec.Panels {
		for _, pt := range p.Points {
			var row []string
			if faceted {
				row = append(row, p.Facet)
			}
			if nested {
				row = append(row, pt.Parent)
			}
			rows = append(rows, append(row, pt.Category, dataset.FormatNumber(pt.Value), strconv.Itoa(pt.Count)))
			totalValue += pt.Value
			totalCount += pt.Count
		}
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: "Total",
			Values: map[string]string{
				"value": dataset.FormatNumber(totalValue),
				"count": strconv.Itoa(totalCount),
			},
		},
	}
}

func categoryLabel(spec *Spec) string {
	switch {
	case spec.Kind == visual.HorizontalBar && spec.YAxis != nil && spec.YAxis.Title != "":
		return spec.YAxis.Title
	case spec.Kind != visual.HorizontalBar && spec.XAxis != nil && spec.XAxis.Title != "":
		return spec.XAxis.Title
	}
	return "Category"
}
