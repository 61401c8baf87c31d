package render

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/spektr-org/chartdeck/chart"
)

// ============================================================================
// CSV — Text fallback
// ============================================================================

// CSVRenderer writes the chart's table as comma-separated text. It never
// depends on a graphics backend.
type CSVRenderer struct{}

// NewCSV returns a CSV renderer.
func NewCSV() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Format() Format { return CSV }

// Render writes the header, one row per table row and the summary row.
func (r *CSVRenderer) Render(w io.Writer, spec *chart.Spec) error {
	t := chart.Table(spec)
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	if t.Summary != nil && len(t.Columns) > 0 {
		row := make([]string, len(t.Columns))
		row[0] = t.Summary.Label
		for i, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok && i > 0 {
				row[i] = v
			}
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write csv summary")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
