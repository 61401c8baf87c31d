package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// SUMMARY — "Active filter" lines for the sidebar and logs
// ============================================================================

// Summary describes the active predicates of each spec, in evaluation
// order: every line of the first spec precedes the lines of the next.
func Summary(specs ...FilterSpec) []string {
	var lines []string
	for _, spec := range specs {
		for _, col := range spec.Columns() {
			lines = append(lines, describe(col, spec[col]))
		}
	}
	return lines
}

func describe(column string, p Predicate) string {
	var parts []string
	if len(p.In) > 0 {
		parts = append(parts, strings.Join(p.In, ", "))
	}
	if p.Between != nil {
		parts = append(parts, fmt.Sprintf("%s → %s",
			dataset.FormatTime(p.Between.Start), dataset.FormatTime(p.Between.End)))
	}
	return column + ": " + strings.Join(parts, "; ")
}

// RowCountLine reports how many rows survive a filter stage.
func RowCountLine(stage string, view RecordView) string {
	return fmt.Sprintf("Rows after %s: %s", stage, humanize.Comma(int64(view.Len())))
}
