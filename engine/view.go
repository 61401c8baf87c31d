package engine

import (
	"time"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never copies the working dataset. It reads through this
// interface.
//
// Implementations:
//   TableView  — every row of a dataset
//   SubView    — filtered subset (indices into parent, zero-copy)
//
// Filtering and grouping produce SubViews; nothing downstream mutates rows.
// ============================================================================

// RecordView provides indexed access to a row subset of a dataset.
// The engine calls these in tight loops.
type RecordView interface {
	Len() int
	Row(i int) int // index into the underlying dataset
	Dataset() *dataset.Dataset
}

// Text returns the string form of a cell, or false when the column is
// absent or the cell is missing.
func Text(v RecordView, i int, column string) (string, bool) {
	c, ok := v.Dataset().Column(column)
	if !ok {
		return "", false
	}
	r := v.Row(i)
	if c.Missing(r) {
		return "", false
	}
	return c.Text(r), true
}

// Number returns a cell coerced to a number.
func Number(v RecordView, i int, column string) (float64, bool) {
	c, ok := v.Dataset().Column(column)
	if !ok {
		return 0, false
	}
	return c.Number(v.Row(i))
}

// Time returns a temporal cell.
func Time(v RecordView, i int, column string) (time.Time, bool) {
	c, ok := v.Dataset().Column(column)
	if !ok {
		return time.Time{}, false
	}
	return c.Time(v.Row(i))
}

// Rows returns the dataset row indices of a view.
func Rows(v RecordView) []int {
	rows := make([]int, v.Len())
	for i := range rows {
		rows[i] = v.Row(i)
	}
	return rows
}

// ============================================================================
// TABLE VIEW — every row
// ============================================================================

// TableView exposes every row of a dataset.
type TableView struct {
	ds *dataset.Dataset
}

// NewView creates a RecordView over all rows of ds.
func NewView(ds *dataset.Dataset) RecordView {
	return &TableView{ds: ds}
}

func (v *TableView) Len() int {
	if v.ds == nil {
		return 0
	}
	return v.ds.Len()
}

func (v *TableView) Row(i int) int             { return i }
func (v *TableView) Dataset() *dataset.Dataset { return v.ds }

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent RecordView.
// Holds dataset row indices, no data copy.
type SubView struct {
	ds   *dataset.Dataset
	rows []int
}

// newSubView takes indices relative to parent and resolves them to
// dataset rows so nested views stay one level deep.
func newSubView(parent RecordView, indices []int) RecordView {
	rows := make([]int, len(indices))
	for k, i := range indices {
		rows[k] = parent.Row(i)
	}
	return &SubView{ds: parent.Dataset(), rows: rows}
}

func (v *SubView) Len() int                  { return len(v.rows) }
func (v *SubView) Row(i int) int             { return v.rows[i] }
func (v *SubView) Dataset() *dataset.Dataset { return v.ds }

// ============================================================================
// PARTITION — facet splitting
// ============================================================================

// Group is a keyed subset of a view.
type Group struct {
	Key  string
	View RecordView
}

// Partition splits a view by the string form of column, in first-appearance
// order. Rows with a missing value are dropped.
func Partition(view RecordView, column string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key, ok := Text(view, i, column)
		if !ok {
			continue
		}
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{Key: key, View: newSubView(view, grouped[key])})
	}
	return groups
}
