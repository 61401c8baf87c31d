package engine

import (
	"math"

	"github.com/aclements/go-moremath/stats"
	"github.com/cockroachdb/errors"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// AGGREGATORS — Grouping and reduction via RecordView
// ============================================================================
// Groups come out in first-appearance order; ordering is the job of Order.
// Rows with a missing category are skipped. For value reductions, rows whose
// value does not coerce to a number are excluded from that group, and a group
// left with no usable value is dropped from the series entirely. So is a
// group whose reduction or size overflows to an infinity.
// ============================================================================

// Request describes one group-by/reduce pass.
type Request struct {
	Category string      // grouping column
	Parent   string      // optional outer grouping column (nested kinds)
	Value    string      // reduced column; ignored by Count
	Size     string      // optional column summed per group (bubble size)
	Mode     Aggregation // reduction
}

// Aggregate groups view by category and reduces value with mode.
func Aggregate(view RecordView, category, value string, mode Aggregation) (Series, error) {
	return AggregateBy(view, Request{Category: category, Value: value, Mode: mode})
}

type groupAcc struct {
	parent   string
	category string
	count    int
	values   []float64
	size     float64
}

// AggregateBy runs a full Request.
func AggregateBy(view RecordView, req Request) (Series, error) {
	ds := view.Dataset()
	if ds == nil {
		return nil, errors.Wrap(dataset.ErrEmptyDataset, "aggregate")
	}
	for _, col := range []string{req.Category, req.Parent, req.Size} {
		if col != "" && !ds.Has(col) {
			return nil, errors.Wrapf(dataset.ErrUnknownColumn, "aggregate by %q", col)
		}
	}
	if req.Category == "" {
		return nil, errors.New("aggregate: category field is required")
	}
	if req.Mode.NeedsValue() && !ds.Has(req.Value) {
		return nil, errors.Wrapf(dataset.ErrUnknownColumn, "%s of %q", req.Mode, req.Value)
	}

	type key struct{ parent, category string }
	groups := make(map[key]*groupAcc)
	order := make([]key, 0)

	for i := 0; i < view.Len(); i++ {
		cat, ok := Text(view, i, req.Category)
		if !ok {
			continue
		}
		k := key{category: cat}
		if req.Parent != "" {
			if k.parent, ok = Text(view, i, req.Parent); !ok {
				continue
			}
		}

		g, exists := groups[k]
		if !exists {
			g = &groupAcc{parent: k.parent, category: k.category}
			groups[k] = g
			order = append(order, k)
		}
		g.count++

		if req.Mode.NeedsValue() {
			if v, ok := Number(view, i, req.Value); ok {
				g.values = append(g.values, v)
			}
		}
		if req.Size != "" {
			if s, ok := Number(view, i, req.Size); ok {
				g.size += s
			}
		}
	}

	series := make(Series, 0, len(order))
	for _, k := range order {
		g := groups[k]
		v, ok := reduce(g, req.Mode)
		if !ok || !finite(v) || !finite(g.size) {
			continue
		}
		series = append(series, Point{
			Parent:   g.parent,
			Category: g.category,
			Value:    v,
			Size:     g.size,
			Count:    g.count,
		})
	}
	return series, nil
}

func reduce(g *groupAcc, mode Aggregation) (float64, bool) {
	if mode == Count {
		return float64(g.count), true
	}
	if len(g.values) == 0 {
		return 0, false
	}
	switch mode {
	case Sum:
		return sum(g.values), true
	case Average:
		if m := stats.Mean(g.values); finite(m) {
			return m, true
		}
		return runningMean(g.values), true
	case Min:
		lo, _ := stats.Bounds(g.values)
		return lo, true
	case Max:
		_, hi := stats.Bounds(g.values)
		return hi, true
	}
	return 0, false
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

// ============================================================================
// ROW-LEVEL EXTRACTION — distribution kinds bypass aggregation
// ============================================================================

// Values returns every numeric value of column in view order.
func Values(view RecordView, column string) []float64 {
	out := make([]float64, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if v, ok := Number(view, i, column); ok {
			out = append(out, v)
		}
	}
	return out
}

// Samples returns (category, value) pairs for every row with a numeric
// value. An empty category column yields uncategorised samples.
func Samples(view RecordView, category, value string) []Sample {
	out := make([]Sample, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		v, ok := Number(view, i, value)
		if !ok {
			continue
		}
		s := Sample{Value: v}
		if category != "" {
			if s.Category, ok = Text(view, i, category); !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// runningMean averages without forming the full sum, for values whose sum
// overflows.
func runningMean(xs []float64) float64 {
	var m float64
	for i, x := range xs {
		m += (x - m) / float64(i+1)
	}
	return m
}

func finite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}
