package render

import (
	"github.com/aclements/go-moremath/stats"

	"github.com/spektr-org/chartdeck/engine"
)

// ============================================================================
// DISTRIBUTIONS — Box plot and histogram summaries for the backends
// ============================================================================
// Box plot grouping and histogram binning belong to rendering: the chart
// spec carries the raw row-level values.
// ============================================================================

// Box is the five-number summary of one category.
type Box struct {
	Category string
	Min      float64
	Q1       float64
	Median   float64
	Q3       float64
	Max      float64
	N        int
}

// BoxStats groups samples by category in first-appearance order.
func BoxStats(samples []engine.Sample) []Box {
	var order []string
	grouped := make(map[string][]float64)
	for _, s := range samples {
		if _, ok := grouped[s.Category]; !ok {
			order = append(order, s.Category)
		}
		grouped[s.Category] = append(grouped[s.Category], s.Value)
	}

	out := make([]Box, 0, len(order))
	for _, cat := range order {
		xs := grouped[cat]
		sample := stats.Sample{Xs: xs}
		sample.Sort()
		lo, hi := sample.Bounds()
		out = append(out, Box{
			Category: cat,
			Min:      lo,
			Q1:       sample.Quantile(0.25),
			Median:   sample.Quantile(0.5),
			Q3:       sample.Quantile(0.75),
			Max:      hi,
			N:        len(xs),
		})
	}
	return out
}

// Bin is one histogram bucket [Lo, Hi).
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram buckets values into n equal-width bins spanning their range.
// The maximum value falls in the last bin.
func Histogram(values []float64, n int) []Bin {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	lo, hi := stats.Bounds(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	h := stats.NewLinearHist(lo, hi, n)
	for _, x := range values {
		h.Add(x)
	}
	_, counts, over := h.Counts()
	counts[len(counts)-1] += over

	width := (hi - lo) / float64(n)
	out := make([]Bin, n)
	for i := range out {
		out[i] = Bin{Lo: lo + float64(i)*width, Hi: lo + float64(i+1)*width, Count: int(counts[i])}
	}
	return out
}
