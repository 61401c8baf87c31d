package chart

import (
	"math"

	"github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/stats"

	"github.com/spektr-org/chartdeck/visual"
)

// MaxTicks bounds the number of major ticks per axis.
const MaxTicks = 8

// Ticks returns major tick positions covering xs for a linear or log axis.
// Log axes ignore non-positive values and place ticks on powers of ten.
// Category axes have no numeric ticks.
func Ticks(xs []float64, sc visual.AxisScale) []float64 {
	switch sc {
	case visual.ScaleLinear:
		return linearTicks(xs)
	case visual.ScaleLog:
		return logTicks(xs)
	}
	return nil
}

func linearTicks(xs []float64) []float64 {
	xs = finite(xs)
	if len(xs) == 0 {
		return nil
	}
	lo, hi := stats.Bounds(xs)
	lo = math.Min(lo, 0)
	if lo == hi {
		hi = lo + 1
	}
	major, _ := scale.Linear{Min: lo, Max: hi}.Ticks(scale.TickOptions{Max: MaxTicks})
	return major
}

func logTicks(xs []float64) []float64 {
	var logs []float64
	for _, x := range finite(xs) {
		if x > 0 {
			logs = append(logs, math.Log10(x))
		}
	}
	if len(logs) == 0 {
		return nil
	}
	lo, hi := stats.Bounds(logs)
	lo, hi = math.Floor(lo), math.Ceil(hi)
	if lo == hi {
		hi = lo + 1
	}
	// Integral levels keep the exponents whole.
	major, _ := scale.Linear{Min: lo, Max: hi}.Ticks(scale.TickOptions{Max: MaxTicks, MinLevel: 0, MaxLevel: 1000})
	out := make([]float64, len(major))
	for i, e := range major {
		out[i] = math.Pow(10, e)
	}
	return out
}

func finite(xs []float64) []float64 {
	out := xs[:0:0]
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
