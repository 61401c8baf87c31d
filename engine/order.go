package engine

import (
	"sort"
)

// ============================================================================
// SORTING — Series ordering
// ============================================================================

// Order returns a reordered copy of series. The input is never modified.
func Order(series Series, spec SortSpec) Series {
	out := make(Series, len(series))
	copy(out, series)

	switch spec.Mode {
	case CategoryAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	case CategoryDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Category > out[j].Category })
	case ValueAsc:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Value != out[j].Value {
				return out[i].Value < out[j].Value
			}
			return out[i].Category < out[j].Category
		})
	case ValueDesc:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Value != out[j].Value {
				return out[i].Value > out[j].Value
			}
			return out[i].Category < out[j].Category
		})
	case ManualOrder:
		out = manualOrder(out, spec.Manual)
	default:
		// preserve grouping order
	}
	return out
}

// manualOrder puts listed categories first in list order, then everything
// else in its existing relative order. Unknown and repeated entries in the
// list are ignored.
func manualOrder(series Series, manual []string) Series {
	if len(manual) == 0 {
		return series
	}
	rank := make(map[string]int, len(manual))
	for _, c := range manual {
		if _, dup := rank[c]; !dup {
			rank[c] = len(rank)
		}
	}

	listed := make(Series, 0, len(series))
	rest := make(Series, 0, len(series))
	for _, p := range series {
		if _, ok := rank[p.Category]; ok {
			listed = append(listed, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return rank[listed[i].Category] < rank[listed[j].Category]
	})
	return append(listed, rest...)
}
