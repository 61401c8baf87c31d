package engine

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ============================================================================
// ENGINE TYPES — Aggregation, ordering and series shapes
// ============================================================================

// ============================================================================
// AGGREGATION MODE
// ============================================================================

// Aggregation names the reduction applied per category group.
type Aggregation int

const (
	Count Aggregation = iota
	Sum
	Average
	Min
	Max
)

var aggregationNames = []string{"count", "sum", "avg", "min", "max"}

func (a Aggregation) String() string {
	if a < 0 || int(a) >= len(aggregationNames) {
		return "unknown"
	}
	return aggregationNames[a]
}

// NeedsValue reports whether the mode reduces a value field.
func (a Aggregation) NeedsValue() bool { return a != Count }

// ParseAggregation maps a name back to an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "count", "":
		return Count, nil
	case "sum":
		return Sum, nil
	case "avg", "average", "mean":
		return Average, nil
	case "min", "minimum":
		return Min, nil
	case "max", "maximum":
		return Max, nil
	}
	return Count, errors.Newf("unknown aggregation %q", s)
}

func (a Aggregation) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Aggregation) UnmarshalText(b []byte) error {
	v, err := ParseAggregation(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Label returns a human-readable label for axis titles.
func (a Aggregation) Label() string {
	switch a {
	case Sum:
		return "Sum"
	case Average:
		return "Average"
	case Min:
		return "Minimum"
	case Max:
		return "Maximum"
	default:
		return "Count"
	}
}

// ============================================================================
// SORT SPEC
// ============================================================================

// SortMode selects how a series is ordered.
type SortMode int

const (
	SortNone SortMode = iota
	CategoryAsc
	CategoryDesc
	ValueAsc
	ValueDesc
	ManualOrder
)

var sortModeNames = []string{"none", "category_asc", "category_desc", "value_asc", "value_desc", "manual"}

func (m SortMode) String() string {
	if m < 0 || int(m) >= len(sortModeNames) {
		return "unknown"
	}
	return sortModeNames[m]
}

// ParseSortMode maps a name back to a SortMode.
func ParseSortMode(s string) (SortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNone, nil
	}
	for i, n := range sortModeNames {
		if n == s {
			return SortMode(i), nil
		}
	}
	return SortNone, errors.Newf("unknown sort mode %q", s)
}

func (m SortMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SortMode) UnmarshalText(b []byte) error {
	v, err := ParseSortMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SortSpec is a sort mode plus the explicit category list for ManualOrder.
type SortSpec struct {
	Mode   SortMode `json:"mode" yaml:"mode"`
	Manual []string `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// IsNone reports whether the spec leaves order untouched.
func (s SortSpec) IsNone() bool {
	return s.Mode == SortNone || (s.Mode == ManualOrder && len(s.Manual) == 0)
}

// ============================================================================
// SERIES
// ============================================================================

// Point is one reduced category group.
type Point struct {
	Parent   string  `json:"parent,omitempty"` // outer key for nested grouping
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Size     float64 `json:"size,omitempty"` // bubble size (sum of the size field)
	Count    int     `json:"count"`          // rows in the group
}

// Series is an ordered list of points.
type Series []Point

// Categories returns the category keys in order.
func (s Series) Categories() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Category
	}
	return out
}

// Sample is one row-level (category, value) pair for distribution kinds.
type Sample struct {
	Category string  `json:"category,omitempty"`
	Value    float64 `json:"value"`
}
