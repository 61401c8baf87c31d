package schema

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// INSPECTOR — Column classification with user overrides
// ============================================================================
// Classification pipeline per column:
//   1. Apply explicit type override (wins over inference for the session)
//   2. Count missing + distinct values → cardinality hint
//   3. Sorted distinct values for non-numeric columns (filter candidates)
//   4. Hierarchy detection between non-numeric columns (sunburst defaults)
//
// Distinct-value lists are cached per column and dropped whenever that
// column's type changes.
// ============================================================================

// Inspector owns the type overrides and the distinct-value cache of one
// session. It is not safe for concurrent use.
type Inspector struct {
	overrides  map[string]dataset.ColumnType
	cache      map[string]cachedValues
	generation int
}

type cachedValues struct {
	col    *dataset.Column
	values []string
}

// NewInspector returns an Inspector with no overrides.
func NewInspector() *Inspector {
	return &Inspector{
		overrides: make(map[string]dataset.ColumnType),
		cache:     make(map[string]cachedValues),
	}
}

// SetOverride pins the type of a column. The override is applied by the
// next call to Apply.
func (in *Inspector) SetOverride(name string, t dataset.ColumnType) {
	if cur, ok := in.overrides[name]; ok && cur == t {
		return
	}
	in.overrides[name] = t
	delete(in.cache, name)
}

// ClearOverride returns a column to its inferred type.
func (in *Inspector) ClearOverride(name string) {
	if _, ok := in.overrides[name]; !ok {
		return
	}
	delete(in.overrides, name)
	delete(in.cache, name)
}

// Overrides returns a copy of the active overrides.
func (in *Inspector) Overrides() map[string]dataset.ColumnType {
	out := make(map[string]dataset.ColumnType, len(in.overrides))
	for k, v := range in.overrides {
		out[k] = v
	}
	return out
}

// Reset drops every override and cached list.
func (in *Inspector) Reset() {
	in.overrides = make(map[string]dataset.ColumnType)
	in.cache = make(map[string]cachedValues)
	in.generation = 0
}

// Apply returns ds with every override for a present column applied.
// Overrides for absent columns are kept for when the column returns.
func (in *Inspector) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds == nil {
		return nil, errors.Wrap(dataset.ErrEmptyDataset, "no dataset loaded")
	}
	out := ds
	for _, name := range ds.Names() {
		t, ok := in.overrides[name]
		if !ok {
			continue
		}
		col, _ := out.Column(name)
		if col.Type == t {
			continue
		}
		var err error
		if out, err = out.WithType(name, t); err != nil {
			return nil, errors.Wrapf(err, "override %q", name)
		}
	}
	return out, nil
}

// Inspect classifies every column of the working dataset.
func (in *Inspector) Inspect(ds *dataset.Dataset) *Schema {
	in.generation++
	if ds == nil {
		return newSchema("", in.generation, 0, nil)
	}

	cols := make([]ColumnMeta, 0, len(ds.Columns()))
	live := make(map[string]bool, len(ds.Columns()))
	for _, c := range ds.Columns() {
		live[c.Name] = true
		cols = append(cols, in.analyzeColumn(c))
	}
	for name := range in.cache {
		if !live[name] {
			delete(in.cache, name)
		}
	}

	detectHierarchies(cols, ds)
	return newSchema(ds.Name, in.generation, ds.Len(), cols)
}

// analyzeColumn inspects all values in a column.
func (in *Inspector) analyzeColumn(c *dataset.Column) ColumnMeta {
	_, overridden := in.overrides[c.Name]
	meta := ColumnMeta{
		Name:         c.Name,
		Key:          toSnakeCase(c.Name),
		DisplayName:  toDisplayName(c.Name),
		Type:         c.Type,
		Inferred:     c.Inferred,
		Overridden:   overridden,
		MissingCount: c.MissingCount(),
	}

	values := in.distinct(c)
	meta.DistinctCount = len(values)
	if c.Type != dataset.Numeric {
		meta.Values = values
	}

	switch {
	case meta.DistinctCount <= 10:
		meta.CardinalityHint = "low"
	case meta.DistinctCount <= 100:
		meta.CardinalityHint = "medium"
	default:
		meta.CardinalityHint = "high"
	}
	return meta
}

// distinct returns the sorted distinct string forms of non-missing cells.
func (in *Inspector) distinct(c *dataset.Column) []string {
	if hit, ok := in.cache[c.Name]; ok && hit.col == c {
		return hit.values
	}

	set := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			continue
		}
		set[c.Text(i)] = struct{}{}
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)

	in.cache[c.Name] = cachedValues{col: c, values: values}
	return values
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectHierarchies finds parent/child relationships between non-numeric
// columns. If every value of column B maps to exactly one value of column A,
// and A has fewer distinct values, then A is parent of B. When several
// parents qualify, the closest (highest cardinality) wins.
func detectHierarchies(cols []ColumnMeta, ds *dataset.Dataset) {
	for i := range cols {
		if cols[i].IsNumeric() {
			continue
		}
		child, _ := ds.Column(cols[i].Name)

		bestParent := ""
		bestParentUniques := 0
		for j := range cols {
			if i == j || cols[j].IsNumeric() {
				continue
			}
			// Parent must have fewer unique values than child
			if cols[j].DistinctCount >= cols[i].DistinctCount || cols[j].DistinctCount < 2 {
				continue
			}
			parent, _ := ds.Column(cols[j].Name)
			if isFunctionOf(child, parent) && cols[j].DistinctCount > bestParentUniques {
				bestParent = cols[j].Name
				bestParentUniques = cols[j].DistinctCount
			}
		}
		cols[i].Parent = bestParent
	}
}

// isFunctionOf reports whether every child value maps to exactly one parent.
func isFunctionOf(child, parent *dataset.Column) bool {
	childToParent := make(map[string]string)
	for r := 0; r < child.Len(); r++ {
		if child.Missing(r) || parent.Missing(r) {
			continue
		}
		c, p := child.Text(r), parent.Text(r)
		if existing, ok := childToParent[c]; ok {
			if existing != p {
				return false
			}
			continue
		}
		childToParent[c] = p
	}
	return len(childToParent) > 1
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var result strings.Builder
	var prev rune
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			result.WriteRune('_')
		}
		result.WriteRune(r)
		prev = r
	}

	s = strings.ToLower(result.String())
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// toDisplayName cleans a header for human display.
// "story_points" → "Story Points", "assignee" → "Assignee"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// DisplayName exposes the header cleanup used for default titles.
func DisplayName(column string) string { return toDisplayName(column) }
