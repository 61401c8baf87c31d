package schema

import (
	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// SCHEMA — Describes the shape of the working dataset
// ============================================================================
// Built by the Inspector every time column selection or a type override
// changes. The visual store validates bindings against it and the UI fills
// filter widgets from the distinct value lists.
// ============================================================================

// Schema describes every column of a working dataset.
type Schema struct {
	Name       string       `json:"name"`
	Generation int          `json:"generation"`
	Rows       int          `json:"rows"`
	Columns    []ColumnMeta `json:"columns"`

	index map[string]int
}

// ColumnMeta describes one column.
type ColumnMeta struct {
	Name            string             `json:"name"`
	Key             string             `json:"key"`
	DisplayName     string             `json:"displayName"`
	Type            dataset.ColumnType `json:"type"`
	Inferred        dataset.ColumnType `json:"inferred"`
	Overridden      bool               `json:"overridden,omitempty"`
	MissingCount    int                `json:"missingCount"`
	DistinctCount   int                `json:"distinctCount"`
	CardinalityHint string             `json:"cardinalityHint,omitempty"` // "low", "medium", "high"
	Values          []string           `json:"values,omitempty"`          // Sorted distinct values (non-numeric only)
	Parent          string             `json:"parent,omitempty"`          // Parent column for hierarchies
}

// IsNumeric reports whether the column holds numbers.
func (c ColumnMeta) IsNumeric() bool { return c.Type == dataset.Numeric }

func newSchema(name string, generation, rows int, cols []ColumnMeta) *Schema {
	s := &Schema{Name: name, Generation: generation, Rows: rows, Columns: cols}
	s.reindex()
	return s
}

func (s *Schema) reindex() {
	s.index = make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		s.index[c.Name] = i
	}
}

// Column looks a column up by name.
func (s *Schema) Column(name string) (ColumnMeta, bool) {
	if s == nil {
		return ColumnMeta{}, false
	}
	if s.index == nil {
		s.reindex()
	}
	i, ok := s.index[name]
	if !ok {
		return ColumnMeta{}, false
	}
	return s.Columns[i], true
}

// Has reports whether the named column exists.
func (s *Schema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// TypeOf returns the effective type of a column.
func (s *Schema) TypeOf(name string) (dataset.ColumnType, bool) {
	c, ok := s.Column(name)
	return c.Type, ok
}

// Names returns all column names in order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Numeric returns the numeric column names.
func (s *Schema) Numeric() []string {
	return s.namesWhere(func(c ColumnMeta) bool { return c.Type == dataset.Numeric })
}

// Categorical returns the names of every non-numeric column.
func (s *Schema) Categorical() []string {
	return s.namesWhere(func(c ColumnMeta) bool { return c.Type != dataset.Numeric })
}

// Temporal returns the temporal column names.
func (s *Schema) Temporal() []string {
	return s.namesWhere(func(c ColumnMeta) bool { return c.Type == dataset.Temporal })
}

// Values returns the sorted distinct values of a non-numeric column.
func (s *Schema) Values(name string) []string {
	c, _ := s.Column(name)
	return c.Values
}

func (s *Schema) namesWhere(fn func(ColumnMeta) bool) []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, c := range s.Columns {
		if fn(c) {
			names = append(names, c.Name)
		}
	}
	return names
}
