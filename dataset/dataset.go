package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ============================================================================
// DATASET — Ordered, immutable columns loaded from one uploaded file
// ============================================================================
// A Dataset never changes once built. Column selection and type coercion
// return a derived Dataset that shares the untouched columns with its parent.
// Every column keeps the raw cell text so a type override can always be
// re-derived from the original upload.
// ============================================================================

var (
	// ErrEmptyDataset indicates an upload without a header or without rows.
	ErrEmptyDataset = errors.New("dataset has no data")
	// ErrUnknownColumn indicates a column name absent from the dataset.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnsupportedFormat indicates an upload the loader cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ColumnType classifies a column for the rest of the pipeline.
type ColumnType int

const (
	Categorical ColumnType = iota
	Numeric
	Temporal
)

var columnTypeNames = []string{"categorical", "numeric", "temporal"}

func (t ColumnType) String() string {
	if t < 0 || int(t) >= len(columnTypeNames) {
		return "unknown"
	}
	return columnTypeNames[t]
}

// ParseColumnType maps a type name back to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "categorical", "category", "string", "text":
		return Categorical, nil
	case "numeric", "number", "float":
		return Numeric, nil
	case "temporal", "datetime", "date", "time":
		return Temporal, nil
	}
	return Categorical, errors.Newf("unknown column type %q", s)
}

func (t ColumnType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ColumnType) UnmarshalText(b []byte) error {
	v, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ============================================================================
// COLUMN
// ============================================================================

// Column is a single named column with its raw cells and typed projection.
type Column struct {
	Name     string
	Inferred ColumnType // what the loader detected
	Type     ColumnType // effective type after any override

	raw     []string // trimmed cell text, "" = missing
	numbers []float64
	times   []time.Time
	valid   []bool
	missing int
}

func newColumn(name string, raw []string, inferred ColumnType) *Column {
	c := &Column{Name: name, Inferred: inferred, raw: raw}
	c.project(inferred)
	return c
}

// cast returns a copy of c projected onto t. Cells that cannot be
// represented as t become missing.
func (c *Column) cast(t ColumnType) *Column {
	out := &Column{Name: c.Name, Inferred: c.Inferred, raw: c.raw}
	out.project(t)
	return out
}

func (c *Column) project(t ColumnType) {
	c.Type = t
	c.valid = make([]bool, len(c.raw))
	c.numbers = nil
	c.times = nil
	c.missing = 0

	switch t {
	case Numeric:
		c.numbers = make([]float64, len(c.raw))
		for i, s := range c.raw {
			v, ok := ParseNumber(s)
			if !ok {
				c.numbers[i] = math.NaN()
				c.missing++
				continue
			}
			c.numbers[i] = v
			c.valid[i] = true
		}
	case Temporal:
		c.times = make([]time.Time, len(c.raw))
		for i, s := range c.raw {
			ts, ok := ParseTime(s)
			if !ok {
				c.missing++
				continue
			}
			c.times[i] = ts
			c.valid[i] = true
		}
	default:
		for i, s := range c.raw {
			if IsMissing(s) {
				c.missing++
				continue
			}
			c.valid[i] = true
		}
	}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.raw) }

// Raw returns the original cell text.
func (c *Column) Raw(i int) string {
	if i < 0 || i >= len(c.raw) {
		return ""
	}
	return c.raw[i]
}

// Missing reports whether cell i holds no value of the column's type.
func (c *Column) Missing(i int) bool {
	if i < 0 || i >= len(c.valid) {
		return true
	}
	return !c.valid[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int { return c.missing }

// Text returns the string representation used for grouping and filtering.
// Missing cells map to "".
func (c *Column) Text(i int) string {
	if c.Missing(i) {
		return ""
	}
	switch c.Type {
	case Numeric:
		return FormatNumber(c.numbers[i])
	case Temporal:
		return FormatTime(c.times[i])
	default:
		return c.raw[i]
	}
}

// Number returns cell i coerced to a number. Non-numeric columns are
// coerced per cell; anything that does not parse is reported as missing.
func (c *Column) Number(i int) (float64, bool) {
	if i < 0 || i >= len(c.raw) {
		return 0, false
	}
	if c.Type == Numeric {
		return c.numbers[i], c.valid[i]
	}
	return ParseNumber(c.raw[i])
}

// Time returns cell i as an instant for temporal columns.
func (c *Column) Time(i int) (time.Time, bool) {
	if c.Type != Temporal || c.Missing(i) {
		return time.Time{}, false
	}
	return c.times[i], true
}

// FormatNumber renders a float in its shortest round-trip form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTime renders an instant as a date, or a date and clock when the
// instant is not at midnight.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// ============================================================================
// DATASET
// ============================================================================

// Dataset is an ordered sequence of named columns of equal length.
type Dataset struct {
	Name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a dataset from a header and row-major cells. Short rows are
// padded with missing cells; extra cells are dropped.
func New(name string, header []string, rows [][]string, opts ...InferOptions) (*Dataset, error) {
	opt := DefaultInferOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if len(header) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "missing header row")
	}

	names := uniqueHeaders(header)
	cols := make([]*Column, len(names))
	for j, n := range names {
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = normalizeCell(row[j])
			}
		}
		cols[j] = newColumn(n, raw, inferType(raw, opt))
	}
	return fromColumns(name, cols, len(rows)), nil
}

func fromColumns(name string, cols []*Column, rows int) *Dataset {
	d := &Dataset{
		Name:    name,
		columns: cols,
		index:   make(map[string]int, len(cols)),
		rows:    rows,
	}
	for i, c := range cols {
		d.index[c.Name] = i
	}
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []*Column { return d.columns }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether the dataset contains the named column.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Select returns the derived dataset holding only the named columns, in
// the given order.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		c, ok := d.Column(n)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownColumn, "select %q", n)
		}
		seen[n] = true
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "column selection is empty")
	}
	return fromColumns(d.Name, cols, d.rows), nil
}

// WithType returns a derived dataset in which the named column is
// force-cast to t.
func (d *Dataset) WithType(name string, t ColumnType) (*Dataset, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownColumn, "cast %q", name)
	}
	cols := make([]*Column, len(d.columns))
	copy(cols, d.columns)
	cols[i] = d.columns[i].cast(t)
	return fromColumns(d.Name, cols, d.rows), nil
}

// uniqueHeaders fills blank headers and disambiguates duplicates.
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	suffix := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for seen[name] {
			suffix[h]++
			name = h + "." + strconv.Itoa(suffix[h])
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
