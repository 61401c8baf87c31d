package dashboard

import (
	"bytes"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// DASHBOARD — Configuration document export / import
// ============================================================================
// The document captures every visual's kind, bindings, style, own filters
// and grid placement plus the global filters. Import is all-or-nothing:
// every referenced column is checked against the current schema before
// anything is applied.
// ============================================================================

// Version is the document format version written by Export.
const Version = 1

// ErrMissingFields indicates a document that references columns absent from
// the current dataset.
var ErrMissingFields = errors.New("dashboard references missing fields")

// MissingFieldsError lists every absent column.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingFields.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// Document is the serialized dashboard.
type Document struct {
	Version       int               `json:"version" yaml:"version"`
	Dataset       string            `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Columns       int               `json:"columns" yaml:"columns"`
	GlobalFilters engine.FilterSpec `json:"globalFilters,omitempty" yaml:"global_filters,omitempty"`
	Visuals       []Visual          `json:"visuals" yaml:"visuals"`
}

// Visual is one visual in a Document.
type Visual struct {
	ID       visual.ID         `json:"id" yaml:"id"`
	Kind     visual.Kind       `json:"kind" yaml:"kind"`
	Bindings visual.Bindings   `json:"bindings" yaml:"bindings"`
	Style    visual.Style      `json:"style" yaml:"style"`
	Filters  engine.FilterSpec `json:"filters,omitempty" yaml:"filters,omitempty"`
	Layout   *visual.Placement `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Export captures the store and the global filters.
func Export(store *visual.Store, global engine.FilterSpec) (*Document, error) {
	visuals, err := store.Visuals()
	if err != nil {
		return nil, errors.Wrap(err, "export dashboard")
	}
	layout := store.Layout()
	doc := &Document{
		Version:       Version,
		Dataset:       store.Schema().Name,
		Columns:       layout.Columns(),
		GlobalFilters: global.Clone(),
		Visuals:       make([]Visual, 0, len(visuals)),
	}
	for _, v := range visuals {
		dv := Visual{
			ID:       v.ID,
			Kind:     v.Kind(),
			Bindings: v.Bindings(),
			Style:    v.Style,
			Filters:  v.Filters,
		}
		if p, ok := layout.Get(v.ID); ok {
			dv.Layout = &p
		}
		doc.Visuals = append(doc.Visuals, dv)
	}
	return doc, nil
}

// Marshal encodes doc as YAML.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encode dashboard")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode dashboard")
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a YAML document. Unknown keys are rejected.
func Unmarshal(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode dashboard")
	}
	if doc.Version == 0 {
		return nil, errors.New("decode dashboard: missing version")
	}
	if doc.Version > Version {
		return nil, errors.Newf("decode dashboard: version %d is newer than supported version %d", doc.Version, Version)
	}
	return &doc, nil
}

// Fields returns every column the document references, sorted.
func (d *Document) Fields() []string {
	set := make(map[string]bool)
	for _, c := range d.GlobalFilters.Columns() {
		set[c] = true
	}
	for _, v := range d.Visuals {
		b := v.Bindings
		for _, c := range []string{b.Category, b.Value, b.Size, b.Facet, b.Parent} {
			if c != "" {
				set[c] = true
			}
		}
		for _, c := range v.Filters.Columns() {
			set[c] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Missing returns the referenced columns absent from sch.
func (d *Document) Missing(sch *schema.Schema) []string {
	var out []string
	for _, c := range d.Fields() {
		if !sch.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Import replaces the store's visuals with the document's and returns the
// global filters to apply. On any error the store is unchanged.
func Import(doc *Document, store *visual.Store) (engine.FilterSpec, error) {
	if missing := doc.Missing(store.Schema()); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	visuals := make([]*visual.Visual, 0, len(doc.Visuals))
	placements := make(map[visual.ID]visual.Placement, len(doc.Visuals))
	for _, dv := range doc.Visuals {
		shape, err := visual.NewShape(dv.Kind, dv.Bindings)
		if err != nil {
			return nil, errors.Wrapf(err, "import %s", dv.ID)
		}
		visuals = append(visuals, &visual.Visual{
			ID:      dv.ID,
			State:   visual.Configured,
			Shape:   shape,
			Filters: dv.Filters.Clone(),
			Style:   dv.Style,
		})
		if dv.Layout != nil {
			placements[dv.ID] = *dv.Layout
		}
	}
	if err := store.Restore(visuals, placements); err != nil {
		return nil, errors.Wrap(err, "import dashboard")
	}
	return doc.GlobalFilters.Clone(), nil
}
