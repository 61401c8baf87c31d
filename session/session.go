package session

import (
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/config"
	"github.com/spektr-org/chartdeck/dashboard"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/pipeline"
	"github.com/spektr-org/chartdeck/render"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// SESSION — The controller that owns one user's analysis state
// ============================================================================
// State:
//   raw dataset → column selection → type overrides → working dataset
//   working dataset → schema → visual store (rebound on every change)
//   global filters, applied before each visual's own filters
//
// Every operation validates before it commits: a failed upload, cast or
// import leaves the previous state in place. Only Reset clears everything.
// A Session is not safe for concurrent use; callers serialise access.
// ============================================================================

// ErrNoDataset indicates an operation that needs a loaded dataset.
var ErrNoDataset = errors.New("no dataset loaded")

// Session is one user's workspace.
type Session struct {
	ID      uuid.UUID
	Created time.Time

	cfg config.Config
	log *logrus.Entry

	raw       *dataset.Dataset
	selected  []string // nil selects every column
	working   *dataset.Dataset
	inspector *schema.Inspector
	schema    *schema.Schema
	global    engine.FilterSpec
	store     *visual.Store
	issues    map[visual.ID]visual.Issue

	exporter *render.Exporter
	html     *render.HTMLRenderer
}

// New returns an empty session.
func New(cfg config.Config, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.New()
	s := &Session{
		ID:        id,
		Created:   time.Now(),
		cfg:       cfg,
		log:       log.WithField("session", id.String()),
		inspector: schema.NewInspector(),
		global:    engine.FilterSpec{},
		issues:    make(map[visual.ID]visual.Issue),
	}
	s.schema = s.inspector.Inspect(nil)
	s.store = s.newStore(s.schema)
	s.exporter = s.newExporter()
	s.html = render.NewHTML(cfg.RenderOptions())
	s.log.Infof("🆕 Session: started")
	return s
}

func (s *Session) newStore(sch *schema.Schema) *visual.Store {
	opts := append(s.cfg.StoreOptions(), visual.WithLogger(s.log))
	return visual.NewStore(sch, opts...)
}

func (s *Session) newExporter() *render.Exporter {
	ro := s.cfg.RenderOptions()
	png := render.NewPNG(ro)
	if s.cfg.Export.DisableRaster {
		png.Disable()
	}
	return render.NewExporter(ro, s.log, png, render.NewHTML(ro), render.NewCSV())
}

// Logger returns the session logger.
func (s *Session) Logger() *logrus.Entry { return s.log }

// Schema returns the schema of the working dataset.
func (s *Session) Schema() *schema.Schema { return s.schema }

// Working returns the working dataset, or nil before the first upload.
func (s *Session) Working() *dataset.Dataset { return s.working }

// Store returns the visual store.
func (s *Session) Store() *visual.Store { return s.store }

// Issues returns the visuals flagged by the last schema change.
func (s *Session) Issues() []visual.Issue {
	out := make([]visual.Issue, 0, len(s.issues))
	for _, id := range s.store.List() {
		if is, ok := s.issues[id]; ok {
			out = append(out, is)
		}
	}
	return out
}

// ============================================================================
// DATASET
// ============================================================================

// Load parses an upload and makes it the working dataset. Column selection
// and type overrides start fresh; visuals are kept and rebound.
func (s *Session) Load(filename string, data []byte) ([]visual.Issue, error) {
	ds, err := dataset.Load(filename, data, s.cfg.LoadOptions())
	if err != nil {
		s.log.Warnf("⚠️ Session: upload %s rejected: %v", filename, err)
		return nil, err
	}
	in := schema.NewInspector()
	working, err := in.Apply(ds)
	if err != nil {
		return nil, err
	}

	s.raw, s.selected, s.inspector = ds, nil, in
	s.log.Infof("📂 Session: loaded %s (%s rows, %d columns)", filename, humanize.Comma(int64(ds.Len())), len(ds.Columns()))
	return s.commit(working), nil
}

// SelectColumns narrows the working dataset to names, in order. An empty
// list restores every column.
func (s *Session) SelectColumns(names []string) ([]visual.Issue, error) {
	if s.raw == nil {
		return nil, ErrNoDataset
	}
	src := s.raw
	if len(names) > 0 {
		var err error
		if src, err = s.raw.Select(names); err != nil {
			return nil, err
		}
	}
	working, err := s.inspector.Apply(src)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		s.selected = nil
	} else {
		s.selected = append([]string(nil), names...)
	}
	return s.commit(working), nil
}

// SetColumnType overrides the inferred type of a working column.
func (s *Session) SetColumnType(name string, t dataset.ColumnType) ([]visual.Issue, error) {
	if s.working == nil {
		return nil, ErrNoDataset
	}
	if !s.working.Has(name) {
		return nil, errors.Wrapf(dataset.ErrUnknownColumn, "%q", name)
	}
	prev, had := s.inspector.Overrides()[name]
	s.inspector.SetOverride(name, t)
	working, err := s.inspector.Apply(s.source())
	if err != nil {
		if had {
			s.inspector.SetOverride(name, prev)
		} else {
			s.inspector.ClearOverride(name)
		}
		return nil, err
	}
	s.log.Infof("🔧 Session: %s is now %s", name, t)
	return s.commit(working), nil
}

// ClearColumnType returns a column to its inferred type.
func (s *Session) ClearColumnType(name string) ([]visual.Issue, error) {
	if s.working == nil {
		return nil, ErrNoDataset
	}
	s.inspector.ClearOverride(name)
	working, err := s.inspector.Apply(s.source())
	if err != nil {
		return nil, err
	}
	return s.commit(working), nil
}

func (s *Session) source() *dataset.Dataset {
	if s.selected == nil {
		return s.raw
	}
	ds, err := s.raw.Select(s.selected)
	if err != nil {
		return s.raw
	}
	return ds
}

// commit installs a new working dataset, re-inspects it, prunes global
// filters on vanished columns and rebinds every visual.
func (s *Session) commit(working *dataset.Dataset) []visual.Issue {
	s.working = working
	s.schema = s.inspector.Inspect(working)
	for col := range s.global {
		if !s.schema.Has(col) {
			s.log.Infof("🧹 Session: dropped global filter on %s", col)
			delete(s.global, col)
		}
	}

	issues := s.store.Rebind(s.schema)
	s.issues = make(map[visual.ID]visual.Issue, len(issues))
	for _, is := range issues {
		if !is.Repaired {
			s.issues[is.ID] = is
		}
	}
	return issues
}

// ============================================================================
// GLOBAL FILTERS
// ============================================================================

// SetGlobalFilter restricts column for every visual. An empty predicate
// clears the filter.
func (s *Session) SetGlobalFilter(column string, p engine.Predicate) error {
	if err := checkPredicate(s.schema, column, p); err != nil {
		return err
	}
	if p.IsEmpty() {
		delete(s.global, column)
		return nil
	}
	cp := engine.FilterSpec{column: p}.Clone()
	s.global[column] = cp[column]
	return nil
}

// ClearGlobalFilters removes every global filter.
func (s *Session) ClearGlobalFilters() { s.global = engine.FilterSpec{} }

// GlobalFilters returns a copy of the global filters.
func (s *Session) GlobalFilters() engine.FilterSpec { return s.global.Clone() }

// FilterSummary returns the active global filter lines.
func (s *Session) FilterSummary() []string { return engine.Summary(s.global) }

func checkPredicate(sch *schema.Schema, column string, p engine.Predicate) error {
	t, ok := sch.TypeOf(column)
	if !ok {
		return errors.Wrapf(dataset.ErrUnknownColumn, "filter on %q", column)
	}
	if p.Between != nil {
		if t != dataset.Temporal {
			return errors.Newf("filter on %q: date range needs a temporal column", column)
		}
		if p.Between.End.Before(p.Between.Start) {
			return errors.Newf("filter on %q: range ends before it starts", column)
		}
	}
	return nil
}

// ============================================================================
// VISUALS
// ============================================================================

// AddVisual creates a visual of kind k with optional settings.
func (s *Session) AddVisual(k visual.Kind, patches ...visual.Patch) (visual.ID, error) {
	for _, p := range patches {
		if err := s.checkFilters(p); err != nil {
			return 0, err
		}
	}
	return s.store.Create(k, patches...)
}

// UpdateVisual applies p to a visual.
func (s *Session) UpdateVisual(id visual.ID, p visual.Patch) error {
	if err := s.checkFilters(p); err != nil {
		return err
	}
	if err := s.store.Update(id, p); err != nil {
		return err
	}
	delete(s.issues, id)
	return nil
}

func (s *Session) checkFilters(p visual.Patch) error {
	if p.Filters == nil {
		return nil
	}
	for col, pred := range *p.Filters {
		if err := checkPredicate(s.schema, col, pred); err != nil {
			return err
		}
	}
	return nil
}

// DuplicateVisual copies a visual under a new id.
func (s *Session) DuplicateVisual(id visual.ID) (visual.ID, error) { return s.store.Duplicate(id) }

// DeleteVisual removes a visual; deleting twice is a no-op.
func (s *Session) DeleteVisual(id visual.ID) {
	s.store.Delete(id)
	delete(s.issues, id)
}

// RepairVisual rebinds a flagged visual to default columns.
func (s *Session) RepairVisual(id visual.ID) error {
	if err := s.store.Repair(id); err != nil {
		return err
	}
	delete(s.issues, id)
	return nil
}

// MoveVisual places a visual on the grid.
func (s *Session) MoveVisual(id visual.ID, p visual.Placement) error { return s.store.Move(id, p) }

// BeginEdit marks a visual as being edited.
func (s *Session) BeginEdit(id visual.ID) error { return s.store.BeginEdit(id) }

// EndEdit finishes editing a visual.
func (s *Session) EndEdit(id visual.ID) error { return s.store.EndEdit(id) }

// Visual returns a copy of one visual.
func (s *Session) Visual(id visual.ID) (*visual.Visual, error) { return s.store.Get(id) }

// ============================================================================
// RENDERING
// ============================================================================

func (s *Session) pipelineOptions() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithPalette(s.cfg.Visuals.DefaultPalette),
		pipeline.WithLogger(s.log),
	}
}

// Render runs the pipeline for one visual.
func (s *Session) Render(id visual.ID) (pipeline.Result, error) {
	if s.working == nil {
		return pipeline.Result{}, ErrNoDataset
	}
	v, err := s.store.Get(id)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Run(s.working, s.schema, s.global, v, s.pipelineOptions()...), nil
}

// RenderAll runs the pipeline for every visual in creation order. A
// failing visual does not stop the others.
func (s *Session) RenderAll() ([]pipeline.Result, error) {
	if s.working == nil {
		return nil, ErrNoDataset
	}
	visuals, err := s.store.Visuals()
	if err != nil {
		return nil, err
	}
	return pipeline.RunAll(s.working, s.schema, s.global, visuals, s.pipelineOptions()...), nil
}

// RenderPage writes every renderable visual to one HTML document.
func (s *Session) RenderPage(w io.Writer) error {
	results, err := s.RenderAll()
	if err != nil {
		return err
	}
	var specs []*chart.Spec
	for _, r := range results {
		if r.Err == nil {
			specs = append(specs, r.Spec)
		}
	}
	title := "Dashboard"
	if s.working != nil && s.working.Name != "" {
		title = s.working.Name
	}
	return s.html.RenderPage(w, title, specs...)
}

// ============================================================================
// EXPORT / IMPORT
// ============================================================================

// ExportData writes the working dataset after global filtering. Format is
// "csv", "tsv" or "xlsx".
func (s *Session) ExportData(w io.Writer, format string) error {
	if s.working == nil {
		return ErrNoDataset
	}
	rows := engine.Rows(engine.Apply(engine.NewView(s.working), s.global))
	switch strings.ToLower(format) {
	case "", "csv":
		return dataset.WriteCSV(w, s.working, rows, ',')
	case "tsv":
		return dataset.WriteCSV(w, s.working, rows, '\t')
	case "xlsx":
		return dataset.WriteXLSX(w, s.working, rows)
	}
	return errors.Wrapf(dataset.ErrUnsupportedFormat, "data export %q", format)
}

// ExportDashboard returns the configuration document as YAML.
func (s *Session) ExportDashboard() ([]byte, error) {
	doc, err := dashboard.Export(s.store, s.global)
	if err != nil {
		return nil, err
	}
	return dashboard.Marshal(doc)
}

// ImportDashboard replaces every visual and the global filters with the
// document's. Nothing changes when any referenced column is missing.
func (s *Session) ImportDashboard(data []byte) error {
	doc, err := dashboard.Unmarshal(data)
	if err != nil {
		return err
	}
	for col, p := range doc.GlobalFilters {
		if err := checkPredicate(s.schema, col, p); err != nil && !errors.Is(err, dataset.ErrUnknownColumn) {
			return err
		}
	}
	global, err := dashboard.Import(doc, s.store)
	if err != nil {
		s.log.Warnf("⚠️ Session: dashboard import rejected: %v", err)
		return err
	}
	if global == nil {
		global = engine.FilterSpec{}
	}
	s.global = global
	s.issues = make(map[visual.ID]visual.Issue)
	s.log.Infof("📥 Session: imported %d visuals", len(doc.Visuals))
	return nil
}

// ExportImage renders one visual in the preferred format, falling back to
// the document and text formats when the backend fails.
func (s *Session) ExportImage(id visual.ID, preferred render.Format) (*render.Artifact, error) {
	res, err := s.Render(id)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return s.exporter.Export(res.Spec, preferred)
}

// ExportImages exports every renderable visual. Visuals that cannot be
// rendered are skipped and reported in the error.
func (s *Session) ExportImages(preferred render.Format) ([]*render.Artifact, error) {
	results, err := s.RenderAll()
	if err != nil {
		return nil, err
	}
	var out []*render.Artifact
	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = errors.CombineErrors(errs, r.Err)
			continue
		}
		art, err := s.exporter.Export(r.Spec, preferred)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		out = append(out, art)
	}
	return out, errs
}

// ============================================================================
// RESET
// ============================================================================

// Reset clears the dataset, overrides, filters and visuals. The session id
// is kept.
func (s *Session) Reset() {
	s.raw, s.working, s.selected = nil, nil, nil
	s.inspector.Reset()
	s.schema = s.inspector.Inspect(nil)
	s.global = engine.FilterSpec{}
	s.store = s.newStore(s.schema)
	s.issues = make(map[visual.ID]visual.Issue)
	s.log.Infof("♻️ Session: reset")
}

// Snapshot summarises the session for listings.
type Snapshot struct {
	ID      string   `json:"id"`
	Dataset string   `json:"dataset,omitempty"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
	Visuals int      `json:"visuals"`
	Filters []string `json:"filters,omitempty"`
}

// Snapshot returns a summary of the session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{ID: s.ID.String(), Visuals: s.store.Len(), Filters: s.FilterSummary(), Columns: s.schema.Names()}
	if s.working != nil {
		snap.Dataset = s.working.Name
		snap.Rows = s.working.Len()
	}
	return snap
}
