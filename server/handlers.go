package server

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/pipeline"
	"github.com/spektr-org/chartdeck/render"
	"github.com/spektr-org/chartdeck/session"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": n})
}

// kindView lists what a chart kind can be configured with.
type kindView struct {
	Kind       visual.Kind `json:"kind"`
	Title      string      `json:"title"`
	Axes       bool        `json:"axes"`
	Aggregates bool        `json:"aggregates"`
	Sortable   bool        `json:"sortable"`
	Facetable  bool        `json:"facetable"`
	Labels     bool        `json:"labels"`
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	kinds := visual.Kinds()
	out := make([]kindView, len(kinds))
	for i, k := range kinds {
		out[i] = kindView{
			Kind:       k,
			Title:      k.Title(),
			Axes:       k.Cartesian(),
			Aggregates: k.Aggregates(),
			Sortable:   k.Sortable(),
			Facetable:  k.Facetable(),
			Labels:     k.HasLabels(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.newSession()
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]session.Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.s.Snapshot())
		e.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	if !s.dropSession(sid) {
		s.writeError(w, errors.Wrapf(ErrSessionNotFound, "%q", sid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// ============================================================================
// DATASET
// ============================================================================

type issueView struct {
	ID       visual.ID `json:"id"`
	Repaired bool      `json:"repaired"`
	Problems []string  `json:"problems"`
}

func issueViews(issues []visual.Issue) []issueView {
	out := make([]issueView, 0, len(issues))
	for _, is := range issues {
		v := issueView{ID: is.ID, Repaired: is.Repaired}
		for _, p := range is.Problems {
			v.Problems = append(v.Problems, p.Error())
		}
		out = append(out, v)
	}
	return out
}

// handleUpload accepts a multipart "file" field or a raw body named by
// the "name" query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	var name string
	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, errors.Mark(errors.Wrap(err, "read upload"), errBadRequest))
			return
		}
		defer f.Close()
		name = hdr.Filename
		if data, err = io.ReadAll(f); err != nil {
			s.writeError(w, errors.Mark(errors.Wrap(err, "read upload"), errBadRequest))
			return
		}
	} else {
		name = r.URL.Query().Get("name")
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			s.writeError(w, errors.Mark(errors.Wrap(err, "read upload"), errBadRequest))
			return
		}
	}
	if name == "" {
		s.writeError(w, errors.Mark(errors.New("upload needs a file name"), errBadRequest))
		return
	}

	issues, err := sess.Load(filepath.Base(name), data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": sess.Schema(), "issues": issueViews(issues)})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Schema())
}

func (s *Server) handleSelectColumns(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Columns []string `json:"columns"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	issues, err := sess.SelectColumns(req.Columns)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": sess.Schema(), "issues": issueViews(issues)})
}

func (s *Server) handleSetType(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Type dataset.ColumnType `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	issues, err := sess.SetColumnType(mux.Vars(r)["column"], req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": sess.Schema(), "issues": issueViews(issues)})
}

func (s *Server) handleClearType(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	issues, err := sess.ClearColumnType(mux.Vars(r)["column"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": sess.Schema(), "issues": issueViews(issues)})
}

func (s *Server) handleExportData(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	var buf bytes.Buffer
	if err := sess.ExportData(&buf, format); err != nil {
		s.writeError(w, err)
		return
	}
	ctype := "text/csv; charset=utf-8"
	switch format {
	case "tsv":
		ctype = "text/tab-separated-values; charset=utf-8"
	case "xlsx":
		ctype = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	name := "data"
	if ds := sess.Working(); ds != nil {
		name = strings.TrimSuffix(ds.Name, filepath.Ext(ds.Name)) + "_filtered"
	}
	writeFile(w, name+"."+format, ctype, buf.Bytes())
}

func writeFile(w http.ResponseWriter, name, ctype string, data []byte) {
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ============================================================================
// FILTERS
// ============================================================================

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]any{"filters": sess.GlobalFilters(), "summary": sess.FilterSummary()})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p engine.Predicate
	if err := decodeJSON(r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.SetGlobalFilter(mux.Vars(r)["column"], p); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetFilters(w, r, sess)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.SetGlobalFilter(mux.Vars(r)["column"], engine.Predicate{}); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetFilters(w, r, sess)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.ClearGlobalFilters()
	s.handleGetFilters(w, r, sess)
}

// ============================================================================
// VISUALS
// ============================================================================

type visualView struct {
	ID        visual.ID         `json:"id"`
	Kind      visual.Kind       `json:"kind"`
	State     string            `json:"state"`
	Bindings  visual.Bindings   `json:"bindings"`
	Style     visual.Style      `json:"style"`
	Filters   engine.FilterSpec `json:"filters,omitempty"`
	Placement *visual.Placement `json:"placement,omitempty"`
	Problems  []string          `json:"problems,omitempty"`
}

func viewOf(sess *session.Session, v *visual.Visual) visualView {
	out := visualView{
		ID:       v.ID,
		Kind:     v.Kind(),
		State:    v.State.String(),
		Bindings: v.Bindings(),
		Style:    v.Style,
		Filters:  v.Filters,
	}
	if p, ok := sess.Store().Layout().Get(v.ID); ok {
		out.Placement = &p
	}
	for _, problem := range visual.Check(v.Shape, sess.Schema()) {
		out.Problems = append(out.Problems, problem.Error())
	}
	return out
}

func visualID(r *http.Request) (visual.ID, error) {
	return visual.ParseID(mux.Vars(r)["vid"])
}

func (s *Server) handleListVisuals(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	visuals, err := sess.Store().Visuals()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]visualView, 0, len(visuals))
	for _, v := range visuals {
		out = append(out, viewOf(sess, v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) respondVisual(w http.ResponseWriter, sess *session.Session, id visual.ID, status int) {
	v, err := sess.Visual(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, viewOf(sess, v))
}

func (s *Server) handleCreateVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Kind  visual.Kind   `json:"kind"`
		Patch *visual.Patch `json:"patch,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var patches []visual.Patch
	if req.Patch != nil {
		patches = append(patches, *req.Patch)
	}
	id, err := sess.AddVisual(req.Kind, patches...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusCreated)
}

func (s *Server) handleGetVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

func (s *Server) handleUpdateVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var p visual.Patch
	if err := decodeJSON(r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	if p.IsEmpty() {
		s.writeError(w, errors.Mark(errors.New("patch changes nothing"), errBadRequest))
		return
	}
	if err := sess.UpdateVisual(id, p); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

func (s *Server) handleDeleteVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess.DeleteVisual(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cp, err := sess.DuplicateVisual(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, cp, http.StatusCreated)
}

func (s *Server) handleRepairVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.RepairVisual(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

func (s *Server) handleMoveVisual(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var p visual.Placement
	if err := decodeJSON(r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.MoveVisual(id, p); err != nil {
		s.writeError(w, errors.Mark(err, errBadRequest))
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.BeginEdit(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

func (s *Server) handleEndEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.EndEdit(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondVisual(w, sess, id, http.StatusOK)
}

// ============================================================================
// CHARTS
// ============================================================================

type chartResult struct {
	VisualID visual.ID   `json:"visualId"`
	Spec     *chart.Spec `json:"spec,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func (s *Server) record(sess *session.Session, res pipeline.Result) chartResult {
	kind := visual.Bar
	if v, err := sess.Visual(res.VisualID); err == nil {
		kind = v.Kind()
	}
	s.metrics.observe(kind, res)
	out := chartResult{VisualID: res.VisualID, Spec: res.Spec}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := sess.Render(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := s.record(sess, res)
	if res.Err != nil {
		s.writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	results, err := sess.RenderAll()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]chartResult, 0, len(results))
	for _, res := range results {
		out = append(out, s.record(sess, res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var buf bytes.Buffer
	if err := sess.RenderPage(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", render.HTML.ContentType())
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportImage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := visualID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	format := render.PNG
	if q := r.URL.Query().Get("format"); q != "" {
		if format, err = render.ParseFormat(q); err != nil {
			s.writeError(w, errors.Mark(err, errBadRequest))
			return
		}
	}
	art, err := sess.ExportImage(id, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.exported(art)
	if art.Fallback {
		w.Header().Set("X-Chartdeck-Fallback", string(art.Format))
	}
	writeFile(w, art.Name, art.ContentType, art.Data)
}

// ============================================================================
// DASHBOARD DOCUMENTS
// ============================================================================

const yamlType = "application/yaml; charset=utf-8"

func (s *Server) handleExportDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	data, err := sess.ExportDashboard()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeFile(w, "dashboard.yaml", yamlType, data)
}

func (s *Server) handleImportDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes))
	if err != nil {
		s.writeError(w, errors.Mark(errors.Wrap(err, "read dashboard"), errBadRequest))
		return
	}
	if err := sess.ImportDashboard(data); err != nil {
		s.writeError(w, asBadRequest(err))
		return
	}
	s.handleListVisuals(w, r, sess)
}

func (s *Server) archiveOrError(w http.ResponseWriter) bool {
	if s.archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "no dashboard archive configured", Code: "archive_disabled"})
		return false
	}
	return true
}

func (s *Server) handleSaveArchive(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !s.archiveOrError(w) {
		return
	}
	data, err := sess.ExportDashboard()
	if err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.archive.Save(r.Context(), mux.Vars(r)["name"], data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleLoadArchive(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !s.archiveOrError(w) {
		return
	}
	data, err := s.archive.Load(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.ImportDashboard(data); err != nil {
		s.writeError(w, asBadRequest(err))
		return
	}
	s.handleListVisuals(w, r, sess)
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archiveOrError(w) {
		return
	}
	list, err := s.archive.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archiveOrError(w) {
		return
	}
	if err := s.archive.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// asBadRequest marks errors outside the taxonomy, such as a malformed
// document, as client errors.
func asBadRequest(err error) error {
	if status, _ := statusOf(err); status == http.StatusInternalServerError {
		return errors.Mark(err, errBadRequest)
	}
	return err
}
