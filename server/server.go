package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/chartdeck/archive"
	"github.com/spektr-org/chartdeck/config"
	"github.com/spektr-org/chartdeck/dashboard"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/session"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// SERVER — JSON API over sessions
// ============================================================================
// Each session is a single-user workspace. Requests against one session are
// serialised by its own mutex, so every mutation runs to completion before
// the next one starts; different sessions proceed independently.
// ============================================================================

// ErrSessionNotFound indicates an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	mu sync.Mutex
	s  *session.Session
}

// Server serves the chartdeck API.
type Server struct {
	cfg     config.Config
	log     *logrus.Logger
	archive *archive.Store // nil when no archive is configured
	metrics *metrics
	router  *mux.Router

	mu       sync.RWMutex
	sessions map[string]*entry
}

// New builds the server. arch may be nil.
func New(cfg config.Config, log *logrus.Logger, arch *archive.Store) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		archive:  arch,
		metrics:  newMetrics(),
		sessions: make(map[string]*entry),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metrics.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/kinds", s.handleKinds).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/dashboards", s.handleListArchive).Methods(http.MethodGet)
	r.HandleFunc("/dashboards/{name}", s.handleDeleteArchive).Methods(http.MethodDelete)

	sr := r.PathPrefix("/sessions/{sid}").Subrouter()
	sr.HandleFunc("", s.withSession(s.handleSnapshot)).Methods(http.MethodGet)
	sr.HandleFunc("", s.handleDeleteSession).Methods(http.MethodDelete)
	sr.HandleFunc("/reset", s.withSession(s.handleReset)).Methods(http.MethodPost)

	sr.HandleFunc("/dataset", s.withSession(s.handleUpload)).Methods(http.MethodPost, http.MethodPut)
	sr.HandleFunc("/schema", s.withSession(s.handleSchema)).Methods(http.MethodGet)
	sr.HandleFunc("/columns", s.withSession(s.handleSelectColumns)).Methods(http.MethodPut)
	sr.HandleFunc("/columns/{column}/type", s.withSession(s.handleSetType)).Methods(http.MethodPut)
	sr.HandleFunc("/columns/{column}/type", s.withSession(s.handleClearType)).Methods(http.MethodDelete)
	sr.HandleFunc("/data", s.withSession(s.handleExportData)).Methods(http.MethodGet)

	sr.HandleFunc("/filters", s.withSession(s.handleGetFilters)).Methods(http.MethodGet)
	sr.HandleFunc("/filters", s.withSession(s.handleClearFilters)).Methods(http.MethodDelete)
	sr.HandleFunc("/filters/{column}", s.withSession(s.handleSetFilter)).Methods(http.MethodPut)
	sr.HandleFunc("/filters/{column}", s.withSession(s.handleDeleteFilter)).Methods(http.MethodDelete)

	sr.HandleFunc("/visuals", s.withSession(s.handleListVisuals)).Methods(http.MethodGet)
	sr.HandleFunc("/visuals", s.withSession(s.handleCreateVisual)).Methods(http.MethodPost)
	sr.HandleFunc("/visuals/{vid}", s.withSession(s.handleGetVisual)).Methods(http.MethodGet)
	sr.HandleFunc("/visuals/{vid}", s.withSession(s.handleUpdateVisual)).Methods(http.MethodPatch)
	sr.HandleFunc("/visuals/{vid}", s.withSession(s.handleDeleteVisual)).Methods(http.MethodDelete)
	sr.HandleFunc("/visuals/{vid}/duplicate", s.withSession(s.handleDuplicateVisual)).Methods(http.MethodPost)
	sr.HandleFunc("/visuals/{vid}/repair", s.withSession(s.handleRepairVisual)).Methods(http.MethodPost)
	sr.HandleFunc("/visuals/{vid}/layout", s.withSession(s.handleMoveVisual)).Methods(http.MethodPut)
	sr.HandleFunc("/visuals/{vid}/edit", s.withSession(s.handleBeginEdit)).Methods(http.MethodPost)
	sr.HandleFunc("/visuals/{vid}/edit", s.withSession(s.handleEndEdit)).Methods(http.MethodDelete)
	sr.HandleFunc("/visuals/{vid}/chart", s.withSession(s.handleChart)).Methods(http.MethodGet)
	sr.HandleFunc("/visuals/{vid}/export", s.withSession(s.handleExportImage)).Methods(http.MethodGet)

	sr.HandleFunc("/charts", s.withSession(s.handleCharts)).Methods(http.MethodGet)
	sr.HandleFunc("/page", s.withSession(s.handlePage)).Methods(http.MethodGet)
	sr.HandleFunc("/dashboard", s.withSession(s.handleExportDashboard)).Methods(http.MethodGet)
	sr.HandleFunc("/dashboard", s.withSession(s.handleImportDashboard)).Methods(http.MethodPut)
	sr.HandleFunc("/dashboards/{name}", s.withSession(s.handleSaveArchive)).Methods(http.MethodPut)
	sr.HandleFunc("/dashboards/{name}/load", s.withSession(s.handleLoadArchive)).Methods(http.MethodPost)
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("🚀 Server: listening on %s", s.cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Infof("🛑 Server: shutting down")
		return errors.Wrap(srv.Shutdown(shutdown), "shutdown")
	}
}

// ============================================================================
// SESSIONS
// ============================================================================

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves {sid} and holds the session lock for the request.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := mux.Vars(r)["sid"]
		s.mu.RLock()
		e, ok := s.sessions[sid]
		s.mu.RUnlock()
		if !ok {
			s.writeError(w, errors.Wrapf(ErrSessionNotFound, "%q", sid))
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		h(w, r, e.s)
	}
}

func (s *Server) newSession() *session.Session {
	sess := session.New(s.cfg, s.log)
	s.mu.Lock()
	s.sessions[sess.ID.String()] = &entry{s: sess}
	s.mu.Unlock()
	s.metrics.sessions.Inc()
	return sess
}

func (s *Server) dropSession(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sid]; !ok {
		return false
	}
	delete(s.sessions, sid)
	s.metrics.sessions.Dec()
	return true
}

// ============================================================================
// RESPONSES
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorBody struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Field  string   `json:"field,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, visual.ErrNotFound), errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, visual.ErrDeleted):
		return http.StatusGone, "deleted"
	case errors.Is(err, dashboard.ErrMissingFields):
		return http.StatusConflict, "missing_fields"
	case errors.Is(err, visual.ErrSchemaMismatch):
		return http.StatusConflict, "schema_mismatch"
	case errors.Is(err, visual.ErrInvalidBinding), errors.Is(err, visual.ErrUnsupported):
		return http.StatusUnprocessableEntity, "invalid_binding"
	case errors.Is(err, session.ErrNoDataset), errors.Is(err, visual.ErrNoColumns):
		return http.StatusConflict, "no_dataset"
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, dataset.ErrEmptyDataset), errors.Is(err, dataset.ErrUnknownColumn),
		errors.Is(err, archive.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	body := errorBody{Error: err.Error(), Code: code}
	var ve *visual.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	var mf *dashboard.MissingFieldsError
	if errors.As(err, &mf) {
		body.Fields = mf.Fields
	}
	if status >= http.StatusInternalServerError {
		s.log.Errorf("❌ Server: %v", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode request"), errBadRequest)
	}
	return nil
}
