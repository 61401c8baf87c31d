package render

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/chartdeck/chart"
)

// ============================================================================
// EXPORT — Chart image export with graceful degradation
// ============================================================================
// The requested format is tried first, then the remaining backends in
// preference order (PNG → HTML → CSV). A failed backend is logged and the
// next one is tried; the CSV form never depends on a graphics backend.
// ============================================================================

// Artifact is one exported file.
type Artifact struct {
	Name        string `json:"name"`
	Format      Format `json:"format"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	Fallback    bool   `json:"fallback"`
}

// Exporter chains renderers.
type Exporter struct {
	renderers []Renderer
	log       *logrus.Entry
}

// NewExporter returns an exporter over the given renderers, in preference
// order. With no renderers it uses PNG, HTML and CSV at o.
func NewExporter(o Options, log *logrus.Entry, renderers ...Renderer) *Exporter {
	if len(renderers) == 0 {
		renderers = []Renderer{NewPNG(o), NewHTML(o), NewCSV()}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Exporter{renderers: renderers, log: log}
}

// Export renders spec in the preferred format, falling back through the
// other backends. An error is returned only when every backend fails.
func (e *Exporter) Export(spec *chart.Spec, preferred Format) (*Artifact, error) {
	var errs error
	for i, r := range e.ordered(preferred) {
		var buf bytes.Buffer
		if err := r.Render(&buf, spec); err != nil {
			e.log.Warnf("⚠️ Export: %s backend failed for %s, falling back: %v", r.Format(), spec.VisualID, err)
			errs = errors.CombineErrors(errs, err)
			continue
		}
		if i > 0 {
			e.log.Infof("📄 Export: %s exported as %s", spec.VisualID, r.Format())
		}
		return &Artifact{
			Name:        FileName(spec.Kind, spec.Title, r.Format()),
			Format:      r.Format(),
			ContentType: r.Format().ContentType(),
			Data:        buf.Bytes(),
			Fallback:    i > 0,
		}, nil
	}
	if errs == nil {
		errs = ErrBackendUnavailable
	}
	return nil, errors.Wrapf(errs, "export %s", spec.VisualID)
}

func (e *Exporter) ordered(preferred Format) []Renderer {
	out := make([]Renderer, 0, len(e.renderers))
	for _, r := range e.renderers {
		if r.Format() == preferred {
			out = append(out, r)
		}
	}
	for _, r := range e.renderers {
		if r.Format() != preferred {
			out = append(out, r)
		}
	}
	return out
}
