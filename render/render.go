package render

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mozillazg/go-slugify"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// RENDER — Backends that turn a chart.Spec into a document
// ============================================================================
// Three backends, in export preference order:
//   PNG  — raster via go-chart
//   HTML — standalone interactive page via go-echarts
//   CSV  — the chart's table, the last-resort text form
// ============================================================================

// ErrBackendUnavailable indicates a backend that cannot produce output in
// this environment.
var ErrBackendUnavailable = errors.New("render backend unavailable")

// Format names an output format.
type Format string

const (
	PNG  Format = "png"
	HTML Format = "html"
	CSV  Format = "csv"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case HTML:
		return "text/html; charset=utf-8"
	case CSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// ParseFormat accepts "png", "html" or "csv".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case PNG, HTML, CSV:
		return f, nil
	}
	return "", errors.Newf("unknown export format %q", s)
}

// Renderer writes one chart in one format.
type Renderer interface {
	Format() Format
	Render(w io.Writer, spec *chart.Spec) error
}

// Options size raster output. Pixel dimensions are Width*Scale by
// Height*Scale.
type Options struct {
	Width  int
	Height int
	Scale  float64
}

// DefaultOptions renders 3840x2160 pixels.
func DefaultOptions() Options {
	return Options{Width: 1920, Height: 1080, Scale: 2}
}

func (o Options) pixels() (int, int) {
	if o.Width <= 0 || o.Height <= 0 {
		o = DefaultOptions()
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return int(float64(o.Width) * o.Scale), int(float64(o.Height) * o.Scale)
}

func (o Options) dpi() float64 {
	if o.Scale <= 0 {
		return 96
	}
	return 96 * o.Scale
}

// FileName derives a deterministic export name from the chart kind and
// title: "bar_sales-by-region.png".
func FileName(kind visual.Kind, title string, f Format) string {
	slug := slugify.Slugify(title)
	if slug == "" {
		slug = "chart"
	}
	return kind.String() + "_" + slug + "." + string(f)
}
