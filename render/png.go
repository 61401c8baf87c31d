package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// PNG — Raster export via go-chart
// ============================================================================
// Facet panels are rendered separately and tiled left to right, wrapping
// after three columns. Log axes are drawn by plotting log10 values and
// labelling ticks with the original powers of ten.
// ============================================================================

// PNGRenderer renders raster images.
type PNGRenderer struct {
	opts     Options
	disabled bool
}

// NewPNG returns a PNG renderer.
func NewPNG(o Options) *PNGRenderer { return &PNGRenderer{opts: o} }

// Disable makes every Render fail with ErrBackendUnavailable.
func (r *PNGRenderer) Disable() { r.disabled = true }

func (r *PNGRenderer) Format() Format { return PNG }

// Render writes spec as a PNG image.
func (r *PNGRenderer) Render(w io.Writer, spec *chart.Spec) (err error) {
	if r.disabled {
		return errors.Wrap(ErrBackendUnavailable, "png export disabled")
	}
	// go-chart panics on some degenerate ranges.
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrBackendUnavailable, "png backend: %v", p)
		}
	}()

	width, height := r.opts.pixels()
	if spec.NoData || len(spec.Panels) == 0 {
		return png.Encode(w, placeholder(width, height, spec.Title, spec.Message))
	}
	if len(spec.Panels) == 1 {
		return r.renderPanel(w, spec, spec.Panels[0], width, height)
	}

	cols := min(len(spec.Panels), 3)
	rows := (len(spec.Panels) + cols - 1) / cols
	pw, ph := width/cols, height/rows
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	for i, p := range spec.Panels {
		var buf bytes.Buffer
		if err := r.renderPanel(&buf, spec, p, pw, ph); err != nil {
			return err
		}
		img, err := png.Decode(&buf)
		if err != nil {
			return errors.Wrap(err, "decode panel")
		}
		at := image.Pt((i%cols)*pw, (i/cols)*ph)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(img.Bounds().Size())}, img, img.Bounds().Min, draw.Over)
	}
	return png.Encode(w, canvas)
}

func (r *PNGRenderer) renderPanel(w io.Writer, spec *chart.Spec, p chart.Panel, width, height int) error {
	title := spec.Title
	if p.Facet != "" {
		title += " · " + p.Facet
	}
	bg := gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}}
	if !spec.Background {
		bg.FillColor = drawing.ColorTransparent
	}
	dpi := r.opts.dpi()

	switch spec.Kind {
	case visual.Bar, visual.HorizontalBar, visual.Funnel, visual.Histogram:
		values := barValues(spec, p)
		c := gochart.BarChart{
			Title:      title,
			Width:      width,
			Height:     height,
			DPI:        dpi,
			Background: bg,
			BarWidth:   max(width/(2*max(len(values), 1)), 4),
			Bars:       values,
			XAxis:      gochart.Style{Hidden: !spec.XAxis.Visible},
			YAxis: gochart.YAxis{
				Name:  spec.YAxis.Title,
				Style: gochart.Style{Hidden: !spec.YAxis.Visible},
			},
		}
		return errors.Wrap(c.Render(gochart.PNG, w), "render bar chart")

	case visual.Pie, visual.Sunburst:
		c := gochart.PieChart{Title: title, Width: width, Height: height, DPI: dpi, Background: bg, Values: sliceValues(spec, p)}
		return errors.Wrap(c.Render(gochart.PNG, w), "render pie chart")

	case visual.Donut:
		c := gochart.DonutChart{Title: title, Width: width, Height: height, DPI: dpi, Background: bg, Values: sliceValues(spec, p)}
		return errors.Wrap(c.Render(gochart.PNG, w), "render donut chart")
	}

	c := gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		DPI:        dpi,
		Background: bg,
		Series:     r.series(spec, p),
	}
	c.XAxis, c.YAxis = cartesianAxes(spec, p)
	if spec.Legend.Show {
		c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	}
	return errors.Wrap(c.Render(gochart.PNG, w), "render chart")
}

// ============================================================================
// SERIES
// ============================================================================

func (r *PNGRenderer) series(spec *chart.Spec, p chart.Panel) []gochart.Series {
	logY := spec.YAxis.Scale == visual.ScaleLog
	y := func(v float64) float64 {
		if logY {
			return math.Log10(math.Max(v, 1e-9))
		}
		return v
	}

	if spec.Kind == visual.BoxPlot {
		return boxSeries(BoxStats(p.Samples), p.Colors, y)
	}

	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i] = float64(i)
		ys[i] = y(pt.Value)
	}
	col := drawing.ColorFromHex("4F46E5")
	if len(p.Points) > 0 {
		col = hexColor(p.Points[0].Color)
	}
	// go-chart needs two x values to build a range.
	if len(xs) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
	}

	st := gochart.Style{StrokeColor: col, StrokeWidth: 3}
	switch spec.Kind {
	case visual.Area:
		st.FillColor = col.WithAlpha(90)
	case visual.Scatter, visual.Bubble:
		st = gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 8, DotColor: col}
		if spec.Kind == visual.Bubble {
			sizes := bubbleSizes(p.Points)
			st.DotWidthProvider = func(_, _ gochart.Range, index int, _, _ float64) float64 {
				if index < len(sizes) {
					return float64(sizes[index]) / 2
				}
				return 4
			}
		}
	}
	return []gochart.Series{gochart.ContinuousSeries{Name: spec.Title, XValues: xs, YValues: ys, Style: st}}
}

// boxSeries draws each box as polylines: whisker, box outline, median.
func boxSeries(boxes []Box, colors []string, y func(float64) float64) []gochart.Series {
	var out []gochart.Series
	for i, b := range boxes {
		x := float64(i)
		col := drawing.ColorFromHex("4F46E5")
		if i < len(colors) {
			col = hexColor(colors[i])
		}
		st := gochart.Style{StrokeColor: col, StrokeWidth: 2}
		out = append(out,
			gochart.ContinuousSeries{Name: b.Category, XValues: []float64{x, x}, YValues: []float64{y(b.Min), y(b.Max)}, Style: st},
			gochart.ContinuousSeries{
				XValues: []float64{x - 0.3, x + 0.3, x + 0.3, x - 0.3, x - 0.3},
				YValues: []float64{y(b.Q1), y(b.Q1), y(b.Q3), y(b.Q3), y(b.Q1)},
				Style:   gochart.Style{StrokeColor: col, StrokeWidth: 2, FillColor: col.WithAlpha(60)},
			},
			gochart.ContinuousSeries{XValues: []float64{x - 0.3, x + 0.3}, YValues: []float64{y(b.Median), y(b.Median)}, Style: st},
		)
	}
	return out
}

func cartesianAxes(spec *chart.Spec, p chart.Panel) (gochart.XAxis, gochart.YAxis) {
	var labels []string
	if spec.Kind == visual.BoxPlot {
		for _, b := range BoxStats(p.Samples) {
			labels = append(labels, b.Category)
		}
	} else {
		for _, pt := range p.Points {
			labels = append(labels, pt.Category)
		}
	}
	xticks := make([]gochart.Tick, len(labels))
	for i, l := range labels {
		xticks[i] = gochart.Tick{Value: float64(i), Label: l}
	}
	hi := math.Max(float64(len(labels)-1), 1)

	x := gochart.XAxis{
		Name:  spec.XAxis.Title,
		Style: gochart.Style{Hidden: !spec.XAxis.Visible},
		Ticks: xticks,
		Range: &gochart.ContinuousRange{Min: -0.5, Max: hi + 0.5},
	}
	y := gochart.YAxis{
		Name:  spec.YAxis.Title,
		Style: gochart.Style{Hidden: !spec.YAxis.Visible},
	}
	if t := spec.YAxis.Ticks; len(t) > 1 {
		logY := spec.YAxis.Scale == visual.ScaleLog
		for _, v := range t {
			pos := v
			if logY {
				pos = math.Log10(v)
			}
			y.Ticks = append(y.Ticks, gochart.Tick{Value: pos, Label: chart.FormatLabel(v, 0)})
		}
		y.Range = &gochart.ContinuousRange{Min: y.Ticks[0].Value, Max: y.Ticks[len(y.Ticks)-1].Value}
	}
	return x, y
}

// ============================================================================
// VALUES
// ============================================================================

func barValues(spec *chart.Spec, p chart.Panel) []gochart.Value {
	if spec.Kind == visual.Histogram {
		col := drawing.ColorFromHex("4F46E5")
		if len(p.Colors) > 0 {
			col = hexColor(p.Colors[0])
		}
		bins := Histogram(p.Values, spec.Bins)
		out := make([]gochart.Value, len(bins))
		for i, b := range bins {
			out[i] = gochart.Value{Value: float64(b.Count), Label: binLabel(b), Style: gochart.Style{FillColor: col, StrokeColor: col}}
		}
		return out
	}
	out := make([]gochart.Value, len(p.Points))
	for i, pt := range p.Points {
		label := pt.Category
		if spec.Labels.Show {
			label += " (" + pt.Label + ")"
		}
		col := hexColor(pt.Color)
		out[i] = gochart.Value{Value: pt.Value, Label: label, Style: gochart.Style{FillColor: col, StrokeColor: col}}
	}
	return out
}

func sliceValues(spec *chart.Spec, p chart.Panel) []gochart.Value {
	out := make([]gochart.Value, 0, len(p.Points))
	for _, pt := range p.Points {
		label := pt.Category
		if spec.Kind == visual.Sunburst {
			label = pt.Parent + " / " + pt.Category
		} else if spec.Labels.Show && pt.Label != "" {
			label = pt.Label
		}
		col := hexColor(pt.Color)
		out = append(out, gochart.Value{Value: pt.Value, Label: label, Style: gochart.Style{FillColor: col, StrokeColor: drawing.ColorWhite}})
	}
	return out
}

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

// ============================================================================
// PLACEHOLDER
// ============================================================================

// placeholder draws the "no data" state: the title and message centred on
// a light background.
func placeholder(width, height int, title, message string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 248, G: 250, B: 252, A: 255}), image.Point{}, draw.Src)
	if message == "" {
		message = chart.NoDataMessage
	}

	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()
	lines := []string{title, message}
	y := height/2 - lineHeight
	for _, line := range lines {
		dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.RGBA{R: 71, G: 85, B: 105, A: 255}), Face: face}
		x := (width - dr.MeasureString(line).Ceil()) / 2
		dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
		dr.DrawString(line)
		y += lineHeight * 2
	}
	return img
}
