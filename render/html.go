package render

import (
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// HTML — Standalone interactive document via go-echarts
// ============================================================================
// One echarts instance per facet panel. The page embeds the data and loads
// the echarts runtime from its asset host.
// ============================================================================

// HTMLRenderer renders a standalone HTML page.
type HTMLRenderer struct {
	opts Options
}

// NewHTML returns an HTML renderer.
func NewHTML(o Options) *HTMLRenderer { return &HTMLRenderer{opts: o} }

func (r *HTMLRenderer) Format() Format { return HTML }

// Render writes a page holding every panel of spec.
func (r *HTMLRenderer) Render(w io.Writer, spec *chart.Spec) error {
	return r.RenderPage(w, spec.Title, spec)
}

// RenderPage writes one page holding every panel of every spec.
func (r *HTMLRenderer) RenderPage(w io.Writer, title string, specs ...*chart.Spec) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, spec := range specs {
		for _, c := range r.charters(spec) {
			page.AddCharts(c)
		}
	}
	return errors.Wrap(page.Render(w), "render html page")
}

func (r *HTMLRenderer) charters(spec *chart.Spec) []components.Charter {
	if spec.NoData {
		return []components.Charter{r.noData(spec)}
	}
	out := make([]components.Charter, 0, len(spec.Panels))
	for i, p := range spec.Panels {
		out = append(out, r.panel(spec, p, i))
	}
	return out
}

// ============================================================================
// GLOBAL OPTIONS
// ============================================================================

func (r *HTMLRenderer) globals(spec *chart.Spec, p chart.Panel, i int) []charts.GlobalOpts {
	ini := opts.Initialization{
		PageTitle: spec.Title,
		Width:     strconv.Itoa(r.opts.Width/2) + "px",
		Height:    strconv.Itoa(r.opts.Height/2) + "px",
		ChartID:   spec.VisualID + "_" + strconv.Itoa(i),
	}
	if spec.Background {
		ini.BackgroundColor = "#FFFFFF"
	}
	orient := "vertical"
	if spec.Legend.Orientation == visual.Horizontal {
		orient = "horizontal"
	}

	g := []charts.GlobalOpts{
		charts.WithInitializationOpts(ini),
		charts.WithTitleOpts(opts.Title{Title: spec.Title, Subtitle: p.Facet}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(spec.Legend.Show), Orient: orient, Right: "0"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
	if spec.XAxis != nil {
		g = append(g,
			charts.WithXAxisOpts(opts.XAxis{Name: spec.XAxis.Title, Show: opts.Bool(spec.XAxis.Visible), Type: axisType(spec.XAxis, spec.Kind, true)}),
			charts.WithYAxisOpts(opts.YAxis{Name: spec.YAxis.Title, Show: opts.Bool(spec.YAxis.Visible), Type: axisType(spec.YAxis, spec.Kind, false)}),
		)
	}
	return g
}

func axisType(a *chart.Axis, k visual.Kind, x bool) string {
	switch {
	case k == visual.HorizontalBar && !x:
		return "category"
	case k == visual.HorizontalBar && x:
		if a.Scale == visual.ScaleLog {
			return "log"
		}
		return "value"
	case x && (k == visual.Scatter || k == visual.Bubble) && a.Scale == visual.ScaleLinear:
		return "value"
	case x:
		return "category"
	case a.Scale == visual.ScaleLog:
		return "log"
	}
	return "value"
}

func labelOpts(spec *chart.Spec) opts.Label {
	pos := string(spec.Labels.Position)
	if pos == "" || pos == string(visual.LabelAuto) {
		pos = "top"
		if spec.Kind == visual.Pie || spec.Kind == visual.Donut || spec.Kind == visual.Sunburst {
			pos = "outside"
		}
	}
	return opts.Label{Show: opts.Bool(spec.Labels.Show), Position: pos}
}

// ============================================================================
// PANELS
// ============================================================================

func (r *HTMLRenderer) panel(spec *chart.Spec, p chart.Panel, i int) components.Charter {
	g := r.globals(spec, p, i)
	name := spec.Title
	cats := make([]string, len(p.Points))
	for j, pt := range p.Points {
		cats[j] = pt.Category
	}

	switch spec.Kind {
	case visual.Bar, visual.HorizontalBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(g...)
		bar.SetXAxis(cats).AddSeries(name, barData(p.Points), charts.WithLabelOpts(labelOpts(spec)))
		if spec.Kind == visual.HorizontalBar {
			bar.XYReversal()
		}
		return bar

	case visual.Line, visual.Area:
		line := charts.NewLine()
		line.SetGlobalOptions(g...)
		data := make([]opts.LineData, len(p.Points))
		for j, pt := range p.Points {
			data[j] = opts.LineData{Value: pt.Value, Name: pt.Category}
		}
		so := []charts.SeriesOpts{charts.WithLabelOpts(labelOpts(spec))}
		if len(p.Points) > 0 {
			so = append(so, charts.WithLineStyleOpts(opts.LineStyle{Color: p.Points[0].Color}))
		}
		if spec.Kind == visual.Area {
			so = append(so, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: 0.4}))
		}
		line.SetXAxis(cats).AddSeries(name, data, so...)
		return line

	case visual.Scatter, visual.Bubble:
		sc := charts.NewScatter()
		sc.SetGlobalOptions(g...)
		sizes := bubbleSizes(p.Points)
		data := make([]opts.ScatterData, len(p.Points))
		for j, pt := range p.Points {
			d := opts.ScatterData{Name: pt.Category, Value: pt.Value, SymbolSize: 10}
			if spec.Kind == visual.Bubble {
				d.SymbolSize = sizes[j]
			}
			if x, ok := dataset.ParseNumber(pt.Category); ok && spec.XAxis.Scale == visual.ScaleLinear {
				d.Value = []float64{x, pt.Value}
			}
			data[j] = d
		}
		sc.SetXAxis(cats).AddSeries(name, data, charts.WithLabelOpts(labelOpts(spec)))
		return sc

	case visual.BoxPlot:
		box := charts.NewBoxPlot()
		box.SetGlobalOptions(g...)
		stats := BoxStats(p.Samples)
		names := make([]string, len(stats))
		data := make([]opts.BoxPlotData, len(stats))
		for j, b := range stats {
			names[j] = b.Category
			data[j] = opts.BoxPlotData{Name: b.Category, Value: []float64{b.Min, b.Q1, b.Median, b.Q3, b.Max}}
		}
		box.SetXAxis(names).AddSeries(name, data)
		return box

	case visual.Histogram:
		bar := charts.NewBar()
		bar.SetGlobalOptions(g...)
		bins := Histogram(p.Values, spec.Bins)
		labels := make([]string, len(bins))
		data := make([]opts.BarData, len(bins))
		color := ""
		if len(p.Colors) > 0 {
			color = p.Colors[0]
		}
		for j, b := range bins {
			labels[j] = binLabel(b)
			data[j] = opts.BarData{Value: b.Count, ItemStyle: &opts.ItemStyle{Color: color}}
		}
		bar.SetXAxis(labels).AddSeries(name, data,
			charts.WithLabelOpts(labelOpts(spec)),
			charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "1%"}),
		)
		return bar

	case visual.Pie, visual.Donut:
		pie := charts.NewPie()
		pie.SetGlobalOptions(g...)
		data := make([]opts.PieData, len(p.Points))
		for j, pt := range p.Points {
			data[j] = opts.PieData{Name: pt.Category, Value: pt.Value, ItemStyle: &opts.ItemStyle{Color: pt.Color}}
		}
		radius := []string{"0%", "70%"}
		if spec.Hole > 0 {
			radius[0] = strconv.Itoa(int(spec.Hole*70)) + "%"
		}
		pie.AddSeries(name, data,
			charts.WithLabelOpts(labelOpts(spec)),
			charts.WithPieChartOpts(opts.PieChart{Radius: radius}),
		)
		return pie

	case visual.Sunburst:
		sun := charts.NewSunburst()
		sun.SetGlobalOptions(g...)
		sun.AddSeries(name, sunburstTree(p.Points), charts.WithLabelOpts(labelOpts(spec)))
		return sun

	default: // Funnel
		f := charts.NewFunnel()
		f.SetGlobalOptions(g...)
		data := make([]opts.FunnelData, len(p.Points))
		for j, pt := range p.Points {
			data[j] = opts.FunnelData{Name: pt.Category, Value: pt.Value}
		}
		f.AddSeries(name, data, charts.WithLabelOpts(labelOpts(spec)))
		return f
	}
}

func (r *HTMLRenderer) noData(spec *chart.Spec) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(r.globals(spec, chart.Panel{Facet: spec.Message}, 0)...)
	bar.SetXAxis([]string{}).AddSeries(spec.Title, []opts.BarData{})
	return bar
}

func barData(points []chart.Point) []opts.BarData {
	out := make([]opts.BarData, len(points))
	for i, pt := range points {
		out[i] = opts.BarData{Name: pt.Category, Value: pt.Value, ItemStyle: &opts.ItemStyle{Color: pt.Color}}
	}
	return out
}

// bubbleSizes maps point sizes to symbol diameters between 8 and 60.
func bubbleSizes(points []chart.Point) []int {
	out := make([]int, len(points))
	var hi float64
	for _, pt := range points {
		hi = max(hi, pt.Size)
	}
	for i, pt := range points {
		out[i] = 8
		if hi > 0 && pt.Size > 0 {
			out[i] = 8 + int(52*pt.Size/hi)
		}
	}
	return out
}

func sunburstTree(points []chart.Point) []opts.SunBurstData {
	var order []string
	parents := make(map[string]*opts.SunBurstData)
	for _, pt := range points {
		node, ok := parents[pt.Parent]
		if !ok {
			node = &opts.SunBurstData{Name: pt.Parent}
			parents[pt.Parent] = node
			order = append(order, pt.Parent)
		}
		node.Value += pt.Value
		node.Children = append(node.Children, &opts.SunBurstData{Name: pt.Category, Value: pt.Value})
	}
	out := make([]opts.SunBurstData, 0, len(order))
	for _, p := range order {
		out = append(out, *parents[p])
	}
	return out
}

func binLabel(b Bin) string {
	return chart.FormatLabel(b.Lo, 2) + "–" + chart.FormatLabel(b.Hi, 2)
}
