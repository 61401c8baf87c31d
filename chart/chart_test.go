package chart

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// CHART ASSEMBLY TESTS
// ============================================================================

var ordersCSV = []byte(`Region,Product,Units,Revenue
North,Widget,10,100.5
South,Widget,5,50
North,Gadget,3,30
`)

func newVisual(t *testing.T, k visual.Kind, patches ...visual.Patch) *visual.Visual {
	t.Helper()
	ds, err := dataset.Load("orders.csv", ordersCSV)
	require.NoError(t, err)
	store := visual.NewStore(schema.NewInspector().Inspect(ds))
	id, err := store.Create(k, patches...)
	require.NoError(t, err)
	v, err := store.Get(id)
	require.NoError(t, err)
	return v
}

var series = engine.Series{
	{Category: "North", Value: 3, Count: 3},
	{Category: "South", Value: 1, Count: 1},
}

func TestAssembleBar(t *testing.T) {
	v := newVisual(t, visual.Bar, visual.Patch{
		Labels: &visual.Labels{Show: true, Position: visual.LabelTop, Precision: 2},
		Colors: map[string]string{"South": "#000000"},
	})

	spec := Assemble(v, []Data{{Series: series}})
	require.False(t, spec.NoData)
	assert.Equal(t, "chart_0", spec.VisualID)
	assert.Equal(t, "Bar Chart", spec.Title)
	require.NotNil(t, spec.XAxis)
	assert.Equal(t, "Region", spec.XAxis.Title)
	assert.Equal(t, "Count", spec.YAxis.Title)
	assert.True(t, spec.Labels.Show)
	assert.Equal(t, visual.LabelTop, spec.Labels.Position)

	require.Len(t, spec.Panels, 1)
	pts := spec.Panels[0].Points
	require.Len(t, pts, 2)
	assert.Equal(t, "3.00", pts[0].Label)
	assert.Equal(t, palettes["default"][0], pts[0].Color)
	assert.Equal(t, "#000000", pts[1].Color, "override wins over palette")

	assert.NotEmpty(t, spec.YAxis.Ticks)
	assert.Equal(t, 0.0, spec.YAxis.Ticks[0])
	assert.True(t, sort.Float64sAreSorted(spec.YAxis.Ticks))
}

func TestAssemblePieLabels(t *testing.T) {
	cases := map[visual.LabelMode][]string{
		visual.LabelPercent:     {"75.00%", "25.00%"},
		visual.LabelValue:       {"3.00", "1.00"},
		visual.LabelName:        {"North", "South"},
		visual.LabelNamePercent: {"North: 75.00%", "South: 25.00%"},
		visual.LabelNameValue:   {"North: 3.00", "South: 1.00"},
	}
	for mode, want := range cases {
		v := newVisual(t, visual.Pie, visual.Patch{LabelMode: visual.Ptr(mode)})
		spec := Assemble(v, []Data{{Series: series}})
		got := []string{spec.Panels[0].Points[0].Label, spec.Panels[0].Points[1].Label}
		assert.Equal(t, want, got, string(mode))
		assert.True(t, spec.Labels.Show)
		assert.Nil(t, spec.XAxis)
		assert.Nil(t, spec.YAxis)
	}
}

func TestAssembleDonutHole(t *testing.T) {
	v := newVisual(t, visual.Donut)
	spec := Assemble(v, []Data{{Series: series}})
	assert.Equal(t, DonutHole, spec.Hole)
}

func TestAssembleIgnoresAxisSettingsWithoutAxes(t *testing.T) {
	v := newVisual(t, visual.Sunburst, visual.Patch{ShowXAxis: visual.Ptr(false)})
	spec := Assemble(v, []Data{{Series: engine.Series{{Parent: "Widget", Category: "North", Value: 1, Count: 1}}}})
	assert.Nil(t, spec.XAxis)
	assert.Equal(t, "Widget", spec.Panels[0].Points[0].Parent)
}

func TestAssembleNoData(t *testing.T) {
	v := newVisual(t, visual.Line)
	spec := Assemble(v, []Data{{Series: nil}})
	assert.True(t, spec.NoData)
	assert.Equal(t, NoDataMessage, spec.Message)

	spec = Assemble(v, nil, WithNoDataMessage("nothing"))
	assert.True(t, spec.NoData)
	assert.Equal(t, "nothing", spec.Message)
}

func TestAssembleBoxPlotHasNoLabels(t *testing.T) {
	v := newVisual(t, visual.BoxPlot)
	spec := Assemble(v, []Data{{Samples: []engine.Sample{
		{Category: "North", Value: 10}, {Category: "South", Value: 5}, {Category: "North", Value: 3},
	}}})
	assert.False(t, spec.Labels.Show)
	assert.Len(t, spec.Panels[0].Samples, 3)
	assert.Len(t, spec.Panels[0].Colors, 2)
	assert.Empty(t, spec.Panels[0].Points)
}

func TestAssembleHistogramFacets(t *testing.T) {
	v := newVisual(t, visual.Histogram, visual.Patch{Facet: visual.Ptr("Region"), Bins: visual.Ptr(5)})
	spec := Assemble(v, []Data{
		{Facet: "North", Values: []float64{10, 3}},
		{Facet: "South", Values: []float64{5}},
	})
	assert.Equal(t, 5, spec.Bins)
	require.Len(t, spec.Panels, 2)
	assert.Equal(t, "South", spec.Panels[1].Facet)
	assert.NotEmpty(t, spec.XAxis.Ticks)
	assert.Len(t, spec.Panels[0].Colors, 1)
	assert.Empty(t, spec.Panels[0].Points)
}

func TestUnknownPaletteFallsBack(t *testing.T) {
	v := newVisual(t, visual.Bar, visual.Patch{Palette: visual.Ptr("neon")})
	spec := Assemble(v, []Data{{Series: series}}, WithFallbackPalette("plotly"))
	assert.Equal(t, palettes["plotly"][0], spec.Panels[0].Points[0].Color)
}

// ============================================================================
// FORMATTING, PALETTES, TICKS
// ============================================================================

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		v    float64
		prec int
		want string
	}{
		{2.345, 2, "2.35"},
		{1, 0, "1"},
		{1, 3, "1.000"},
		{-1.5, 0, "-2"},
		{1234.5678, 1, "1234.6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLabel(tt.v, tt.prec))
	}
	assert.Equal(t, "50.0%", FormatPercent(1, 2, 1))
	assert.Equal(t, "0%", FormatPercent(1, 0, 0))

	assert.Equal(t, "+Inf", FormatLabel(math.Inf(1), 2))
	assert.Equal(t, "NaN", FormatLabel(math.NaN(), 2))
	assert.Equal(t, "0.0%", FormatPercent(1e308, math.Inf(1), 1))
}

func TestColors(t *testing.T) {
	assert.Equal(t, palettes["default"][:2], Colors("nope", 2))
	assert.Equal(t, palettes["dark"][0], Colors("dark", 9)[8])

	vir := Colors("viridis", 3)
	require.Len(t, vir, 3)
	for _, c := range vir {
		assert.Regexp(t, `^#[0-9A-F]{6}$`, c)
	}
	assert.NotEqual(t, vir[0], vir[2])
	assert.Contains(t, Palettes(), "viridis")
	assert.True(t, HasPalette("Pastel"))
}

func TestTicks(t *testing.T) {
	lin := Ticks([]float64{3, 97}, visual.ScaleLinear)
	require.NotEmpty(t, lin)
	assert.LessOrEqual(t, len(lin), MaxTicks)
	assert.Equal(t, 0.0, lin[0])

	logs := Ticks([]float64{5, 5000, -1, 0}, visual.ScaleLog)
	require.NotEmpty(t, logs)
	for _, x := range logs {
		e := math.Log10(x)
		assert.InDelta(t, math.Round(e), e, 1e-9)
	}

	assert.Nil(t, Ticks([]float64{1, 2}, visual.ScaleCategory))
	assert.Nil(t, Ticks(nil, visual.ScaleLinear))
}

// ============================================================================
// TABLE
// ============================================================================

func TestTableAggregated(t *testing.T) {
	v := newVisual(t, visual.Bar)
	tbl := Table(Assemble(v, []Data{{Series: series}}))

	assert.Equal(t, []string{"Region", "Count", "Count"}, tbl.Header())
	assert.Equal(t, [][]string{{"North", "3", "3"}, {"South", "1", "1"}}, tbl.Rows)
	assert.Equal(t, "4", tbl.Summary.Values["value"])
}

func TestTableList(t *testing.T) {
	v := newVisual(t, visual.BoxPlot)
	tbl := Table(Assemble(v, []Data{{Samples: []engine.Sample{{Category: "North", Value: 2.5}}}}))
	assert.Equal(t, [][]string{{"North", "2.5"}}, tbl.Rows)
	assert.Equal(t, "Total (1 records)", tbl.Summary.Label)
}
