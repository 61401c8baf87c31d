package render

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// RENDER TESTS
// ============================================================================

var ordersCSV = []byte(`Region,Product,Units,Revenue
North,Widget,10,100.5
South,Widget,5,50
North,Gadget,3,30
`)

var small = Options{Width: 320, Height: 240, Scale: 1}

func barSpec(t *testing.T, title string) *chart.Spec {
	t.Helper()
	return seriesSpec(t, visual.Bar, title)
}

func seriesSpec(t *testing.T, k visual.Kind, title string) *chart.Spec {
	t.Helper()
	ds, err := dataset.Load("orders.csv", ordersCSV)
	require.NoError(t, err)
	store := visual.NewStore(schema.NewInspector().Inspect(ds))
	id, err := store.Create(k, visual.Patch{Title: visual.Ptr(title)})
	require.NoError(t, err)
	v, err := store.Get(id)
	require.NoError(t, err)
	return chart.Assemble(v, []chart.Data{{Series: engine.Series{
		{Category: "North", Value: 2, Count: 2},
		{Category: "South", Value: 1, Count: 1},
	}}})
}

type failing struct{ f Format }

func (r failing) Format() Format { return r.f }
func (r failing) Render(io.Writer, *chart.Spec) error {
	return errors.Wrap(ErrBackendUnavailable, "no display")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "bar_sales-by-region.png", FileName(visual.Bar, "Sales by Region", PNG))
	assert.Equal(t, "horizontal_bar_chart.html", FileName(visual.HorizontalBar, "  ", HTML))
	assert.Equal(t, FileName(visual.Pie, "Mix", CSV), FileName(visual.Pie, "Mix", CSV))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".PNG")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	assert.Equal(t, "text/csv; charset=utf-8", CSV.ContentType())

	_, err = ParseFormat("svg")
	assert.Error(t, err)
}

func TestDefaultOptionsPixels(t *testing.T) {
	w, h := DefaultOptions().pixels()
	assert.Equal(t, 3840, w)
	assert.Equal(t, 2160, h)
	assert.Equal(t, 192.0, DefaultOptions().dpi())
}

func TestBoxStats(t *testing.T) {
	boxes := BoxStats([]engine.Sample{
		{Category: "b", Value: 5},
		{Category: "a", Value: 1},
		{Category: "b", Value: 1},
		{Category: "b", Value: 3},
	})
	require.Len(t, boxes, 2)
	assert.Equal(t, "b", boxes[0].Category, "first appearance order")
	assert.Equal(t, 1.0, boxes[0].Min)
	assert.Equal(t, 3.0, boxes[0].Median)
	assert.Equal(t, 5.0, boxes[0].Max)
	assert.Equal(t, 3, boxes[0].N)
	assert.Equal(t, 1, boxes[1].N)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	require.Len(t, bins, 5)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 10, total, "maximum lands in the last bin")
	assert.Equal(t, 0.0, bins[0].Lo)
	assert.Equal(t, 10.0, bins[4].Hi)

	same := Histogram([]float64{4, 4, 4}, 3)
	require.Len(t, same, 3)
	assert.Equal(t, 3, same[0].Count+same[1].Count+same[2].Count)

	assert.Nil(t, Histogram(nil, 5))
}

func TestCSVRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSV().Render(&buf, barSpec(t, "Units")))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "North", rows[1][0])
	assert.Equal(t, "Total", rows[3][0])
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHTML(small).Render(&buf, barSpec(t, "Orders by Region")))
	out := buf.String()
	assert.Contains(t, out, "Orders by Region")
	assert.Contains(t, out, "North")
}

func TestHTMLRendererArea(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHTML(small).Render(&buf, seriesSpec(t, visual.Area, "Orders over Regions")))
	out := buf.String()
	assert.Contains(t, out, "Orders over Regions")
	assert.Contains(t, out, "areaStyle")
}

func TestPNGPlaceholder(t *testing.T) {
	spec := &chart.Spec{VisualID: "chart_0", Kind: visual.Bar, Title: "Empty", NoData: true, Message: chart.NoDataMessage}
	var buf bytes.Buffer
	require.NoError(t, NewPNG(small).Render(&buf, spec))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestPNGBar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPNG(small).Render(&buf, barSpec(t, "Units")))
	_, err := png.Decode(&buf)
	require.NoError(t, err)
}

func TestPNGDisabled(t *testing.T) {
	r := NewPNG(small)
	r.Disable()
	err := r.Render(io.Discard, barSpec(t, "Units"))
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}

func TestExportFallsBack(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ex := NewExporter(small, logrus.NewEntry(logger), failing{PNG}, NewHTML(small), NewCSV())

	art, err := ex.Export(barSpec(t, "Sales by Region"), PNG)
	require.NoError(t, err)
	assert.Equal(t, HTML, art.Format)
	assert.True(t, art.Fallback)
	assert.Equal(t, "bar_sales-by-region.html", art.Name)
	assert.True(t, strings.HasPrefix(art.ContentType, "text/html"))
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}

func TestExportPreferred(t *testing.T) {
	ex := NewExporter(small, nil, failing{PNG}, NewHTML(small), NewCSV())
	art, err := ex.Export(barSpec(t, "Units"), CSV)
	require.NoError(t, err)
	assert.Equal(t, CSV, art.Format)
	assert.False(t, art.Fallback)
}

func TestExportAllFail(t *testing.T) {
	ex := NewExporter(small, nil, failing{PNG}, failing{HTML})
	_, err := ex.Export(barSpec(t, "Units"), PNG)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}
