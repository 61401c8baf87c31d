package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chartdeck/dataset"
)

// ============================================================================
// ENGINE TESTS
// ============================================================================

var salesCSV = []byte(`Region,Product,Channel,Units,Revenue,Date
North,Widget,Online,10,100.50,2024-01-05
South,Widget,Retail,5,abc,2024-01-20
North,Gadget,Retail,3,30,2024-02-11
East,Gadget,Online,8,80,2024-02-28
South,Gizmo,Online,2,20,2024-03-02
North,Gizmo,Retail,,15,2024-03-15
West,Widget,Online,7,,2024-04-01
`)

func loadSales(t *testing.T) *dataset.Dataset {
	t.Helper()
	opt := dataset.DefaultLoadOptions()
	opt.Infer.DetectTemporal = true
	ds, err := dataset.Load("sales.csv", salesCSV, opt)
	require.NoError(t, err)
	return ds
}

func kv(rows ...interface{}) *dataset.Dataset {
	var body [][]string
	for i := 0; i < len(rows); i += 2 {
		body = append(body, []string{rows[i].(string), rows[i+1].(string)})
	}
	ds, err := dataset.New("kv", []string{"cat", "val"}, body)
	if err != nil {
		panic(err)
	}
	return ds
}

func asMap(s Series) map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, p := range s {
		out[p.Category] = p.Value
	}
	return out
}

// ============================================================================
// FILTERS
// ============================================================================

func TestApplyOrWithinAndAcross(t *testing.T) {
	view := NewView(loadSales(t))

	got := Apply(view, FilterSpec{
		"Region":  {In: []string{"North", "South"}},
		"Channel": {In: []string{"Retail"}},
	})
	assert.Equal(t, []int{1, 2, 5}, Rows(got))
}

func TestApplyEmptyPredicateIsNoRestriction(t *testing.T) {
	view := NewView(loadSales(t))

	got := Apply(view, FilterSpec{"Region": {In: []string{}}})
	assert.Equal(t, view.Len(), got.Len())
	assert.Same(t, view, got)
}

func TestApplyAbsentColumnIsNoop(t *testing.T) {
	view := NewView(loadSales(t))

	got := Apply(view, FilterSpec{
		"Dropped": {In: []string{"x"}},
		"Region":  {In: []string{"East"}},
	})
	assert.Equal(t, []int{3}, Rows(got))
}

func TestApplyMissingNeverMatches(t *testing.T) {
	view := NewView(loadSales(t))

	got := Apply(view, FilterSpec{"Revenue": {In: []string{"", "15"}}})
	assert.Equal(t, []int{5}, Rows(got))
}

func TestApplyTimeRangeInclusive(t *testing.T) {
	view := NewView(loadSales(t))

	spec := FilterSpec{"Date": {Between: &TimeRange{
		Start: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}}}
	assert.Equal(t, []int{1, 2, 3, 4}, Rows(Apply(view, spec)))

	// A range on a non-temporal column is ignored.
	spec = FilterSpec{"Region": {Between: spec["Date"].Between}}
	assert.Equal(t, view.Len(), Apply(view, spec).Len())
}

func TestFilterCommutativity(t *testing.T) {
	view := NewView(loadSales(t))
	a := FilterSpec{"Region": {In: []string{"North", "South", "West"}}}
	b := FilterSpec{"Product": {In: []string{"Widget", "Gizmo"}}}

	ab := Rows(ApplyAll(view, a, b))
	ba := Rows(ApplyAll(view, b, a))
	assert.Equal(t, ab, ba)
	assert.Equal(t, []int{0, 1, 4, 5, 6}, ab)
}

func TestFilterSpecClone(t *testing.T) {
	orig := FilterSpec{"Region": {In: []string{"North"}, Between: &TimeRange{}}}
	cp := orig.Clone()
	cp["Region"].In[0] = "South"
	cp["Region"].Between.Start = time.Now()
	cp["Channel"] = Predicate{In: []string{"Online"}}

	assert.Equal(t, "North", orig["Region"].In[0])
	assert.True(t, orig["Region"].Between.Start.IsZero())
	assert.False(t, orig.HasFilter("Channel"))
}

// ============================================================================
// AGGREGATION
// ============================================================================

func TestAggregateCorrectness(t *testing.T) {
	view := NewView(kv("x", "1", "x", "3", "y", "2"))

	sum, err := Aggregate(view, "cat", "val", Sum)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 4, "y": 2}, asMap(sum))

	count, err := Aggregate(view, "cat", "val", Count)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 2, "y": 1}, asMap(count))

	avg, err := Aggregate(view, "cat", "val", Average)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 2, "y": 2}, asMap(avg))

	lo, err := Aggregate(view, "cat", "val", Min)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 1, "y": 2}, asMap(lo))

	hi, err := Aggregate(view, "cat", "val", Max)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 3, "y": 2}, asMap(hi))
}

func TestAggregateExcludesNonNumeric(t *testing.T) {
	view := NewView(kv("x", "abc", "x", "5"))

	sum, err := Aggregate(view, "cat", "val", Sum)
	require.NoError(t, err)
	assert.Equal(t, Series{{Category: "x", Value: 5, Count: 2}}, sum)

	avg, err := Aggregate(view, "cat", "val", Average)
	require.NoError(t, err)
	assert.Equal(t, 5.0, avg[0].Value, "invalid rows do not dilute the mean")
}

func TestAggregateDropsGroupsWithoutValues(t *testing.T) {
	view := NewView(kv("x", "abc", "y", "2", "y", "n/a"))

	sum, err := Aggregate(view, "cat", "val", Sum)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, sum.Categories())

	count, err := Aggregate(view, "cat", "nonexistent", Count)
	require.NoError(t, err, "count ignores the value field")
	assert.Equal(t, []string{"x", "y"}, count.Categories())
}

func TestAggregateOverflowIsDropped(t *testing.T) {
	view := NewView(kv("x", "1e308", "x", "1e308", "y", "2"))

	sum, err := Aggregate(view, "cat", "val", Sum)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"y": 2}, asMap(sum))

	avg, err := Aggregate(view, "cat", "val", Average)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 1e308, "y": 2}, asMap(avg))

	hi, err := Aggregate(view, "cat", "val", Max)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 1e308, "y": 2}, asMap(hi))
}

func TestAggregateFilteredCategoryExcluded(t *testing.T) {
	view := NewView(kv("x", "1", "z", "9", "y", "2"))
	filtered := Apply(view, FilterSpec{"cat": {In: []string{"x", "y"}}})

	for _, mode := range []Aggregation{Count, Sum, Average, Min, Max} {
		s, err := Aggregate(filtered, "cat", "val", mode)
		require.NoError(t, err)
		assert.NotContains(t, s.Categories(), "z", mode.String())
	}
}

func TestAggregateSkipsMissingCategory(t *testing.T) {
	view := NewView(kv("x", "1", "", "5", "NULL", "3"))

	s, err := Aggregate(view, "cat", "val", Sum)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, s.Categories())
}

func TestAggregateUnknownColumns(t *testing.T) {
	view := NewView(loadSales(t))

	_, err := Aggregate(view, "Nope", "Units", Sum)
	require.ErrorIs(t, err, dataset.ErrUnknownColumn)

	_, err = Aggregate(view, "Region", "Nope", Sum)
	require.ErrorIs(t, err, dataset.ErrUnknownColumn)
}

func TestAggregateNestedAndSize(t *testing.T) {
	view := NewView(loadSales(t))

	s, err := AggregateBy(view, Request{
		Parent:   "Region",
		Category: "Product",
		Value:    "Units",
		Size:     "Revenue",
		Mode:     Sum,
	})
	require.NoError(t, err)

	want := Series{
		{Parent: "North", Category: "Widget", Value: 10, Size: 100.5, Count: 1},
		{Parent: "South", Category: "Widget", Value: 5, Size: 0, Count: 1},
		{Parent: "North", Category: "Gadget", Value: 3, Size: 30, Count: 1},
		{Parent: "East", Category: "Gadget", Value: 8, Size: 80, Count: 1},
		{Parent: "South", Category: "Gizmo", Value: 2, Size: 20, Count: 1},
		{Parent: "West", Category: "Widget", Value: 7, Size: 0, Count: 1},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("nested aggregation mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesAndValues(t *testing.T) {
	view := NewView(loadSales(t))

	assert.Equal(t, []float64{100.5, 30, 80, 20, 15}, Values(view, "Revenue"))

	samples := Samples(view, "Region", "Units")
	assert.Len(t, samples, 6)
	assert.Equal(t, Sample{Category: "North", Value: 10}, samples[0])
}

func TestPartition(t *testing.T) {
	view := NewView(loadSales(t))

	groups := Partition(view, "Channel")
	require.Len(t, groups, 2)
	assert.Equal(t, "Online", groups[0].Key)
	assert.Equal(t, []int{0, 3, 4, 6}, Rows(groups[0].View))

	nested := Partition(groups[0].View, "Region")
	assert.Equal(t, []int{4}, Rows(nested[2].View), "nested views resolve to dataset rows")
}

// ============================================================================
// ORDERING
// ============================================================================

func series(cats ...string) Series {
	s := make(Series, len(cats))
	for i, c := range cats {
		s[i] = Point{Category: c, Value: float64(i)}
	}
	return s
}

func TestOrderManualCompleteness(t *testing.T) {
	got := Order(series("a", "b", "c"), SortSpec{Mode: ManualOrder, Manual: []string{"c", "a"}})
	assert.Equal(t, []string{"c", "a", "b"}, got.Categories())

	got = Order(series("a", "b", "c", "d"), SortSpec{Mode: ManualOrder, Manual: []string{"zz", "d", "d", "b"}})
	assert.Equal(t, []string{"d", "b", "a", "c"}, got.Categories())
}

func TestOrderModes(t *testing.T) {
	in := Series{
		{Category: "b", Value: 2},
		{Category: "c", Value: 1},
		{Category: "a", Value: 2},
		{Category: "B", Value: 3},
	}

	tests := []struct {
		mode SortMode
		want []string
	}{
		{SortNone, []string{"b", "c", "a", "B"}},
		{CategoryAsc, []string{"B", "a", "b", "c"}},
		{CategoryDesc, []string{"c", "b", "a", "B"}},
		{ValueAsc, []string{"c", "a", "b", "B"}},
		{ValueDesc, []string{"B", "a", "b", "c"}},
	}
	for _, tt := range tests {
		got := Order(in, SortSpec{Mode: tt.mode})
		assert.Equal(t, tt.want, got.Categories(), tt.mode.String())
	}
	assert.Equal(t, []string{"b", "c", "a", "B"}, in.Categories(), "input is not modified")
}

func TestParseNames(t *testing.T) {
	m, err := ParseSortMode("value_desc")
	require.NoError(t, err)
	assert.Equal(t, ValueDesc, m)
	_, err = ParseSortMode("sideways")
	assert.Error(t, err)

	a, err := ParseAggregation("Average")
	require.NoError(t, err)
	assert.Equal(t, Average, a)
	_, err = ParseAggregation("median")
	assert.Error(t, err)
}

// ============================================================================
// SUMMARY
// ============================================================================

func TestSummary(t *testing.T) {
	global := FilterSpec{"Region": {In: []string{"North", "South"}}}
	local := FilterSpec{
		"Date": {Between: &TimeRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		}},
		"Channel": {In: []string{"Online"}},
	}

	assert.Equal(t, []string{
		"Region: North, South",
		"Channel: Online",
		"Date: 2024-01-01 → 2024-03-31",
	}, Summary(global, local))

	assert.Equal(t, "Rows after global filters: 7", RowCountLine("global filters", NewView(loadSales(t))))
}
