package visual

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
)

// ============================================================================
// STORE TESTS
// ============================================================================

var ordersCSV = []byte(`Region,Product,Units,Revenue
North,Widget,10,100.5
South,Widget,5,50
North,Gadget,3,30
East,Gadget,8,80
`)

func ordersSchema(t *testing.T, columns ...string) *schema.Schema {
	t.Helper()
	ds, err := dataset.Load("orders.csv", ordersCSV)
	require.NoError(t, err)
	if len(columns) > 0 {
		ds, err = ds.Select(columns)
		require.NoError(t, err)
	}
	return schema.NewInspector().Inspect(ds)
}

func TestCreateDefaults(t *testing.T) {
	s := NewStore(ordersSchema(t))

	id, err := s.Create(Bar)
	require.NoError(t, err)
	assert.Equal(t, ID(0), id)

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, Configured, v.State)
	assert.Equal(t, Bar, v.Kind())

	b := v.Bindings()
	assert.Equal(t, "Region", b.Category)
	assert.Equal(t, "Units", b.Value)
	assert.Equal(t, engine.Count, b.Aggregation)
	assert.True(t, b.Sort.IsNone())

	assert.Equal(t, "Bar Chart", v.Style.Title)
	assert.Equal(t, "Region", v.Style.XAxis.Title)
	assert.Equal(t, "Count", v.Style.YAxis.Title)
	assert.True(t, v.Style.Legend.Show)
	assert.Equal(t, DefaultPalette, v.Style.Palette)
	assert.Empty(t, v.Filters)
}

func TestCreateWithPatch(t *testing.T) {
	s := NewStore(ordersSchema(t))

	id, err := s.Create(HorizontalBar, Patch{
		Aggregation: Ptr(engine.Sum),
		Value:       Ptr("Revenue"),
	})
	require.NoError(t, err)

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, engine.Sum, v.Bindings().Aggregation)
	assert.Equal(t, "Revenue", v.Bindings().Value)
}

func TestCreateRejectsAndKeepsCounter(t *testing.T) {
	s := NewStore(ordersSchema(t))

	_, err := s.Create(Bubble, Patch{Size: Ptr("Region")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBinding))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, ID(0), s.NextID())
}

func TestCreateNeedsNumericColumn(t *testing.T) {
	s := NewStore(ordersSchema(t, "Region", "Product"))

	_, err := s.Create(Histogram)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBinding))

	_, err = s.Create(Pie)
	require.NoError(t, err)
}

func TestUpdateRejectsNonNumericBubbleSize(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bubble)
	require.NoError(t, err)

	err = s.Update(id, Patch{Size: Ptr("Region"), Title: Ptr("Changed")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBinding))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "size", ve.Field)
	assert.Equal(t, id, ve.VisualID)

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Units", v.Bindings().Size)
	assert.Equal(t, "Bubble Chart", v.Style.Title, "rejected update must not partially apply")
}

func TestUpdateRejectsAbsentColumn(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Line)
	require.NoError(t, err)

	err = s.Update(id, Patch{Category: Ptr("Nope")})
	assert.True(t, errors.Is(err, ErrInvalidBinding))
}

func TestUpdateUnsupportedField(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar)
	require.NoError(t, err)

	err = s.Update(id, Patch{Bins: Ptr(10)})
	assert.True(t, errors.Is(err, ErrUnsupported))

	box, err := s.Create(BoxPlot)
	require.NoError(t, err)
	err = s.Update(box, Patch{Sort: &engine.SortSpec{Mode: engine.ValueDesc}})
	assert.True(t, errors.Is(err, ErrUnsupported))
	err = s.Update(box, Patch{Labels: &Labels{Show: true, Position: LabelTop}})
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestUpdateFacetMustDiffer(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar)
	require.NoError(t, err)

	err = s.Update(id, Patch{Facet: Ptr("Region")})
	assert.True(t, errors.Is(err, ErrInvalidBinding))

	require.NoError(t, s.Update(id, Patch{Facet: Ptr("Product")}))

	pie, err := s.Create(Pie)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Update(pie, Patch{Facet: Ptr("Product")}), ErrUnsupported))
}

func TestKindConversion(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar, Patch{Facet: Ptr("Product")})
	require.NoError(t, err)

	require.NoError(t, s.Update(id, Patch{Kind: Ptr(Bubble)}))
	v, err := s.Get(id)
	require.NoError(t, err)
	require.IsType(t, &BubbleShape{}, v.Shape)
	assert.Equal(t, "Bubble Chart", v.Style.Title)
	assert.Equal(t, "Units", v.Bindings().Size)
	assert.Empty(t, v.Bindings().Facet, "bubble charts do not facet")

	require.NoError(t, s.Update(id, Patch{Kind: Ptr(Histogram)}))
	v, err = s.Get(id)
	require.NoError(t, err)
	hs, ok := v.Shape.(*HistogramShape)
	require.True(t, ok)
	assert.Equal(t, DefaultBins, hs.Bins)
	assert.Equal(t, "Units", hs.Value)
	assert.Equal(t, ScaleLinear, v.Style.XAxis.Scale)
	assert.Equal(t, "Units", v.Style.XAxis.Title)
}

func TestSwapAxes(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar)
	require.NoError(t, err)

	require.NoError(t, s.Update(id, Patch{SwapAxes: true}))
	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Units", v.Bindings().Category)
	assert.Equal(t, "Region", v.Bindings().Value)
	assert.Equal(t, "Units", v.Style.XAxis.Title, "derived titles follow the new bindings")
	assert.Equal(t, "Count", v.Style.YAxis.Title)

	custom, err := s.Create(Bar, Patch{XTitle: Ptr("Where"), YTitle: Ptr("How many")})
	require.NoError(t, err)
	require.NoError(t, s.Update(custom, Patch{SwapAxes: true}))
	v, err = s.Get(custom)
	require.NoError(t, err)
	assert.Equal(t, "How many", v.Style.XAxis.Title)
	assert.Equal(t, "Where", v.Style.YAxis.Title)

	pie, err := s.Create(Pie)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Update(pie, Patch{SwapAxes: true}), ErrUnsupported))
}

func TestTitlesFollowBindingsUntilEdited(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar)
	require.NoError(t, err)

	require.NoError(t, s.Update(id, Patch{Aggregation: Ptr(engine.Sum), Value: Ptr("Revenue")}))
	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Sum of Revenue", v.Style.YAxis.Title)

	require.NoError(t, s.Update(id, Patch{YTitle: Ptr("Takings"), Title: Ptr("Sales")}))
	require.NoError(t, s.Update(id, Patch{Aggregation: Ptr(engine.Max), Kind: Ptr(Line)}))
	v, err = s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Takings", v.Style.YAxis.Title)
	assert.Equal(t, "Sales", v.Style.Title)
}

func TestUpdateStyleValidation(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Line)
	require.NoError(t, err)

	err = s.Update(id, Patch{YScale: Ptr(ScaleCategory)})
	assert.True(t, errors.Is(err, ErrInvalidBinding))

	require.NoError(t, s.Update(id, Patch{
		YScale: Ptr(ScaleLog),
		Colors: map[string]string{"North": "#ff0000", "South": "#00ff00"},
	}))
	require.NoError(t, s.Update(id, Patch{Colors: map[string]string{"South": ""}}))

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ScaleLog, v.Style.YAxis.Scale)
	assert.Equal(t, map[string]string{"North": "#ff0000"}, v.Style.Colors)
}

func TestDuplicateIsIndependent(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar, Patch{
		Filters: &engine.FilterSpec{"Region": {In: []string{"North"}}},
		Colors:  map[string]string{"North": "#123456"},
		Sort:    &engine.SortSpec{Mode: engine.ManualOrder, Manual: []string{"North", "East"}},
	})
	require.NoError(t, err)

	cp, err := s.Duplicate(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, cp)

	require.NoError(t, s.Update(cp, Patch{
		Filters: &engine.FilterSpec{"Region": {In: []string{"South"}}},
		Colors:  map[string]string{"North": "#654321"},
	}))

	orig, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"North"}, orig.Filters["Region"].In)
	assert.Equal(t, "#123456", orig.Style.Colors["North"])

	dup, err := s.Get(cp)
	require.NoError(t, err)
	assert.Equal(t, orig.Style.Title, dup.Style.Title)
	assert.Equal(t, []string{"South"}, dup.Filters["Region"].In)
	assert.Equal(t, []string{"North", "East"}, dup.Bindings().Sort.Manual)

	// The copy's default title still follows kind changes.
	require.NoError(t, s.Update(cp, Patch{Kind: Ptr(Line)}))
	dup, err = s.Get(cp)
	require.NoError(t, err)
	assert.Equal(t, defaultTitle(Line), dup.Style.Title)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar, Patch{Filters: &engine.FilterSpec{"Region": {In: []string{"North"}}}})
	require.NoError(t, err)

	v, err := s.Get(id)
	require.NoError(t, err)
	v.Filters["Region"] = engine.Predicate{In: []string{"West"}}
	v.Style.Title = "mutated"

	again, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"North"}, again.Filters["Region"].In)
	assert.Equal(t, "Bar Chart", again.Style.Title)
}

func TestDeleteIdempotentAndCascades(t *testing.T) {
	s := NewStore(ordersSchema(t))
	a, err := s.Create(Bar)
	require.NoError(t, err)
	b, err := s.Create(Line)
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit(a))

	s.Delete(a)
	s.Delete(a)

	assert.Equal(t, []ID{b}, s.List())
	_, placed := s.Layout().Get(a)
	assert.False(t, placed)
	for _, e := range s.Layout().Entries() {
		assert.NotEqual(t, a, e.ID)
	}
	_, editing := s.Layout().Editing()
	assert.False(t, editing)
}

func TestIDsNeverReused(t *testing.T) {
	s := NewStore(ordersSchema(t))
	a, _ := s.Create(Bar)
	b, _ := s.Create(Bar)
	s.Delete(b)
	c, err := s.Create(Bar)
	require.NoError(t, err)

	assert.Equal(t, ID(0), a)
	assert.Equal(t, ID(2), c)

	_, err = s.Get(b)
	assert.True(t, errors.Is(err, ErrDeleted))
	_, err = s.Get(ID(42))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Update(b, Patch{Title: Ptr("x")}), ErrDeleted))
	_, err = s.Duplicate(b)
	assert.True(t, errors.Is(err, ErrDeleted))
}

func TestEditingPointer(t *testing.T) {
	s := NewStore(ordersSchema(t))
	a, _ := s.Create(Bar)
	b, _ := s.Create(Pie)

	require.NoError(t, s.BeginEdit(a))
	require.NoError(t, s.BeginEdit(b))

	st, err := s.State(a)
	require.NoError(t, err)
	assert.Equal(t, Configured, st)
	st, err = s.State(b)
	require.NoError(t, err)
	assert.Equal(t, Editing, st)

	require.NoError(t, s.EndEdit(b))
	_, editing := s.Layout().Editing()
	assert.False(t, editing)
}

func TestLayoutAutoFlow(t *testing.T) {
	s := NewStore(ordersSchema(t))
	for i := 0; i < 3; i++ {
		_, err := s.Create(Bar)
		require.NoError(t, err)
	}

	want := []Placement{
		{X: 0, Y: 0, W: 6, H: 4},
		{X: 6, Y: 0, W: 6, H: 4},
		{X: 0, Y: 4, W: 6, H: 4},
	}
	for i, w := range want {
		p, ok := s.Layout().Get(ID(i))
		require.True(t, ok)
		assert.Equal(t, w, p)
	}

	require.Error(t, s.Move(ID(0), Placement{X: 10, Y: 0, W: 6, H: 4}))
	require.NoError(t, s.Move(ID(0), Placement{X: 0, Y: 8, W: 12, H: 4}))
	entries := s.Layout().Entries()
	assert.Equal(t, ID(0), entries[len(entries)-1].ID)
}

// ============================================================================
// SCHEMA CHANGES
// ============================================================================

func TestRebindFlagsMismatch(t *testing.T) {
	s := NewStore(ordersSchema(t))
	id, err := s.Create(Bar)
	require.NoError(t, err)
	ok, err := s.Create(Bar, Patch{Category: Ptr("Product")})
	require.NoError(t, err)

	issues := s.Rebind(ordersSchema(t, "Product", "Units", "Revenue"))
	require.Len(t, issues, 1)
	assert.Equal(t, id, issues[0].ID)
	assert.False(t, issues[0].Repaired)
	assert.Equal(t, "category", issues[0].Problems[0].Field)

	assert.True(t, errors.Is(s.Check(id), ErrSchemaMismatch))
	assert.NoError(t, s.Check(ok))

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Region", v.Bindings().Category, "flagged visuals keep their bindings")

	require.NoError(t, s.Repair(id))
	v, err = s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Product", v.Bindings().Category)
}

func TestRebindAutoRepair(t *testing.T) {
	s := NewStore(ordersSchema(t), WithAutoRepair(true))
	id, err := s.Create(Bubble, Patch{Size: Ptr("Revenue")})
	require.NoError(t, err)

	issues := s.Rebind(ordersSchema(t, "Region", "Product", "Units"))
	require.Len(t, issues, 1)
	assert.True(t, issues[0].Repaired)
	assert.NoError(t, issues[0].Err)

	v, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Units", v.Bindings().Size)
	assert.NoError(t, s.Check(id))
}

// ============================================================================
// RESTORE
// ============================================================================

func TestRestoreIsAtomic(t *testing.T) {
	src := NewStore(ordersSchema(t))
	a, _ := src.Create(Bar)
	_, _ = src.Create(Pie)
	good, err := src.Visuals()
	require.NoError(t, err)

	dst := NewStore(ordersSchema(t))
	keep, _ := dst.Create(Line)

	bad, err := good[0].Clone()
	require.NoError(t, err)
	bad.ID = 7
	bad.Shape = &CategoryShape{Type: Bar, Category: "Gone", Aggregation: engine.Count, Labels: DefaultLabels()}

	err = dst.Restore(append(good, bad), nil)
	require.Error(t, err)
	assert.Equal(t, []ID{keep}, dst.List())

	require.NoError(t, dst.Restore(good, map[ID]Placement{a: {X: 0, Y: 2, W: 12, H: 3}}))
	assert.Equal(t, []ID{0, 1}, dst.List())
	p, ok := dst.Layout().Get(a)
	require.True(t, ok)
	assert.Equal(t, Placement{X: 0, Y: 2, W: 12, H: 3}, p)
	assert.Equal(t, 2, dst.Layout().Len())

	// Counter never moves backwards past ids handed out before.
	next, err := dst.Create(Bar)
	require.NoError(t, err)
	assert.Equal(t, ID(2), next)
}

func TestRestoreNeverRevivesDeletedIDs(t *testing.T) {
	s := NewStore(ordersSchema(t))
	a, err := s.Create(Bar)
	require.NoError(t, err)
	b, err := s.Create(Pie)
	require.NoError(t, err)
	saved, err := s.Visuals()
	require.NoError(t, err)

	s.Delete(a)
	require.NoError(t, s.Restore(saved, map[ID]Placement{a: {X: 0, Y: 9, W: 4, H: 2}}))

	_, err = s.Get(a)
	assert.True(t, errors.Is(err, ErrDeleted))
	assert.Equal(t, []ID{2, b}, s.List())

	moved, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, Bar, moved.Kind())
	p, ok := s.Layout().Get(2)
	require.True(t, ok)
	assert.Equal(t, Placement{X: 0, Y: 9, W: 4, H: 2}, p)
	assert.Equal(t, ID(3), s.NextID())
}

func TestParseID(t *testing.T) {
	id, err := ParseID("chart_3")
	require.NoError(t, err)
	assert.Equal(t, ID(3), id)

	id, err = ParseID("12")
	require.NoError(t, err)
	assert.Equal(t, "chart_12", id.String())

	_, err = ParseID("chart_x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"bar":            Bar,
		"Horizontal Bar": HorizontalBar,
		"box plot":       BoxPlot,
		"boxplot":        BoxPlot,
		"DONUT":          Donut,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("radar")
	assert.Error(t, err)
}
