package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/dataset"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// PIPELINE — filter → aggregate → order → assemble
// ============================================================================
// Entry point: Run(ds, schema, global, visual, opts...)
//
// Pipeline:
//   1. Check the visual's bindings against the schema
//   2. Apply global filters, then the visual's own filters
//   3. Split into facet panels when a facet field is bound
//   4. Aggregate per panel (or extract row-level data for distributions)
//   5. Order the series
//   6. Assemble the chart spec
//
// Run is a pure function of its inputs: nothing is cached between calls and
// no input is mutated.
// ============================================================================

// Result is the outcome for one visual. Exactly one of Spec and Err is set.
type Result struct {
	VisualID visual.ID
	Spec     *chart.Spec
	Err      error
}

// Option configures a pipeline run.
type Option func(*config)

type config struct {
	palette string
	noData  string
	log     *logrus.Entry
}

// WithPalette sets the palette used when a visual names an unknown one.
func WithPalette(name string) Option {
	return func(c *config) { c.palette = name }
}

// WithNoDataMessage replaces the empty-state message.
func WithNoDataMessage(msg string) Option {
	return func(c *config) { c.noData = msg }
}

// WithLogger sets the run logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) { c.log = log }
}

func applyOptions(opts []Option) *config {
	cfg := &config{palette: visual.DefaultPalette, noData: chart.NoDataMessage}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return cfg
}

// Run produces the chart spec of v over ds. A visual bound to a column
// missing from sch yields a Result whose Err wraps visual.ErrSchemaMismatch.
func Run(ds *dataset.Dataset, sch *schema.Schema, global engine.FilterSpec, v *visual.Visual, opts ...Option) Result {
	cfg := applyOptions(opts)
	res := Result{VisualID: v.ID}

	if problems := visual.Check(v.Shape, sch); len(problems) > 0 {
		problems[0].VisualID = v.ID
		cfg.log.Warnf("⚠️ Pipeline: skipping %s: %v", v.ID, problems[0])
		res.Err = problems[0]
		return res
	}

	view := engine.NewView(ds)
	filtered := engine.ApplyAll(view, global, v.Filters)
	cfg.log.Debugf("🔧 Pipeline: %s %s, %d rows, %s", v.ID, v.Kind(), view.Len(), engine.RowCountLine("filtering", filtered))

	data, err := collect(filtered, v)
	if err != nil {
		cfg.log.Warnf("⚠️ Pipeline: %s failed: %v", v.ID, err)
		res.Err = err
		return res
	}

	spec := chart.Assemble(v, data,
		chart.WithFallbackPalette(cfg.palette),
		chart.WithNoDataMessage(cfg.noData),
	)
	spec.Rows = filtered.Len()
	spec.Filters = engine.Summary(global, v.Filters)
	if spec.NoData {
		cfg.log.Debugf("📭 Pipeline: %s has no data after filtering", v.ID)
	}
	res.Spec = spec
	return res
}

// RunAll runs every visual, continuing past per-visual failures.
func RunAll(ds *dataset.Dataset, sch *schema.Schema, global engine.FilterSpec, visuals []*visual.Visual, opts ...Option) []Result {
	out := make([]Result, 0, len(visuals))
	for _, v := range visuals {
		out = append(out, Run(ds, sch, global, v, opts...))
	}
	return out
}

// ============================================================================
// DATA COLLECTION
// ============================================================================

func collect(view engine.RecordView, v *visual.Visual) ([]chart.Data, error) {
	b := v.Bindings()
	if b.Facet == "" || !v.Kind().Facetable() {
		d, err := panel(view, v, "")
		if err != nil {
			return nil, err
		}
		return []chart.Data{d}, nil
	}

	groups := engine.Partition(view, b.Facet)
	if len(groups) == 0 {
		return []chart.Data{{}}, nil
	}
	out := make([]chart.Data, 0, len(groups))
	for _, g := range groups {
		d, err := panel(g.View, v, g.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func panel(view engine.RecordView, v *visual.Visual, facet string) (chart.Data, error) {
	k := v.Kind()
	b := v.Bindings()
	d := chart.Data{Facet: facet}

	switch k {
	case visual.BoxPlot:
		d.Samples = engine.Samples(view, b.Category, b.Value)
		return d, nil
	case visual.Histogram:
		d.Values = engine.Values(view, b.Value)
		return d, nil
	}

	req := engine.Request{Category: b.Category, Value: b.Value, Mode: b.Aggregation}
	switch k {
	case visual.Bubble:
		req.Size = b.Size
	case visual.Sunburst:
		req.Parent = b.Parent
	}
	series, err := engine.AggregateBy(view, req)
	if err != nil {
		return d, err
	}
	if k.Sortable() {
		series = engine.Order(series, b.Sort)
	}
	d.Series = series
	return d, nil
}
