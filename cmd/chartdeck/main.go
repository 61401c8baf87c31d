// Package main provides the chartdeck command line.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spektr-org/chartdeck"
	"github.com/spektr-org/chartdeck/archive"
	"github.com/spektr-org/chartdeck/chart"
	"github.com/spektr-org/chartdeck/config"
	"github.com/spektr-org/chartdeck/engine"
	"github.com/spektr-org/chartdeck/render"
	"github.com/spektr-org/chartdeck/schema"
	"github.com/spektr-org/chartdeck/server"
	"github.com/spektr-org/chartdeck/session"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// CHARTDECK CLI — Inspect, chart and serve tabular datasets
// ============================================================================

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "chartdeck",
		Short: "Build charts and dashboards from CSV and Excel files",
		Long: `chartdeck loads a tabular dataset, infers its schema and turns chart
configurations into rendered charts, tables and dashboard documents.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "Path to a YAML config file")

	root.AddCommand(
		newInspectCmd(o),
		newRenderCmd(o),
		newExportDataCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return root
}

// setup loads config and builds a logger writing to the command's stderr.
func (o *rootOptions) setup(cmd *cobra.Command) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := cfg.Log.Logger()
	log.SetOutput(cmd.ErrOrStderr())
	return cfg, log, nil
}

// open loads path into a fresh session.
func (o *rootOptions) open(cmd *cobra.Command, path string) (*session.Session, error) {
	cfg, log, err := o.setup(cmd)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	s := session.New(cfg, log)
	if _, err := s.Load(filepath.Base(path), data); err != nil {
		return nil, err
	}
	return s, nil
}

// ============================================================================
// INSPECT
// ============================================================================

func newInspectCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the inferred schema of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, args[0])
			if err != nil {
				return err
			}
			writeSchema(cmd.OutOrStdout(), s.Schema())
			return nil
		},
	}
}

func writeSchema(w io.Writer, sch *schema.Schema) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Column", "Type", "Inferred", "Missing", "Distinct", "Cardinality", "Parent"})
	for _, c := range sch.Columns {
		typ := c.Type.String()
		if c.Overridden {
			typ += "*"
		}
		table.Append([]string{
			c.Name,
			typ,
			c.Inferred.String(),
			humanize.Comma(int64(c.MissingCount)),
			humanize.Comma(int64(c.DistinctCount)),
			c.CardinalityHint,
			c.Parent,
		})
	}
	table.Render()
	fmt.Fprintf(w, "(%s rows, %d columns)\n", humanize.Comma(int64(sch.Rows)), len(sch.Columns))
	if dates := sch.Temporal(); len(dates) > 0 {
		fmt.Fprintf(w, "Date-range filters: %s\n", strings.Join(dates, ", "))
	}
}

func kindList() string {
	kinds := visual.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

// ============================================================================
// RENDER
// ============================================================================

type renderOptions struct {
	kind        string
	category    string
	value       string
	facet       string
	aggregation string
	title       string
	filters     []string
	format      string
	out         string
}

func newRenderCmd(o *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render one chart and print its table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, o, ro, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&ro.kind, "kind", "bar", "Chart kind: "+kindList())
	f.StringVar(&ro.category, "category", "", "Category column (default: first categorical column)")
	f.StringVar(&ro.value, "value", "", "Value column (default: first numeric column)")
	f.StringVar(&ro.facet, "facet", "", "Facet column")
	f.StringVar(&ro.aggregation, "agg", "", "Aggregation: sum, average, count, min, max")
	f.StringVar(&ro.title, "title", "", "Chart title")
	f.StringArrayVar(&ro.filters, "filter", nil, "Global filter column=a,b or column=2024-01-01..2024-03-31 (repeatable)")
	f.StringVar(&ro.format, "format", "png", "Export format: png, html, csv")
	f.StringVarP(&ro.out, "out", "o", "", "Directory to write the exported chart to")
	return cmd
}

func (ro *renderOptions) patch() (visual.Patch, error) {
	var p visual.Patch
	if ro.category != "" {
		p.Category = visual.Ptr(ro.category)
	}
	if ro.value != "" {
		p.Value = visual.Ptr(ro.value)
	}
	if ro.facet != "" {
		p.Facet = visual.Ptr(ro.facet)
	}
	if ro.title != "" {
		p.Title = visual.Ptr(ro.title)
	}
	if ro.aggregation != "" {
		agg, err := engine.ParseAggregation(ro.aggregation)
		if err != nil {
			return p, err
		}
		p.Aggregation = &agg
	}
	return p, nil
}

func runRender(cmd *cobra.Command, o *rootOptions, ro *renderOptions, path string) error {
	kind, err := visual.ParseKind(ro.kind)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(ro.format)
	if err != nil {
		return err
	}
	p, err := ro.patch()
	if err != nil {
		return err
	}
	s, err := o.open(cmd, path)
	if err != nil {
		return err
	}
	if err := applyFilters(s, ro.filters); err != nil {
		return err
	}
	id, err := s.AddVisual(kind, p)
	if err != nil {
		return err
	}
	res, err := s.Render(id)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	w := cmd.OutOrStdout()
	writeTable(w, chart.Table(res.Spec))
	for _, line := range s.FilterSummary() {
		fmt.Fprintln(w, line)
	}
	if ro.out == "" {
		return nil
	}

	art, err := s.ExportImage(id, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(ro.out, 0755); err != nil {
		return errors.Wrapf(err, "create %s", ro.out)
	}
	dest := filepath.Join(ro.out, art.Name)
	if err := os.WriteFile(dest, art.Data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", dest)
	}
	if art.Fallback {
		fmt.Fprintf(w, "wrote %s (%s fallback, %s)\n", dest, art.Format, humanize.Bytes(uint64(len(art.Data))))
	} else {
		fmt.Fprintf(w, "wrote %s (%s)\n", dest, humanize.Bytes(uint64(len(art.Data))))
	}
	return nil
}

func writeTable(w io.Writer, t *chart.TableData) {
	if t.Title != "" {
		fmt.Fprintln(w, t.Title)
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(t.Header())
	aligns := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		aligns[i] = tablewriter.ALIGN_LEFT
		if c.Align == "right" {
			aligns[i] = tablewriter.ALIGN_RIGHT
		}
	}
	table.SetColumnAlignment(aligns)
	table.AppendBulk(t.Rows)
	if t.Summary != nil {
		footer := make([]string, len(t.Columns))
		footer[0] = t.Summary.Label
		for i, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok && i > 0 {
				footer[i] = v
			}
		}
		table.SetFooter(footer)
	}
	table.Render()
}

// ============================================================================
// EXPORT DATA
// ============================================================================

func newExportDataCmd(o *rootOptions) *cobra.Command {
	var (
		filters []string
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export-data <file>",
		Short: "Write the dataset after global filters as CSV, TSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, args[0])
			if err != nil {
				return err
			}
			if err := applyFilters(s, filters); err != nil {
				return err
			}
			if out == "" {
				return s.ExportData(cmd.OutOrStdout(), format)
			}
			f, err := os.Create(out)
			if err != nil {
				return errors.Wrapf(err, "create %s", out)
			}
			if err := s.ExportData(f, format); err != nil {
				f.Close()
				return err
			}
			return errors.Wrapf(f.Close(), "close %s", out)
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Global filter column=a,b or column=2024-01-01..2024-03-31 (repeatable)")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv, tsv, xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

// applyFilters sets one global filter per flag value.
func applyFilters(s *session.Session, flags []string) error {
	for _, f := range flags {
		col, p, err := parseFilter(f)
		if err != nil {
			return err
		}
		if err := s.SetGlobalFilter(col, p); err != nil {
			return err
		}
	}
	return nil
}

// parseFilter reads "column=a,b" as a value set and "column=from..to" as
// an inclusive date range.
func parseFilter(s string) (string, engine.Predicate, error) {
	col, rest, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", engine.Predicate{}, errors.Newf("filter %q: want column=values", s)
	}
	if from, to, ok := strings.Cut(rest, ".."); ok {
		start, err := parseDate(from)
		if err != nil {
			return "", engine.Predicate{}, errors.Wrapf(err, "filter %q", s)
		}
		end, err := parseDate(to)
		if err != nil {
			return "", engine.Predicate{}, errors.Wrapf(err, "filter %q", s)
		}
		// A bare date as the end bound covers the whole day.
		end = end.Add(24*time.Hour - time.Nanosecond)
		return col, engine.Predicate{Between: &engine.TimeRange{Start: start, End: end}}, nil
	}
	var values []string
	for _, v := range strings.Split(rest, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return col, engine.Predicate{In: values}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return t, errors.Wrapf(err, "date %q", s)
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.setup(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			var arch *archive.Store
			if cfg.Archive.Driver != "" {
				arch, err = archive.Open(cfg.Archive.Driver, cfg.Archive.DSN, archive.Options{})
				if err != nil {
					return err
				}
				defer arch.Close()
				if err := arch.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				log.Infof("🗄️ Archive: using %s", cfg.Archive.Driver)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(cfg, log, arch).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// ============================================================================
// VERSION
// ============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chartdeck %s\n", chartdeck.Version)
		},
	}
}
