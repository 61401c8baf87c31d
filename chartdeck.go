// Package chartdeck turns tabular datasets into chart configurations and
// rendered charts.
//
// A session loads a CSV or Excel file, infers a schema, and keeps a store
// of visual configurations bound to its columns. Each visual runs through
// the pipeline package (filter, aggregate, order, assemble) to produce a
// chart.Spec that the render package draws as PNG, HTML or CSV.
//
//	s := session.New(config.Default(), logrus.New())
//	s.Load("sales.csv", data)
//	id, _ := s.AddVisual(visual.Bar)
//	art, _ := s.ExportImage(id, render.PNG)
//
// Dashboards round-trip through YAML documents (package dashboard) and can
// be archived in SQLite or Postgres (package archive).
package chartdeck

// Version is the release of the module.
const Version = "0.3.0"
