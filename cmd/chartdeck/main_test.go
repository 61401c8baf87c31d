package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chartdeck"
)

const salesCSV = `Region,Product,Units,Revenue
North,Widget,10,100
South,Widget,5,50
North,Gadget,3,30
East,Gadget,8,80
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chartdeck "+chartdeck.Version+"\n", out)
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", writeDataset(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Region")
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "(4 rows, 4 columns)")
}

func TestInspectListsDateColumns(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(data, []byte("Region,Date\nNorth,2024-01-05\nSouth,2024-02-11\n"), 0644))
	cfg := filepath.Join(dir, "chartdeck.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("schema:\n  detect_temporal: true\n"), 0644))

	out, err := execute(t, "--config", cfg, "inspect", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Date-range filters: Date")

	out, err = execute(t, "inspect", writeDataset(t))
	require.NoError(t, err)
	assert.NotContains(t, out, "Date-range filters")
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execute(t, "inspect", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestRenderWritesTableAndFile(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "render", writeDataset(t),
		"--kind", "bar", "--category", "Region", "--value", "Revenue", "--agg", "sum",
		"--title", "Sales", "--format", "csv", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "North")
	assert.Contains(t, out, "130")

	data, err := os.ReadFile(filepath.Join(dir, "bar_sales.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "North")
}

func TestRenderRejectsUnknownKind(t *testing.T) {
	_, err := execute(t, "render", writeDataset(t), "--kind", "radar")
	require.Error(t, err)
}

func TestExportDataFiltered(t *testing.T) {
	out, err := execute(t, "export-data", writeDataset(t), "--filter", "Region=North")
	require.NoError(t, err)
	assert.Equal(t, "Region,Product,Units,Revenue\nNorth,Widget,10,100\nNorth,Gadget,3,30\n", out)
}

func TestParseFilter(t *testing.T) {
	col, p, err := parseFilter("Region = North, South")
	require.NoError(t, err)
	assert.Equal(t, "Region", col)
	assert.Equal(t, []string{"North", "South"}, p.In)

	col, p, err = parseFilter("Date=2024-01-01..2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "Date", col)
	require.NotNil(t, p.Between)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.Between.Start)
	assert.True(t, p.Between.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))

	_, _, err = parseFilter("North")
	assert.Error(t, err)
	_, _, err = parseFilter("Date=2024-01-01..soon")
	assert.Error(t, err)
}
