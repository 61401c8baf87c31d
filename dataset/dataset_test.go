package dataset

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// ============================================================================
// DATASET TESTS
// ============================================================================

var financeCSV = []byte(`Month,Location,Category,Field,Currency,Amount
Jan-2026,Singapore,Income,Salary,SGD,8500.00
Jan-2026,Singapore,Expense,Rent,SGD,2200.00
Jan-2026,Singapore,Expense,Groceries,SGD,450.00
Jan-2026,Singapore,Expense,Transport,SGD,120.00
Jan-2026,India,Income,Rental Income,INR,"25,000.00"
Jan-2026,India,Expense,Property Tax,INR,5000.00
Feb-2026,Singapore,Income,Salary,SGD,8500.00
Feb-2026,Singapore,Expense,Rent,SGD,2200.00
Feb-2026,Singapore,Expense,Internet,SGD,49.90
Feb-2026,India,Transfer,ToIndia,INR,N/A
`)

func TestLoadCSVInfersTypes(t *testing.T) {
	ds, err := Load("finance.csv", financeCSV)
	require.NoError(t, err)

	assert.Equal(t, "finance.csv", ds.Name)
	assert.Equal(t, 10, ds.Len())
	assert.Equal(t, []string{"Month", "Location", "Category", "Field", "Currency", "Amount"}, ds.Names())

	amount, ok := ds.Column("Amount")
	require.True(t, ok)
	assert.Equal(t, Numeric, amount.Type)
	assert.Equal(t, 1, amount.MissingCount())

	v, ok := amount.Number(4)
	require.True(t, ok)
	assert.Equal(t, 25000.0, v)
	assert.Equal(t, "25000", amount.Text(4))
	assert.Equal(t, "", amount.Text(9))

	month, _ := ds.Column("Month")
	assert.Equal(t, Categorical, month.Type, "temporal detection is off by default")
}

func TestLoadCSVDetectTemporal(t *testing.T) {
	opt := DefaultLoadOptions()
	opt.Infer.DetectTemporal = true
	ds, err := Load("finance.csv", financeCSV, opt)
	require.NoError(t, err)

	month, _ := ds.Column("Month")
	assert.Equal(t, Temporal, month.Type)
	assert.Equal(t, "2026-01-01", month.Text(0))
}

func TestLoadCSVHeaders(t *testing.T) {
	data := []byte("a,,a,b,a\n1,2,3,4,5\n6,7\n")
	ds, err := Load("odd.csv", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "b", "a.2"}, ds.Names())
	assert.Equal(t, 2, ds.Len())

	b, _ := ds.Column("b")
	assert.True(t, b.Missing(1), "short rows are padded with missing cells")
}

func TestLoadTSV(t *testing.T) {
	ds, err := Load("data.tsv", []byte("x\ty\nfoo\t1\nbar\t2\n"))
	require.NoError(t, err)
	y, _ := ds.Column("y")
	assert.Equal(t, Numeric, y.Type)
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("data.parquet", []byte("PAR1"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load("empty.csv", nil)
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Region", "Sales"},
		{"North", 10},
		{"South", 20.5},
		{"North", "n/a"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := Load("sales.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	sales, _ := ds.Column("Sales")
	assert.Equal(t, Numeric, sales.Type)
	v, ok := sales.Number(1)
	require.True(t, ok)
	assert.Equal(t, 20.5, v)
	assert.True(t, sales.Missing(2))
}

func TestWithTypeIsReversible(t *testing.T) {
	ds, err := Load("finance.csv", financeCSV)
	require.NoError(t, err)

	asNum, err := ds.WithType("Location", Numeric)
	require.NoError(t, err)
	loc, _ := asNum.Column("Location")
	assert.Equal(t, Numeric, loc.Type)
	assert.Equal(t, ds.Len(), loc.MissingCount(), "invalid values become missing")
	n, ok := loc.Number(0)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(n))

	back, err := asNum.WithType("Location", Categorical)
	require.NoError(t, err)
	loc, _ = back.Column("Location")
	assert.Equal(t, "Singapore", loc.Text(0))

	orig, _ := ds.Column("Location")
	assert.Equal(t, Categorical, orig.Type, "parent dataset is untouched")

	_, err = ds.WithType("Nope", Numeric)
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestSelect(t *testing.T) {
	ds, err := Load("finance.csv", financeCSV)
	require.NoError(t, err)

	sub, err := ds.Select([]string{"Amount", "Location", "Amount"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amount", "Location"}, sub.Names())
	assert.False(t, sub.Has("Month"))
	assert.Equal(t, ds.Len(), sub.Len())

	_, err = ds.Select([]string{"Missing"})
	require.ErrorIs(t, err, ErrUnknownColumn)
	_, err = ds.Select(nil)
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{"1,234.56", 1234.56, true},
		{"$99", 99, true},
		{"-€12", -12, true},
		{"15%", 15, true},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"--5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestWriteCSVAndXLSX(t *testing.T) {
	ds, err := Load("finance.csv", financeCSV)
	require.NoError(t, err)
	sub, err := ds.Select([]string{"Location", "Amount"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sub, []int{0, 9}, ','))
	assert.Equal(t, "Location,Amount\nSingapore,8500\nIndia,\n", buf.String())

	var xbuf bytes.Buffer
	require.NoError(t, WriteXLSX(&xbuf, sub, nil))
	back, err := LoadXLSX(&xbuf)
	require.NoError(t, err)
	assert.Equal(t, sub.Len(), back.Len())
	amount, _ := back.Column("Amount")
	assert.Equal(t, Numeric, amount.Type)
}
