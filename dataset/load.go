package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ============================================================================
// LOADERS — Upload bytes → Dataset
// ============================================================================
// The caller reads the upload from wherever it lives (multipart form, file,
// archive). Loaders turn the bytes into a Dataset with inferred column types.
// The first row of every format is the header.
// ============================================================================

// LoadOptions controls parsing.
type LoadOptions struct {
	Name  string // Dataset name (otherwise the file name)
	Sheet string // Workbook sheet; default is the first sheet
	Comma rune   // CSV delimiter; default ',' (or '\t' for .tsv)
	Infer InferOptions
}

// DefaultLoadOptions returns sensible defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Comma: ',', Infer: DefaultInferOptions()}
}

func pickLoadOptions(opts []LoadOptions) LoadOptions {
	opt := DefaultLoadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.Infer.NumericThreshold == 0 {
		opt.Infer.NumericThreshold = DefaultInferOptions().NumericThreshold
	}
	return opt
}

// Load dispatches on the file extension.
func Load(filename string, data []byte, opts ...LoadOptions) (*Dataset, error) {
	opt := pickLoadOptions(opts)
	if opt.Name == "" {
		opt.Name = filename
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return LoadCSV(bytes.NewReader(data), opt)
	case ".tsv":
		opt.Comma = '\t'
		return LoadCSV(bytes.NewReader(data), opt)
	case ".xlsx", ".xlsm":
		return LoadXLSX(bytes.NewReader(data), opt)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", filename)
}

// LoadCSV parses delimited text. Malformed rows are skipped.
func LoadCSV(r io.Reader, opts ...LoadOptions) (*Dataset, error) {
	opt := pickLoadOptions(opts)

	reader := csv.NewReader(r)
	reader.Comma = opt.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(ErrEmptyDataset, "CSV has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV headers")
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		if blankRow(row) {
			continue
		}
		rows = append(rows, row)
	}

	return New(opt.Name, headers, rows, opt.Infer)
}

// LoadXLSX parses a workbook sheet.
func LoadXLSX(r io.Reader, opts ...LoadOptions) (*Dataset, error) {
	opt := pickLoadOptions(opts)

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	sheet := opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Wrap(ErrEmptyDataset, "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "sheet %q is empty", sheet)
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		body = append(body, row)
	}
	return New(opt.Name, rows[0], body, opt.Infer)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
