package dataset

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ============================================================================
// EXPORT — Row subset → delimited text or workbook
// ============================================================================

// WriteCSV writes the header and the given rows. A nil rows slice writes
// every row.
func WriteCSV(w io.Writer, ds *Dataset, rows []int, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(ds.Names()); err != nil {
		return errors.Wrap(err, "write header")
	}

	record := make([]string, len(ds.columns))
	err := eachRow(ds, rows, func(i int) error {
		for j, c := range ds.columns {
			record[j] = c.Text(i)
		}
		return cw.Write(record)
	})
	if err != nil {
		return errors.Wrap(err, "write rows")
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the header and the given rows to a single-sheet workbook.
// Numeric cells are stored as numbers.
func WriteXLSX(w io.Writer, ds *Dataset, rows []int) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]interface{}, len(ds.columns))
	for j, c := range ds.columns {
		header[j] = c.Name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	line := 2
	err := eachRow(ds, rows, func(i int) error {
		record := make([]interface{}, len(ds.columns))
		for j, c := range ds.columns {
			if v, ok := c.Number(i); ok && c.Type == Numeric {
				record[j] = v
				continue
			}
			record[j] = c.Text(i)
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		line++
		return f.SetSheetRow(sheet, cell, &record)
	})
	if err != nil {
		return errors.Wrap(err, "write rows")
	}
	return errors.Wrap(f.Write(w), "write workbook")
}

func eachRow(ds *Dataset, rows []int, fn func(i int) error) error {
	if rows == nil {
		for i := 0; i < ds.rows; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	for _, i := range rows {
		if i < 0 || i >= ds.rows {
			continue
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}
