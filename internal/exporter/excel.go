package exporter

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"bcbradar/internal/transform"
)

// WriteXLSX renders a table as a single-sheet xlsx workbook. Cells keep
// their native types so Excel applies numeric and date handling itself;
// missing cells stay blank.
func WriteXLSX(w io.Writer, t *transform.Table, sheet string) error {
	if sheet == "" {
		sheet = "Dados"
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	cols := t.Columns()
	for j, col := range cols {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header %q: %w", col, err)
		}
	}

	if len(cols) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to build header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for j, col := range cols {
			c := row[col]
			if c.IsMissing() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, cellValue(c)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := autosizeColumns(f, sheet, t); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// autosizeColumns widens each column to its longest rendered value,
// clamped so one verbose cell cannot blow up the sheet.
func autosizeColumns(f *excelize.File, sheet string, t *transform.Table) error {
	const minWidth, maxWidth = 10.0, 50.0

	for j, col := range t.Columns() {
		longest := utf8.RuneCountInString(col)
		for i := 0; i < t.Len(); i++ {
			c := t.Row(i)[col]
			if c.IsMissing() {
				continue
			}
			if n := utf8.RuneCountInString(fmt.Sprint(cellValue(c))); n > longest {
				longest = n
			}
		}

		width := float64(longest) + 2
		if width < minWidth {
			width = minWidth
		}
		if width > maxWidth {
			width = maxWidth
		}

		name, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return fmt.Errorf("failed to build column name: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}
	return nil
}

func cellValue(c transform.Cell) any {
	switch c.Kind() {
	case transform.KindNumber:
		v, _ := c.Float()
		return v
	case transform.KindTime:
		d, _ := c.When()
		return d.Format("2006-01-02")
	default:
		s, _ := c.Str()
		return s
	}
}
