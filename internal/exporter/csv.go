package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bcbradar/internal/transform"
)

// utf8BOM helps Excel recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV rendering behavior
type CSVOptions struct {
	Delimiter    rune
	DecimalComma bool
	BOM          bool
	DateLayout   string
}

// BrazilianCSV returns the download contract used by the report endpoints:
// semicolon delimiter, decimal comma, UTF-8 BOM, ISO dates.
func BrazilianCSV() CSVOptions {
	return CSVOptions{
		Delimiter:    ';',
		DecimalComma: true,
		BOM:          true,
		DateLayout:   "2006-01-02",
	}
}

// withDefaults fills unset options with conventional CSV behavior.
func (o CSVOptions) withDefaults() CSVOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.DateLayout == "" {
		o.DateLayout = "2006-01-02"
	}
	return o
}

// WriteCSV streams a table as CSV. The header row carries the table's
// columns in order; missing cells render empty.
func WriteCSV(w io.Writer, t *transform.Table, opts CSVOptions) error {
	opts = opts.withDefaults()

	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.Delimiter

	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(cols))
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for j, col := range cols {
			record[j] = renderCell(row[col], opts)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes a table to a file, creating parent directories.
func WriteCSVFile(path string, t *transform.Table, opts CSVOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteCSV(file, t, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// renderCell encodes one cell for CSV output. Numbers use the shortest
// representation that round-trips; the decimal separator follows the
// options. Quoting is the csv writer's problem.
func renderCell(c transform.Cell, opts CSVOptions) string {
	switch c.Kind() {
	case transform.KindNumber:
		v, _ := c.Float()
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if opts.DecimalComma {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	case transform.KindText:
		s, _ := c.Str()
		return s
	case transform.KindTime:
		d, _ := c.When()
		return d.Format(opts.DateLayout)
	default:
		return ""
	}
}
