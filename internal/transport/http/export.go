package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bcbradar/internal/exporter"
	"bcbradar/internal/i18n"
	custommw "bcbradar/internal/middleware"
	"bcbradar/internal/transform"
)

// exportFormats are the supported download encodings.
var exportFormats = []string{"csv", "xlsx"}

var exportContentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// serveTable writes a table download in the requested format: csv uses the
// Brazilian profile, xlsx a single-sheet workbook. The payload is buffered
// so an encoding failure can still produce an error response, and the
// export is recorded against the business metrics when the middleware
// injected them.
func serveTable(w http.ResponseWriter, r *http.Request, t *transform.Table, module, filename, format string) error {
	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := exporter.WriteCSV(&buf, t, exporter.BrazilianCSV()); err != nil {
			return fmt.Errorf("failed to encode csv: %w", err)
		}
	case "xlsx":
		if err := exporter.WriteXLSX(&buf, t, ""); err != nil {
			return fmt.Errorf("failed to encode xlsx: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	if m := custommw.GetBusinessMetricsFromContext(r.Context()); m != nil {
		m.RecordExport(r.Context(), module, format)
	}

	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"."+format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}

// recordReportBuild reports a module view build to the business metrics
// when the middleware injected them.
func recordReportBuild(r *http.Request, module string, start time.Time, err error) {
	if m := custommw.GetBusinessMetricsFromContext(r.Context()); m != nil {
		m.RecordReportBuild(r.Context(), module, time.Since(start), err)
	}
}

// requestLocale reads the lang query parameter. Unsupported values fall
// back to Portuguese.
func requestLocale(r *http.Request) i18n.Locale {
	return i18n.ParseLocale(r.URL.Query().Get("lang"))
}

// splitList parses a comma-separated query parameter, trimming whitespace
// and dropping empty entries.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isResponseWritten checks if response has already been written
func isResponseWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status() != 0
	}
	return false
}
