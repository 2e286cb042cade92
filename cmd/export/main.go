package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bcbradar/internal/bcb"
	"bcbradar/internal/config"
	"bcbradar/internal/exporter"
	"bcbradar/internal/i18n"
	"bcbradar/internal/infrastructure"
	"bcbradar/internal/services"
	"bcbradar/internal/transform"
)

// exportOptions collects the parsed command line.
type exportOptions struct {
	module      string
	format      string
	outDir      string
	start       time.Time
	end         time.Time
	series      string
	freq        string
	modalities  string
	indicators  string
	scope       string
	fromQuarter int
	toQuarter   int
	locale      i18n.Locale
}

func main() {
	module := flag.String("module", "", "module to export: payments | series | ifdata | rates | expectations | delinquency")
	format := flag.String("format", "csv", "output format: csv | xlsx")
	out := flag.String("out", "exports", "output directory")
	start := flag.String("start", "", "start date (YYYY-MM-DD, defaults to one year before end)")
	end := flag.String("end", "", "end date (YYYY-MM-DD, defaults to today)")
	series := flag.String("series", "", "comma-separated SGS series codes (series module)")
	freq := flag.String("freq", "", "resample frequency for series: original | monthly | annual")
	modalities := flag.String("modalities", "", "comma-separated credit modalities (rates module, defaults to all daily)")
	indicators := flag.String("indicators", "", "comma-separated Focus indicators (expectations module, defaults to all)")
	scope := flag.String("scope", services.ScopeRegions, "delinquency scope: regions | states")
	fromQuarter := flag.Int("from-quarter", 0, "first quarter as AnoMes, e.g. 202403 (ifdata module)")
	toQuarter := flag.Int("to-quarter", 0, "last quarter as AnoMes, e.g. 202412 (ifdata module)")
	locale := flag.String("locale", "pt", "column header language: pt | en")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall export timeout")
	flag.Parse()

	if *module == "" {
		fmt.Fprintln(os.Stderr, "missing required -module flag")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	// Exports are batch runs; keep the console clean and the log on stderr.
	cfg.Logging.Format = "text"

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	opts, err := resolveOptions(*module, *format, *out, *start, *end, *series, *freq,
		*modalities, *indicators, *scope, *fromQuarter, *toQuarter, *locale)
	if err != nil {
		logger.Error("Invalid arguments", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger.Info("Starting export",
		slog.String("module", opts.module),
		slog.String("format", opts.format),
		slog.String("out_dir", opts.outDir))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := bcb.New(cfg.BCB, logger)

	fmt.Printf("Fetching %s data...\n", opts.module)
	table, err := buildTable(ctx, client, logger, opts)
	if err != nil {
		logger.Error("Export failed",
			slog.String("module", opts.module),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		logger.Error("Cannot create output directory",
			slog.String("path", opts.outDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	path := filepath.Join(opts.outDir, exportFilename(opts.module, opts.format, time.Now()))
	if err := writeTable(path, opts.format, table); err != nil {
		logger.Error("Failed to write output file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Export completed",
		slog.Int("rows", table.Len()),
		slog.String("path", path))
	fmt.Printf("Export complete: %d rows -> %s\n", table.Len(), path)
}

// resolveOptions validates the flag set and fills date defaults: end
// falls back to today, start to one year before end.
func resolveOptions(module, format, out, start, end, series, freq,
	modalities, indicators, scope string, fromQuarter, toQuarter int, locale string) (exportOptions, error) {

	opts := exportOptions{
		module:      module,
		format:      format,
		outDir:      out,
		series:      series,
		freq:        freq,
		modalities:  modalities,
		indicators:  indicators,
		scope:       scope,
		fromQuarter: fromQuarter,
		toQuarter:   toQuarter,
		locale:      i18n.ParseLocale(locale),
	}

	switch module {
	case "payments", "series", "ifdata", "rates", "expectations", "delinquency":
	default:
		return opts, fmt.Errorf("unknown module %q", module)
	}

	switch format {
	case "csv", "xlsx":
	default:
		return opts, fmt.Errorf("unknown format %q", format)
	}

	opts.end = time.Now().UTC().Truncate(24 * time.Hour)
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return opts, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		opts.end = t
	}
	opts.start = opts.end.AddDate(-1, 0, 0)
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return opts, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		opts.start = t
	}
	if opts.end.Before(opts.start) {
		return opts, fmt.Errorf("end date %s before start date %s",
			opts.end.Format("2006-01-02"), opts.start.Format("2006-01-02"))
	}

	if module == "series" && strings.TrimSpace(series) == "" {
		return opts, fmt.Errorf("the series module needs -series with at least one SGS code")
	}
	if module == "ifdata" && (fromQuarter == 0 || toQuarter == 0) {
		return opts, fmt.Errorf("the ifdata module needs -from-quarter and -to-quarter (AnoMes, e.g. 202412)")
	}

	return opts, nil
}

// buildTable constructs the service for the requested module and pulls
// its raw export table. Batch runs attach no progress sink.
func buildTable(ctx context.Context, client *bcb.Client, logger *slog.Logger, opts exportOptions) (*transform.Table, error) {
	job := uuid.New().String()

	switch opts.module {
	case "payments":
		svc := services.NewPaymentsService(client, logger)
		return svc.ExportTable(ctx, opts.locale)

	case "series":
		svc := services.NewSeriesService(client, logger)
		reqs, err := parseSeriesCodes(opts.series)
		if err != nil {
			return nil, err
		}
		q := services.SeriesQuery{
			Requests: reqs,
			Start:    opts.start,
			End:      opts.end,
			Freq:     opts.freq,
		}
		return svc.ExportTable(ctx, q, opts.locale)

	case "ifdata":
		svc, err := services.NewIFDataService(client, nil, logger)
		if err != nil {
			return nil, err
		}
		return svc.ExportRows(ctx, opts.fromQuarter, opts.toQuarter, job)

	case "rates":
		svc := services.NewRatesService(client, nil, logger)
		modalities := splitList(opts.modalities)
		if len(modalities) == 0 {
			modalities = svc.Modalities().Daily
		}
		return svc.ExportTable(ctx, modalities, opts.start, opts.end, job)

	case "expectations":
		svc := services.NewExpectationsService(client, nil, logger)
		return svc.ExportTable(ctx, splitList(opts.indicators), opts.locale, job)

	case "delinquency":
		svc := services.NewDelinquencyService(client, nil, logger)
		return svc.ExportTable(ctx, opts.scope, opts.start, opts.end, opts.locale, job)
	}

	return nil, fmt.Errorf("unknown module %q", opts.module)
}

// parseSeriesCodes turns "433,11,1" into series requests.
func parseSeriesCodes(raw string) ([]services.SeriesRequest, error) {
	var out []services.SeriesRequest
	for _, part := range splitList(raw) {
		code, err := strconv.Atoi(part)
		if err != nil || code <= 0 {
			return nil, fmt.Errorf("invalid series code %q", part)
		}
		out = append(out, services.SeriesRequest{Code: code})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no series codes given")
	}
	return out, nil
}

// splitList parses a comma-separated flag, trimming whitespace and
// dropping empty entries.
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

// exportFilename names the output like "rates_20250825_153000.csv".
func exportFilename(module, format string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", module, now.Format("20060102_150405"), format)
}

// writeTable writes the table to path in the requested format.
func writeTable(path, format string, table *transform.Table) error {
	if format == "xlsx" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := exporter.WriteXLSX(f, table, ""); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return exporter.WriteCSVFile(path, table, exporter.BrazilianCSV())
}
