package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "bcbradar/internal/errors"
	"bcbradar/internal/i18n"
	custommw "bcbradar/internal/middleware"
	"bcbradar/internal/services"
	"bcbradar/internal/transform"
)

// seriesDefaultWindowYears is the chart lookback when the request carries
// no start date.
const seriesDefaultWindowYears = 10

// SeriesService is the service surface consumed by the series handler.
type SeriesService interface {
	Catalog(loc i18n.Locale) []services.CatalogCategory
	Observations(ctx context.Context, q services.SeriesQuery) (*services.SeriesObservations, error)
	Aligned(ctx context.Context, q services.SeriesQuery) (*services.AlignedSeries, error)
	AxisSplit(ctx context.Context, q services.SeriesQuery, loc i18n.Locale) (*services.AxisDecision, error)
	Correlation(ctx context.Context, q services.SeriesQuery) (*services.CorrelationMatrix, error)
	Statistics(ctx context.Context, q services.SeriesQuery) ([]services.SeriesStatisticRow, error)
	ExportTable(ctx context.Context, q services.SeriesQuery, loc i18n.Locale) (*transform.Table, error)
}

// SeriesHandler handles the SGS series explorer requests
type SeriesHandler struct {
	service      SeriesService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *custommw.ValidationMiddleware
	qv           *custommw.QueryParamValidator
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(service SeriesService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SeriesHandler {
	return &SeriesHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "series_handler")),
		errorHandler: errorHandler,
		validation:   custommw.NewValidationMiddleware(logger, errorHandler),
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the series routes
func (h *SeriesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/catalog", h.Catalog)
	r.Get("/observations", h.Observations)
	r.Get("/aligned", h.Aligned)
	r.Get("/axis-split", h.AxisSplit)
	r.Get("/correlation", h.Correlation)
	r.Get("/statistics", h.Statistics)
	r.Get("/export", h.Export)

	return r
}

// seriesParams is the bound query set shared by the series endpoints.
// Codes is a comma-separated list of SGS series codes; names come from the
// curated catalog so labels stay consistent across views.
type seriesParams struct {
	Codes string `json:"codes" validate:"required,seriescodes"`
	Start string `json:"start" validate:"omitempty,isodate"`
	End   string `json:"end" validate:"omitempty,isodate"`
	Freq  string `json:"freq" validate:"omitempty,oneof=original monthly annual"`
}

// bindQuery parses and validates the shared query parameters into a
// service query. Dates already passed the isodate validator, so reparsing
// cannot fail.
func (h *SeriesHandler) bindQuery(r *http.Request) (services.SeriesQuery, error) {
	p := seriesParams{
		Codes: r.URL.Query().Get("codes"),
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
		Freq:  r.URL.Query().Get("freq"),
	}
	if err := h.validation.ValidateStruct(p); err != nil {
		return services.SeriesQuery{}, err
	}

	end := time.Now().UTC()
	if p.End != "" {
		end, _ = time.Parse("2006-01-02", p.End)
	}
	start := end.AddDate(-seriesDefaultWindowYears, 0, 0)
	if p.Start != "" {
		start, _ = time.Parse("2006-01-02", p.Start)
	}
	freq := p.Freq
	if freq == "" {
		freq = services.FreqOriginal
	}

	names := h.catalogNames()
	var requests []services.SeriesRequest
	for _, part := range splitList(p.Codes) {
		code, _ := strconv.Atoi(part)
		requests = append(requests, services.SeriesRequest{Code: code, Name: names[code]})
	}

	return services.SeriesQuery{
		Requests: requests,
		Start:    start,
		End:      end,
		Freq:     freq,
	}, nil
}

// catalogNames maps curated catalog codes to their display names.
func (h *SeriesHandler) catalogNames() map[int]string {
	out := make(map[int]string)
	for _, cat := range h.service.Catalog(i18n.PT) {
		for _, entry := range cat.Entries {
			out[entry.Code] = entry.Name
		}
	}
	return out
}

// renderQueryError maps the validation and availability sentinels shared by
// every series endpoint.
func (h *SeriesHandler) renderQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_PARAMETER",
			"Invalid series query",
			err.Error(),
		))
	case errors.Is(err, services.ErrInvalidPeriod):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"INVALID_PERIOD",
			"The period must end on or after its start date",
		))
	case errors.Is(err, services.ErrUnknownSeries):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"SERIES_NOT_FOUND",
			"Unknown SGS series code",
			err.Error(),
		))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"No observations inside the requested window",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// Catalog handles GET /api/series/catalog
func (h *SeriesHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	categories := h.service.Catalog(requestLocale(r))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   categories,
		"count":  len(categories),
	})
}

// Observations handles GET /api/series/observations
func (h *SeriesHandler) Observations(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching series observations",
		slog.String("request_id", reqID),
		slog.Int("series", len(q.Requests)),
		slog.String("freq", q.Freq),
	)

	start := time.Now()
	observations, err := h.service.Observations(r.Context(), q)
	recordReportBuild(r, "series", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to fetch series observations",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   observations,
	})
}

// Aligned handles GET /api/series/aligned
func (h *SeriesHandler) Aligned(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	aligned, err := h.service.Aligned(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to align series",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   aligned,
	})
}

// AxisSplit handles GET /api/series/axis-split
func (h *SeriesHandler) AxisSplit(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	decision, err := h.service.AxisSplit(r.Context(), q, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to partition series axes",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   decision,
	})
}

// Correlation handles GET /api/series/correlation
func (h *SeriesHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	matrix, err := h.service.Correlation(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to correlate series",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   matrix,
	})
}

// Statistics handles GET /api/series/statistics
func (h *SeriesHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rows, err := h.service.Statistics(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build series statistics",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
	})
}

// Export handles GET /api/series/export
func (h *SeriesHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	q, err := h.bindQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "exporting series observations",
		slog.String("request_id", reqID),
		slog.Int("series", len(q.Requests)),
		slog.String("format", format),
	)

	table, err := h.service.ExportTable(r.Context(), q, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export series",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderQueryError(w, r, err)
		return
	}

	if err := serveTable(w, r, table, "series", "series_sgs", format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write series download",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
