package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apierrors "bcbradar/internal/errors"
	"bcbradar/internal/i18n"
	custommw "bcbradar/internal/middleware"
	"bcbradar/internal/services"
	"bcbradar/internal/transform"
)

// ExpectationsService is the service surface consumed by the Focus
// expectations handler.
type ExpectationsService interface {
	Indicators() []services.ExpectationIndicator
	Latest(ctx context.Context, indicators []string, job string) (*services.ExpectationsReport, error)
	ExportTable(ctx context.Context, indicators []string, loc i18n.Locale, job string) (*transform.Table, error)
}

// ExpectationsHandler handles the Focus market expectations requests
type ExpectationsHandler struct {
	service      ExpectationsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	qv           *custommw.QueryParamValidator
}

// NewExpectationsHandler creates a new expectations handler
func NewExpectationsHandler(service ExpectationsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExpectationsHandler {
	return &ExpectationsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "expectations_handler")),
		errorHandler: errorHandler,
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the expectations routes
func (h *ExpectationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/indicators", h.Indicators)
	r.Get("/latest", h.Latest)
	r.Get("/export", h.Export)

	return r
}

// renderExpectationsError maps the sentinels shared by the expectations
// endpoints.
func (h *ExpectationsHandler) renderExpectationsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownIndicator):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"INDICATOR_NOT_FOUND",
			"Unknown Focus indicator",
			err.Error(),
		))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"No expectation rows available for the request",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// Indicators handles GET /api/expectations/indicators
func (h *ExpectationsHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	indicators := h.service.Indicators()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   indicators,
		"count":  len(indicators),
	})
}

// Latest handles GET /api/expectations/latest
func (h *ExpectationsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())
	indicators := splitList(r.URL.Query().Get("indicators"))

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "fetching latest expectations",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
		slog.Int("indicators", len(indicators)),
	)

	start := time.Now()
	report, err := h.service.Latest(r.Context(), indicators, job)
	recordReportBuild(r, "expectations", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to fetch expectations",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		h.renderExpectationsError(w, r, err)
		return
	}

	w.Header().Set("X-Job-ID", job)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}

// Export handles GET /api/expectations/export
func (h *ExpectationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	indicators := splitList(r.URL.Query().Get("indicators"))

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "exporting expectations",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
		slog.Int("indicators", len(indicators)),
		slog.String("format", format),
	)

	table, err := h.service.ExportTable(r.Context(), indicators, requestLocale(r), job)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export expectations",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		h.renderExpectationsError(w, r, err)
		return
	}

	w.Header().Set("X-Job-ID", job)
	if err := serveTable(w, r, table, "expectations", "expectativas_focus", format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write expectations download",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
