package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
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

var (
	delinquencyModes  = []string{services.ModePF, services.ModePJ, services.ModeTotal}
	delinquencyScopes = []string{services.ScopeRegions, services.ScopeStates}
)

// DelinquencyService is the service surface consumed by the regional
// delinquency handler.
type DelinquencyService interface {
	Locations(loc i18n.Locale) *services.LocationCatalog
	Map(ctx context.Context, loc i18n.Locale, job string) (*services.DelinquencyMap, error)
	RegionSeries(ctx context.Context, mode string, loc i18n.Locale) (*services.RegionSeriesChart, error)
	StateDetail(ctx context.Context, uf string, loc i18n.Locale) (*services.StateDetail, error)
	ExportTable(ctx context.Context, scope string, start, end time.Time, loc i18n.Locale, job string) (*transform.Table, error)
}

// DelinquencyHandler handles the regional loan delinquency requests
type DelinquencyHandler struct {
	service      DelinquencyService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	qv           *custommw.QueryParamValidator
}

// NewDelinquencyHandler creates a new delinquency handler
func NewDelinquencyHandler(service DelinquencyService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DelinquencyHandler {
	return &DelinquencyHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "delinquency_handler")),
		errorHandler: errorHandler,
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the delinquency routes
func (h *DelinquencyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/locations", h.Locations)
	r.Get("/map", h.Map)
	r.Get("/series", h.Series)
	r.Get("/state/{uf}", h.State)
	r.Get("/export", h.Export)

	return r
}

// renderDelinquencyError maps the sentinels shared by the delinquency
// endpoints.
func (h *DelinquencyHandler) renderDelinquencyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownLocation):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"LOCATION_NOT_FOUND",
			"Unknown region or state",
			err.Error(),
		))
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidScope):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_PARAMETER",
			"Invalid delinquency query",
			err.Error(),
		))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"No delinquency observations available for the request",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// Locations handles GET /api/delinquency/locations
func (h *DelinquencyHandler) Locations(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Locations(requestLocale(r))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   catalog,
	})
}

// Map handles GET /api/delinquency/map
func (h *DelinquencyHandler) Map(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "building delinquency map",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
	)

	start := time.Now()
	view, err := h.service.Map(r.Context(), requestLocale(r), job)
	recordReportBuild(r, "delinquency", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build delinquency map",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		h.renderDelinquencyError(w, r, err)
		return
	}

	w.Header().Set("X-Job-ID", job)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// Series handles GET /api/delinquency/series
func (h *DelinquencyHandler) Series(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	mode, ok := h.qv.ValidateEnum(w, r, "mode", delinquencyModes, services.ModeTotal)
	if !ok {
		return
	}

	chart, err := h.service.RegionSeries(r.Context(), mode, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build region series",
			slog.String("error", err.Error()),
			slog.String("mode", mode),
			slog.String("request_id", reqID),
		)
		h.renderDelinquencyError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   chart,
	})
}

// State handles GET /api/delinquency/state/{uf}
func (h *DelinquencyHandler) State(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())
	uf := strings.ToUpper(chi.URLParam(r, "uf"))

	detail, err := h.service.StateDetail(r.Context(), uf, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build state detail",
			slog.String("error", err.Error()),
			slog.String("uf", uf),
			slog.String("request_id", reqID),
		)
		h.renderDelinquencyError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   detail,
	})
}

// Export handles GET /api/delinquency/export
func (h *DelinquencyHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	scope, ok := h.qv.ValidateEnum(w, r, "scope", delinquencyScopes, services.ScopeRegions)
	if !ok {
		return
	}

	end := time.Now().UTC()
	if v, ok := h.qv.ValidateDate(w, r, "end", end); ok {
		end = v
	} else {
		return
	}
	// Default to the four-year chart window when no start is given.
	startDate := end.AddDate(-4, 0, 0)
	if v, ok := h.qv.ValidateDate(w, r, "start", startDate); ok {
		startDate = v
	} else {
		return
	}

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "exporting delinquency history",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
		slog.String("scope", scope),
		slog.String("format", format),
	)

	table, err := h.service.ExportTable(r.Context(), scope, startDate, end, requestLocale(r), job)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export delinquency history",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		if errors.Is(err, services.ErrInvalidPeriod) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_PERIOD",
				"The period must end on or after its start date",
			))
			return
		}
		h.renderDelinquencyError(w, r, err)
		return
	}

	w.Header().Set("X-Job-ID", job)
	filename := fmt.Sprintf("inadimplencia_%s", scope)
	if err := serveTable(w, r, table, "delinquency", filename, format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write delinquency download",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
