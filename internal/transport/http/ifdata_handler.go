package http

import (
	"context"
	"errors"
	"fmt"
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

// Quarter identifiers are YYYYMM integers ending in 03, 06, 09 or 12.
// Zero means "latest published"; the service resolves it by probing.
const (
	minQuarterParam = 200003
	maxQuarterParam = 209912
)

// IFDataService is the service surface consumed by the IF.Data handler.
type IFDataService interface {
	Variables() []services.VariableInfo
	Quarters(ctx context.Context) (*services.QuartersView, error)
	Institutions(ctx context.Context, quarter int) ([]services.Institution, error)
	Analytical(ctx context.Context, quarter int) (*services.AnalyticalTable, error)
	Rankings(ctx context.Context, quarter int, variables []string, n int, loc i18n.Locale) (*services.IFDataRankings, error)
	Profile(ctx context.Context, quarter int, code string, loc i18n.Locale) (*services.InstitutionProfile, error)
	ExportRows(ctx context.Context, startQuarter, endQuarter int, job string) (*transform.Table, error)
}

// IFDataHandler handles the quarterly financials requests
type IFDataHandler struct {
	service      IFDataService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	qv           *custommw.QueryParamValidator
}

// NewIFDataHandler creates a new IF.Data handler
func NewIFDataHandler(service IFDataService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *IFDataHandler {
	return &IFDataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "ifdata_handler")),
		errorHandler: errorHandler,
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the IF.Data routes
func (h *IFDataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/variables", h.Variables)
	r.Get("/quarters", h.Quarters)
	r.Get("/institutions", h.Institutions)
	r.Get("/analytical", h.Analytical)
	r.Get("/rankings", h.Rankings)
	r.Get("/institution/{code}", h.Institution)
	r.Get("/export", h.Export)

	return r
}

// renderQuarterError maps the quarter validation sentinels shared by the
// quarter-scoped endpoints.
func (h *IFDataHandler) renderQuarterError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, services.ErrInvalidMonths):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_QUARTER",
			"Quarters are YYYYMM identifiers ending in 03, 06, 09 or 12",
			err.Error(),
		))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"No institutions published for the requested quarter",
		))
	default:
		return false
	}
	return true
}

// Variables handles GET /api/ifdata/variables
func (h *IFDataHandler) Variables(w http.ResponseWriter, r *http.Request) {
	variables := h.service.Variables()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   variables,
		"count":  len(variables),
	})
}

// Quarters handles GET /api/ifdata/quarters
func (h *IFDataHandler) Quarters(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	view, err := h.service.Quarters(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to resolve quarters",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// Institutions handles GET /api/ifdata/institutions
func (h *IFDataHandler) Institutions(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	quarter, ok := h.qv.ValidateInt(w, r, "quarter", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}

	institutions, err := h.service.Institutions(r.Context(), quarter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list institutions",
			slog.String("error", err.Error()),
			slog.Int("quarter", quarter),
			slog.String("request_id", reqID),
		)
		if !h.renderQuarterError(w, r, err) {
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   institutions,
		"count":  len(institutions),
	})
}

// Analytical handles GET /api/ifdata/analytical
func (h *IFDataHandler) Analytical(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	quarter, ok := h.qv.ValidateInt(w, r, "quarter", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "building analytical table",
		slog.String("request_id", reqID),
		slog.Int("quarter", quarter),
	)

	start := time.Now()
	table, err := h.service.Analytical(r.Context(), quarter)
	recordReportBuild(r, "ifdata", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build analytical table",
			slog.String("error", err.Error()),
			slog.Int("quarter", quarter),
			slog.String("request_id", reqID),
		)
		if !h.renderQuarterError(w, r, err) {
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   table,
	})
}

// Rankings handles GET /api/ifdata/rankings
func (h *IFDataHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	quarter, ok := h.qv.ValidateInt(w, r, "quarter", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}
	n, ok := h.qv.ValidateInt(w, r, "n", 1, 50, 10)
	if !ok {
		return
	}
	variables := splitList(r.URL.Query().Get("variables"))

	rankings, err := h.service.Rankings(r.Context(), quarter, variables, n, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build rankings",
			slog.String("error", err.Error()),
			slog.Int("quarter", quarter),
			slog.String("request_id", reqID),
		)
		switch {
		case errors.Is(err, services.ErrUnknownVariable):
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusNotFound,
				"VARIABLE_NOT_FOUND",
				"Unknown ranking variable",
				err.Error(),
			))
		default:
			if !h.renderQuarterError(w, r, err) {
				h.errorHandler.HandleError(w, r, err)
			}
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rankings,
	})
}

// Institution handles GET /api/ifdata/institution/{code}
func (h *IFDataHandler) Institution(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())
	code := chi.URLParam(r, "code")

	quarter, ok := h.qv.ValidateInt(w, r, "quarter", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), quarter, code, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build institution profile",
			slog.String("error", err.Error()),
			slog.String("code", code),
			slog.String("request_id", reqID),
		)
		switch {
		case errors.Is(err, services.ErrUnknownInstitution):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"INSTITUTION_NOT_FOUND",
				fmt.Sprintf("No institution %q in the requested quarter", code),
			))
		default:
			if !h.renderQuarterError(w, r, err) {
				h.errorHandler.HandleError(w, r, err)
			}
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   profile,
	})
}

// Export handles GET /api/ifdata/export
func (h *IFDataHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	startQ, ok := h.qv.ValidateInt(w, r, "start", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}
	endQ, ok := h.qv.ValidateInt(w, r, "end", minQuarterParam, maxQuarterParam, 0)
	if !ok {
		return
	}
	if startQ == 0 || endQ == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("start", "start and end quarters are required"))
		return
	}

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "exporting raw quarterly values",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
		slog.Int("start", startQ),
		slog.Int("end", endQ),
		slog.String("format", format),
	)

	table, err := h.service.ExportRows(r.Context(), startQ, endQ, job)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export quarterly values",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		switch {
		case errors.Is(err, services.ErrInvalidPeriod):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_PERIOD",
				"The end quarter must not precede the start quarter",
			))
		case errors.Is(err, services.ErrPeriodTooLong):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"PERIOD_TOO_LONG",
				"The requested quarter range exceeds the download limit",
			))
		default:
			if !h.renderQuarterError(w, r, err) {
				h.errorHandler.HandleError(w, r, err)
			}
		}
		return
	}

	w.Header().Set("X-Job-ID", job)
	filename := fmt.Sprintf("ifdata_%d_%d", startQ, endQ)
	if err := serveTable(w, r, table, "ifdata", filename, format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write quarterly download",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
