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

// RatesService is the service surface consumed by the credit rates handler.
type RatesService interface {
	Modalities() services.ModalityCatalog
	Snapshot(ctx context.Context, modality string) (*services.ModalitySnapshot, error)
	Rankings(ctx context.Context, modalities []string, n int, loc i18n.Locale) (*services.RatesRankings, error)
	Banks(ctx context.Context) ([]string, error)
	Positions(ctx context.Context, bank string, loc i18n.Locale) (*services.BankPositions, error)
	Median(ctx context.Context, modality string) (*services.MedianSeries, error)
	ExportTable(ctx context.Context, modalities []string, start, end time.Time, job string) (*transform.Table, error)
}

// RatesHandler handles the credit rates requests
type RatesHandler struct {
	service      RatesService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	qv           *custommw.QueryParamValidator
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(service RatesService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RatesHandler {
	return &RatesHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "rates_handler")),
		errorHandler: errorHandler,
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the rates routes
func (h *RatesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/modalities", h.Modalities)
	r.Get("/snapshot", h.Snapshot)
	r.Get("/rankings", h.Rankings)
	r.Get("/banks", h.Banks)
	r.Get("/positions", h.Positions)
	r.Get("/median", h.Median)
	r.Get("/export", h.Export)

	return r
}

// renderRatesError maps the sentinels shared by the rates endpoints.
func (h *RatesHandler) renderRatesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownModality):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"MODALITY_NOT_FOUND",
			"Unknown credit modality",
			err.Error(),
		))
	case errors.Is(err, services.ErrInvalidInput):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_PARAMETER",
			"Invalid rates query",
			err.Error(),
		))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"No rate data available for the request",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// Modalities handles GET /api/rates/modalities
func (h *RatesHandler) Modalities(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Modalities()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   catalog,
	})
}

// Snapshot handles GET /api/rates/snapshot
func (h *RatesHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	modality, ok := h.qv.ValidateRequiredString(w, r, "modality")
	if !ok {
		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), modality)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build rate snapshot",
			slog.String("error", err.Error()),
			slog.String("modality", modality),
			slog.String("request_id", reqID),
		)
		h.renderRatesError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snapshot,
	})
}

// Rankings handles GET /api/rates/rankings
func (h *RatesHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	n, ok := h.qv.ValidateInt(w, r, "n", 1, 50, 10)
	if !ok {
		return
	}
	modalities := splitList(r.URL.Query().Get("modalities"))

	h.logger.InfoContext(r.Context(), "building rate rankings",
		slog.String("request_id", reqID),
		slog.Int("modalities", len(modalities)),
		slog.Int("n", n),
	)

	start := time.Now()
	rankings, err := h.service.Rankings(r.Context(), modalities, n, requestLocale(r))
	recordReportBuild(r, "rates", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build rate rankings",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderRatesError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rankings,
	})
}

// Banks handles GET /api/rates/banks
func (h *RatesHandler) Banks(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	banks, err := h.service.Banks(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list banks",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.renderRatesError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   banks,
		"count":  len(banks),
	})
}

// Positions handles GET /api/rates/positions
func (h *RatesHandler) Positions(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	bank, ok := h.qv.ValidateRequiredString(w, r, "bank")
	if !ok {
		return
	}

	positions, err := h.service.Positions(r.Context(), bank, requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to collect bank positions",
			slog.String("error", err.Error()),
			slog.String("bank", bank),
			slog.String("request_id", reqID),
		)
		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No rate positions found for this institution",
			))
			return
		}
		h.renderRatesError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   positions,
	})
}

// Median handles GET /api/rates/median
func (h *RatesHandler) Median(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	modality, ok := h.qv.ValidateRequiredString(w, r, "modality")
	if !ok {
		return
	}

	series, err := h.service.Median(r.Context(), modality)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build median series",
			slog.String("error", err.Error()),
			slog.String("modality", modality),
			slog.String("request_id", reqID),
		)
		h.renderRatesError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
	})
}

// Export handles GET /api/rates/export
func (h *RatesHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	raw, ok := h.qv.ValidateRequiredString(w, r, "modalities")
	if !ok {
		return
	}
	modalities := splitList(raw)

	end := time.Now().UTC()
	if v, ok := h.qv.ValidateDate(w, r, "end", end); ok {
		end = v
	} else {
		return
	}
	// Default to the trailing year when no start is given.
	startDate := end.AddDate(-1, 0, 0)
	if v, ok := h.qv.ValidateDate(w, r, "start", startDate); ok {
		startDate = v
	} else {
		return
	}

	job := uuid.New().String()
	h.logger.InfoContext(r.Context(), "exporting rate history",
		slog.String("request_id", reqID),
		slog.String("job_id", job),
		slog.Int("modalities", len(modalities)),
		slog.String("format", format),
	)

	table, err := h.service.ExportTable(r.Context(), modalities, startDate, end, job)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export rate history",
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
		h.renderRatesError(w, r, err)
		return
	}

	w.Header().Set("X-Job-ID", job)
	if err := serveTable(w, r, table, "rates", "taxas_juros", format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write rates download",
			slog.String("error", err.Error()),
			slog.String("job_id", job),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
