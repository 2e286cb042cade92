package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "bcbradar/internal/errors"
	"bcbradar/internal/i18n"
	custommw "bcbradar/internal/middleware"
	"bcbradar/internal/services"
	"bcbradar/internal/transform"
)

// PaymentsService is the service surface consumed by the payments handler.
type PaymentsService interface {
	Overview(ctx context.Context, loc i18n.Locale) (*services.PaymentsOverview, error)
	DailySeries(ctx context.Context) (*services.PaymentsSeries, error)
	Compare(ctx context.Context, a, b services.Period, loc i18n.Locale) (*services.PaymentsComparison, error)
	Statistics(ctx context.Context, loc i18n.Locale) (*services.PaymentsStatistics, error)
	ExportTable(ctx context.Context, loc i18n.Locale) (*transform.Table, error)
}

// PaymentsHandler handles the Pix settlement dashboard requests
type PaymentsHandler struct {
	service      PaymentsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	qv           *custommw.QueryParamValidator
}

// NewPaymentsHandler creates a new payments handler
func NewPaymentsHandler(service PaymentsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PaymentsHandler {
	return &PaymentsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "payments_handler")),
		errorHandler: errorHandler,
		qv:           custommw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the payments routes
func (h *PaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/overview", h.Overview)
	r.Get("/series", h.Series)
	r.Get("/statistics", h.Statistics)
	r.Get("/compare", h.Compare)
	r.Get("/export", h.Export)

	return r
}

// Overview handles GET /api/payments/overview
func (h *PaymentsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "building settlement overview",
		slog.String("request_id", reqID),
	)

	start := time.Now()
	overview, err := h.service.Overview(r.Context(), requestLocale(r))
	recordReportBuild(r, "payments", start, err)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build settlement overview",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No settlement history available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   overview,
	})
}

// Series handles GET /api/payments/series
func (h *PaymentsHandler) Series(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	series, err := h.service.DailySeries(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build settlement series",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No settlement history available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
		"count":  len(series.Dates),
	})
}

// Statistics handles GET /api/payments/statistics
func (h *PaymentsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	stats, err := h.service.Statistics(r.Context(), requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build settlement statistics",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No settlement history available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}

// Compare handles GET /api/payments/compare. Both periods come as ISO date
// pairs: start_a/end_a and start_b/end_b.
func (h *PaymentsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	startA, ok := h.qv.ValidateRequiredDate(w, r, "start_a")
	if !ok {
		return
	}
	endA, ok := h.qv.ValidateRequiredDate(w, r, "end_a")
	if !ok {
		return
	}
	startB, ok := h.qv.ValidateRequiredDate(w, r, "start_b")
	if !ok {
		return
	}
	endB, ok := h.qv.ValidateRequiredDate(w, r, "end_b")
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "comparing settlement periods",
		slog.String("request_id", reqID),
		slog.String("period_a", startA.Format("2006-01-02")+".."+endA.Format("2006-01-02")),
		slog.String("period_b", startB.Format("2006-01-02")+".."+endB.Format("2006-01-02")),
	)

	comparison, err := h.service.Compare(r.Context(),
		services.Period{Start: startA, End: endA},
		services.Period{Start: startB, End: endB},
		requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compare settlement periods",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrInvalidPeriod) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_PERIOD",
				"Comparison periods must end on or after their start date",
			))
			return
		}

		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No settlement data inside one of the comparison periods",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   comparison,
	})
}

// Export handles GET /api/payments/export
func (h *PaymentsHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	format, ok := h.qv.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "exporting settlement history",
		slog.String("request_id", reqID),
		slog.String("format", format),
	)

	table, err := h.service.ExportTable(r.Context(), requestLocale(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export settlement history",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoData) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATA",
				"No settlement history available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := serveTable(w, r, table, "payments", "pix_liquidados", format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write settlement download",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
