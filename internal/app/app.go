package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"bcbradar/internal/bcb"
	"bcbradar/internal/config"
	apierrors "bcbradar/internal/errors"
	"bcbradar/internal/infrastructure"
	custommw "bcbradar/internal/middleware"
	"bcbradar/internal/services"
	handlers "bcbradar/internal/transport/http"
	ws "bcbradar/internal/websocket"
)

const (
	VERSION = "1.0.0"
	AppName = "BCB Radar - Brazilian Central Bank Open Data Dashboard"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	BCBClient     *bcb.Client
	WebSocketHub  *ws.Hub
	Logger        *slog.Logger
	Metrics       *infrastructure.BusinessMetrics
	OTelProviders *infrastructure.OTelProviders
	Services      *ServiceContainer

	sysCollector *infrastructure.SystemMetricsCollector
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Payments     *services.PaymentsService
	Series       *services.SeriesService
	IFData       *services.IFDataService
	Rates        *services.RatesService
	Expectations *services.ExpectationsService
	Delinquency  *services.DelinquencyService
	Health       *services.HealthService
	WebSocket    *ws.Hub
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	// Upstream client shared by every dashboard service. The metric
	// hooks feed the OTel counters alongside the client's own logging.
	client := bcb.New(a.Config.BCB, a.Logger)
	client.OnRequest = a.Metrics.RecordUpstreamRequest
	client.OnCache = a.Metrics.RecordCacheLookup
	a.BCBClient = client

	hub := ws.NewHub(a.Logger, ws.Options{
		PingPeriod: a.Config.WebSocket.PingPeriod,
		PongWait:   a.Config.WebSocket.PongWait,
	})
	hub.Start()
	a.WebSocketHub = hub

	ifdataService, err := services.NewIFDataService(client, hub, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ifdata service: %w", err)
	}

	healthService := services.NewHealthServiceWithBuildInfo(
		client,
		hub,
		VERSION,
		BuildTime,
		BuildID,
		a.Logger,
	)

	a.Services = &ServiceContainer{
		Payments:     services.NewPaymentsService(client, a.Logger),
		Series:       services.NewSeriesService(client, a.Logger),
		IFData:       ifdataService,
		Rates:        services.NewRatesService(client, hub, a.Logger),
		Expectations: services.NewExpectationsService(client, hub, a.Logger),
		Delinquency:  services.NewDelinquencyService(client, hub, a.Logger),
		Health:       healthService,
		WebSocket:    hub,
	}

	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to create system metrics collector: %w", err)
	}
	a.sysCollector = collector

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the WebSocket
	// upgrade. These are safe because they don't wrap the ResponseWriter.
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	// WebSocket route with minimal middleware and tracing. Must be
	// registered before the group so the upgrade skips the wrappers.
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, handlers.WebSocketOptions{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
	}, a.Logger)
	r.With(custommw.WebSocketTraceMiddleware(a.Logger)).Get(config.WebSocketEndpoint, wsHandler.HandleConnection)

	// Everything else gets the full chain:
	// RequestID, RealIP, OTel, Logger, Recoverer, Timeout
	r.Group(func(r chi.Router) {
		otelMiddleware, err := custommw.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(custommw.BusinessMetricsMiddleware(a.Metrics))
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(a.corsConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus metrics endpoint outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Report builds fan out over several upstream requests, so the
		// API timeout is looser than the server read timeout.
		r.Use(custommw.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount(config.HealthRoute, healthHandler.Routes())
		r.Get(config.VersionRoute, healthHandler.Version)

		paymentsHandler := handlers.NewPaymentsHandler(a.Services.Payments, a.Logger, errorHandler)
		r.Mount(config.PaymentsRoute, paymentsHandler.Routes())

		seriesHandler := handlers.NewSeriesHandler(a.Services.Series, a.Logger, errorHandler)
		r.Mount(config.SeriesRoute, seriesHandler.Routes())

		ifdataHandler := handlers.NewIFDataHandler(a.Services.IFData, a.Logger, errorHandler)
		r.Mount(config.IFDataRoute, ifdataHandler.Routes())

		ratesHandler := handlers.NewRatesHandler(a.Services.Rates, a.Logger, errorHandler)
		r.Mount(config.RatesRoute, ratesHandler.Routes())

		expectationsHandler := handlers.NewExpectationsHandler(a.Services.Expectations, a.Logger, errorHandler)
		r.Mount(config.ExpectationsRoute, expectationsHandler.Routes())

		delinquencyHandler := handlers.NewDelinquencyHandler(a.Services.Delinquency, a.Logger, errorHandler)
		r.Mount(config.DelinquencyRoute, delinquencyHandler.Routes())
	})
}

// corsConfig builds the CORS policy from the security configuration.
func (a *Application) corsConfig() custommw.CORSConfig {
	return custommw.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.sysCollector.Start(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.String("sgs_base_url", a.Config.BCB.SGSBaseURL),
		slog.String("olinda_base_url", a.Config.BCB.OlindaBaseURL))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.sysCollector.Stop()
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped, shutting down")
	}

	return a.Stop(context.Background())
}
