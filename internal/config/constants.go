package config

import "time"

// Route paths. The router in internal/app mounts from these so the paths
// the server answers on and the paths tests probe stay one definition.
const (
	APIBasePath       = "/api"
	HealthRoute       = "/health"
	VersionRoute      = "/version"
	PaymentsRoute     = "/payments"
	SeriesRoute       = "/series"
	IFDataRoute       = "/ifdata"
	RatesRoute        = "/rates"
	ExpectationsRoute = "/expectations"
	DelinquencyRoute  = "/delinquency"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// Defaults applied by Default before the file and env layers overlay it.
const (
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Inbound rate limiting, requests per second and burst.
	DefaultRateLimitRPS   = 100
	DefaultRateLimitBurst = 50

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
