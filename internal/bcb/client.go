package bcb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable marks transport failures: network errors, upstream
	// 5xx after retries, or an open circuit breaker. Services render these
	// as "no data" while health reporting keeps the detail.
	ErrUnavailable = errors.New("bcb: upstream unavailable")

	// ErrRejected marks 4xx responses. The request itself is wrong, so
	// retrying cannot help.
	ErrRejected = errors.New("bcb: request rejected")
)

// Config holds client tuning. The zero value is completed by defaults.
type Config struct {
	SGSBaseURL    string        `yaml:"sgs_base_url" envconfig:"SGS_BASE_URL"`
	OlindaBaseURL string        `yaml:"olinda_base_url" envconfig:"OLINDA_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT"`
	RatePerSecond float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND"`
	Burst         int           `yaml:"burst" envconfig:"BURST"`
	MaxRetries    int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	BreakerTrips  uint32        `yaml:"breaker_trips" envconfig:"BREAKER_TRIPS"`
	BreakerReset  time.Duration `yaml:"breaker_reset" envconfig:"BREAKER_RESET"`
	UserAgent     string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// withDefaults fills the gaps a partial configuration leaves.
func (c Config) withDefaults() Config {
	if c.SGSBaseURL == "" {
		c.SGSBaseURL = "https://api.bcb.gov.br"
	}
	if c.OlindaBaseURL == "" {
		c.OlindaBaseURL = "https://olinda.bcb.gov.br"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.BreakerTrips == 0 {
		c.BreakerTrips = 5
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "bcbradar/1.0"
	}
	return c
}

// Client fetches and decodes BCB open data endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	cache   *responseCache
	logger  *slog.Logger

	// OnRequest, when set, observes every upstream round trip with its
	// outcome ("ok", "rejected", "unavailable"). OnCache observes cache
	// lookups. Both are called from request goroutines.
	OnRequest func(ctx context.Context, host string, outcome string, elapsed time.Duration)
	OnCache   func(ctx context.Context, host string, hit bool)
}

// New creates a Client. The logger must not be nil; use slog.Default() when
// no structured logger is wired yet.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:    "bcb",
		Timeout: cfg.BreakerReset,
	}
	trips := cfg.BreakerTrips
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= trips
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state change",
			slog.String("component", "bcb_client"),
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		cache:   newResponseCache(),
		logger:  logger,
	}
}

// get fetches a URL through the cache, limiter, breaker and retry loop.
// ttl <= 0 disables caching for the call. Concurrent calls for the same URL
// collapse into one upstream request.
func (c *Client) get(ctx context.Context, url string, ttl time.Duration) ([]byte, error) {
	host := hostOf(url)

	if ttl > 0 {
		if body, ok := c.cache.get(url); ok {
			c.observeCache(ctx, host, true)
			return body, nil
		}
		c.observeCache(ctx, host, false)
	}

	body, err, _ := c.group.Do(url, func() (interface{}, error) {
		b, err := c.fetch(ctx, url, host)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			c.cache.set(url, b, ttl)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, url, host string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchWithRetries(ctx, url)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		c.observeRequest(ctx, host, "ok", elapsed)
		return result.([]byte), nil
	case errors.Is(err, ErrRejected):
		c.observeRequest(ctx, host, "rejected", elapsed)
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		c.observeRequest(ctx, host, "unavailable", elapsed)
		c.logger.WarnContext(ctx, "request short-circuited",
			slog.String("component", "bcb_client"),
			slog.String("url", url),
		)
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	default:
		c.observeRequest(ctx, host, "unavailable", elapsed)
		return nil, err
	}
}

// fetchWithRetries retries network failures, 429 and 5xx with a linear
// backoff. 4xx is returned immediately as ErrRejected.
func (c *Client) fetchWithRetries(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt-1)):
			}
		}

		body, retryable, err := c.doOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.WarnContext(ctx, "request attempt failed",
			slog.String("component", "bcb_client"),
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", ErrRejected, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(body, 200))
	}
}

func (c *Client) observeRequest(ctx context.Context, host, outcome string, elapsed time.Duration) {
	if c.OnRequest != nil {
		c.OnRequest(ctx, host, outcome, elapsed)
	}
}

func (c *Client) observeCache(ctx context.Context, host string, hit bool) {
	if c.OnCache != nil {
		c.OnCache(ctx, host, hit)
	}
}

func hostOf(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// responseCache is a TTL cache of raw response bodies keyed by URL. Expired
// entries are dropped lazily on read.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]cacheEntry)}
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	rc.mu.RLock()
	e, ok := rc.entries[key]
	rc.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		rc.mu.Lock()
		if cur, still := rc.entries[key]; still && time.Now().After(cur.expires) {
			delete(rc.entries, key)
		}
		rc.mu.Unlock()
		return nil, false
	}
	return e.body, true
}

func (rc *responseCache) set(key string, body []byte, ttl time.Duration) {
	rc.mu.Lock()
	rc.entries[key] = cacheEntry{body: body, expires: time.Now().Add(ttl)}
	rc.mu.Unlock()
}
