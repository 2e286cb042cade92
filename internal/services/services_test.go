package services

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bcbradar/internal/bcb"
)

// testClient wires a client to a fixture server for both API families.
func testClient(t *testing.T, srv *httptest.Server) *bcb.Client {
	t.Helper()
	return bcb.New(bcb.Config{
		SGSBaseURL:    srv.URL,
		OlindaBaseURL: srv.URL,
		Timeout:       2 * time.Second,
		RatePerSecond: 1000,
		Burst:         1000,
		MaxRetries:    1,
		RetryBackoff:  time.Millisecond,
		BreakerTrips:  1000,
		BreakerReset:  time.Second,
	}, testLogger(t))
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// progressRecorder captures sink notifications for assertions.
type progressRecorder struct {
	mu        sync.Mutex
	jobs      []string
	steps     []string
	refreshes map[string]int
	errors    []string
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{refreshes: make(map[string]int)}
}

func (r *progressRecorder) BroadcastFetchProgress(ctx context.Context, job, step string, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	r.steps = append(r.steps, step)
}

func (r *progressRecorder) BroadcastRefresh(ctx context.Context, module string, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes[module] = rows
}

func (r *progressRecorder) BroadcastError(ctx context.Context, job, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *progressRecorder) stepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

func (r *progressRecorder) refreshRows(module string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshes[module]
}
