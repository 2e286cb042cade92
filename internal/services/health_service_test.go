package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "bcbradar/internal/websocket"
)

// TestHealthCheck tests the basic health response
func TestHealthCheck(t *testing.T) {
	svc := NewHealthService(nil, nil, "1.2.3", testLogger(t))

	status := svc.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

// TestLivenessCheck tests the liveness response
func TestLivenessCheck(t *testing.T) {
	svc := NewHealthService(nil, nil, "1.2.3", testLogger(t))

	status := svc.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	require.NotNil(t, status.Runtime)
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

// TestReadinessCheck tests readiness against the upstream probe
func TestReadinessCheck(t *testing.T) {
	hub := ws.NewHub(testLogger(t), ws.Options{})

	t.Run("ready when upstream answers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/dados/serie/bcdata.sgs.11/dados/ultimos/1", r.URL.Path)
			w.Write([]byte(`[{"data": "22/08/2025", "valor": "15.00"}]`))
		}))
		defer srv.Close()

		svc := NewHealthService(testClient(t, srv), hub, "1.2.3", testLogger(t))
		status := svc.ReadinessCheck(context.Background())
		assert.Equal(t, "ready", status.Status)

		upstream, ok := status.Services["upstream"].(ServiceHealth)
		require.True(t, ok)
		assert.Equal(t, "ready", upstream.Status)
	})

	t.Run("not ready when upstream is down", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		svc := NewHealthService(testClient(t, srv), hub, "1.2.3", testLogger(t))
		status := svc.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)

		upstream, ok := status.Services["upstream"].(ServiceHealth)
		require.True(t, ok)
		assert.Equal(t, "not_ready", upstream.Status)
		assert.Contains(t, upstream.Message, "unavailable")
	})

	t.Run("not ready without a client", func(t *testing.T) {
		svc := NewHealthService(nil, hub, "1.2.3", testLogger(t))
		status := svc.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)
	})
}

// TestVersionInfo tests the version payload
func TestVersionInfo(t *testing.T) {
	svc := NewHealthServiceWithBuildInfo(nil, nil, "2.0.0", "2025-08-20T10:00:00Z", "abc123", testLogger(t))

	info := svc.Version()
	assert.Equal(t, "2.0.0", info["version"])
	assert.Equal(t, "2025-08-20T10:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["build_id"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "start_time")

	bare := NewHealthService(nil, nil, "2.0.0", testLogger(t)).Version()
	assert.NotContains(t, bare, "build_time")
	assert.NotContains(t, bare, "build_id")
}

// TestSystemStats tests the runtime statistics
func TestSystemStats(t *testing.T) {
	hub := ws.NewHub(testLogger(t), ws.Options{})
	svc := NewHealthService(nil, hub, "1.2.3", testLogger(t))

	stats := svc.Stats(context.Background())
	assert.Greater(t, stats.Goroutines, 0)
	assert.Greater(t, stats.MemoryAllocBytes, uint64(0))
	assert.Equal(t, 0, stats.WebSocketClients)
	assert.NotEmpty(t, stats.GoVersion)
}

// TestGetDetailedHealth tests the combined payload
func TestGetDetailedHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"data": "22/08/2025", "valor": "15.00"}]`))
	}))
	defer srv.Close()

	hub := ws.NewHub(testLogger(t), ws.Options{})
	svc := NewHealthService(testClient(t, srv), hub, "1.2.3", testLogger(t))

	detail := svc.GetDetailedHealth(context.Background())
	assert.Contains(t, detail, "health")
	assert.Contains(t, detail, "readiness")
	assert.Contains(t, detail, "liveness")
	assert.Contains(t, detail, "stats")
}
