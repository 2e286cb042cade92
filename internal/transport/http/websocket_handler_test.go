package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"

	ws "bcbradar/internal/websocket"
)

func TestOriginChecker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"http://localhost:3000"}, origin: "", want: true},
		{name: "listed origin", allowed: []string{"http://localhost:3000"}, origin: "http://localhost:3000", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://anywhere.test", want: true},
		{name: "unlisted origin", allowed: []string{"http://localhost:3000"}, origin: "http://evil.test", want: false},
		{name: "empty allow list", allowed: nil, origin: "http://localhost:3000", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := originChecker(tt.allowed, logger)
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}
}

func TestWebSocketHandler_UpgradeRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	hub := ws.NewHub(logger, ws.Options{})
	hub.Start()
	defer hub.Stop()

	handler := NewWebSocketHandler(hub, WebSocketOptions{AllowedOrigins: []string{"*"}}, logger)

	// Plain GET without the upgrade headers
	req := httptest.NewRequest("GET", "/ws", nil)
	rec := httptest.NewRecorder()

	handler.HandleConnection(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestWebSocketHandler_Connect(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	hub := ws.NewHub(logger, ws.Options{})
	hub.Start()
	defer hub.Stop()

	handler := NewWebSocketHandler(hub, WebSocketOptions{AllowedOrigins: []string{"*"}}, logger)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// The hub greets every new client with a connection event
	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connection", hello["type"])
}
