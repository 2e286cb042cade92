package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	custommw "bcbradar/internal/middleware"
	ws "bcbradar/internal/websocket"
)

// WebSocketOptions configures the connection upgrade.
type WebSocketOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
}

// WebSocketHandler upgrades dashboard clients onto the progress hub
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(hub *ws.Hub, opts WebSocketOptions, logger *slog.Logger) *WebSocketHandler {
	l := logger.With(slog.String("component", "websocket_handler"))
	return &WebSocketHandler{
		hub:    hub,
		logger: l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins, l),
		},
	}
}

// originChecker validates the Origin header against the configured list.
// Requests without an origin (same-origin or non-browser clients) pass.
func originChecker(allowed []string, logger *slog.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		logger.Warn("websocket origin rejected",
			slog.String("origin", origin),
			slog.String("host", r.Host))
		return false
	}
}

// HandleConnection handles GET /ws. The upgrader writes its own error
// response on failure, so a failed upgrade is only logged here.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("request_id", reqID),
		)
		return
	}

	client := ws.NewClientWithTrace(h.hub, conn, reqID, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID),
	)

	go client.WritePump()
	go client.ReadPump()
}
