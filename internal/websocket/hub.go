package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"bcbradar/internal/infrastructure"
)

// Message type constants shared with the dashboard client
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeRefresh    = "refresh"
	TypeStatus     = "status"
	TypeError      = "error"
)

// Options tunes hub and client timing. Zero values fall back to the
// package defaults.
type Options struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// HubStats is a point-in-time snapshot of hub counters, served by the
// health endpoint.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and broadcasts fetch-progress
// messages to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger
	opts   Options

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
		opts:       opts.withDefaults(),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportStats()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := client.traceContext()
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.sendHello(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				h.logger.InfoContext(client.traceContext(), "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var sent, dropped int64
			for _, client := range clients {
				select {
				case client.send <- message:
					sent++
				default:
					// Buffer full, the client is not keeping up
					dropped++
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
					h.mu.Unlock()

					h.logger.WarnContext(client.traceContext(), "client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}

			h.mu.Lock()
			h.messagesSent += sent
			h.messagesDropped += dropped
			h.mu.Unlock()
		}
	}
}

// sendHello delivers the connection acknowledgement to a newly registered client.
func (h *Hub) sendHello(ctx context.Context, client *Client) {
	hello := map[string]interface{}{
		"type": TypeConnection,
		"data": map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if client.traceID != "" {
		hello["trace_id"] = client.traceID
	}

	jsonData, err := json.Marshal(hello)
	if err != nil {
		return
	}

	select {
	case client.send <- jsonData:
	default:
		h.logger.WarnContext(ctx, "could not deliver hello, client buffer full",
			slog.String("client_id", client.id))
	}
}

// BroadcastFetchProgress reports progress of a multi-request fetch job,
// such as the delinquency state fan-out or an IF.Data quarter download.
func (h *Hub) BroadcastFetchProgress(ctx context.Context, job, step string, current, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(current) / float64(total) * 100
	}

	h.broadcastJSON(ctx, map[string]interface{}{
		"type": TypeProgress,
		"data": map[string]interface{}{
			"job":        job,
			"step":       step,
			"current":    current,
			"total":      total,
			"percentage": percentage,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// BroadcastRefresh notifies clients that a module's data was refreshed
// from upstream and views should be re-requested.
func (h *Hub) BroadcastRefresh(ctx context.Context, module string, rows int) {
	h.broadcastJSON(ctx, map[string]interface{}{
		"type": TypeRefresh,
		"data": map[string]interface{}{
			"module": module,
			"rows":   rows,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// BroadcastStatus sends a server status update
func (h *Hub) BroadcastStatus(ctx context.Context, status, message string) {
	h.broadcastJSON(ctx, map[string]interface{}{
		"type": TypeStatus,
		"data": map[string]interface{}{
			"status":  status,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// BroadcastError reports a failed fetch job to connected clients
func (h *Hub) BroadcastError(ctx context.Context, job, message string) {
	h.broadcastJSON(ctx, map[string]interface{}{
		"type": TypeError,
		"data": map[string]interface{}{
			"job":     job,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) broadcastJSON(ctx context.Context, message map[string]interface{}) {
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		message["trace_id"] = traceID
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		h.logger.ErrorContext(ctx, "error marshaling message",
			slog.String("error", err.Error()),
			slog.Any("message_type", message["type"]))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns a snapshot of the hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesDropped:  h.messagesDropped,
	}
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// reportStats periodically logs hub counters
func (h *Hub) reportStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Info("websocket hub stats",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent),
				slog.Int64("messages_dropped", stats.MessagesDropped))
		}
	}
}
