// Package notify pushes feed events to connected clients over websockets.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub tracks websocket subscribers and broadcasts events to them. A
// subscriber whose send buffer is full is disconnected rather than allowed
// to stall the broadcast.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	gauge    prometheus.Gauge

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewHub creates a hub. gauge, if non-nil, tracks the subscriber count.
func NewHub(logger *slog.Logger, gauge prometheus.Gauge) *Hub {
	return &Hub{
		// A nil CheckOrigin accepts requests without an Origin header and
		// rejects cross-origin browser requests.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		gauge:  gauge,
		conns:  make(map[*conn]struct{}),
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish implements domain.Notifier.
func (h *Hub) Publish(_ context.Context, event domain.Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped int
	for c := range h.conns {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
			dropped++
		}
	}

	h.logger.Debug("event published", "type", event.Type, "subscribers", len(h.conns), "dropped", dropped)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.updateGaugeLocked()
	h.mu.Unlock()

	h.logger.Info("event subscriber connected", "remote_addr", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		h.removeLocked(c)
	}
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *conn) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
	}()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeLocked unregisters c. The caller holds h.mu.
func (h *Hub) removeLocked(c *conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	close(c.send)
	h.updateGaugeLocked()
}

func (h *Hub) updateGaugeLocked() {
	if h.gauge != nil {
		h.gauge.Set(float64(len(h.conns)))
	}
}
