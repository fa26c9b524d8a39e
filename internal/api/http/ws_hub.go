package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"launcherd/internal/metrics"
)

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type wsClient struct {
	hub    *wsHub
	conn   *websocket.Conn
	send   chan []byte
	locale language.Tag

	// initial renders the first frame; it runs on the hub goroutine after
	// the client is registered, so later broadcasts always follow it.
	initial func(language.Tag) interface{}
}

// wsBroadcast renders one message per client locale.
type wsBroadcast struct {
	msgType string
	render  func(language.Tag) interface{}
}

type wsHub struct {
	clients    map[*wsClient]bool
	count      atomic.Int64
	broadcast  chan wsBroadcast
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	logger     *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan wsBroadcast, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				if client.conn != nil {
					_ = client.conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(2*time.Second),
					)
				}
				h.remove(client)
			}
			h.logger.Debug("ws hub stopped, all clients disconnected")
			return
		case client := <-h.register:
			h.clients[client] = true
			h.updateCount()
			h.greet(client)
			h.logger.Debug("ws client connected", slog.Int("total", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Debug("ws client disconnected", slog.Int("total", len(h.clients)))
			}
		case b := <-h.broadcast:
			h.fanOut(b)
		}
	}
}

func (h *wsHub) fanOut(b wsBroadcast) {
	rendered := make(map[language.Tag][]byte)
	for client := range h.clients {
		payload, ok := rendered[client.locale]
		if !ok {
			var err error
			payload, err = encodeWSMessage(b.msgType, b.render(client.locale))
			if err != nil {
				h.logger.Error("ws marshal failed", slog.String("error", err.Error()))
				return
			}
			rendered[client.locale] = payload
		}
		select {
		case client.send <- payload:
		default:
			// Slow client; it reconnects and receives a fresh snapshot.
			h.remove(client)
		}
	}
	metrics.BroadcastsTotal.Inc()
}

func (h *wsHub) greet(client *wsClient) {
	if client.initial == nil {
		return
	}
	payload, err := encodeWSMessage("session", client.initial(client.locale))
	if err != nil {
		h.logger.Error("ws marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- payload:
	default:
		h.remove(client)
	}
}

func (h *wsHub) remove(client *wsClient) {
	close(client.send)
	delete(h.clients, client)
	h.updateCount()
}

func (h *wsHub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WSClients.Set(float64(len(h.clients)))
}

// Close signals the hub to stop and disconnect all clients.
func (h *wsHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *wsHub) clientCount() int {
	return int(h.count.Load())
}

// Broadcast queues a typed message; render is called once per distinct
// client locale. Dropped when the queue is full.
func (h *wsHub) Broadcast(msgType string, render func(language.Tag) interface{}) {
	if h.clientCount() == 0 {
		return
	}
	select {
	case h.broadcast <- wsBroadcast{msgType: msgType, render: render}:
	default:
		h.logger.Debug("ws broadcast queue full, dropping", slog.String("type", msgType))
	}
}

func encodeWSMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(wsMessage{Type: msgType, Data: data})
}

// newWSUpgrader applies the CORS whitelist to the handshake. Requests
// without an Origin header come from non-browser clients and are admitted.
func newWSUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := originSet(allowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originPermitted(allowed, origin)
		},
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; clients never send commands here.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
