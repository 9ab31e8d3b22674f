package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"iqfeed_go/internal/domain"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second
)

const sendBuffer = 256

// ErrHubStopped is returned by Handle after Stop.
var ErrHubStopped = errors.New("relay hub stopped")

// Client is one websocket subscriber.
// An empty symbol filter means every message; timestamps and server messages always pass.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu      sync.RWMutex
	symbols map[string]bool
}

// Hub fans decoded feed messages out to websocket clients as JSON envelopes.
// It implements domain.MessageHandler and is driven by the dispatcher goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	stopped bool

	dropped atomic.Uint64
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) Name() string { return "relay" }

// Handle broadcasts msg to every interested client. Slow clients are disconnected, not waited on.
func (h *Hub) Handle(_ context.Context, msg domain.Message) error {
	data, err := json.Marshal(domain.NewEnvelope(msg))
	if err != nil {
		return err
	}

	symbol := ""
	if t, ok := msg.(*domain.Trade); ok {
		symbol = t.Symbol
	}

	h.mu.RLock()
	if h.stopped {
		h.mu.RUnlock()
		return ErrHubStopped
	}
	var slow []*Client
	for c := range h.clients {
		if !c.wants(symbol) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.dropped.Add(1)
		slog.Warn("Relay client too slow, disconnecting", slog.String("client", c.ID))
		h.unregister(c)
	}
	return nil
}

// ServeHTTP upgrades the request and registers the client.
// The optional "symbols" query parameter is a comma-separated filter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Relay upgrade failed", slog.Any("error", err))
		return
	}

	c := &Client{
		ID:      r.RemoteAddr,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		hub:     h,
		symbols: parseSymbols(r.URL.Query().Get("symbols")),
	}
	if !h.register(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay stopping"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = true
	slog.Info("Relay client connected", slog.String("client", c.ID), slog.Int("total", len(h.clients)))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("Relay client disconnected", slog.String("client", c.ID), slog.Int("total", len(h.clients)))
	}
}

// Stop disconnects every client. Later Handle calls fail with ErrHubStopped.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many clients were disconnected for falling behind.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func parseSymbols(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			set[s] = true
		}
	}
	return set
}

func (c *Client) wants(symbol string) bool {
	if symbol == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// clientRequest is the only inbound message: {"type":"subscribe","symbols":["GME"]}.
type clientRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Relay client read error", slog.String("client", c.ID), slog.Any("error", err))
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Type != "subscribe" {
			continue
		}
		c.mu.Lock()
		c.symbols = parseSymbols(strings.Join(req.Symbols, ","))
		c.mu.Unlock()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
