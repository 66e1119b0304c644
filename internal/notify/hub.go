// Package notify pushes trade receipts and graduation events to websocket
// subscribers. Push is best-effort: a slow or dead client is dropped, and
// nothing here can fail a trade or a graduation.
package notify

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/observability"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second

	// sendBuffer absorbs bursts; a client that falls this far behind is
	// disconnected rather than allowed to stall the broadcast.
	sendBuffer = 64
)

// Event is the envelope pushed to subscribers.
type Event struct {
	Type    string      `json:"type"` // "trade" | "graduation"
	AgentID string      `json:"agentId"`
	Data    interface{} `json:"data"`
}

// Hub fans events out to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with no connected clients.
func NewHub(metrics *observability.Metrics, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics: metrics,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}

	go h.writePump(c)
	h.readPump(c)
}

type tradePayload struct {
	TradeID     string  `json:"tradeId"`
	HolderID    string  `json:"holderId"`
	Side        string  `json:"side"`
	GrossAmount float64 `json:"grossAmount"`
	NetAmount   float64 `json:"netAmount"`
	TokensDelta float64 `json:"tokensDelta"`
	Fee         float64 `json:"fee"`
	PriceAfter  float64 `json:"priceAfter"`
	ExecutedAt  int64   `json:"executedAt"`
}

type graduationPayload struct {
	EventID        string  `json:"eventId"`
	Status         string  `json:"status"`
	ReserveAtEvent float64 `json:"reserveAtEvent"`
	HolderCount    int     `json:"holderCount"`
}

// TradeExecuted implements the execution engine's sink.
func (h *Hub) TradeExecuted(t *domain.TradeRecord) {
	h.broadcast(Event{Type: "trade", AgentID: t.AgentID, Data: tradePayload{
		TradeID:     t.TradeID,
		HolderID:    t.HolderID,
		Side:        t.Side,
		GrossAmount: t.GrossAmount,
		NetAmount:   t.NetAmount,
		TokensDelta: t.TokensDelta,
		Fee:         t.Fee,
		PriceAfter:  t.PriceAfter,
		ExecutedAt:  t.ExecutedAt,
	}})
}

// GraduationCompleted pushes a finished graduation to subscribers.
func (h *Hub) GraduationCompleted(e *domain.GraduationEvent) {
	h.broadcast(Event{Type: "graduation", AgentID: e.AgentID, Data: graduationPayload{
		EventID:        e.EventID,
		Status:         e.Status,
		ReserveAtEvent: e.ReserveAtEvent,
		HolderCount:    len(e.HolderSnapshot),
	}})
}

// Close disconnects every client. The hub accepts no connections afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClients.Set(0)
	}
}

func (h *Hub) broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Client too slow, cut it loose.
			close(c.send)
			delete(h.clients, c)
		}
	}
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
}

// readPump discards inbound messages and detects disconnects. Subscribers
// are read-only; the read loop exists for close/pong handling.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
