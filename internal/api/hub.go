package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/observability"
)

const (
	// streamWriteWait bounds a single frame write; a peer that cannot
	// take a frame within it is dead.
	streamWriteWait = 10 * time.Second

	// streamPongWait is how long a connection may stay silent before it
	// is dropped. Pings go out well inside the window so a healthy peer
	// always answers in time.
	streamPongWait  = 60 * time.Second
	streamPingEvery = 30 * time.Second

	// streamSendBuffer absorbs publish bursts per client. A consumer
	// that falls this far behind is disconnected; reconnecting and
	// re-listing over HTTP is its recovery path.
	streamSendBuffer = 64

	// The feed is one way; inbound frames only carry websocket control
	// traffic, so anything longer is a misbehaving client.
	streamReadLimit = 512
)

// streamFrame is the wire envelope of the live feed: "connected" for
// the handshake acknowledgement, "signal" for published signals.
type streamFrame struct {
	Type   string      `json:"type"`
	Signal *signalView `json:"signal,omitempty"`
}

// Hub fans created and refreshed signals out to websocket subscribers.
// It implements signals.Publisher; deduplicated emissions never reach
// it because subscribers already saw the live row.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}

	closed atomic.Bool
	done   chan struct{}
}

// NewHub creates a hub. allowedOrigins bounds browser connections;
// empty allows any origin. Non-browser clients send no Origin header
// and are always accepted.
func NewHub(allowedOrigins []string, logger zerolog.Logger) *Hub {
	h := &Hub{
		logger:  logger.With().Str("component", "stream").Logger(),
		clients: make(map[*streamClient]struct{}),
		done:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker builds the upgrade-time origin gate. CORS middleware
// does not cover websocket handshakes, so the check happens here.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades the request and registers the connection with the
// hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the handshake failure.
		h.logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade rejected")
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan []byte, streamSendBuffer),
	}
	hello, _ := json.Marshal(streamFrame{Type: "connected"})
	c.send <- hello

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetStreamClients(n)

	h.logger.Debug().Str("remote", r.RemoteAddr).Int("clients", n).Msg("stream client connected")

	go c.writePump(h)
	go c.readPump(h)
}

// Publish sends the signal to every connected subscriber.
func (h *Hub) Publish(sig *domain.Signal) {
	if sig == nil || h.closed.Load() {
		return
	}

	view := newSignalView(sig)
	frame, err := json.Marshal(streamFrame{Type: "signal", Signal: &view})
	if err != nil {
		h.logger.Error().Err(err).Str("fingerprint", sig.Fingerprint).Msg("marshal stream frame")
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Buffer full: the consumer cannot keep up. Drop it rather
			// than stall everyone else; it re-lists on reconnect.
			delete(h.clients, c)
			close(c.send)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	observability.SetStreamClients(n)
	observability.RecordStreamPublish()
}

// ClientCount reports connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close hangs up on every subscriber and rejects new connections.
// Safe to call twice.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	close(h.done)

	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	observability.SetStreamClients(0)
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetStreamClients(n)
}

// writePump owns every write on the connection, including pings and
// the close frame. Exactly one writer per connection.
func (c *streamClient) writePump(h *Hub) {
	ticker := time.NewTicker(streamPingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				// The hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.done:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// readPump drains the connection so control frames are processed and a
// vanished peer is noticed through the read deadline.
func (c *streamClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
