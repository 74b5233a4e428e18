package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"dispatch-cli/internal/events"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 32
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header (CLI clients) and
// browser requests whose origin ends in this server's host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	host := strings.TrimSpace(r.Host)
	return strings.HasSuffix(origin, "://"+host)
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// wsHub fans push events out to every connected websocket client. A client
// whose buffer is full is disconnected rather than slowing the others.
type wsHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{logger: logger, clients: map[*wsClient]struct{}{}}
}

func (h *wsHub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *wsHub) broadcast(ev events.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("encoding push event", "type", ev.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !s.hub.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
		_ = conn.Close()
		return
	}
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(c)
	}()

	// Clients never send anything meaningful; reading detects disconnects
	// and services control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.remove(c)
	<-done
	s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}

func writePump(c *wsClient) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
