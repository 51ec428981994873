package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from a page served by this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// client serializes writes; a websocket.Conn allows one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// hub fans snapshots out to every connected page.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     logging.Logger
}

func newHub(log logging.Logger) *hub {
	return &hub{clients: map[*client]struct{}{}, log: log}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *hub) broadcast(s models.Snapshot) {
	for _, c := range h.snapshot() {
		if err := c.send(s); err != nil {
			h.log.Debug(context.Background(), "ws push failed", "error", err)
			h.remove(c)
			_ = c.conn.Close()
		}
	}
}

// closeAll disconnects every client; used on shutdown.
func (h *hub) closeAll() {
	for _, c := range h.snapshot() {
		h.remove(c)
		c.close(websocket.CloseGoingAway, "server shutdown")
	}
}

// handleWS sends the current state, then one snapshot per change. Incoming
// frames are read only to notice the peer going away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	s.hub.add(c)
	if err := c.send(s.coord.Snapshot()); err != nil {
		s.hub.remove(c)
		_ = conn.Close()
		return
	}

	go func() {
		defer func() {
			s.hub.remove(c)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
