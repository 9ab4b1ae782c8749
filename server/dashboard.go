package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// dashboardTicksPerSecond bounds how often the hub pushes a full
// snapshot to connected spectators. Session state changes far less
// often than a game loop's per-frame position updates, so 5Hz is
// plenty to keep a spectator view current.
const dashboardTicksPerSecond = 5

var dashboardTickInterval = time.Duration(1000/dashboardTicksPerSecond) * time.Millisecond

// SessionState is the read-only DTO published to spectators and to the
// admin/sessions endpoint.
type SessionState struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Phase     string   `json:"phase"`
	Position  Position `json:"position"`
	Direction string   `json:"direction"`
	Remote    string   `json:"remote"`
}

// dashboardClient is the write side of one spectator connection. Reads
// from spectators are never expected: the feed is one-directional.
type dashboardClient struct {
	ws   *websocket.Conn
	send chan []byte
}

func newDashboardClient(ws *websocket.Conn) *dashboardClient {
	return &dashboardClient{ws: ws, send: make(chan []byte, 16)}
}

func (c *dashboardClient) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// Spectator is behind; drop the stale frame rather than block
		// the broadcaster.
	}
}

func (c *dashboardClient) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *dashboardClient) readPump(hub *DashboardHub) {
	defer c.ws.Close()
	defer hub.removeClient(c)
	c.ws.SetReadLimit(1 << 10)
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		// Spectators never send meaningful payloads; this pump only
		// exists to notice disconnects and keep pong deadlines alive.
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// DashboardHub fans the live session states out to every connected
// spectator, both immediately on state change and on a fixed tick as
// a full resync.
type DashboardHub struct {
	mu      sync.Mutex
	clients map[*dashboardClient]struct{}
	mgr     *SessionManager
	started bool
}

// NewDashboardHub builds a hub that reads live state from mgr.
func NewDashboardHub(mgr *SessionManager) *DashboardHub {
	return &DashboardHub{clients: make(map[*dashboardClient]struct{}), mgr: mgr}
}

// StartTicker begins the periodic broadcast loop. Calling it more than
// once is a no-op.
func (h *DashboardHub) StartTicker() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(dashboardTickInterval)
		defer ticker.Stop()
		for range ticker.C {
			h.broadcast()
		}
	}()
}

// Update publishes a single session's state immediately, in addition to
// the periodic full broadcast, so phase transitions (authenticated,
// secret retrieved) reach spectators without waiting for the next tick.
func (h *DashboardHub) Update(state SessionState) {
	payload := struct {
		Type    string       `json:"type"`
		Session SessionState `json:"session"`
	}{Type: "update", Session: state}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(b)
	}
}

func (h *DashboardHub) broadcast() {
	payload := struct {
		Type     string         `json:"type"`
		Sessions []SessionState `json:"sessions"`
	}{Type: "snapshot", Sessions: h.mgr.Snapshot()}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(b)
	}
}

func (h *DashboardHub) addClient(c *dashboardClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *DashboardHub) removeClient(c *dashboardClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

var dashboardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleDashboardWS upgrades a request to a read-only spectator feed.
func HandleDashboardWS(hub *DashboardHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := dashboardUpgrader.Upgrade(w, r, nil)
		if err != nil {
			if Log != nil {
				Log.Warnw("dashboard upgrade failed", "err", err)
			}
			return
		}
		client := newDashboardClient(ws)
		hub.addClient(client)
		go client.writePump()
		go client.readPump(hub)
	}
}
