package hub

import (
	"encoding/json"
	"log"
	"sync"

	"tms/pkg/envelope"

	"github.com/gofiber/contrib/websocket"
)

type clientConn struct {
	conn     *websocket.Conn
	userID   int
	username string
	mu       sync.Mutex
}

func (cc *clientConn) send(data []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if err := cc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] send error user=%d: %v", cc.userID, err)
	}
}

// Hub pushes live bus positions to connected dashboard clients. Clients are
// read-only apart from pings; all events originate server-side.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*clientConn
}

func New() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*clientConn)}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event envelope to every connected client.
func (h *Hub) Broadcast(action, service string, data interface{}) {
	env, err := envelope.NewEvent(action, service, data)
	if err != nil {
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*clientConn, 0, len(h.clients))
	for _, cc := range h.clients {
		conns = append(conns, cc)
	}
	h.mu.RUnlock()

	for _, cc := range conns {
		cc.send(raw)
	}
}

// HandleClientConn blocks serving one WebSocket client until it disconnects.
func (h *Hub) HandleClientConn(c *websocket.Conn, userID int, username string) {
	cc := &clientConn{conn: c, userID: userID, username: username}

	h.mu.Lock()
	h.clients[c] = cc
	h.mu.Unlock()

	log.Printf("[HUB] client connected: user_id=%d total=%d", userID, h.ClientCount())

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.Close()
		log.Printf("[HUB] client disconnected: user_id=%d total=%d", userID, h.ClientCount())
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var env envelope.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			resp := envelope.NewError("error", "system", 400, "invalid JSON")
			if data, err := resp.Marshal(); err == nil {
				cc.send(data)
			}
			continue
		}

		if env.Action == "ping" {
			pong := envelope.New("pong", "system")
			if data, err := pong.Marshal(); err == nil {
				cc.send(data)
			}
		}
	}
}
