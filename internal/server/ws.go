package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sweepWriteTimeout bounds a single event write so one stalled follower
// cannot hold up a sweep.
const sweepWriteTimeout = 5 * time.Second

// WSMessage is one sweep event: "hello", "sweepPoint", "sweepDone" or
// "sweepError".
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSClient is a connection following sweep events. Writes on a gorilla
// Conn must be serialised.
type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *WSClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(sweepWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Send encodes msg and writes it to c only.
func (c *WSClient) Send(msg WSMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(b)
}

// WSHub fans sweep events out to every follower.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]struct{})}
}

func (h *WSHub) Add(conn *websocket.Conn) *WSClient {
	c := &WSClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove drops c and closes its connection. Removing twice is harmless.
func (h *WSHub) Remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes msg once and writes it to every follower. Followers
// whose write fails are dropped.
func (h *WSHub) Broadcast(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	var failed []*WSClient
	for c := range h.clients {
		if err := c.write(b); err != nil {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range failed {
		h.Remove(c)
	}
}
