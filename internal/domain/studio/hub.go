package studio

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Connection is one live-preview subscriber.
type Connection struct {
	Owner uuid.UUID
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans overlay-change events out to the live-preview panes of each owner's
// open studio sessions. Single-instance: the studio is effectively
// single-editor, so there is no cross-server fanout.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection
}

// NewHub creates the live-preview hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}
}

// Run processes connection registration. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.Owner] == nil {
				h.connections[conn.Owner] = make(map[*Connection]bool)
			}
			h.connections[conn.Owner][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.Owner]; ok {
				if conns[conn] {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.connections, conn.Owner)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends an event to every preview pane of the owner. Slow consumers
// drop events rather than block the editing path.
func (h *Hub) Publish(owner uuid.UUID, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal preview event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.connections[owner] {
		select {
		case conn.Send <- payload:
		default:
			log.Warn().Str("owner", owner.String()).Msg("Preview event dropped, slow consumer")
		}
	}
}

// Serve registers the connection and pumps events until the peer goes away.
func (h *Hub) Serve(owner uuid.UUID, ws *websocket.Conn) {
	conn := &Connection{
		Owner: owner,
		Conn:  ws,
		Send:  make(chan []byte, sendBufferSize),
	}
	h.register <- conn

	go conn.writePump()
	conn.readPump(h)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the preview channel is one-way. It exists
// to notice the close handshake and pong replies.
func (c *Connection) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
