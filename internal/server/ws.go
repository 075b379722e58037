package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/logger"
)

const (
	// clientBuffer is how many messages may queue for a slow client before
	// new ones are dropped for it.
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// eyeMessage is one message on the live eye feed.
type eyeMessage struct {
	Type  string          `json:"type"`
	AtMS  int64           `json:"at_ms"`
	Left  *blink.EyeState `json:"left,omitempty"`
	Right *blink.EyeState `json:"right,omitempty"`
	Event *blink.Event    `json:"event,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the per-frame eye state and closed blinks out to WebSocket clients.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     logger.With("ws"),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("eye feed client connected")

	go h.writer(c)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		h.log.Debug().Str("remote", r.RemoteAddr).Msg("eye feed client disconnected")
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writer(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// Publish sends one frame's eye state to every client.
func (h *Hub) Publish(fs blink.FrameState) {
	left, right := fs.Left, fs.Right
	h.broadcast(eyeMessage{Type: "frame", AtMS: fs.At.Milliseconds(), Left: &left, Right: &right})
}

// PublishBlink sends a closed blink event to every client.
func (h *Hub) PublishBlink(ev blink.Event) {
	h.broadcast(eyeMessage{Type: "blink", AtMS: ev.End.Milliseconds(), Event: &ev})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(m eyeMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(m)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode eye message")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; it catches up with the next frame.
		}
	}
}
