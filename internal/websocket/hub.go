// Package websocket pushes state updates to connected browsers.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vaultscope/vaultscope/internal/metrics"
	"github.com/vaultscope/vaultscope/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	// The reverse proxy in front of us enforces origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one connected websocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans state broadcasts out to all connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	getState   func() models.StateSnapshot
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub builds a hub. getState supplies the snapshot sent to newly
// connected clients.
func NewHub(getState func() models.StateSnapshot) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		getState:   getState,
		done:       make(chan struct{}),
	}
}

// Run drives the hub loop. Call in its own goroutine; returns when Stop is
// called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			log.Debug().Str("client", client.id).Int("clients", n).Msg("Websocket client connected")
			h.sendInitialState(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			log.Debug().Str("client", client.id).Int("clients", n).Msg("Websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop the frame rather than block
					// every other client.
					log.Warn().Str("client", client.id).Msg("Dropping frame for slow websocket client")
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(0)
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastState pushes the current snapshot to all clients. Non-blocking:
// when the broadcast queue is full the frame is dropped, the next state
// change will carry fresher data anyway.
func (h *Hub) BroadcastState(snap models.StateSnapshot) {
	payload, err := json.Marshal(Message{Type: "rawData", Data: snap})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal state broadcast")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Msg("Broadcast queue full, dropping state frame")
	}
}

// HandleWebSocket upgrades an HTTP request and attaches the client to the
// hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		id:   uuid.NewString(),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) sendInitialState(client *Client) {
	payload, err := json.Marshal(Message{Type: "initialState", Data: h.getState()})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal initial state")
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
