// Package events pushes lifecycle notifications to subscribed WebSocket
// clients, grouped into per-server rooms.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one notification sent to clients.
type Message struct {
	Type      string      `json:"type"`
	ServerID  string      `json:"server_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one WebSocket subscriber.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Room string
	Send chan *Message
	Hub  *Hub
}

// Hub manages all WebSocket connections and rooms. Room names are server
// ids, plus the "global" room receiving every event.
type Hub struct {
	rooms map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	broadcast  chan *broadcastMessage

	clients map[string]*Client

	mu sync.RWMutex
}

// GlobalRoom receives a copy of every published event.
const GlobalRoom = "global"

type broadcastMessage struct {
	room    string
	message *Message
}

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToRoom(message)

		case <-ctx.Done():
			log.Println("[Events] Hub shutting down")
			h.shutdown()
			return
		}
	}
}

// Publish sends an event to the server's room and to the global room.
func (h *Hub) Publish(message *Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	if message.ServerID != "" {
		h.broadcast <- &broadcastMessage{room: message.ServerID, message: message}
	}
	h.broadcast <- &broadcastMessage{room: GlobalRoom, message: message}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if h.rooms[client.Room] == nil {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true

	log.Printf("[Events] Client %s joined room %s. Room size: %d",
		client.ID, client.Room, len(h.rooms[client.Room]))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client.ID)

	if clients, ok := h.rooms[client.Room]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)

			if len(clients) == 0 {
				delete(h.rooms, client.Room)
			} else {
				log.Printf("[Events] Client %s left room %s. Room size: %d",
					client.ID, client.Room, len(clients))
			}
		}
	}
}

func (h *Hub) broadcastToRoom(bm *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.rooms[bm.room]; ok {
		for client := range clients {
			select {
			case client.Send <- bm.message:
			default:
				// Send channel full, drop rather than disconnect.
				log.Printf("[Events] Client %s send channel full, dropping message", client.ID)
			}
		}
	}
}

// GetRoomSize returns the number of clients in a room
func (h *Hub) GetRoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.rooms[room]; ok {
		return len(clients)
	}
	return 0
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
	}

	h.rooms = make(map[string]map[*Client]bool)
	h.clients = make(map[string]*Client)
}

// ReadPump pumps control messages from the connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Events] Read error: %v", err)
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("[Events] Failed to marshal message: %v", err)
				continue
			}
			w.Write(data)

			// Fold queued messages into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				msg := <-c.Send
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				w.Write([]byte("\n"))
				w.Write(data)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage sends a message to this specific client only.
func (c *Client) SendMessage(msgType string, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("client send channel is closed")
		}
	}()

	msg := &Message{Type: msgType, Payload: payload, Timestamp: time.Now()}

	select {
	case c.Send <- msg:
		return nil
	default:
		return fmt.Errorf("client send channel is full")
	}
}
