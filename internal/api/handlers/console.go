package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/events"
)

// ConsoleHandler serves buffered console output and the event WebSocket.
type ConsoleHandler struct {
	buffer *console.Buffer
	hub    *events.Hub
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(buffer *console.Buffer, hub *events.Hub) *ConsoleHandler {
	return &ConsoleHandler{buffer: buffer, hub: hub}
}

// GetConsoleOutput returns the buffered console lines, optionally filtered.
// GET /servers/:id/console?filter=errors|search|regex&pattern=...&case_sensitive=true
func (h *ConsoleHandler) GetConsoleOutput(c *gin.Context) {
	filterType := c.DefaultQuery("filter", "none")
	pattern := c.Query("pattern")
	caseSensitive := c.Query("case_sensitive") == "true"

	filter, err := console.NewOutputFilter(filterType, pattern, caseSensitive)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, filter.Apply(h.buffer.Lines()))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API binds to localhost; cross-origin browser clients are
		// not part of this surface.
		return true
	},
}

// HandleWebSocket subscribes the caller to a server's event room, or to the
// global room when no server id is given.
// GET /ws/events?server_id=...
func (h *ConsoleHandler) HandleWebSocket(c *gin.Context) {
	room := c.Query("server_id")
	if room == "" {
		room = events.GlobalRoom
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] WebSocket upgrade failed: %v", err)
		return
	}

	client := &events.Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Room: room,
		Send: make(chan *events.Message, 64),
		Hub:  h.hub,
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
