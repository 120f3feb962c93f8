package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/atomlessAK/shuma-gorath/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // admin dashboard only, behind the bearer-token gate
	},
}

// Hub fans out admin event-log entries to connected dashboard clients: a
// broadcast channel feeding a mutex-guarded client set.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Line("admin", "websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an authenticated admin request to a websocket and
// streams the live event feed.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Line("admin", "failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mutex.Unlock()
	logging.Line("admin", "dashboard client connected, total=%d", count)

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			count := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			logging.Line("admin", "dashboard client disconnected, total=%d", count)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logging.Line("admin", "websocket read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast pushes one event-log entry to every connected dashboard client.
func (h *Hub) Broadcast(entry EventLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		logging.Line("admin", "failed to marshal event for broadcast: %v", err)
		return
	}
	h.broadcast <- data
}

// HubSink adapts a Hub to the Sink interface so policy decisions fan out to
// both the KV ring buffer and any live-connected dashboards in one call.
type HubSink struct {
	Hub *Hub
}

func (s HubSink) Record(_ context.Context, entry EventLogEntry) {
	s.Hub.Broadcast(entry)
}
