// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okhotin/FrontlineMuse/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// taskClient is one websocket subscriber waiting on a music task. Writes are
// serialised by the mutex; the read loop only watches for the peer closing.
type taskClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *taskClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}

func (c *taskClient) sendMessage(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed = true
		c.conn.Close()
	}
}

// TaskHub fans music task updates out to websocket subscribers keyed by
// task id.
type TaskHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*taskClient]bool
	logger      *utils.Logger
}

// NewTaskHub creates an empty hub.
func NewTaskHub() *TaskHub {
	return &TaskHub{
		subscribers: make(map[string]map[*taskClient]bool),
		logger:      utils.GetLogger(),
	}
}

func (h *TaskHub) subscribe(taskID string, client *taskClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[taskID] == nil {
		h.subscribers[taskID] = make(map[*taskClient]bool)
	}
	h.subscribers[taskID][client] = true
}

func (h *TaskHub) unsubscribe(taskID string, client *taskClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.subscribers[taskID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscribers, taskID)
		}
	}
}

// Broadcast pushes a task update to every subscriber of the task.
func (h *TaskHub) Broadcast(taskID string, payload interface{}) {
	h.mu.RLock()
	clients := make([]*taskClient, 0, len(h.subscribers[taskID]))
	for client := range h.subscribers[taskID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.sendMessage(payload)
	}
}

// serveTaskSocket upgrades the connection and subscribes it to the task.
// snapshot is sent immediately so late subscribers see the current state.
func (h *TaskHub) serveTaskSocket(w http.ResponseWriter, r *http.Request, taskID string, snapshot interface{}) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &taskClient{conn: conn}
	h.subscribe(taskID, client)
	client.sendMessage(snapshot)

	// read loop: the peer closing ends the subscription
	go func() {
		defer func() {
			h.unsubscribe(taskID, client)
			client.close()
		}()
		conn.SetReadLimit(1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
