// Package ws pushes live response events to form owners over websockets.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventResponseStarted   = "response_started"
	EventResponseSubmitted = "response_submitted"

	writeWait = 10 * time.Second
)

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	mu   sync.Mutex
	conn Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub groups owner connections by form id.
type Hub struct {
	log   *zap.Logger
	mu    sync.RWMutex
	forms map[string]map[Conn]*client
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:   log,
		forms: make(map[string]map[Conn]*client),
	}
}

func (h *Hub) AddConnection(formID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.forms[formID] == nil {
		h.forms[formID] = make(map[Conn]*client)
	}
	h.forms[formID][conn] = &client{conn: conn}
	h.log.Debug("ws client connected", zap.String("form_id", formID), zap.Int("total", len(h.forms[formID])))
}

func (h *Hub) RemoveConnection(formID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(formID, conn)
}

func (h *Hub) Connections(formID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.forms[formID])
}

// Broadcast sends msg to every connection watching formID and drops those
// that fail.
func (h *Hub) Broadcast(formID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("ws marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.forms[formID]))
	for _, c := range h.forms[formID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var failed []Conn
	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Warn("ws write failed", zap.String("form_id", formID), zap.Error(err))
			failed = append(failed, c.conn)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range failed {
		h.removeLocked(formID, conn)
	}
}

func (h *Hub) removeLocked(formID string, conn Conn) {
	conns, ok := h.forms[formID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	conn.Close()
	if len(conns) == 0 {
		delete(h.forms, formID)
	}
	h.log.Debug("ws client disconnected", zap.String("form_id", formID))
}
