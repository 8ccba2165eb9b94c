package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event là khung tin nhắn đẩy qua websocket
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
	RoomID string // rỗng nếu chỉ nhận thông báo cá nhân
}

type Hub struct {
	mu sync.RWMutex

	// rooms: room_id -> các client đang trong phòng chat
	rooms map[string]map[*Client]bool
	// users: user_id -> các kết nối của user (nhiều tab/thiết bị)
	users map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
}

var H = NewHub()

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.UserID != "" {
		if h.users[client.UserID] == nil {
			h.users[client.UserID] = make(map[*Client]bool)
		}
		h.users[client.UserID][client] = true
	}
	if client.RoomID != "" {
		if h.rooms[client.RoomID] == nil {
			h.rooms[client.RoomID] = make(map[*Client]bool)
		}
		h.rooms[client.RoomID][client] = true
	}
	logrus.Debugf("ws: client connected user=%s room=%s", client.UserID, client.RoomID)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.users[client.UserID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.Send)
		}
		if len(clients) == 0 {
			delete(h.users, client.UserID)
		}
	}
	if client.RoomID != "" {
		if clients, ok := h.rooms[client.RoomID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, client.RoomID)
			}
		}
	}
}

// SendToUser đẩy event tới mọi kết nối của một user. Client nghẽn thì bỏ
// qua, không block hub.
func (h *Hub) SendToUser(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("ws: marshal event thất bại")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.users[userID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// BroadcastToRoom đẩy event tới mọi client trong phòng chat
func (h *Hub) BroadcastToRoom(roomID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("ws: marshal event thất bại")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// GetStats trả số liệu kết nối hiện tại cho health check
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	totalConns := 0
	for _, clients := range h.users {
		totalConns += len(clients)
	}

	return map[string]interface{}{
		"online_users": len(h.users),
		"connections":  totalConns,
		"active_rooms": len(h.rooms),
	}
}
