package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID, roomID string) *Client {
	return &Client{
		Send:   make(chan []byte, 8),
		UserID: userID,
		RoomID: roomID,
	}
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("user-1", "")
	c2 := newTestClient("user-1", "")
	other := newTestClient("user-2", "")
	hub.add(c1)
	hub.add(c2)
	hub.add(other)

	hub.SendToUser("user-1", Event{Type: "notification", Payload: "hello"})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Send:
			var event Event
			require.NoError(t, json.Unmarshal(data, &event))
			assert.Equal(t, "notification", event.Type)
		default:
			t.Fatal("client không nhận được event")
		}
	}

	select {
	case <-other.Send:
		t.Fatal("user khác không được nhận event")
	default:
	}
}

func TestBroadcastToRoom(t *testing.T) {
	hub := NewHub()
	inRoom := newTestClient("user-1", "room-a")
	alsoInRoom := newTestClient("user-2", "room-a")
	outside := newTestClient("user-3", "room-b")
	hub.add(inRoom)
	hub.add(alsoInRoom)
	hub.add(outside)

	hub.BroadcastToRoom("room-a", Event{Type: "chat_message"})

	assert.Len(t, inRoom.Send, 1)
	assert.Len(t, alsoInRoom.Send, 1)
	assert.Len(t, outside.Send, 0)
}

func TestRemoveCleansUpRegistries(t *testing.T) {
	hub := NewHub()
	client := newTestClient("user-1", "room-a")
	hub.add(client)

	stats := hub.GetStats()
	assert.Equal(t, 1, stats["online_users"])
	assert.Equal(t, 1, stats["active_rooms"])

	hub.remove(client)

	stats = hub.GetStats()
	assert.Equal(t, 0, stats["online_users"])
	assert.Equal(t, 0, stats["connections"])
	assert.Equal(t, 0, stats["active_rooms"])

	// Send channel đã đóng
	_, open := <-client.Send
	assert.False(t, open)
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	slow := &Client{Send: make(chan []byte), UserID: "user-1"}
	hub.add(slow)

	// Send không buffer và không ai đọc: hub phải bỏ qua chứ không treo
	hub.SendToUser("user-1", Event{Type: "notification"})

	stats := hub.GetStats()
	assert.Equal(t, 1, stats["connections"])
}
