package ws

import (
	"strings"
	"sync"
)

// RoomKey canonicalizes the unordered participant pair so both sides compute
// the same room without coordination.
func RoomKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func roomHasUser(key, userID string) bool {
	parts := strings.SplitN(key, ":", 2)
	return len(parts) == 2 && (parts[0] == userID || parts[1] == userID)
}

// Hub is the room router: it maps live connections to conversation rooms and
// fans events out. One admin connection typically sits in many rooms at once.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}

	// Publish, when set, forwards locally-broadcast payloads to other
	// instances (Redis pub/sub relay). Delivery from the relay comes back
	// through DeliverLocal.
	Publish func(roomKey string, payload []byte)
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Join(c *Client, counterpartID string) {
	key := RoomKey(c.UserID, counterpartID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*Client]struct{})
	}
	h.rooms[key][c] = struct{}{}
	if _, ok := h.byClient[c]; !ok {
		h.byClient[c] = make(map[string]struct{})
	}
	h.byClient[c][key] = struct{}{}
}

func (h *Hub) Leave(c *Client, counterpartID string) {
	h.removeFromRoom(c, RoomKey(c.UserID, counterpartID))
}

func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	keys := make([]string, 0, len(h.byClient[c]))
	for key := range h.byClient[c] {
		keys = append(keys, key)
	}
	h.mu.Unlock()
	for _, key := range keys {
		h.removeFromRoom(c, key)
	}
}

func (h *Hub) removeFromRoom(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, key)
		}
	}
	if set, ok := h.byClient[c]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(h.byClient, c)
		}
	}
}

// RoomsOf returns the room keys the client has joined.
func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byClient[c]))
	for key := range h.byClient[c] {
		out = append(out, key)
	}
	return out
}

// Broadcast delivers to every room member on this instance and forwards to
// other instances when a relay is attached. Slow clients are skipped rather
// than blocking the room.
func (h *Hub) Broadcast(roomKey string, payload []byte) {
	h.BroadcastExcept(roomKey, payload, nil)
}

// BroadcastExcept skips one connection; the sender's initiating connection
// gets an ack instead of a duplicate of its own broadcast.
func (h *Hub) BroadcastExcept(roomKey string, payload []byte, except *Client) {
	h.deliverLocal(roomKey, payload, except)
	if h.Publish != nil {
		h.Publish(roomKey, payload)
	}
}

// DeliverLocal delivers to local room members only; the relay calls this for
// payloads published by other instances.
func (h *Hub) DeliverLocal(roomKey string, payload []byte) {
	h.deliverLocal(roomKey, payload, nil)
}

func (h *Hub) deliverLocal(roomKey string, payload []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomKey] {
		if c == except {
			continue
		}
		c.enqueue(payload)
	}
}

// BroadcastToUserRooms sends to every room the user participates in; used
// for presence transitions.
func (h *Hub) BroadcastToUserRooms(userID string, payload []byte) {
	h.mu.RLock()
	keys := make([]string, 0, 4)
	for key := range h.rooms {
		if roomHasUser(key, userID) {
			keys = append(keys, key)
		}
	}
	h.mu.RUnlock()
	for _, key := range keys {
		h.Broadcast(key, payload)
	}
}
