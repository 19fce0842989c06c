package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func takePayload(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case b := <-c.Send:
		return b
	default:
		return nil
	}
}

func TestRoomKeyCanonical(t *testing.T) {
	assert.Equal(t, RoomKey("a", "b"), RoomKey("b", "a"))
	assert.Equal(t, "a:b", RoomKey("b", "a"))
	assert.NotEqual(t, RoomKey("a", "b"), RoomKey("a", "c"))
}

func TestBroadcastReachesRoomMembers(t *testing.T) {
	h := NewHub()
	a := NewClient(nil, "a", "admin")
	b := NewClient(nil, "b", "user")
	h.Join(a, "b")
	h.Join(b, "a")

	h.Broadcast(RoomKey("a", "b"), []byte("hi"))
	assert.Equal(t, []byte("hi"), takePayload(t, a))
	assert.Equal(t, []byte("hi"), takePayload(t, b))
}

func TestBroadcastExceptSkipsInitiator(t *testing.T) {
	h := NewHub()
	a := NewClient(nil, "a", "admin")
	b := NewClient(nil, "b", "user")
	h.Join(a, "b")
	h.Join(b, "a")

	h.BroadcastExcept(RoomKey("a", "b"), []byte("hi"), a)
	assert.Nil(t, takePayload(t, a))
	assert.Equal(t, []byte("hi"), takePayload(t, b))
}

func TestRoomIsolation(t *testing.T) {
	h := NewHub()
	b := NewClient(nil, "b", "user")
	c := NewClient(nil, "c", "user")
	h.Join(b, "a")
	h.Join(c, "a")

	h.Broadcast(RoomKey("a", "b"), []byte("for b"))
	assert.Equal(t, []byte("for b"), takePayload(t, b))
	assert.Nil(t, takePayload(t, c), "room (a,c) must not see room (a,b) traffic")
}

func TestLeaveAndLeaveAll(t *testing.T) {
	h := NewHub()
	admin := NewClient(nil, "admin", "admin")
	h.Join(admin, "u1")
	h.Join(admin, "u2")
	assert.Len(t, h.RoomsOf(admin), 2)

	h.Leave(admin, "u1")
	assert.Len(t, h.RoomsOf(admin), 1)

	// leaving a room it never joined is a no-op
	h.Leave(admin, "u9")
	assert.Len(t, h.RoomsOf(admin), 1)

	h.LeaveAll(admin)
	assert.Empty(t, h.RoomsOf(admin))

	h.Broadcast(RoomKey("admin", "u2"), []byte("late"))
	assert.Nil(t, takePayload(t, admin))
}

func TestBroadcastToUserRooms(t *testing.T) {
	h := NewHub()
	admin := NewClient(nil, "admin", "admin")
	u1 := NewClient(nil, "u1", "user")
	u2 := NewClient(nil, "u2", "user")
	h.Join(admin, "u1")
	h.Join(admin, "u2")
	h.Join(u1, "admin")
	h.Join(u2, "admin")

	h.BroadcastToUserRooms("admin", []byte("status"))
	assert.Equal(t, []byte("status"), takePayload(t, u1))
	assert.Equal(t, []byte("status"), takePayload(t, u2))
}
