package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/auth"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
	"github.com/yourorg/church-platform/services/chat-service/internal/presence"
	"github.com/yourorg/church-platform/services/chat-service/internal/repository"
	"github.com/yourorg/church-platform/services/chat-service/internal/service"
)

type recvEvent struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func takeEvent(t *testing.T, c *Client) *recvEvent {
	t.Helper()
	select {
	case b := <-c.Send:
		var ev recvEvent
		require.NoError(t, json.Unmarshal(b, &ev))
		return &ev
	default:
		return nil
	}
}

func frame(t *testing.T, env Envelope) []byte {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

type fixture struct {
	gw    *Gateway
	hub   *Hub
	store *repository.MemoryStore
	svc   *service.ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutUser(models.User{ID: "admin", Name: "Pastor John", Role: models.RoleAdmin})
	store.PutUser(models.User{ID: "u1", Name: "Mary", Role: models.RoleUser})
	store.PutUser(models.User{ID: "u2", Name: "Peter", Role: models.RoleUser})

	log := zap.NewNop().Sugar()
	svc := service.New(store, store, nil, "admin", 20, 100, log)
	hub := NewHub()
	gw := NewGateway(hub, presence.NewTracker(), svc, auth.NewVerifier("secret"), log)
	return &fixture{gw: gw, hub: hub, store: store, svc: svc}
}

// joined returns a client already joined to the room with counterpart.
func (f *fixture) joined(t *testing.T, userID, role, counterpartID string) *Client {
	t.Helper()
	c := NewClient(nil, userID, role)
	f.gw.Dispatch(context.Background(), c, frame(t, Envelope{Type: EventJoinRoom, UserID: counterpartID}))
	require.Nil(t, takeEvent(t, c), "join must not produce an event")
	return c
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sender := f.joined(t, "u1", "user", "u2")
	senderTab := f.joined(t, "u1", "user", "u2")
	peer := f.joined(t, "u2", "user", "u1")

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "Hello"}))

	ack := takeEvent(t, sender)
	require.NotNil(t, ack)
	assert.Equal(t, EventAck, ack.Type)
	assert.Nil(t, takeEvent(t, sender), "initiating connection must not get the broadcast too")

	for _, c := range []*Client{senderTab, peer} {
		ev := takeEvent(t, c)
		require.NotNil(t, ev)
		assert.Equal(t, EventMessage, ev.Type)
		var m models.Message
		require.NoError(t, json.Unmarshal(ev.Data, &m))
		assert.Equal(t, "u1", m.SenderID)
		assert.Equal(t, "u2", m.RecipientID)
		assert.Equal(t, "Hello", m.Body)
		assert.False(t, m.IsRead)
		require.NotNil(t, m.Sender)
		assert.Equal(t, "Mary", m.Sender.Name)
	}

	n, err := f.store.UnreadCountForViewer(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSendEmptyBodyRejectedBeforePersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.joined(t, "u1", "user", "u2")
	peer := f.joined(t, "u2", "user", "u1")

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "   "}))

	ev := takeEvent(t, sender)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Contains(t, ev.Error, "validation")
	assert.Nil(t, takeEvent(t, peer), "no partial broadcast on failure")

	n, err := f.store.UnreadCountForViewer(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJoinRoomUnknownCounterpartKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := NewClient(nil, "u1", "user")

	f.gw.Dispatch(ctx, c, frame(t, Envelope{Type: EventJoinRoom, UserID: "ghost"}))
	ev := takeEvent(t, c)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Contains(t, ev.Error, "not found")
	assert.Empty(t, f.hub.RoomsOf(c))

	// session still usable
	f.gw.Dispatch(ctx, c, frame(t, Envelope{Type: EventJoinRoom, UserID: "u2"}))
	assert.Nil(t, takeEvent(t, c))
	assert.Len(t, f.hub.RoomsOf(c), 1)
}

func TestMarkReadBroadcastsReceiptAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.joined(t, "u1", "user", "u2")
	reader := f.joined(t, "u2", "user", "u1")

	for i := 0; i < 3; i++ {
		f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "hi"}))
		takeEvent(t, sender) // ack
		takeEvent(t, reader) // broadcast
	}

	f.gw.Dispatch(ctx, reader, frame(t, Envelope{Type: EventMarkRead, UserID: "u1"}))

	readSeenBySender := takeEvent(t, sender)
	require.NotNil(t, readSeenBySender)
	assert.Equal(t, EventRead, readSeenBySender.Type)
	var receipt struct {
		UserID       string `json:"userId"`
		UpdatedCount int64  `json:"updatedCount"`
	}
	require.NoError(t, json.Unmarshal(readSeenBySender.Data, &receipt))
	assert.Equal(t, "u2", receipt.UserID)
	assert.Equal(t, int64(3), receipt.UpdatedCount)

	n, err := f.store.UnreadCountForViewer(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, n)

	// reader also sees the receipt on its own connection
	require.NotNil(t, takeEvent(t, reader))

	// immediate second mark-read reports zero updates
	f.gw.Dispatch(ctx, reader, frame(t, Envelope{Type: EventMarkRead, UserID: "u1"}))
	second := takeEvent(t, sender)
	require.NotNil(t, second)
	require.NoError(t, json.Unmarshal(second.Data, &receipt))
	assert.Zero(t, receipt.UpdatedCount)
}

func TestSenderMessagesStayOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.joined(t, "u1", "user", "u2")
	peer := f.joined(t, "u2", "user", "u1")

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "first"}))
	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "second"}))

	var bodies []string
	for i := 0; i < 2; i++ {
		ev := takeEvent(t, peer)
		require.NotNil(t, ev)
		var m models.Message
		require.NoError(t, json.Unmarshal(ev.Data, &m))
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, []string{"first", "second"}, bodies)

	msgs, _, err := f.svc.History(ctx, "u2", "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
}

func TestTypingBroadcastOnlyNoPersistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.joined(t, "u1", "user", "u2")
	peer := f.joined(t, "u2", "user", "u1")

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventTyping, UserID: "u2", IsTyping: true}))

	ev := takeEvent(t, peer)
	require.NotNil(t, ev)
	assert.Equal(t, EventTyping, ev.Type)
	var ind struct {
		UserID   string `json:"userId"`
		IsTyping bool   `json:"isTyping"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &ind))
	assert.Equal(t, "u1", ind.UserID)
	assert.True(t, ind.IsTyping)

	_, total, err := f.store.History(ctx, "u1", "u2", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.joined(t, "u1", "user", "u2")
	sender.SetSendLimit(0.0001, 1)

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "one"}))
	require.NotNil(t, takeEvent(t, sender)) // ack

	f.gw.Dispatch(ctx, sender, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "two"}))
	ev := takeEvent(t, sender)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "rate limited", ev.Error)
}

func TestUnknownEventType(t *testing.T) {
	f := newFixture(t)
	c := f.joined(t, "u1", "user", "u2")
	f.gw.Dispatch(context.Background(), c, frame(t, Envelope{Type: "shrug"}))
	ev := takeEvent(t, c)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
}

func TestUnauthenticatedConnectionRejected(t *testing.T) {
	f := newFixture(t)
	c := NewClient(nil, "", "")
	f.gw.Dispatch(context.Background(), c, frame(t, Envelope{Type: EventSendMessage, UserID: "u2", Message: "hi"}))
	ev := takeEvent(t, c)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "unauthorized", ev.Error)
}
