package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/apperrors"
	"github.com/yourorg/church-platform/services/chat-service/internal/auth"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
	"github.com/yourorg/church-platform/services/chat-service/internal/presence"
	"github.com/yourorg/church-platform/services/chat-service/internal/service"
)

// Client->server event types.
const (
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventTyping       = "typing"
	EventMarkRead     = "mark-read"
	EventNotifyOnline = "notify-online"
)

// Server->client event types.
const (
	EventMessage    = "message"
	EventAck        = "ack"
	EventRead       = "read"
	EventUserStatus = "userStatus"
	EventError      = "error"
)

// Envelope is the inbound ws frame. userId always names the counterpart of
// the caller's conversation, never the caller.
type Envelope struct {
	Type       string             `json:"type"`
	UserID     string             `json:"userId,omitempty"`
	Message    string             `json:"message,omitempty"`
	IsTyping   bool               `json:"isTyping,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

type outEvent struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func encode(ev outEvent) []byte {
	b, _ := json.Marshal(ev)
	return b
}

// PresenceMirror publishes presence transitions for other instances; the
// local tracker stays authoritative.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string)
	SetOffline(ctx context.Context, userID string)
}

// Gateway authenticates live connections and dispatches their events to the
// message store, presence tracker and room router. Events from one
// connection run to completion in arrival order; connections interleave.
type Gateway struct {
	hub      *Hub
	tracker  *presence.Tracker
	svc      *service.ChatService
	verifier *auth.Verifier
	mirror   PresenceMirror
	log      *zap.SugaredLogger

	sendPerSecond float64
	sendBurst     int
	maxFrameBytes int64
}

func NewGateway(hub *Hub, tracker *presence.Tracker, svc *service.ChatService, verifier *auth.Verifier, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		hub:           hub,
		tracker:       tracker,
		svc:           svc,
		verifier:      verifier,
		log:           log,
		maxFrameBytes: 64 * 1024,
	}
}

func (g *Gateway) SetPresenceMirror(m PresenceMirror) { g.mirror = m }

func (g *Gateway) SetSendLimit(perSecond float64, burst int) {
	g.sendPerSecond = perSecond
	g.sendBurst = burst
}

func (g *Gateway) SetMaxFrameBytes(n int64) {
	if n > 0 {
		g.maxFrameBytes = n
	}
}

// Handle is the websocket upgrade handler: /ws?token=<jwt>.
func (g *Gateway) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		claims, err := g.verifier.Verify(conn.Query("token"))
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, encode(outEvent{Type: EventError, Error: "unauthorized"}))
			_ = conn.Close()
			return
		}

		c := NewClient(conn, claims.UserID, claims.Role)
		c.SetSendLimit(g.sendPerSecond, g.sendBurst)
		g.register(c)
		defer g.unregister(c)

		go c.writePump()

		conn.SetReadLimit(g.maxFrameBytes)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			g.Dispatch(context.Background(), c, data)
		}
	}
}

func (g *Gateway) register(c *Client) {
	if g.tracker.Connect(c.UserID) {
		g.announceStatus(context.Background(), c.UserID, presence.StatusOnline)
	}
}

func (g *Gateway) unregister(c *Client) {
	if g.tracker.Disconnect(c.UserID) {
		g.announceStatus(context.Background(), c.UserID, presence.StatusOffline)
	}
	g.hub.LeaveAll(c)
	c.Close()
}

func (g *Gateway) announceStatus(ctx context.Context, userID string, status presence.Status) {
	g.hub.BroadcastToUserRooms(userID, encode(outEvent{Type: EventUserStatus, Data: map[string]any{
		"userId": userID,
		"status": status,
	}}))
	if g.mirror != nil {
		if status == presence.StatusOnline {
			g.mirror.SetOnline(ctx, userID)
		} else {
			g.mirror.SetOffline(ctx, userID)
		}
	}
}

// Dispatch handles one inbound frame. Errors go back to the initiating
// connection only; the session survives everything except auth failure.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, data []byte) {
	if c.UserID == "" {
		// the transport closes unauthenticated sockets before events flow,
		// but reject defensively
		c.enqueue(encode(outEvent{Type: EventError, Error: "unauthorized"}))
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.enqueue(encode(outEvent{Type: EventError, Error: "malformed event"}))
		return
	}

	switch env.Type {
	case EventJoinRoom:
		g.handleJoin(ctx, c, env)
	case EventSendMessage:
		g.handleSend(ctx, c, env)
	case EventTyping:
		g.handleTyping(c, env)
	case EventMarkRead:
		g.handleMarkRead(ctx, c, env)
	case EventNotifyOnline:
		g.announceStatus(ctx, c.UserID, presence.StatusOnline)
	default:
		c.enqueue(encode(outEvent{Type: EventError, Error: "unknown event type"}))
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, env Envelope) {
	if _, err := g.svc.ResolveProfile(ctx, env.UserID); err != nil {
		c.enqueue(encode(outEvent{Type: EventError, Error: g.describe(err, "join failed")}))
		return
	}
	g.hub.Join(c, env.UserID)
}

func (g *Gateway) handleSend(ctx context.Context, c *Client, env Envelope) {
	if !c.allowSend() {
		c.enqueue(encode(outEvent{Type: EventError, Error: "rate limited"}))
		return
	}
	m, err := g.svc.SendMessage(ctx, c.UserID, env.UserID, env.Message, env.Attachment)
	if err != nil {
		// nothing persisted, nothing broadcast
		c.enqueue(encode(outEvent{Type: EventError, Error: g.describe(err, "send failed")}))
		return
	}
	payload := encode(outEvent{Type: EventMessage, Data: m})
	g.hub.BroadcastExcept(RoomKey(c.UserID, env.UserID), payload, c)
	c.enqueue(encode(outEvent{Type: EventAck, Data: m}))
}

func (g *Gateway) handleTyping(c *Client, env Envelope) {
	payload := encode(outEvent{Type: EventTyping, Data: map[string]any{
		"userId":   c.UserID,
		"isTyping": env.IsTyping,
	}})
	g.hub.BroadcastExcept(RoomKey(c.UserID, env.UserID), payload, c)
}

func (g *Gateway) handleMarkRead(ctx context.Context, c *Client, env Envelope) {
	n, err := g.svc.MarkRead(ctx, c.UserID, env.UserID)
	if err != nil {
		c.enqueue(encode(outEvent{Type: EventError, Error: g.describe(err, "mark read failed")}))
		return
	}
	g.hub.Broadcast(RoomKey(c.UserID, env.UserID), encode(outEvent{Type: EventRead, Data: map[string]any{
		"userId":        c.UserID,
		"counterpartId": env.UserID,
		"updatedCount":  n,
		"readAt":        time.Now().UTC(),
	}}))
}

// describe keeps caller-facing detail for caller errors and hides storage
// detail behind a generic message.
func (g *Gateway) describe(err error, generic string) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrNotFound):
		return err.Error()
	default:
		g.log.Errorw("gateway dispatch", "err", err)
		return generic
	}
}
