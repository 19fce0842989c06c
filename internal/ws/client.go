package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one authenticated websocket connection. Tests construct clients
// with a nil conn and read Send directly instead of running the pumps.
type Client struct {
	conn *websocket.Conn

	SocketID string
	UserID   string
	Role     string
	Send     chan []byte

	limiter *rate.Limiter

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, userID, role string) *Client {
	return &Client{
		conn:     conn,
		SocketID: uuid.New().String(),
		UserID:   userID,
		Role:     role,
		Send:     make(chan []byte, 256),
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
}

// SetSendLimit installs the per-connection send-message throttle.
func (c *Client) SetSendLimit(perSecond float64, burst int) {
	if perSecond > 0 && burst > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func (c *Client) allowSend() bool {
	return c.limiter.Allow()
}

// enqueue is non-blocking; a full buffer means the client is too slow and
// the payload is dropped (the REST history is the catch-up path).
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump drains Send onto the wire and keeps the ping cycle going.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
