package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presenceTTL = 24 * time.Hour

// Relay mirrors presence to Redis and relays room broadcasts across
// instances over pub/sub. Everything here is advisory: the in-process
// tracker and hub stay authoritative, and a Redis outage degrades to
// single-instance behavior.
type Relay struct {
	client     *redis.Client
	prefix     string
	instanceID string
	log        *zap.SugaredLogger
}

func NewRelay(client *redis.Client, prefix string, log *zap.SugaredLogger) *Relay {
	return &Relay{
		client:     client,
		prefix:     prefix,
		instanceID: uuid.New().String(),
		log:        log,
	}
}

func (r *Relay) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", r.prefix, userID)
}

func (r *Relay) roomChannel(roomKey string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, roomKey)
}

func (r *Relay) SetOnline(ctx context.Context, userID string) {
	payload, _ := json.Marshal(map[string]any{"status": "online", "last_seen": time.Now().Unix()})
	if err := r.client.Set(ctx, r.presenceKey(userID), payload, presenceTTL).Err(); err != nil {
		r.log.Warnw("presence mirror set", "user_id", userID, "err", err)
	}
}

func (r *Relay) SetOffline(ctx context.Context, userID string) {
	payload, _ := json.Marshal(map[string]any{"status": "offline", "last_seen": time.Now().Unix()})
	if err := r.client.Set(ctx, r.presenceKey(userID), payload, presenceTTL).Err(); err != nil {
		r.log.Warnw("presence mirror clear", "user_id", userID, "err", err)
	}
}

type relayFrame struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// PublishRoom forwards a local room broadcast to the other instances.
func (r *Relay) PublishRoom(roomKey string, payload []byte) {
	frame, _ := json.Marshal(relayFrame{Origin: r.instanceID, Payload: payload})
	if err := r.client.Publish(context.Background(), r.roomChannel(roomKey), frame).Err(); err != nil {
		r.log.Warnw("relay publish", "room", roomKey, "err", err)
	}
}

// Subscribe feeds broadcasts published by other instances into deliver until
// ctx is canceled. Frames published by this instance are skipped.
func (r *Relay) Subscribe(ctx context.Context, deliver func(roomKey string, payload []byte)) {
	sub := r.client.PSubscribe(ctx, r.roomChannel("*"))
	defer sub.Close()

	chanPrefix := r.roomChannel("")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			if frame.Origin == r.instanceID {
				continue
			}
			roomKey := strings.TrimPrefix(msg.Channel, chanPrefix)
			deliver(roomKey, frame.Payload)
		}
	}
}
