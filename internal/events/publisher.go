package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/models"
)

// Publisher emits chat events for the notification service. Publishing is
// best effort: a broker outage must never fail a send that already persisted.
type Publisher interface {
	MessageCreated(ctx context.Context, m *models.Message)
	MessagesRead(ctx context.Context, viewerID, counterpartID string, count int64)
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) publish(ctx context.Context, kind string, payload any) {
	data, err := json.Marshal(map[string]any{
		"type":        kind,
		"payload":     payload,
		"occurred_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		p.log.Warnw("marshal event", "type", kind, "err", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(kind), Value: data}); err != nil {
		p.log.Warnw("publish event", "type", kind, "err", err)
	}
}

func (p *KafkaPublisher) MessageCreated(ctx context.Context, m *models.Message) {
	p.publish(ctx, "message.created", m)
}

func (p *KafkaPublisher) MessagesRead(ctx context.Context, viewerID, counterpartID string, count int64) {
	p.publish(ctx, "messages.read", map[string]any{
		"viewer_id":      viewerID,
		"counterpart_id": counterpartID,
		"count":          count,
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher is used when no brokers are configured and in tests.
type NopPublisher struct{}

func (NopPublisher) MessageCreated(context.Context, *models.Message)     {}
func (NopPublisher) MessagesRead(context.Context, string, string, int64) {}
func (NopPublisher) Close() error                                        { return nil }
