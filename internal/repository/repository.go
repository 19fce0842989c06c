package repository

import (
	"context"

	"github.com/yourorg/church-platform/services/chat-service/internal/models"
)

// ConversationSummary is one row of the conversation index as stored-side
// derivation returns it; profile resolution happens in the service.
type ConversationSummary struct {
	CounterpartID string         `bson:"_id"`
	LastMessage   models.Message `bson:"last_message"`
	UnreadCount   int64          `bson:"unread_count"`
}

// MessageRepository is the message store contract. History returns messages
// newest-first as stored; callers reverse for chronological display.
type MessageRepository interface {
	Append(ctx context.Context, m *models.Message) (*models.Message, error)
	History(ctx context.Context, viewerID, counterpartID string, page, limit int64) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, viewerID, counterpartID string) (int64, error)
	UnreadCountForViewer(ctx context.Context, viewerID string) (int64, error)
	Summaries(ctx context.Context, viewerID string) ([]ConversationSummary, error)
	TotalUnread(ctx context.Context) (int64, error)
	DistinctCounterparts(ctx context.Context, adminID string) (int64, error)
	RespondedCounterparts(ctx context.Context, adminID string) (int64, error)
	DeleteByID(ctx context.Context, id string) error
}

// UserRepository resolves accounts owned by the auth/user services.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}
