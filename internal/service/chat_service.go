package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/apperrors"
	"github.com/yourorg/church-platform/services/chat-service/internal/events"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
	"github.com/yourorg/church-platform/services/chat-service/internal/repository"
)

// Pagination describes one page of message history.
type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func Paginate(total, page, limit int64) Pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ChatService orchestrates the message store, the account resolver and the
// event publisher for both the REST facade and the ws gateway.
type ChatService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	pub      events.Publisher
	adminID  string

	defaultPageSize int64
	maxPageSize     int64

	log *zap.SugaredLogger
}

func New(messages repository.MessageRepository, users repository.UserRepository, pub events.Publisher,
	adminID string, defaultPageSize, maxPageSize int64, log *zap.SugaredLogger) *ChatService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &ChatService{
		messages:        messages,
		users:           users,
		pub:             pub,
		adminID:         adminID,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// ResolveProfile maps an account id to its public profile.
func (s *ChatService) ResolveProfile(ctx context.Context, id string) (*models.Profile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

// SendMessage validates, persists and returns the message with the sender's
// profile resolved for broadcasting. Validation runs before any persistence.
func (s *ChatService) SendMessage(ctx context.Context, senderID, recipientID, body string, att *models.Attachment) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" && att == nil {
		return nil, fmt.Errorf("%w: message body or attachment required", apperrors.ErrValidation)
	}
	if att != nil {
		if att.URL == "" {
			return nil, fmt.Errorf("%w: attachment url required", apperrors.ErrValidation)
		}
		if !models.ValidAttachmentKind(att.Kind) {
			return nil, fmt.Errorf("%w: unknown attachment kind %q", apperrors.ErrValidation, att.Kind)
		}
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", apperrors.ErrValidation)
	}

	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.users.Exists(ctx, recipientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: recipient %s", apperrors.ErrNotFound, recipientID)
	}

	m, err := s.messages.Append(ctx, &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		Attachment:  att,
	})
	if err != nil {
		return nil, err
	}
	m.Sender = sender.Profile()

	s.pub.MessageCreated(ctx, m)
	return m, nil
}

// History returns one page of the thread in chronological order. Storage
// pages newest-first; the page is reversed here for display.
func (s *ChatService) History(ctx context.Context, viewerID, counterpartID string, page, limit int64) ([]models.Message, Pagination, error) {
	if ok, err := s.users.Exists(ctx, counterpartID); err != nil {
		return nil, Pagination{}, err
	} else if !ok {
		return nil, Pagination{}, fmt.Errorf("%w: counterpart %s", apperrors.ErrNotFound, counterpartID)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	msgs, total, err := s.messages.History(ctx, viewerID, counterpartID, page, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	s.attachProfiles(ctx, msgs, viewerID, counterpartID)
	return msgs, Paginate(total, page, limit), nil
}

// attachProfiles resolves the two participants once per page.
func (s *ChatService) attachProfiles(ctx context.Context, msgs []models.Message, viewerID, counterpartID string) {
	profiles := make(map[string]*models.Profile, 2)
	for _, id := range []string{viewerID, counterpartID} {
		p, err := s.ResolveProfile(ctx, id)
		if err != nil {
			s.log.Warnw("resolve profile", "user_id", id, "err", err)
			continue
		}
		profiles[id] = p
	}
	for i := range msgs {
		msgs[i].Sender = profiles[msgs[i].SenderID]
	}
}

// MarkRead flips the viewer's unread messages from the counterpart.
// Idempotent: an immediate second call reports zero updates.
func (s *ChatService) MarkRead(ctx context.Context, viewerID, counterpartID string) (int64, error) {
	if ok, err := s.users.Exists(ctx, counterpartID); err != nil {
		return 0, err
	} else if !ok {
		return 0, fmt.Errorf("%w: counterpart %s", apperrors.ErrNotFound, counterpartID)
	}
	n, err := s.messages.MarkRead(ctx, viewerID, counterpartID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.pub.MessagesRead(ctx, viewerID, counterpartID, n)
	}
	return n, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, viewerID string) (int64, error) {
	return s.messages.UnreadCountForViewer(ctx, viewerID)
}

// Conversations derives the viewer's conversation index: one entry per
// counterpart, newest thread first, counterpart id breaking ties.
func (s *ChatService) Conversations(ctx context.Context, viewerID string) ([]models.Conversation, error) {
	sums, err := s.messages.Summaries(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(sums))
	for i := range sums {
		profile, err := s.ResolveProfile(ctx, sums[i].CounterpartID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// deleted account; the thread is unreachable anyway
				s.log.Warnw("conversation counterpart missing", "counterpart_id", sums[i].CounterpartID)
				continue
			}
			return nil, err
		}
		last := sums[i].LastMessage
		out = append(out, models.Conversation{
			Counterpart: profile,
			LastMessage: &last,
			UnreadCount: sums[i].UnreadCount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return out[i].Counterpart.ID < out[j].Counterpart.ID
	})
	return out, nil
}

// Stats assembles the admin dashboard counters; onlineUsers comes from the
// presence tracker owned by the caller.
func (s *ChatService) Stats(ctx context.Context, onlineUsers int) (*models.ChatStats, error) {
	total, err := s.messages.DistinctCounterparts(ctx, s.adminID)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.TotalUnread(ctx)
	if err != nil {
		return nil, err
	}
	responded, err := s.messages.RespondedCounterparts(ctx, s.adminID)
	if err != nil {
		return nil, err
	}
	return &models.ChatStats{
		TotalChats:     total,
		OnlineUsers:    onlineUsers,
		UnreadMessages: unread,
		RespondedChats: responded,
	}, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, id string) error {
	return s.messages.DeleteByID(ctx, id)
}
