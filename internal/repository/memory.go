package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/church-platform/services/chat-service/internal/apperrors"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
)

// MemoryStore is an in-memory MessageRepository plus UserRepository with the
// same observable contract as the Mongo implementations. It backs unit tests
// and token-only local runs; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	messages []models.Message
	users    map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.User)}
}

func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return &u, nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *MemoryStore) Append(_ context.Context, m *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.IsRead = false
	m.ReadAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now
	s.messages = append(s.messages, *m)
	return m, nil
}

func pairMatches(m *models.Message, a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

func (s *MemoryStore) History(_ context.Context, viewerID, counterpartID string, page, limit int64) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// newest-first, insertion order breaking created_at ties
	var thread []models.Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		if pairMatches(&s.messages[i], viewerID, counterpartID) {
			thread = append(thread, s.messages[i])
		}
	}
	total := int64(len(thread))
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]models.Message, end-start)
	copy(out, thread[start:end])
	return out, total, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, viewerID, counterpartID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == counterpartID && m.RecipientID == viewerID && !m.IsRead {
			m.IsRead = true
			t := now
			m.ReadAt = &t
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UnreadCountForViewer(_ context.Context, viewerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.messages {
		if s.messages[i].RecipientID == viewerID && !s.messages[i].IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Summaries(_ context.Context, viewerID string) ([]ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCounterpart := make(map[string]*ConversationSummary)
	for i := range s.messages {
		m := s.messages[i]
		if m.SenderID != viewerID && m.RecipientID != viewerID {
			continue
		}
		cp := m.CounterpartOf(viewerID)
		sum, ok := byCounterpart[cp]
		if !ok {
			sum = &ConversationSummary{CounterpartID: cp}
			byCounterpart[cp] = sum
		}
		// messages slice is insertion-ordered, so the last seen wins
		sum.LastMessage = m
		if m.RecipientID == viewerID && !m.IsRead {
			sum.UnreadCount++
		}
	}

	out := make([]ConversationSummary, 0, len(byCounterpart))
	for _, sum := range byCounterpart {
		out = append(out, *sum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastMessage.CreatedAt.Equal(out[j].LastMessage.CreatedAt) {
			return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
		}
		return out[i].CounterpartID < out[j].CounterpartID
	})
	return out, nil
}

func (s *MemoryStore) TotalUnread(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.messages {
		if !s.messages[i].IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DistinctCounterparts(ctx context.Context, adminID string) (int64, error) {
	sums, err := s.Summaries(ctx, adminID)
	if err != nil {
		return 0, err
	}
	return int64(len(sums)), nil
}

func (s *MemoryStore) RespondedCounterparts(_ context.Context, adminID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for i := range s.messages {
		if s.messages[i].SenderID == adminID {
			seen[s.messages[i].RecipientID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: malformed message id", apperrors.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == oid {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)
}
