package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*chat.Message
	users    map[string]*chat.UserSession
	subs     map[string]chat.PushSubscription
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*chat.Message),
		users:    make(map[string]*chat.UserSession),
		subs:     make(map[string]chat.PushSubscription),
	}
}

var _ backend = (*MemoryStore)(nil)

func (s *MemoryStore) CreateMessage(_ context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *MemoryStore) FindMessage(_ context.Context, id string) (*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg.Clone(), nil
}

func (s *MemoryStore) UpdateMessage(_ context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*chat.Message
	for _, msg := range s.messages {
		if msg.RoomKey == room && msg.VisibleTo(viewerID) {
			out = append(out, msg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, user *chat.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user.Clone()
	return nil
}

func (s *MemoryStore) FindUser(_ context.Context, id string) (*chat.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]*chat.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chat.UserSession, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) SavePushSubscription(_ context.Context, sub chat.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = sub
	return nil
}

func (s *MemoryStore) FindPushSubscription(_ context.Context, userID string) (*chat.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) DeletePushSubscription(_ context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok || sub.Endpoint != endpoint {
		return ErrNotFound
	}
	delete(s.subs, userID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }
func (s *MemoryStore) Driver() string              { return "memory" }
