package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and single-process
// development setups.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	messages      map[string][]Message
	touched       map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
		touched:       make(map[string]time.Time),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.ID] = &cp
	s.touched[c.ID] = time.Now()
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) FindActive(ctx context.Context, p string, channelID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if string(c.Platform) == p && c.ChannelID == channelID && c.Status.Active() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	s.touched[id] = time.Now()
	return nil
}

func (s *MemoryStore) UpdateTurn(ctx context.Context, id string, status Status, messageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.MessageCount = messageCount
	now := time.Now()
	switch status {
	case StatusInitiated:
		c.InitiatedAt = &now
	case StatusClosed, StatusExpired:
		c.ClosedAt = &now
	}
	s.touched[id] = now
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.conversations {
		if c.Status.Terminal() {
			continue
		}
		if s.touched[id].Before(cutoff) {
			c.Status = StatusExpired
			now := time.Now()
			c.ClosedAt = &now
			n++
		}
	}
	return n, nil
}
