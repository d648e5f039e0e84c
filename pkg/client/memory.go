package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// MemorySessionStore keeps sessions in a process-local map. Meant for
// tests and single-process deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *MemorySessionStore) CreateSession(ctx context.Context, providerName, dataServiceID string) (*Session, error) {
	session := &Session{
		ID:            uuid.NewString(),
		State:         ksuid.New().String(),
		ProviderName:  providerName,
		DataServiceID: dataServiceID,
		Scope:         dataServiceID,
		CreatedAt:     time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session

	copy := *session
	return &copy, nil
}

func (s *MemorySessionStore) GetSessionByID(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copy := *session
	return &copy, nil
}

func (s *MemorySessionStore) GetSessionByState(ctx context.Context, state string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.State == state {
			copy := *session
			return &copy, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (s *MemorySessionStore) SaveSession(ctx context.Context, session *Session) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return nil, ErrSessionNotFound
	}
	stored := *session
	s.sessions[session.ID] = &stored

	copy := stored
	return &copy, nil
}
