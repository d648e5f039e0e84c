package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/tokens"
)

// MemorySessionStore keeps sessions in a process-local map. Meant for
// tests and single-process deployments; the mutex gives RedeemCode the
// required one-winner semantics.
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

func (s *MemorySessionStore) CreateSession(ctx context.Context, responseType, clientID, redirectURI, scope, state string) (*Session, error) {
	session := &Session{
		ID:           uuid.NewString(),
		ResponseType: responseType,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Scope:        scope,
		State:        state,
		RelayState:   uuid.NewString(),
		CreatedAt:    time.Now(),
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

func (s *MemorySessionStore) GetSessionByCode(ctx context.Context, code string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if code == "" {
		return nil, ErrSessionNotFound
	}
	for _, session := range s.sessions {
		if session.AuthorizationCode == code {
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

func (s *MemorySessionStore) RedeemCode(ctx context.Context, code string, accessToken tokens.Token) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == "" {
		return nil, ErrSessionNotFound
	}
	for _, session := range s.sessions {
		if session.AuthorizationCode != code {
			continue
		}
		session.AuthorizationCode = ""
		session.AccessToken = accessToken.Value
		session.AccessTokenExpiration = accessToken.Expiration

		copy := *session
		return &copy, nil
	}
	return nil, ErrSessionNotFound
}
