package client

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound signals that no session matches the given key. It is
// a caller error, not a protocol error: the boundary layer answers with a
// server-fault response, never a redirect.
var ErrSessionNotFound = errors.New("no oauth session found")

// Session tracks one zorggebruiker's pass through the client-side flow.
// After a successful exchange AccessToken is set and AuthorizationCode is
// cleared; the two are never both present.
type Session struct {
	ID                string
	State             string
	ProviderName      string
	DataServiceID     string
	Scope             string
	AuthorizationCode string
	Authorized        bool
	AccessToken       string
	CreatedAt         time.Time
}

// SessionStore owns all durable session state. Implementations must be
// safe for concurrent use; the engine holds no locks of its own.
type SessionStore interface {
	CreateSession(ctx context.Context, providerName, dataServiceID string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetSessionByState(ctx context.Context, state string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) (*Session, error)
}
