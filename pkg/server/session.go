package server

import (
	"context"
	"errors"
	"time"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/tokens"
)

var (
	// ErrSessionNotFound signals that no session matches the given key.
	ErrSessionNotFound = errors.New("no oauth session found")

	// ErrUnknownSession signals a reference to a nonexistent session id.
	// It is a caller bug, never a protocol error, and must not be turned
	// into a redirect.
	ErrUnknownSession = errors.New("not a valid oauth session id")
)

// Session tracks one inbound authorization request at the zorgaanbieder.
// AuthorizationCode is single-use: redemption clears it and sets
// AccessToken in one atomic store update, so a code can never be redeemed
// twice.
type Session struct {
	ID                          string
	ResponseType                string
	ClientID                    string
	RedirectURI                 string
	Scope                       string
	State                       string
	RelayState                  string
	CreatedAt                   time.Time
	AuthorizationCode           string
	AuthorizationCodeExpiration time.Time
	AuthorizationGranted        bool
	AccessToken                 string
	AccessTokenExpiration       time.Time

	// BSN of the zorggebruiker, filled in by the resource-availability
	// check.
	BSN string
}

// SessionStore owns all durable session state on the server side.
//
// RedeemCode must be atomic per code: of two concurrent redemptions for
// the same code exactly one may succeed, the other gets
// ErrSessionNotFound. A conditional update keyed on the code still being
// present satisfies this.
type SessionStore interface {
	CreateSession(ctx context.Context, responseType, clientID, redirectURI, scope, state string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetSessionByCode(ctx context.Context, code string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) (*Session, error)
	RedeemCode(ctx context.Context, code string, accessToken tokens.Token) (*Session, error)
}
