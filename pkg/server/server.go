// Package server implements the zorgaanbieder half of the MedMij
// authorization-code flow: validating inbound authorization requests
// against the OCL, gating on resource availability, recording the
// zorggebruiker's grant decision and redeeming single-use authorization
// codes for access tokens.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/tokens"
)

// OCLSource returns the current OAuth client list. Called per operation so
// the host may swap in a freshly loaded list at any time.
type OCLSource func(ctx context.Context) (*registry.OCL, error)

// AvailabilityFunc decides whether the requested resource exists for the
// zorggebruiker described by clientData.
type AvailabilityFunc func(ctx context.Context, clientData map[string]any) (bool, error)

// KnownCitizenFunc decides whether the authenticated zorggebruiker is
// known at all. Optional; deployments without their own registration step
// leave it unset.
type KnownCitizenFunc func(ctx context.Context) (bool, error)

// Server orchestrates the server-side flow. It is stateless; all durable
// state lives in the SessionStore, and a Server may be shared between
// request handlers.
type Server struct {
	store             SessionStore
	ocl               OCLSource
	resourceAvailable AvailabilityFunc
	knownCitizen      KnownCitizenFunc
	codeLifetime      time.Duration
	tokenLifetime     time.Duration
}

type Option func(*Server) error

func WithSessionStore(store SessionStore) Option {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func WithMemorySessionStore() Option {
	return func(s *Server) error {
		s.store = NewMemorySessionStore()
		return nil
	}
}

func WithOCLSource(source OCLSource) Option {
	return func(s *Server) error {
		s.ocl = source
		return nil
	}
}

func WithResourceAvailable(fn AvailabilityFunc) Option {
	return func(s *Server) error {
		s.resourceAvailable = fn
		return nil
	}
}

func WithKnownCitizen(fn KnownCitizenFunc) Option {
	return func(s *Server) error {
		s.knownCitizen = fn
		return nil
	}
}

func WithCodeLifetime(lifetime time.Duration) Option {
	return func(s *Server) error {
		s.codeLifetime = lifetime
		return nil
	}
}

func WithTokenLifetime(lifetime time.Duration) Option {
	return func(s *Server) error {
		s.tokenLifetime = lifetime
		return nil
	}
}

// New builds a Server. The session store, OCL source and availability
// func are required.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		codeLifetime:  tokens.DefaultLifetime,
		tokenLifetime: tokens.DefaultLifetime,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	switch {
	case s.store == nil:
		return nil, errors.New("server requires a session store")
	case s.ocl == nil:
		return nil, errors.New("server requires an OCL source")
	case s.resourceAvailable == nil:
		return nil, errors.New("server requires a resource availability func")
	}
	return s, nil
}

// CreateSession validates an inbound authorization request and persists a
// new session for it.
func (s *Server) CreateSession(ctx context.Context, params url.Values) (*Session, error) {
	ocl, err := s.ocl(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading OCL: %w", err)
	}
	if err := validateAuthorizationRequest(params, ocl); err != nil {
		return nil, err
	}

	session, err := s.store.CreateSession(ctx,
		params.Get("response_type"),
		params.Get("client_id"),
		params.Get("redirect_uri"),
		params.Get("scope"),
		params.Get("state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	slog.Info("authorization session created", "session_id", session.ID, "client_id", session.ClientID, "scope", session.Scope)
	return session, nil
}

// IsKnownCitizen gates the flow on the optional known-zorggebruiker
// predicate. A negative answer redirects back to the client.
func (s *Server) IsKnownCitizen(ctx context.Context, session *Session) error {
	if s.knownCitizen == nil {
		return nil
	}
	known, err := s.knownCitizen(ctx)
	if err != nil {
		return fmt.Errorf("known citizen check: %w", err)
	}
	if !known {
		return &oauth2.Error{
			Code:            oauth2.UnauthorizedClient,
			Description:     "unknown zorggebruiker",
			Redirect:        true,
			BaseRedirectURL: session.RedirectURI,
		}
	}
	return nil
}

// CheckResourceAvailable asks the availability predicate whether the
// requested resource exists for this zorggebruiker. The session's BSN is
// merged into the client data under "bsn"; clientData entries win on
// collision.
func (s *Server) CheckResourceAvailable(ctx context.Context, session *Session, clientData map[string]any) error {
	merged := map[string]any{"bsn": session.BSN}
	for key, value := range clientData {
		merged[key] = value
	}

	available, err := s.resourceAvailable(ctx, merged)
	if err != nil {
		return fmt.Errorf("resource availability check: %w", err)
	}
	if !available {
		return &oauth2.Error{
			Code:            oauth2.AccessDenied,
			Description:     "No such resource",
			Redirect:        true,
			BaseRedirectURL: session.RedirectURI,
		}
	}
	return nil
}

// DecideGrant records the zorggebruiker's decision. On a grant it issues
// an authorization code and returns the redirect URL that delivers it; on
// a denial it persists the denial and returns an access_denied redirect
// error. An unknown session id is ErrUnknownSession, a caller bug.
func (s *Server) DecideGrant(ctx context.Context, sessionID string, granted bool) (*Session, string, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
		}
		return nil, "", fmt.Errorf("loading session: %w", err)
	}

	if !granted {
		session.AuthorizationGranted = false
		if _, err := s.store.SaveSession(ctx, session); err != nil {
			return nil, "", fmt.Errorf("saving session: %w", err)
		}
		slog.Info("authorization denied", "session_id", session.ID, "client_id", session.ClientID)
		return nil, "", &oauth2.Error{
			Code:            oauth2.AccessDenied,
			Description:     "Authorization denied",
			Redirect:        true,
			BaseRedirectURL: session.RedirectURI,
		}
	}

	code := tokens.New(s.codeLifetime)
	session.AuthorizationGranted = true
	session.AuthorizationCode = code.Value
	session.AuthorizationCodeExpiration = code.Expiration

	session, err = s.store.SaveSession(ctx, session)
	if err != nil {
		return nil, "", fmt.Errorf("saving session: %w", err)
	}
	slog.Info("authorization granted", "session_id", session.ID, "client_id", session.ClientID)

	return session, grantRedirectURL(session, code), nil
}

// grantRedirectURL delivers the code to the client; parameter order is
// fixed by the koppelvlak.
func grantRedirectURL(session *Session, code tokens.Token) string {
	return session.RedirectURI + "?" +
		"code=" + url.QueryEscape(code.Value) +
		"&state=" + url.QueryEscape(session.State) +
		fmt.Sprintf("&expires_in=%d", int(code.Lifetime.Seconds())) +
		"&token_type=bearer"
}

// RedeemAuthorizationCode exchanges a code for an access token. The code
// is cleared and the token set in one atomic store update; a second
// redemption of the same code fails with invalid_grant.
func (s *Server) RedeemAuthorizationCode(ctx context.Context, params url.Values) (*oauth2.TokenResponse, error) {
	session, err := s.store.GetSessionByCode(ctx, params.Get("code"))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("loading session by code: %w", err)
	}

	if err := validateRedemptionRequest(params, session, time.Now()); err != nil {
		return nil, err
	}

	accessToken := tokens.New(s.tokenLifetime)
	session, err = s.store.RedeemCode(ctx, params.Get("code"), accessToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// lost the race against a concurrent redemption
			return nil, &oauth2.Error{
				Code:        oauth2.InvalidGrant,
				Description: "Invalid authorization token",
			}
		}
		return nil, fmt.Errorf("redeeming code: %w", err)
	}
	slog.Info("authorization code redeemed", "session_id", session.ID, "client_id", session.ClientID)

	return &oauth2.TokenResponse{
		AccessToken: accessToken.Value,
		TokenType:   "bearer",
		ExpiresIn:   int(accessToken.Lifetime.Seconds()),
		Scope:       session.Scope,
	}, nil
}
