// Package client implements the PGO half of the MedMij authorization-code
// flow: starting a session, sending the zorggebruiker to the right
// authorization endpoint, handling the response and exchanging the code
// for an access token.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
)

// Config identifies the PGO towards zorgaanbieders.
type Config struct {
	ClientID    string `yaml:"client_id" validate:"required,hostname"`
	RedirectURI string `yaml:"redirect_uri" validate:"required,url"`
}

// RequestFunc performs the outbound token-exchange call. It must respect
// the context, fail on non-2xx responses and return the decoded JSON body.
type RequestFunc func(ctx context.Context, method, url string, form url.Values) (map[string]any, error)

// ZALSource returns the current zorgaanbiederslijst. Called per operation
// so the host may swap in a freshly loaded list at any time.
type ZALSource func(ctx context.Context) (*registry.ZAL, error)

// WhitelistSource returns the current endpoint whitelist.
type WhitelistSource func(ctx context.Context) (Whitelist, error)

// Client orchestrates the client-side flow. It is stateless; all durable
// state lives in the SessionStore, and a Client may be shared between
// request handlers.
type Client struct {
	cfg       Config
	store     SessionStore
	zal       ZALSource
	whitelist WhitelistSource
	request   RequestFunc
}

type Option func(*Client) error

func WithSessionStore(store SessionStore) Option {
	return func(c *Client) error {
		c.store = store
		return nil
	}
}

func WithMemorySessionStore() Option {
	return func(c *Client) error {
		c.store = NewMemorySessionStore()
		return nil
	}
}

func WithZALSource(source ZALSource) Option {
	return func(c *Client) error {
		c.zal = source
		return nil
	}
}

func WithWhitelistSource(source WhitelistSource) Option {
	return func(c *Client) error {
		c.whitelist = source
		return nil
	}
}

func WithRequestFunc(request RequestFunc) Option {
	return func(c *Client) error {
		c.request = request
		return nil
	}
}

// New builds a Client. The session store, ZAL source, whitelist source and
// request func are all required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	switch {
	case c.store == nil:
		return nil, errors.New("client requires a session store")
	case c.zal == nil:
		return nil, errors.New("client requires a ZAL source")
	case c.whitelist == nil:
		return nil, errors.New("client requires a whitelist source")
	case c.request == nil:
		return nil, errors.New("client requires a request func")
	}
	return c, nil
}

// CreateSession starts a flow for the zorggebruiker's choice of
// zorgaanbieder and gegevensdienst.
func (c *Client) CreateSession(ctx context.Context, providerName, dataServiceID string) (*Session, error) {
	session, err := c.store.CreateSession(ctx, providerName, dataServiceID)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	slog.Info("oauth session created", "session_id", session.ID, "zorgaanbieder", providerName, "gegevensdienst", dataServiceID)
	return session, nil
}

// AuthorizationURL resolves the session's gegevensdienst in the ZAL and
// builds the URL the zorggebruiker is redirected to.
func (c *Client) AuthorizationURL(ctx context.Context, session *Session) (string, error) {
	ds, err := c.dataService(ctx, session)
	if err != nil {
		return "", err
	}

	endpoint := ds.AuthorizationEndpoint()
	if err := c.checkEndpoint(ctx, endpoint); err != nil {
		return "", err
	}

	// parameter order is fixed by the koppelvlak
	return endpoint + "?" +
		"state=" + url.QueryEscape(session.State) +
		"&scope=" + url.QueryEscape(session.Scope) +
		"&response_type=code" +
		"&client_id=" + url.QueryEscape(c.cfg.ClientID) +
		"&redirect_uri=" + url.QueryEscape(c.cfg.RedirectURI), nil
}

// HandleAuthResponse validates the authorization response, correlates it
// to a session via the state parameter and records the received code.
func (c *Client) HandleAuthResponse(ctx context.Context, params url.Values) (*Session, error) {
	if err := validateAuthResponse(params); err != nil {
		return nil, err
	}

	session, err := c.store.GetSessionByState(ctx, params.Get("state"))
	if err != nil {
		return nil, fmt.Errorf("looking up session by state: %w", err)
	}

	session.AuthorizationCode = params.Get("code")
	session.Authorized = true

	session, err = c.store.SaveSession(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	slog.Info("authorization response accepted", "session_id", session.ID)
	return session, nil
}

// ExchangeAuthorizationCode trades the session's code for an access token
// at the gegevensdienst's token endpoint. On success the code is cleared
// and the token stored in the same save.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, session *Session) (*Session, error) {
	ds, err := c.dataService(ctx, session)
	if err != nil {
		return nil, err
	}

	endpoint := ds.TokenEndpoint()
	if err := c.checkEndpoint(ctx, endpoint); err != nil {
		return nil, err
	}

	response, err := c.request(ctx, http.MethodPost, endpoint, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {session.AuthorizationCode},
		"redirect_uri": {c.cfg.RedirectURI},
		"client_id":    {c.cfg.ClientID},
	})
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}

	if err := validateAccessTokenResponse(response); err != nil {
		return nil, err
	}

	session.AccessToken = response["access_token"].(string)
	session.AuthorizationCode = ""

	session, err = c.store.SaveSession(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	slog.Info("authorization code exchanged", "session_id", session.ID)
	return session, nil
}

func (c *Client) dataService(ctx context.Context, session *Session) (*registry.DataService, error) {
	zal, err := c.zal(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ZAL: %w", err)
	}
	provider, err := zal.Provider(session.ProviderName)
	if err != nil {
		return nil, err
	}
	return provider.DataService(session.DataServiceID)
}

func (c *Client) checkEndpoint(ctx context.Context, endpoint string) error {
	whitelist, err := c.whitelist(ctx)
	if err != nil {
		return fmt.Errorf("loading whitelist: %w", err)
	}
	return validateEndpoint(endpoint, whitelist)
}
