package client_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/client"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
)

const testZAL = `<?xml version="1.0" encoding="UTF-8"?>
<Zorgaanbiederslijst xmlns="xmlns://afsprakenstelsel.medmij.nl/zorgaanbiederslijst/release2/">
  <Zorgaanbieders>
    <Zorgaanbieder>
      <Zorgaanbiedernaam>oauthserverlocal@medmij</Zorgaanbiedernaam>
      <Gegevensdiensten>
        <Gegevensdienst>
          <GegevensdienstId>1</GegevensdienstId>
          <AuthorizationEndpoint>
            <AuthorizationEndpointuri>https://oauthserver.local/oauth/authorize</AuthorizationEndpointuri>
          </AuthorizationEndpoint>
          <TokenEndpoint>
            <TokenEndpointuri>https://oauthserver.local/oauth/token</TokenEndpointuri>
          </TokenEndpoint>
          <Systeemrollen>
            <Systeemrol>
              <Systeemrolcode>MM-2.0-RMB-FHIR</Systeemrolcode>
              <ResourceEndpoint>https://oauthserver.local/fhir</ResourceEndpoint>
            </Systeemrol>
          </Systeemrollen>
        </Gegevensdienst>
      </Gegevensdiensten>
    </Zorgaanbieder>
  </Zorgaanbieders>
</Zorgaanbiederslijst>`

// recordingRequester captures the outbound token-exchange call and answers
// with a canned body.
type recordingRequester struct {
	method   string
	url      string
	form     url.Values
	response map[string]any
	err      error
}

func (r *recordingRequester) request(ctx context.Context, method, requestURL string, form url.Values) (map[string]any, error) {
	r.method = method
	r.url = requestURL
	r.form = form
	if r.err != nil {
		return nil, r.err
	}
	return r.response, nil
}

func newTestClient(t *testing.T, requester *recordingRequester, whitelist client.Whitelist) *client.Client {
	t.Helper()

	zal, err := registry.ParseZAL(strings.NewReader(testZAL), registry.GNL{})
	require.NoError(t, err)

	pgo, err := client.New(
		client.Config{
			ClientID:    "oauthclient.local",
			RedirectURI: "https://oauthclient.local/oauth/cb",
		},
		client.WithMemorySessionStore(),
		client.WithZALSource(func(ctx context.Context) (*registry.ZAL, error) {
			return zal, nil
		}),
		client.WithWhitelistSource(func(ctx context.Context) (client.Whitelist, error) {
			return whitelist, nil
		}),
		client.WithRequestFunc(requester.request),
	)
	require.NoError(t, err)
	return pgo
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := client.New(client.Config{
		ClientID:    "oauthclient.local",
		RedirectURI: "https://oauthclient.local/oauth/cb",
	})
	assert.ErrorContains(t, err, "session store")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := client.New(client.Config{
		ClientID:    "not a hostname!",
		RedirectURI: "https://oauthclient.local/oauth/cb",
	}, client.WithMemorySessionStore())
	assert.ErrorContains(t, err, "invalid client config")
}

func TestCreateSession(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("oauthserver.local"))

	session, err := pgo.CreateSession(context.Background(), "oauthserverlocal@medmij", "1")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.State)
	assert.Equal(t, "oauthserverlocal@medmij", session.ProviderName)
	assert.Equal(t, "1", session.DataServiceID)
	assert.Equal(t, "1", session.Scope)
	assert.False(t, session.Authorized)
}

func TestAuthorizationURL(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("oauthserver.local"))

	session, err := pgo.CreateSession(context.Background(), "oauthserverlocal@medmij", "1")
	require.NoError(t, err)

	authURL, err := pgo.AuthorizationURL(context.Background(), session)
	require.NoError(t, err)

	want := "https://oauthserver.local/oauth/authorize" +
		"?state=" + session.State +
		"&scope=1&response_type=code&client_id=oauthclient.local" +
		"&redirect_uri=https%3A%2F%2Foauthclient.local%2Foauth%2Fcb"
	assert.Equal(t, want, authURL)
}

func TestAuthorizationURLEndpointNotWhitelisted(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("other.host"))

	session, err := pgo.CreateSession(context.Background(), "oauthserverlocal@medmij", "1")
	require.NoError(t, err)

	_, err = pgo.AuthorizationURL(context.Background(), session)
	var oauthErr *oauth2.Error
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, oauth2.InvalidRequest, oauthErr.Code)
}

func TestAuthorizationURLUnknownProvider(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("oauthserver.local"))

	_, err := pgo.AuthorizationURL(context.Background(), &client.Session{
		ProviderName:  "nobody@medmij",
		DataServiceID: "1",
	})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestHandleAuthResponse(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("oauthserver.local"))

	session, err := pgo.CreateSession(context.Background(), "oauthserverlocal@medmij", "1")
	require.NoError(t, err)

	session, err = pgo.HandleAuthResponse(context.Background(), url.Values{
		"code":  {"authorization-code-1"},
		"state": {session.State},
	})
	require.NoError(t, err)
	assert.Equal(t, "authorization-code-1", session.AuthorizationCode)
	assert.True(t, session.Authorized)
}

func TestHandleAuthResponseErrors(t *testing.T) {
	pgo := newTestClient(t, &recordingRequester{}, client.NewWhitelist("oauthserver.local"))
	ctx := context.Background()

	t.Run("missing code", func(t *testing.T) {
		_, err := pgo.HandleAuthResponse(ctx, url.Values{"state": {"abc"}})
		assert.EqualError(t, err, "missing param 'code' in auth response")
	})

	t.Run("missing state", func(t *testing.T) {
		_, err := pgo.HandleAuthResponse(ctx, url.Values{"code": {"abc"}})
		assert.EqualError(t, err, "missing param 'state' in auth response")
	})

	t.Run("protocol error from server", func(t *testing.T) {
		_, err := pgo.HandleAuthResponse(ctx, url.Values{
			"error":             {"access_denied"},
			"error_description": {"Authorization denied"},
		})
		var oauthErr *oauth2.Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth2.AccessDenied, oauthErr.Code)
		assert.Equal(t, "Authorization denied", oauthErr.Description)
	})

	t.Run("unknown error code", func(t *testing.T) {
		_, err := pgo.HandleAuthResponse(ctx, url.Values{"error": {"random_string"}})
		assert.ErrorIs(t, err, oauth2.ErrUnknownErrorCode)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := pgo.HandleAuthResponse(ctx, url.Values{
			"code":  {"abc"},
			"state": {"no-such-state"},
		})
		assert.ErrorIs(t, err, client.ErrSessionNotFound)
	})
}

func TestExchangeAuthorizationCode(t *testing.T) {
	requester := &recordingRequester{
		response: map[string]any{
			"access_token": "access-token-1",
			"token_type":   "bearer",
			"expires_in":   float64(900),
		},
	}
	pgo := newTestClient(t, requester, client.NewWhitelist("oauthserver.local"))
	ctx := context.Background()

	session, err := pgo.CreateSession(ctx, "oauthserverlocal@medmij", "1")
	require.NoError(t, err)
	session, err = pgo.HandleAuthResponse(ctx, url.Values{
		"code":  {"authorization-code-1"},
		"state": {session.State},
	})
	require.NoError(t, err)

	session, err = pgo.ExchangeAuthorizationCode(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, "POST", requester.method)
	assert.Equal(t, "https://oauthserver.local/oauth/token", requester.url)
	assert.Equal(t, "authorization_code", requester.form.Get("grant_type"))
	assert.Equal(t, "authorization-code-1", requester.form.Get("code"))
	assert.Equal(t, "https://oauthclient.local/oauth/cb", requester.form.Get("redirect_uri"))
	assert.Equal(t, "oauthclient.local", requester.form.Get("client_id"))

	assert.Equal(t, "access-token-1", session.AccessToken)
	assert.Empty(t, session.AuthorizationCode)
}

func TestExchangeAuthorizationCodeBadResponses(t *testing.T) {
	cases := map[string]struct {
		response map[string]any
		want     string
	}{
		"no access token": {
			response: map[string]any{"token_type": "bearer"},
			want:     "no access token in response",
		},
		"no token type": {
			response: map[string]any{"access_token": "access-token-1"},
			want:     "no token_type present in response",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			requester := &recordingRequester{response: tc.response}
			pgo := newTestClient(t, requester, client.NewWhitelist("oauthserver.local"))
			ctx := context.Background()

			session, err := pgo.CreateSession(ctx, "oauthserverlocal@medmij", "1")
			require.NoError(t, err)
			session, err = pgo.HandleAuthResponse(ctx, url.Values{
				"code":  {"authorization-code-1"},
				"state": {session.State},
			})
			require.NoError(t, err)

			_, err = pgo.ExchangeAuthorizationCode(ctx, session)
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestExchangeAuthorizationCodeRequestFailure(t *testing.T) {
	requester := &recordingRequester{err: errors.New("connection refused")}
	pgo := newTestClient(t, requester, client.NewWhitelist("oauthserver.local"))
	ctx := context.Background()

	session, err := pgo.CreateSession(ctx, "oauthserverlocal@medmij", "1")
	require.NoError(t, err)

	_, err = pgo.ExchangeAuthorizationCode(ctx, session)
	assert.ErrorContains(t, err, "connection refused")
}
