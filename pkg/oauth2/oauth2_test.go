package oauth2_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
)

func TestCatalog(t *testing.T) {
	cases := []struct {
		code   oauth2.ErrorCode
		wire   string
		status int
	}{
		{oauth2.InvalidRequest, "invalid_request", http.StatusBadRequest},
		{oauth2.AccessDenied, "access_denied", http.StatusBadRequest},
		{oauth2.UnauthorizedClient, "unauthorized_client", http.StatusUnauthorized},
		{oauth2.UnsupportedResponseType, "unsupported_response_type", http.StatusBadRequest},
		{oauth2.InvalidScope, "invalid_scope", http.StatusBadRequest},
		{oauth2.ServerError, "server_error", http.StatusInternalServerError},
		{oauth2.TemporarilyUnavailable, "temporarily_unavailable", http.StatusServiceUnavailable},
		{oauth2.InvalidClient, "invalid_client", http.StatusBadRequest},
		{oauth2.InvalidGrant, "invalid_grant", http.StatusBadRequest},
		{oauth2.UnsupportedGrantType, "unsupported_grant_type", http.StatusBadRequest},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.wire, tc.code.Wire())
		assert.Equal(t, tc.status, tc.code.Status())

		code, err := oauth2.LookupCode(tc.wire)
		require.NoError(t, err)
		assert.Equal(t, tc.code, code)
	}
}

func TestLookupCodeUnknown(t *testing.T) {
	_, err := oauth2.LookupCode("random_string")
	require.Error(t, err)
	assert.True(t, errors.Is(err, oauth2.ErrUnknownErrorCode))

	// an unknown wire string is not a protocol error
	var oauthErr *oauth2.Error
	assert.False(t, errors.As(err, &oauthErr))
}

func TestErrorRedirectURL(t *testing.T) {
	err := &oauth2.Error{
		Code:            oauth2.AccessDenied,
		Description:     "Authorization denied",
		Redirect:        true,
		BaseRedirectURL: "https://oauthclient.local/oauth/cb",
	}

	target, rerr := err.RedirectURL()
	require.NoError(t, rerr)
	assert.Equal(t, "https://oauthclient.local/oauth/cb?error=access_denied&error_description=Authorization+denied", target)
}

func TestErrorRedirectURLNotRedirectable(t *testing.T) {
	err := &oauth2.Error{Code: oauth2.InvalidRequest, Description: "state required"}

	_, rerr := err.RedirectURL()
	assert.Error(t, rerr)
}

func TestErrorBody(t *testing.T) {
	err := &oauth2.Error{Code: oauth2.InvalidGrant, Description: "Invalid authorization token"}

	assert.Equal(t, "invalid_grant: Invalid authorization token", err.Error())
	assert.Equal(t, oauth2.ErrorBody{
		Error:            "invalid_grant",
		ErrorDescription: "Invalid authorization token",
	}, err.Body())
	assert.Equal(t, http.StatusBadRequest, err.Status())
}
