// Package oauth2 carries the wire types shared by the MedMij client and
// server roles: the closed catalog of protocol error codes from RFC 6749,
// the Error value that is rendered either as a redirect or as a JSON body,
// and the token response.
package oauth2

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ErrorCode is one of the protocol error conditions defined by RFC 6749
// for the authorization-code grant.
type ErrorCode int

const (
	InvalidRequest ErrorCode = iota
	AccessDenied
	UnauthorizedClient
	UnsupportedResponseType
	InvalidScope
	ServerError
	TemporarilyUnavailable
	InvalidClient
	InvalidGrant
	UnsupportedGrantType
)

type errorInfo struct {
	wire   string
	status int
}

// the standard error-response mapping of RFC 6749 section 5.2
var catalog = map[ErrorCode]errorInfo{
	InvalidRequest:          {"invalid_request", http.StatusBadRequest},
	AccessDenied:            {"access_denied", http.StatusBadRequest},
	UnauthorizedClient:      {"unauthorized_client", http.StatusUnauthorized},
	UnsupportedResponseType: {"unsupported_response_type", http.StatusBadRequest},
	InvalidScope:            {"invalid_scope", http.StatusBadRequest},
	ServerError:             {"server_error", http.StatusInternalServerError},
	TemporarilyUnavailable:  {"temporarily_unavailable", http.StatusServiceUnavailable},
	InvalidClient:           {"invalid_client", http.StatusBadRequest},
	InvalidGrant:            {"invalid_grant", http.StatusBadRequest},
	UnsupportedGrantType:    {"unsupported_grant_type", http.StatusBadRequest},
}

// Wire returns the error string as it appears in query parameters and
// JSON bodies, e.g. "invalid_request".
func (c ErrorCode) Wire() string {
	return catalog[c].wire
}

// Status returns the HTTP status bound to the error code.
func (c ErrorCode) Status() int {
	return catalog[c].status
}

// ErrUnknownErrorCode signals that a wire string did not match any code in
// the catalog. It is a caller/configuration error, not a protocol error,
// and must not be surfaced like one.
var ErrUnknownErrorCode = errors.New("unknown error code")

// LookupCode resolves a wire string such as "access_denied" back to its
// ErrorCode.
func LookupCode(wire string) (ErrorCode, error) {
	for code, info := range catalog {
		if info.wire == wire {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownErrorCode, wire)
}

// Error is a protocol violation. When Redirect is set the boundary layer
// must answer with a 302 to RedirectURL; otherwise it renders Body as JSON
// with the status of the code.
type Error struct {
	Code            ErrorCode
	Description     string
	Redirect        bool
	BaseRedirectURL string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.Wire(), e.Description)
}

// Status returns the HTTP status mapped to the error code.
func (e *Error) Status() int {
	return e.Code.Status()
}

// RedirectURL renders the error as a redirect target,
// base?error=...&error_description=...
func (e *Error) RedirectURL() (string, error) {
	if !e.Redirect || e.BaseRedirectURL == "" {
		return "", errors.New("error is not redirectable")
	}
	params := url.Values{}
	params.Set("error", e.Code.Wire())
	params.Set("error_description", e.Description)
	return e.BaseRedirectURL + "?" + params.Encode(), nil
}

// ErrorBody is the JSON rendering of an Error.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *Error) Body() ErrorBody {
	return ErrorBody{
		Error:            e.Code.Wire(),
		ErrorDescription: e.Description,
	}
}

// TokenResponse is the body of a successful token-exchange response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}
