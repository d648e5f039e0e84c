package client

import (
	"fmt"
	"net/url"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
)

// validateAuthResponse checks the parameters a zorgaanbieder sends back to
// the redirect_uri. A recognized error parameter becomes the matching
// protocol error; an unrecognized one surfaces as oauth2.ErrUnknownErrorCode,
// which is a caller error and must not be rendered like a protocol error.
func validateAuthResponse(params url.Values) error {
	if wire := params.Get("error"); wire != "" {
		code, err := oauth2.LookupCode(wire)
		if err != nil {
			return err
		}
		return &oauth2.Error{
			Code:        code,
			Description: params.Get("error_description"),
		}
	}

	if params.Get("code") == "" {
		return fmt.Errorf("missing param 'code' in auth response")
	}
	if params.Get("state") == "" {
		return fmt.Errorf("missing param 'state' in auth response")
	}
	return nil
}

// validateAccessTokenResponse checks the decoded body of a token-exchange
// response.
func validateAccessTokenResponse(response map[string]any) error {
	if token, _ := response["access_token"].(string); token == "" {
		return fmt.Errorf("no access token in response")
	}
	if tokenType, _ := response["token_type"].(string); tokenType == "" {
		return fmt.Errorf("no token_type present in response")
	}
	return nil
}

// Whitelist is the set of hostnames a PGO is allowed to contact. Endpoints
// resolved from the ZAL are checked against it before any redirect or
// request, as a defense against a poisoned or stale registry.
type Whitelist map[string]struct{}

// NewWhitelist builds a Whitelist from hostnames.
func NewWhitelist(hostnames ...string) Whitelist {
	wl := make(Whitelist, len(hostnames))
	for _, hostname := range hostnames {
		wl[hostname] = struct{}{}
	}
	return wl
}

// Contains reports whether the hostname is whitelisted.
func (w Whitelist) Contains(hostname string) bool {
	_, ok := w[hostname]
	return ok
}

func validateEndpoint(endpoint string, whitelist Whitelist) error {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return &oauth2.Error{
			Code:        oauth2.InvalidRequest,
			Description: fmt.Sprintf("invalid endpoint %q", endpoint),
		}
	}
	if !whitelist.Contains(u.Hostname()) {
		return &oauth2.Error{
			Code:        oauth2.InvalidRequest,
			Description: fmt.Sprintf("endpoint %q not in whitelist", u.Hostname()),
		}
	}
	return nil
}
