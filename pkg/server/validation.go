package server

import (
	"net/url"
	"strings"
	"time"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
)

func invalidRequest(description string) error {
	return &oauth2.Error{Code: oauth2.InvalidRequest, Description: description}
}

// ValidateRedirectURI checks a redirect_uri against the koppelvlak rules:
// https only, no query, no fragment, and inside the client's registered
// domain when allowedDomain is non-empty.
func ValidateRedirectURI(rawURI, allowedDomain string) error {
	if rawURI == "" {
		return invalidRequest("redirect_uri required")
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return invalidRequest("redirect_uri is not a valid URI")
	}
	if u.Hostname() == "" {
		return invalidRequest("redirect_uri must be FQDN")
	}
	if u.Scheme != "https" {
		return invalidRequest("redirect_uri schema must be https")
	}
	if u.RawQuery != "" {
		return invalidRequest("redirect_uri can't contain query parameters")
	}
	if u.Fragment != "" {
		return invalidRequest("redirect_uri can't contain fragment")
	}

	if allowedDomain != "" {
		host := u.Hostname()
		if host != allowedDomain && !strings.HasSuffix(host, "."+allowedDomain) {
			return &oauth2.Error{
				Code:        oauth2.InvalidClient,
				Description: "redirect_uri must be in client domain",
			}
		}
	}
	return nil
}

// validateAuthorizationRequest gates session creation: only the
// authorization-code response type, only clients on the OCL, and a
// redirect_uri inside the client's own domain.
func validateAuthorizationRequest(params url.Values, ocl *registry.OCL) error {
	if params.Get("response_type") != "code" {
		return &oauth2.Error{
			Code:        oauth2.UnsupportedResponseType,
			Description: `Only "code" response_type supported`,
		}
	}

	clientID := params.Get("client_id")
	if !ocl.Contains(clientID) {
		return &oauth2.Error{
			Code:        oauth2.InvalidClient,
			Description: "client unknown",
		}
	}

	// the client_id of a MedMij OAuth client is its hostname
	if err := ValidateRedirectURI(params.Get("redirect_uri"), clientID); err != nil {
		return err
	}

	if params.Get("state") == "" {
		return invalidRequest("state required")
	}
	if params.Get("scope") == "" {
		return invalidRequest("scope required")
	}
	return nil
}

// validateRedemptionRequest gates the code-for-token exchange. The session
// is the one loaded by code, or nil when the code matched nothing.
func validateRedemptionRequest(params url.Values, session *Session, now time.Time) error {
	if session == nil || session.AuthorizationCode == "" || now.After(session.AuthorizationCodeExpiration) {
		return &oauth2.Error{
			Code:        oauth2.InvalidGrant,
			Description: "Invalid authorization token",
		}
	}
	if params.Get("client_id") != session.ClientID {
		return &oauth2.Error{
			Code:        oauth2.InvalidClient,
			Description: "client_id not associated with this authorization_token",
		}
	}
	if params.Get("redirect_uri") != session.RedirectURI {
		return invalidRequest("Invalid redirect_uri")
	}
	if params.Get("grant_type") != "authorization_code" {
		return &oauth2.Error{
			Code:        oauth2.UnsupportedGrantType,
			Description: `"authorization_code" in only supported grant_type`,
		}
	}
	return nil
}
