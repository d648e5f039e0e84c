package saml

import (
	"crypto/rsa"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Authentication assurance levels of the DigiD koppelvlak, lowest first.
const (
	ContextClassRefBasis        = "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"
	ContextClassRefMidden       = "urn:oasis:names:tc:SAML:2.0:ac:classes:MobileTwoFactorContract"
	ContextClassRefSubstantieel = "urn:oasis:names:tc:SAML:2.0:ac:classes:Smartcard"
	ContextClassRefHoog         = "urn:oasis:names:tc:SAML:2.0:ac:classes:SmartcardPKI"
)

// RequestParams describes an AuthnRequest. When ACSURL is set it takes
// precedence over ACSIndex.
type RequestParams struct {
	Issuer          string
	IssueInstant    time.Time
	ACSIndex        int
	ACSURL          string
	ContextClassRef string
	ForceAuthn      bool
	ProviderName    string
}

type xmlAuthnRequest struct {
	XMLName         xml.Name `xml:"AuthnRequest"`
	XmlnsSamlp      string   `xml:"xmlns:samlp,attr"`
	XmlnsSaml       string   `xml:"xmlns:saml,attr"`
	Version         string   `xml:"Version,attr"`
	IssueInstant    string   `xml:"IssueInstant,attr"`
	ForceAuthn      string   `xml:"ForceAuthn,attr,omitempty"`
	ACSIndex        string   `xml:"AssertionConsumerServiceIndex,attr,omitempty"`
	ACSURL          string   `xml:"AssertionConsumerServiceURL,attr,omitempty"`
	ProviderName    string   `xml:"ProviderName,attr,omitempty"`
	Issuer          string   `xml:"saml:Issuer"`
	RequestedAuthnContext struct {
		Comparison      string `xml:"Comparison,attr"`
		ContextClassRef string `xml:"saml:AuthnContextClassRef"`
	} `xml:"samlp:RequestedAuthnContext"`
}

// XML renders the request as an AuthnRequest document.
func (p RequestParams) XML() ([]byte, error) {
	instant := p.IssueInstant
	if instant.IsZero() {
		instant = time.Now()
	}
	contextClassRef := p.ContextClassRef
	if contextClassRef == "" {
		contextClassRef = ContextClassRefBasis
	}

	req := xmlAuthnRequest{
		XmlnsSamlp:   "urn:oasis:names:tc:SAML:2.0:protocol",
		XmlnsSaml:    "urn:oasis:names:tc:SAML:2.0:assertion",
		Version:      "2.0",
		IssueInstant: instant.Format(time.RFC3339),
		ProviderName: p.ProviderName,
		Issuer:       p.Issuer,
	}
	if p.ForceAuthn {
		req.ForceAuthn = "true"
	}
	if p.ACSURL != "" {
		req.ACSURL = p.ACSURL
	} else {
		req.ACSIndex = strconv.Itoa(p.ACSIndex)
	}
	req.RequestedAuthnContext.Comparison = "minimum"
	req.RequestedAuthnContext.ContextClassRef = contextClassRef

	out, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling AuthnRequest: %w", err)
	}
	return out, nil
}

// BuildRequestQuery renders the signed redirect-binding query string:
// SAMLRequest, RelayState, SigAlg and a Signature over the three of them.
// Parameter order is part of the signed material and must not change.
func BuildRequestQuery(params RequestParams, relayState string, key *rsa.PrivateKey) (string, error) {
	payload, err := params.XML()
	if err != nil {
		return "", err
	}
	encoded, err := EncodeURLParam(payload)
	if err != nil {
		return "", err
	}

	query := "SAMLRequest=" + encoded +
		"&RelayState=" + url.QueryEscape(relayState) +
		"&SigAlg=" + url.QueryEscape(SigAlgRSASHA1)

	signature, err := SignParams(query, key)
	if err != nil {
		return "", err
	}
	return query + "&Signature=" + base64URLEncode(signature), nil
}
