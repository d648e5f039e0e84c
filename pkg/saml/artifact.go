// Package saml implements the small slice of SAML the MedMij flow needs:
// artifact decoding, the deflated-and-signed request-parameter encoding of
// the HTTP-Redirect binding, and AuthnRequest construction. It is not a
// SAML identity provider.
package saml

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/url"
)

// artifact header: 2-byte type code, 2-byte endpoint index, 20-byte source id
const artifactHeaderLen = 24

// Artifact is a compact binary reference to a protocol message held by the
// artifact issuer.
type Artifact struct {
	TypeCode      uint16
	EndpointIndex uint16
	SourceID      string // hex encoded
	MessageHandle []byte
}

// ParseArtifact decodes a percent-encoded, base64 artifact parameter into
// its fixed binary layout.
func ParseArtifact(value string) (*Artifact, error) {
	raw, err := base64URLDecode(value)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if len(raw) < artifactHeaderLen {
		return nil, fmt.Errorf("artifact too short: %d bytes, want at least %d", len(raw), artifactHeaderLen)
	}

	return &Artifact{
		TypeCode:      binary.BigEndian.Uint16(raw[0:2]),
		EndpointIndex: binary.BigEndian.Uint16(raw[2:4]),
		SourceID:      hex.EncodeToString(raw[4:24]),
		MessageHandle: raw[24:],
	}, nil
}

// base64URLEncode renders bytes as standard base64 and percent-encodes the
// result, the encoding SAML redirect bindings put in query parameters.
func base64URLEncode(raw []byte) string {
	return url.QueryEscape(base64.StdEncoding.EncodeToString(raw))
}

func base64URLDecode(value string) ([]byte, error) {
	unescaped, err := url.QueryUnescape(value)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(unescaped)
}
