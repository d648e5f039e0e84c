// Package tokens issues the opaque authorization codes and access tokens
// used in the MedMij flow. Token values are never structured; a resource
// server learns nothing from the value itself.
package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// DefaultLifetime is the reference lifetime for both authorization codes
// and access tokens.
const DefaultLifetime = 900 * time.Second

// Token is an opaque value with an absolute expiration. Immutable once
// issued.
type Token struct {
	Value      string
	Expiration time.Time
	Lifetime   time.Duration
}

// New issues a token with 128 bits of entropy, expiring lifetime from now.
func New(lifetime time.Duration) Token {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("random number generation failed")
	}
	return Token{
		Value:      base64.RawURLEncoding.EncodeToString(buf),
		Expiration: time.Now().Add(lifetime),
		Lifetime:   lifetime,
	}
}

// Expired reports whether the token is expired at the given moment.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.Expiration)
}
