// Package registry loads the three MedMij reference-data feeds: the
// zorgaanbiederslijst (ZAL), the OAuth client list (OCL) and the
// gegevensdienstnamenlijst (GNL). The parsed structures are immutable and
// safe for concurrent readers; a reload must swap in a freshly parsed
// structure, never mutate one in place.
package registry

import (
	"errors"
	"fmt"
)

// schema version of the MedMij XML feeds
const version = "release2"

var (
	// ErrMalformed marks a registry document that is missing a required
	// element. Parsing fails hard on it: silently skipping, say, an empty
	// endpoint list would let later validations pass against nothing.
	ErrMalformed = errors.New("malformed registry document")

	// ErrNotFound marks a lookup miss. Callers treat it as a bad request,
	// never as a server fault.
	ErrNotFound = errors.New("not found")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
