// Package secretstore persists secret blobs on the local host, keyed by a
// category and an identifier.
package secretstore

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Load when no blob is stored under the key.
var ErrNotFound = errors.New("secret not found")

// Store is implemented by local secret backends.
type Store interface {
	// Store persists blob under (category, id), replacing any existing blob.
	// The blob must be durable when Store returns.
	Store(category, id string, blob []byte) error
	// Load returns the blob stored under (category, id), or ErrNotFound.
	Load(category, id string) ([]byte, error)
	// Close releases the backend.
	Close() error
}

// IsNotFound reports whether err indicates a missing blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func checkKey(category, id string) error {
	for _, part := range []string{category, id} {
		switch {
		case part == "":
			return errors.New("secret key parts must not be empty")
		case part == "." || part == "..",
			strings.ContainsAny(part, `/\`),
			strings.ContainsRune(part, 0):
			return errors.Errorf("invalid secret key part %q", part)
		}
	}
	return nil
}
