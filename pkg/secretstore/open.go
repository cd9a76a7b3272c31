package secretstore

import "github.com/pkg/errors"

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Open returns the named backend rooted at path.
func Open(backend, path, ageIdentity string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFile(path, ageIdentity)
	case BackendBadger:
		if ageIdentity != "" {
			return nil, errors.New("age sealing is only supported by the file backend")
		}
		if path == "" {
			return nil, errors.New("secret store path must be provided")
		}
		return NewBadger(path)
	}
	return nil, errors.Errorf("unknown secret store backend %q", backend)
}
