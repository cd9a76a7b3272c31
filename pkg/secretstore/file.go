package secretstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/pkg/errors"
)

// File stores each blob in its own file below a root directory:
// <root>/<category>/<id>.json, or <id>.age when sealed with an age identity.
type File struct {
	root     string
	identity *age.X25519Identity
}

var _ Store = (*File)(nil)

// NewFile returns a file store rooted at dir. When identityFile is not empty
// blobs are encrypted to the identity's recipient before reaching the disk.
func NewFile(dir string, identityFile string) (*File, error) {
	if dir == "" {
		return nil, errors.New("secret store path must be provided")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "unable to create secret store directory")
	}
	f := &File{root: dir}
	if identityFile != "" {
		id, err := loadIdentity(identityFile)
		if err != nil {
			return nil, err
		}
		f.identity = id
	}
	return f, nil
}

func loadIdentity(path string) (*age.X25519Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read age identity")
	}
	ids, err := age.ParseIdentities(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse age identity")
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, errors.Errorf("no X25519 identity in %s", path)
}

func (f *File) path(category, id string) string {
	ext := ".json"
	if f.identity != nil {
		ext = ".age"
	}
	return filepath.Join(f.root, category, id+ext)
}

// Store writes the blob to a temporary file and renames it into place.
func (f *File) Store(category, id string, blob []byte) error {
	if err := checkKey(category, id); err != nil {
		return err
	}
	if f.identity != nil {
		sealed, err := f.seal(blob)
		if err != nil {
			return err
		}
		blob = sealed
	}

	dest := f.path(category, id)
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return errors.Wrap(err, "unable to create category directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+id+".tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary secret file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to restrict secret file mode")
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write secret file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to sync secret file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to close secret file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), dest), "unable to move secret file into place")
}

// Load reads the blob stored under (category, id).
func (f *File) Load(category, id string) ([]byte, error) {
	if err := checkKey(category, id); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path(category, id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read secret file")
	}
	if f.identity == nil {
		return raw, nil
	}
	return f.open(raw)
}

func (f *File) Close() error { return nil }

func (f *File) seal(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, f.identity.Recipient())
	if err != nil {
		return nil, errors.Wrap(err, "unable to create age encryptor")
	}
	if _, err := w.Write(blob); err != nil {
		return nil, errors.Wrap(err, "unable to encrypt secret")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "unable to finalize secret encryption")
	}
	return buf.Bytes(), nil
}

func (f *File) open(sealed []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(sealed), f.identity)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decrypt secret")
	}
	blob, err := io.ReadAll(r)
	return blob, errors.Wrap(err, "unable to read decrypted secret")
}
