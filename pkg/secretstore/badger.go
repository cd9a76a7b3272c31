package secretstore

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Badger stores blobs in an embedded badger database under the key
// "<category>/<id>".
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// NewBadger opens (or creates) the database at dir. An empty dir opens an
// in-memory database.
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open badger secret store")
	}
	return &Badger{db: db}, nil
}

func badgerKey(category, id string) []byte {
	return []byte(category + "/" + id)
}

func (b *Badger) Store(category, id string, blob []byte) error {
	if err := checkKey(category, id); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(category, id), blob)
	})
	return errors.Wrap(err, "unable to store secret")
}

func (b *Badger) Load(category, id string) ([]byte, error) {
	if err := checkKey(category, id); err != nil {
		return nil, err
	}
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(category, id))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to load secret")
	}
	return blob, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
