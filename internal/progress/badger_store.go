package progress

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/kinocore/kinocore/internal/log"
)

// BadgerStore implements Store using BadgerDB. Entries are stored as JSON
// under the composite progress key.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a badger-backed progress store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, viewerKey string, movieID int64) (*Entry, error) {
	key := []byte(Key(viewerKey, movieID))
	var out *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if jsonErr := json.Unmarshal(val, &e); jsonErr != nil {
				// Unparseable entries count as absent.
				l := log.WithComponent("progress")
				l.Warn().Str("key", string(key)).Msg("discarding malformed progress entry")
				return nil
			}
			out = &e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Put(ctx context.Context, viewerKey string, movieID int64, e *Entry) error {
	clean := sanitize(e)
	buf, err := json.Marshal(clean)
	if err != nil {
		return err
	}
	key := []byte(Key(viewerKey, movieID))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (s *BadgerStore) Delete(ctx context.Context, viewerKey string, movieID int64) error {
	key := []byte(Key(viewerKey, movieID))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *BadgerStore) List(ctx context.Context, viewerKey string) (map[int64]Entry, error) {
	prefix := []byte("progress:" + viewerKey + ":")
	out := make(map[int64]Entry)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			movieID, err := strconv.ParseInt(string(item.Key()[len(prefix):]), 10, 64)
			if err != nil {
				continue
			}
			if err := item.Value(func(val []byte) error {
				var e Entry
				if jsonErr := json.Unmarshal(val, &e); jsonErr != nil {
					return nil
				}
				out[movieID] = e
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
