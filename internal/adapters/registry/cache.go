package registry

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

const docKeyPrefix = "registry/"

// DocCache keeps downloaded registry documents in BadgerDB. Entries expire after the
// configured TTL.
type DocCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenDocCache opens a persistent document cache in dir, creating it if needed.
func OpenDocCache(dir string, ttl time.Duration) (*DocCache, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "path", dir)
	}
	return openDocCache(badger.DefaultOptions(dir), ttl)
}

// OpenInMemoryDocCache opens a document cache that lives only as long as the process.
func OpenInMemoryDocCache(ttl time.Duration) (*DocCache, error) {
	return openDocCache(badger.DefaultOptions("").WithInMemory(true), ttl)
}

func openDocCache(opts badger.Options, ttl time.Duration) (*DocCache, error) {
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "path", opts.Dir)
	}
	return &DocCache{db: db, ttl: ttl}, nil
}

func docKey(source string) []byte {
	return fmt.Appendf(nil, "%s%016x", docKeyPrefix, xxhash.Sum64String(source))
}

// Get returns the cached document for source, if it has not expired.
func (c *DocCache) Get(source string) ([]byte, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(source))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "registry", source)
	}
	return data, true, nil
}

// Put stores the document for source. A non-positive TTL disables caching.
func (c *DocCache) Put(source string, data []byte) error {
	if c.ttl <= 0 {
		return nil
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(docKey(source), data).WithTTL(c.ttl))
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "registry", source)
	}
	return nil
}

// Close closes the underlying database.
func (c *DocCache) Close() error {
	return c.db.Close()
}
