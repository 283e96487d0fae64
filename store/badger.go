package store

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
)

const (
	// Default BadgerDB discardRatio. It represents the discard ratio for the
	// BadgerDB GC.
	//
	// Ref: https://godoc.org/github.com/dgraph-io/badger#DB.RunValueLogGC
	badgerDiscardRatio = 0.5

	// Default BadgerDB GC interval
	badgerGCInterval = 10 * time.Minute
)

// BadgerDB is a wrapper around a BadgerDB backend database that implements
// the KVStore interface.
type BadgerDB struct {
	db  *badger.DB
	ctx context.Context
}

// NewBadgerDB returns a new initialized BadgerDB database implementing the
// KVStore interface. If the database cannot be initialized, an error will be returned.
func NewBadgerDB(ctx context.Context, dataDir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.SyncWrites = true
	opts.Dir, opts.ValueDir = dataDir, dataDir
	opts.Logger = nil

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db in %s: %w", dataDir, err)
	}

	bdb := &BadgerDB{
		db:  badgerDB,
		ctx: ctx,
	}

	go bdb.runGC()
	return bdb, nil
}

// Get attempts to get a value for a given key and namespace. If the key does
// not exist in the provided namespace, ErrNotFound() is returned.
func (bdb *BadgerDB) Get(namespace, key []byte) ([]byte, error) {
	var value []byte

	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bdb.badgerNamespaceKey(namespace, key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set stores a value for a given key and namespace
func (bdb *BadgerDB) Set(namespace, key, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bdb.badgerNamespaceKey(namespace, key), value)
	})
}

// Remove removes a single entry from the database
func (bdb *BadgerDB) Remove(namespace, key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bdb.badgerNamespaceKey(namespace, key))
	})
}

// RemovePrefix removes every entry of namespace whose key starts with prefix
func (bdb *BadgerDB) RemovePrefix(namespace, prefix []byte) error {
	return bdb.db.DropPrefix(bdb.badgerNamespaceKey(namespace, prefix))
}

// Close closes the underlying BadgerDB database
func (bdb *BadgerDB) Close() error {
	return bdb.db.Close()
}

// runGC triggers the garbage collection for the BadgerDB backend database. It
// should be run in a goroutine.
func (bdb *BadgerDB) runGC() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := bdb.db.RunValueLogGC(badgerDiscardRatio)
			if err != nil {
				// don't report error when GC didn't result in any cleanup
				if err == badger.ErrNoRewrite {
					log.Debugf("no BadgerDB GC occurred: %v", err)
				} else {
					log.Errorf("failed to GC BadgerDB: %v", err)
				}
			}

		case <-bdb.ctx.Done():
			return
		}
	}
}

// Each iterates over all items that match namespace and prefix.
// The key passed to callback has the namespace stripped.
func (bdb *BadgerDB) Each(namespace, prefix []byte, callback KVStoreEachFunc) error {
	nsLen := len(bdb.badgerNamespaceKey(namespace, nil))

	return bdb.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := bdb.badgerNamespaceKey(namespace, prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(v []byte) error {
				callback(key[nsLen:], v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries that match namespace and prefix
func (bdb *BadgerDB) Count(namespace, prefix []byte) (int, error) {
	c := 0

	err := bdb.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := bdb.badgerNamespaceKey(namespace, prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			c++
		}
		return nil
	})

	return c, err
}

// ErrNotFound is the error badger returns when it can't find a key in the database
func (bdb *BadgerDB) ErrNotFound() error {
	return badger.ErrKeyNotFound
}

// badgerNamespaceKey returns a composite key used for lookup and storage for a
// given namespace and key.
func (bdb *BadgerDB) badgerNamespaceKey(namespace, key []byte) []byte {
	return []byte(fmt.Sprintf("%s/%s", string(namespace), string(key)))
}
