//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package edb

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/xsn1210/opensse-schemes/crypto"
)

var (
	_ EDB = &BadgerEDB{}
)

// BadgerConfig holds the configuration of a BadgerDB-backed encrypted
// database.
type BadgerConfig struct {
	// Path is the directory for the database files. Ignored when
	// InMemory is set.
	Path string

	// InMemory disables disk persistence.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// DefaultBadgerConfig returns the production configuration for the
// database directory path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryBadgerConfig returns a configuration for testing without
// disk I/O.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory: true,
	}
}

// BadgerEDB implements the encrypted database on BadgerDB.
type BadgerEDB struct {
	db        *badger.DB
	valueSize int
	inMemory  bool
}

// OpenBadger opens a BadgerDB-backed encrypted database storing
// values of valueSize bytes.
func OpenBadger(cfg BadgerConfig, valueSize int) (*BadgerEDB, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerEDB{
		db:        db,
		valueSize: valueSize,
		inMemory:  cfg.InMemory,
	}, nil
}

// Get implements EDB.Get.
func (b *BadgerEDB) Get(token crypto.UpdateToken) ([]byte, bool, error) {
	var value []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(token[:])
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put implements EDB.Put.
func (b *BadgerEDB) Put(token crypto.UpdateToken, value []byte) error {
	if len(value) != b.valueSize {
		return fmt.Errorf("%w: %d bytes, expected %d",
			ErrValueSize, len(value), b.valueSize)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(token[:], value)
	})
}

// Remove implements EDB.Remove.
func (b *BadgerEDB) Remove(token crypto.UpdateToken) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(token[:])
	})
}

// Flush implements EDB.Flush.
func (b *BadgerEDB) Flush() error {
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// ValueSize implements EDB.ValueSize.
func (b *BadgerEDB) ValueSize() int {
	return b.valueSize
}

// Close closes the underlying database.
func (b *BadgerEDB) Close() error {
	return b.db.Close()
}
