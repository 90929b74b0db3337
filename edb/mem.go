//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package edb

import (
	"fmt"
	"sync"

	"github.com/xsn1210/opensse-schemes/crypto"
)

var (
	_ EDB = &MemEDB{}
)

// MemEDB implements an in-memory encrypted database.
type MemEDB struct {
	m         sync.RWMutex
	valueSize int
	values    map[crypto.UpdateToken][]byte
}

// NewMemEDB creates a new in-memory encrypted database storing values
// of valueSize bytes.
func NewMemEDB(valueSize int) *MemEDB {
	return &MemEDB{
		valueSize: valueSize,
		values:    make(map[crypto.UpdateToken][]byte),
	}
}

// Get implements EDB.Get.
func (db *MemEDB) Get(token crypto.UpdateToken) ([]byte, bool, error) {
	db.m.RLock()
	defer db.m.RUnlock()

	value, ok := db.values[token]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Put implements EDB.Put.
func (db *MemEDB) Put(token crypto.UpdateToken, value []byte) error {
	if len(value) != db.valueSize {
		return fmt.Errorf("%w: %d bytes, expected %d",
			ErrValueSize, len(value), db.valueSize)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	db.m.Lock()
	db.values[token] = stored
	db.m.Unlock()
	return nil
}

// Remove implements EDB.Remove.
func (db *MemEDB) Remove(token crypto.UpdateToken) error {
	db.m.Lock()
	delete(db.values, token)
	db.m.Unlock()
	return nil
}

// Flush implements EDB.Flush.
func (db *MemEDB) Flush() error {
	return nil
}

// ValueSize implements EDB.ValueSize.
func (db *MemEDB) ValueSize() int {
	return db.valueSize
}

// Len returns the number of stored tokens.
func (db *MemEDB) Len() int {
	db.m.RLock()
	defer db.m.RUnlock()

	return len(db.values)
}
