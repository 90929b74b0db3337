//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package edb

import (
	"errors"

	"github.com/xsn1210/opensse-schemes/crypto"
)

// ErrValueSize is returned when a value does not match the store's
// fixed value width.
var ErrValueSize = errors.New("value width mismatch")

// EDB defines the encrypted database: an ordered map from fixed-size
// update tokens to fixed-size masked values. Implementations are safe
// for concurrent use and every call is individually atomic. The
// get+remove pair used by destructive searches is two separate calls
// and is not atomic as a pair.
type EDB interface {
	// Get returns the value stored under token, or false if the token
	// is absent.
	Get(token crypto.UpdateToken) ([]byte, bool, error)

	// Put stores value under token, overwriting any previous value.
	Put(token crypto.UpdateToken, value []byte) error

	// Remove deletes the token. Removing an absent token is a no-op.
	Remove(token crypto.UpdateToken) error

	// Flush persists all pending writes.
	Flush() error

	// ValueSize returns the fixed value width in bytes.
	ValueSize() int
}
