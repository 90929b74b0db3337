//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

var (
	bo = binary.LittleEndian
)

// KeySize is the width of the table keys.
const KeySize = 16

// Key is a table key. The all-zero key is reserved: the store reader
// uses it to detect the end of a bucket.
type Key [KeySize]byte

// AllocatorKey carries the two independent bucket hashes of a key.
type AllocatorKey struct {
	H [2]uint64
}

// Hasher derives the two bucket hashes from a table key. The two
// halves must be independent: they select one candidate bucket per
// table.
type Hasher interface {
	Hash(key Key) AllocatorKey
}

// Blake3Hasher implements Hasher with a keyed BLAKE3 hash, splitting
// one 16-byte digest into the two bucket hashes.
type Blake3Hasher struct {
	key [32]byte
}

var (
	_ Hasher = &Blake3Hasher{}
)

// NewBlake3Hasher creates a hasher with the 32-byte hashing key.
func NewBlake3Hasher(key [32]byte) *Blake3Hasher {
	return &Blake3Hasher{
		key: key,
	}
}

// Hash implements Hasher.Hash.
func (h *Blake3Hasher) Hash(key Key) AllocatorKey {
	var digest [16]byte

	hash := blake3.New(len(digest), h.key[:])
	hash.Write(key[:])
	hash.Sum(digest[:0])

	return AllocatorKey{
		H: [2]uint64{
			bo.Uint64(digest[:8]),
			bo.Uint64(digest[8:]),
		},
	}
}

// CopyHasher implements Hasher by reading the two bucket hashes
// directly from the key bytes. It matches the identity hasher used by
// the store debugging tools.
type CopyHasher struct{}

var (
	_ Hasher = CopyHasher{}
)

// Hash implements Hasher.Hash.
func (CopyHasher) Hash(key Key) AllocatorKey {
	return AllocatorKey{
		H: [2]uint64{
			bo.Uint64(key[:8]),
			bo.Uint64(key[8:]),
		},
	}
}
