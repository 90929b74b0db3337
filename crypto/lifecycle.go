//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package crypto

import (
	"fmt"
	"sync"
)

var (
	libM    sync.Mutex
	libHash *Hash
)

// InitCryptoLib initializes the process-wide cryptographic state. It
// must be called once before any token derivation and paired with
// CleanupCryptoLib at process exit.
func InitCryptoLib() error {
	libM.Lock()
	defer libM.Unlock()

	if libHash != nil {
		return fmt.Errorf("crypto library already initialized")
	}
	hash, err := NewHash()
	if err != nil {
		return err
	}
	libHash = hash
	return nil
}

// CleanupCryptoLib releases the process-wide cryptographic state.
func CleanupCryptoLib() {
	libM.Lock()
	defer libM.Unlock()

	libHash = nil
}

// Sum512 computes the 512-bit block hash of data with the
// process-wide hash instance.
func Sum512(data []byte) [64]byte {
	libM.Lock()
	hash := libHash
	libM.Unlock()

	if hash == nil {
		panic("crypto: library not initialized")
	}
	return hash.Sum512(data)
}
