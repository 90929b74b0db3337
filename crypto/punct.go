//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package crypto

import (
	"errors"
)

// Puncturable encryption payload widths. The primitive itself is an
// external collaborator; the server only moves its fixed-width values
// around and drives decryption.
const (
	KeyShareSize   = 32
	CiphertextSize = 24
)

// KeyShare defines one share of a punctured decryption key.
type KeyShare [KeyShareSize]byte

// Ciphertext defines a puncturable encryption ciphertext.
type Ciphertext [CiphertextSize]byte

// ErrPunctured is returned by PunctDecrypter.Decrypt when the
// ciphertext's tag has been punctured i.e. the entry was deleted.
var ErrPunctured = errors.New("ciphertext tag punctured")

// PunctDecrypter reconstructs a punctured decryption key from key
// shares and decrypts ciphertexts with it. Share combination is
// order-independent.
type PunctDecrypter interface {
	CombineKeyShare(share KeyShare) error
	Decrypt(ct Ciphertext) (uint64, error)
}

// PunctDecrypterFactory creates a PunctDecrypter from the initial key
// share of a search request.
type PunctDecrypterFactory func(first KeyShare) (PunctDecrypter, error)
