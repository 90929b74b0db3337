//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package janus

import (
	"github.com/xsn1210/opensse-schemes/crypto"
	"github.com/xsn1210/opensse-schemes/diana"
)

// SearchRequest combines the two DIANA search requests of a keyword
// with the initial share of the punctured decryption key. The
// insertion request covers the puncturable ciphertexts, the deletion
// request the key shares produced by the punctures.
type SearchRequest struct {
	KeywordToken  crypto.KeywordToken
	Insertion     diana.SearchRequest
	Deletion      diana.SearchRequest
	FirstKeyShare crypto.KeyShare
}

// InsertionRequest adds a puncturable ciphertext to the insertion
// index.
type InsertionRequest = diana.UpdateRequest

// DeletionRequest adds a puncture key share to the deletion index.
type DeletionRequest = diana.UpdateRequest

// CiphertextCodec stores puncturable ciphertexts as DIANA indices.
type CiphertextCodec struct{}

// Size implements diana.Codec.Size.
func (CiphertextCodec) Size() int {
	return crypto.CiphertextSize
}

// Encode implements diana.Codec.Encode.
func (CiphertextCodec) Encode(dst []byte, v crypto.Ciphertext) {
	copy(dst, v[:])
}

// Decode implements diana.Codec.Decode.
func (CiphertextCodec) Decode(src []byte) crypto.Ciphertext {
	var ct crypto.Ciphertext
	copy(ct[:], src)
	return ct
}

// KeyShareCodec stores puncture key shares as DIANA indices.
type KeyShareCodec struct{}

// Size implements diana.Codec.Size.
func (KeyShareCodec) Size() int {
	return crypto.KeyShareSize
}

// Encode implements diana.Codec.Encode.
func (KeyShareCodec) Encode(dst []byte, v crypto.KeyShare) {
	copy(dst, v[:])
}

// Decode implements diana.Codec.Decode.
func (KeyShareCodec) Decode(src []byte) crypto.KeyShare {
	var share crypto.KeyShare
	copy(share[:], src)
	return share
}

var (
	_ diana.Codec[crypto.Ciphertext] = CiphertextCodec{}
	_ diana.Codec[crypto.KeyShare]   = KeyShareCodec{}
)
