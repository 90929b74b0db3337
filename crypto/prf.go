//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

var (
	bo = binary.BigEndian
)

// PRF implements a pseudorandom function using AES-CBC.
type PRF struct {
	cipher    cipher.Block
	blockSize int
	input     []byte
	output    []byte
}

// NewPRF creates a new pseudorandom function with the key.
func NewPRF(key []byte) (*PRF, error) {
	cipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &PRF{
		cipher:    cipher,
		blockSize: cipher.BlockSize(),
		input:     make([]byte, cipher.BlockSize()),
		output:    make([]byte, cipher.BlockSize()),
	}, nil
}

// Size returns the PRF output size in bytes.
func (prf *PRF) Size() int {
	return prf.blockSize
}

// Data computes the PRF over data and appends the result to out.
func (prf *PRF) Data(data, out []byte) []byte {
	var round int

	for i := range prf.output {
		prf.output[i] = 0
	}
	for len(data) > 0 {
		n := copy(prf.input, data)
		data = data[n:]
		for ; n < prf.blockSize; n++ {
			prf.input[n] = 0
		}
		if round > 0 {
			// CBC mode.
			for i := 0; i < prf.blockSize; i++ {
				prf.input[i] ^= prf.output[i]
			}
		}
		prf.cipher.Encrypt(prf.output, prf.input)
		round++
	}
	if round == 0 {
		for i := range prf.input {
			prf.input[i] = 0
		}
		prf.cipher.Encrypt(prf.output, prf.input)
	}
	return append(out, prf.output...)
}

// Int computes the PRF over the uint64 value and appends the result
// to out.
func (prf *PRF) Int(v uint64, out []byte) []byte {
	var buf [8]byte
	bo.PutUint64(buf[:], v)
	return prf.Data(buf[:], out)
}
