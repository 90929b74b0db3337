//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"encoding/binary"
)

var (
	bo = binary.LittleEndian
)

// Codec converts the fixed-width index values stored in the
// encrypted database to and from their byte representation. The
// width doubles as the mask width of the scheme.
type Codec[T any] interface {
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// Uint64Codec encodes uint64 indices little-endian.
type Uint64Codec struct{}

// Size implements Codec.Size.
func (Uint64Codec) Size() int {
	return 8
}

// Encode implements Codec.Encode.
func (Uint64Codec) Encode(dst []byte, v uint64) {
	bo.PutUint64(dst, v)
}

// Decode implements Codec.Decode.
func (Uint64Codec) Decode(src []byte) uint64 {
	return bo.Uint64(src)
}

// Uint32Codec encodes uint32 indices little-endian.
type Uint32Codec struct{}

// Size implements Codec.Size.
func (Uint32Codec) Size() int {
	return 4
}

// Encode implements Codec.Encode.
func (Uint32Codec) Encode(dst []byte, v uint32) {
	bo.PutUint32(dst, v)
}

// Decode implements Codec.Decode.
func (Uint32Codec) Decode(src []byte) uint32 {
	return bo.Uint32(src)
}

var (
	_ Codec[uint64] = Uint64Codec{}
	_ Codec[uint32] = Uint32Codec{}
)
