//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

// Bucket padding bytes. Non-conforming padding is a format error at
// read time.
const (
	keyPadByte = 0x11
	lenPadByte = 0x22
)

// listLengthSize is the width of the encoded list length field.
const listLengthSize = 8

// ValueCodec converts the fixed-width list values to and from their
// byte representation.
type ValueCodec[T any] interface {
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// Uint64ValueCodec encodes uint64 values little-endian.
type Uint64ValueCodec struct{}

// Size implements ValueCodec.Size.
func (Uint64ValueCodec) Size() int {
	return 8
}

// Encode implements ValueCodec.Encode.
func (Uint64ValueCodec) Encode(dst []byte, v uint64) {
	bo.PutUint64(dst, v)
}

// Decode implements ValueCodec.Decode.
func (Uint64ValueCodec) Decode(src []byte) uint64 {
	return bo.Uint64(src)
}

var (
	_ ValueCodec[uint64] = Uint64ValueCodec{}
)

// bucketEdge tells which end of the list's cross edge a bucket is:
// the outgoing bucket encodes the head of the list, the incoming
// bucket the tail.
type bucketEdge int

const (
	outgoingEdge bucketEdge = iota
	incomingEdge
)

// assignmentInfo is the per-bucket view of a list assignment, in
// logical entries (headers included).
type assignmentInfo struct {
	assigned     int
	dualAssigned int
	edge         bucketEdge
}

// valueEncoder encodes list segments into bucket pages:
// [ key | pad 0x11 | list length | pad 0x22 | values... ], all sizes
// rounded up to whole entries.
type valueEncoder[T any] struct {
	codec ValueCodec[T]

	entrySize  int
	keyEntries int
	lenEntries int
}

func newValueEncoder[T any](codec ValueCodec[T]) valueEncoder[T] {
	entrySize := codec.Size()
	return valueEncoder[T]{
		codec:      codec,
		entrySize:  entrySize,
		keyEntries: (KeySize + entrySize - 1) / entrySize,
		lenEntries: (listLengthSize + entrySize - 1) / entrySize,
	}
}

// headerEntries returns the header size of one bucket segment in
// entries.
func (enc *valueEncoder[T]) headerEntries() int {
	return enc.keyEntries + enc.lenEntries
}

// controlBlockEntries returns the per-list header overhead in
// entries: one header per candidate bucket.
func (enc *valueEncoder[T]) controlBlockEntries() int {
	return 2 * enc.headerEntries()
}

// encodedCount returns how many values the bucket encodes for the
// assignment.
func (enc *valueEncoder[T]) encodedCount(info assignmentInfo) int {
	header := enc.headerEntries()
	if info.assigned < header {
		// The list spilled entirely into its dual bucket.
		return 0
	}
	count := info.assigned - header
	if info.dualAssigned < header {
		// The dual bucket went header-less: its share of the control
		// block was spilled into this bucket.
		count -= header - info.dualAssigned
	}
	return count
}

// encode writes the bucket segment of the list into buf and returns
// the number of bytes written. An assignment below the header size
// writes nothing.
func (enc *valueEncoder[T]) encode(buf []byte, key Key, values []T,
	info assignmentInfo) int {

	header := enc.headerEntries()
	count := enc.encodedCount(info)
	if info.assigned < header {
		return 0
	}

	// The incoming bucket skips the values the outgoing bucket
	// already encoded.
	var skip int
	if info.edge == incomingEdge && info.dualAssigned >= header {
		skip = info.dualAssigned - header
	}

	ofs := copy(buf, key[:])
	for ; ofs < enc.keyEntries*enc.entrySize; ofs++ {
		buf[ofs] = keyPadByte
	}

	bo.PutUint64(buf[ofs:], uint64(count))
	ofs += listLengthSize
	for ; ofs < header*enc.entrySize; ofs++ {
		buf[ofs] = lenPadByte
	}

	for _, v := range values[skip : skip+count] {
		enc.codec.Encode(buf[ofs:], v)
		ofs += enc.entrySize
	}
	return ofs
}
