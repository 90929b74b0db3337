//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// allocKey pins the bucket hashes directly.
func allocKey(h0, h1 uint64) AllocatorKey {
	return AllocatorKey{
		H: [2]uint64{h0, h1},
	}
}

func TestAllocatorSingleList(t *testing.T) {
	a := NewAllocator(4, 16)

	require.NoError(t, a.Insert(allocKey(1, 2), 10))
	require.NoError(t, a.Allocate())

	require.Equal(t, 10, a.Flow())

	assignments := a.Assignments()
	require.Len(t, assignments, 1)
	require.Equal(t, 10, assignments[0].Table0+assignments[0].Table1)
}

func TestAllocatorStraddle(t *testing.T) {
	// A list longer than one bucket must split across its two
	// buckets.
	a := NewAllocator(2, 16)

	require.NoError(t, a.Insert(allocKey(0, 0), 24))
	require.NoError(t, a.Allocate())

	require.Equal(t, 24, a.Flow())

	asg := a.Assignments()[0]
	require.Equal(t, 24, asg.Table0+asg.Table1)
	require.LessOrEqual(t, asg.Table0, 16)
	require.LessOrEqual(t, asg.Table1, 16)
	require.Positive(t, asg.Table0)
	require.Positive(t, asg.Table1)
}

func TestAllocatorBucketCapacity(t *testing.T) {
	// Three lists compete for the same bucket pair: only two pages
	// worth of entries fit.
	a := NewAllocator(2, 8)

	require.NoError(t, a.Insert(allocKey(0, 0), 8))
	require.NoError(t, a.Insert(allocKey(0, 0), 8))
	require.NoError(t, a.Insert(allocKey(0, 0), 8))
	require.NoError(t, a.Allocate())

	require.Equal(t, 16, a.Flow())

	var total int
	loads0 := make(map[int]int)
	loads1 := make(map[int]int)
	for i, asg := range a.Assignments() {
		require.LessOrEqual(t, asg.Table0+asg.Table1, 8, "list %d", i)
		total += asg.Table0 + asg.Table1
		loads0[0] += asg.Table0
		loads1[0] += asg.Table1
	}
	require.Equal(t, 16, total)
	require.LessOrEqual(t, loads0[0], 8)
	require.LessOrEqual(t, loads1[0], 8)
}

func TestAllocatorSharedBuckets(t *testing.T) {
	a := NewAllocator(8, 16)

	lengths := []int{10, 12, 7, 16, 3, 9}
	keys := []AllocatorKey{
		allocKey(0, 1),
		allocKey(0, 2),
		allocKey(1, 2),
		allocKey(2, 3),
		allocKey(3, 1),
		allocKey(4, 4),
	}
	var total int
	for i, key := range keys {
		require.NoError(t, a.Insert(key, lengths[i]))
		total += lengths[i]
	}
	require.NoError(t, a.Allocate())
	require.Equal(t, total, a.Flow())

	loads0 := make([]int, 8)
	loads1 := make([]int, 8)
	var assigned int
	for i, asg := range a.Assignments() {
		require.GreaterOrEqual(t, asg.Table0, 0)
		require.GreaterOrEqual(t, asg.Table1, 0)
		require.Equal(t, lengths[i], asg.Table0+asg.Table1, "list %d", i)
		assigned += asg.Table0 + asg.Table1

		h0 := int(keys[i].H[0] % 8)
		h1 := int(keys[i].H[1] % 8)
		loads0[h0] += asg.Table0
		loads1[h1] += asg.Table1
	}
	require.Equal(t, a.Flow(), assigned)
	for j := 0; j < 8; j++ {
		require.LessOrEqual(t, loads0[j], 16, "table 0 bucket %d", j)
		require.LessOrEqual(t, loads1[j], 16, "table 1 bucket %d", j)
	}
}

func TestAllocatorInvalidState(t *testing.T) {
	a := NewAllocator(2, 8)

	require.NoError(t, a.Insert(allocKey(0, 0), 4))
	require.NoError(t, a.Allocate())

	require.ErrorIs(t, a.Insert(allocKey(1, 1), 4), ErrInvalidState)
	require.ErrorIs(t, a.Allocate(), ErrInvalidState)
}

func TestBlake3Hasher(t *testing.T) {
	var hkey [32]byte
	hkey[0] = 0x01

	hasher := NewBlake3Hasher(hkey)

	var k1, k2 Key
	k1[0] = 0x01
	k2[0] = 0x02

	a := hasher.Hash(k1)
	b := hasher.Hash(k1)
	c := hasher.Hash(k2)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, a.H[0], a.H[1])

	// A different hashing key gives a different bucket pair.
	var hkey2 [32]byte
	hkey2[0] = 0x02
	require.NotEqual(t, a, NewBlake3Hasher(hkey2).Hash(k1))
}

func TestCopyHasher(t *testing.T) {
	var key Key
	key[0] = 0x05
	key[8] = 0x09

	ak := CopyHasher{}.Hash(key)
	require.Equal(t, uint64(5), ak.H[0])
	require.Equal(t, uint64(9), ak.H[1])
}
