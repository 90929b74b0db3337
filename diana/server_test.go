//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xsn1210/opensse-schemes/crypto"
	"github.com/xsn1210/opensse-schemes/edb"
)

func TestMain(m *testing.M) {
	err := crypto.InitCryptoLib()
	if err != nil {
		panic(err)
	}
	code := m.Run()
	crypto.CleanupCryptoLib()
	os.Exit(code)
}

// newKeyword creates the client side of a keyword with count
// insertions: the per-leaf update requests and the matching search
// request.
func newKeyword(t *testing.T, root crypto.SearchTokenKey, count uint64,
	index func(i uint64) uint64) (*SearchRequest, []UpdateRequest) {

	t.Helper()

	req := &SearchRequest{
		AddCount: count,
	}
	if count == 0 {
		return req, nil
	}
	rcprf, err := crypto.NewRangeRCPRF(root, count)
	require.NoError(t, err)
	req.RCPRF = rcprf

	var updates []UpdateRequest
	codec := Uint64Codec{}
	for i := uint64(0); i < count; i++ {
		leaf := rcprf.Eval(i)
		ut, mask := deriveTokenMask(leaf, codec.Size())

		masked := make([]byte, codec.Size())
		codec.Encode(masked, index(i))
		crypto.XORMask(masked, masked, mask)

		updates = append(updates, UpdateRequest{
			Token: ut,
			Index: masked,
		})
	}
	return req, updates
}

func newTestServer(t *testing.T, store edb.EDB) *Server[uint64] {
	t.Helper()

	server, err := NewServer[uint64](store, Uint64Codec{}, nil)
	require.NoError(t, err)
	return server
}

func TestSearchRoundTrip(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x01

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	req, updates := newKeyword(t, root, 1, func(uint64) uint64 {
		return 0xCAFEBABE00000001
	})
	for _, update := range updates {
		require.NoError(t, server.Insert(update))
	}

	results, err := server.Search(req, false)
	require.NoError(t, err)
	require.Equal(t, []uint64{0xCAFEBABE00000001}, results)

	// Non-destructive search is repeatable.
	results, err = server.Search(req, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchDeleteOnRead(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x02

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	req, updates := newKeyword(t, root, 1, func(uint64) uint64 {
		return 0xCAFEBABE00000001
	})
	for _, update := range updates {
		require.NoError(t, server.Insert(update))
	}

	results, err := server.Search(req, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0, store.Len())

	// The destructive search consumed the entry.
	results, err = server.Search(req, true)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchMissingEntry(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x03

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	req, updates := newKeyword(t, root, 5, func(i uint64) uint64 {
		return 100 + i
	})
	// Leave leaf 2 missing: the search logs and continues.
	for i, update := range updates {
		if i == 2 {
			continue
		}
		require.NoError(t, server.Insert(update))
	}

	results, err := server.Search(req, false)
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 101, 103, 104}, results)
}

func TestParallelPartition(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x04

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	req, updates := newKeyword(t, root, 7, func(i uint64) uint64 {
		return i
	})
	for _, update := range updates {
		require.NoError(t, server.Insert(update))
	}

	var m sync.Mutex
	perWorker := make(map[int][]uint64)
	err := server.SearchParallelTagged(req, 3, false,
		func(index uint64, tid int) {
			m.Lock()
			perWorker[tid] = append(perWorker[tid], index)
			m.Unlock()
		})
	require.NoError(t, err)

	// add_count=7, threads=3: ranges [0,2], [3,4], [5,6].
	require.Equal(t, []uint64{0, 1, 2}, perWorker[0])
	require.Equal(t, []uint64{3, 4}, perWorker[1])
	require.Equal(t, []uint64{5, 6}, perWorker[2])
}

func TestParallelMatchesSequential(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x05

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	const count = 23
	req, updates := newKeyword(t, root, count, func(i uint64) uint64 {
		return 1000 + i
	})
	for _, update := range updates {
		require.NoError(t, server.Insert(update))
	}

	expected, err := server.Search(req, false)
	require.NoError(t, err)
	require.Len(t, expected, count)
	sort.Slice(expected, func(i, j int) bool {
		return expected[i] < expected[j]
	})

	for _, threads := range []int{1, 2, 3, 7, count, 255} {
		results, err := server.SearchParallel(req, threads, false)
		require.NoError(t, err)
		sort.Slice(results, func(i, j int) bool {
			return results[i] < results[j]
		})
		require.Equalf(t, expected, results, "threads=%d", threads)
	}
}

func TestParallelClamp(t *testing.T) {
	require.Equal(t, 3, clampThreads(16, 3))
	require.Equal(t, 16, clampThreads(16, 100))
	require.Equal(t, MaxThreads, clampThreads(1000, 1<<20))
}

func TestSearchParallelInto(t *testing.T) {
	var root crypto.SearchTokenKey
	root[0] = 0x06

	store := edb.NewMemEDB(8)
	server := newTestServer(t, store)

	const count = 9
	req, updates := newKeyword(t, root, count, func(i uint64) uint64 {
		return 500 + i
	})
	for _, update := range updates {
		require.NoError(t, server.Insert(update))
	}

	// Shorter than AddCount: must be grown.
	results := make([]uint64, 2)
	require.NoError(t, server.SearchParallelInto(req, 4, false, &results))
	require.Len(t, results, count)

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i := uint64(0); i < count; i++ {
		require.Equal(t, 500+i, results[i])
	}
}

// countingEDB counts store accesses.
type countingEDB struct {
	edb.EDB
	gets int
}

func (db *countingEDB) Get(token crypto.UpdateToken) ([]byte, bool, error) {
	db.gets++
	return db.EDB.Get(token)
}

func TestSearchEmptyRequest(t *testing.T) {
	store := &countingEDB{EDB: edb.NewMemEDB(8)}
	server := newTestServer(t, store)

	req := &SearchRequest{AddCount: 0}

	results, err := server.Search(req, false)
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = server.SearchParallel(req, 8, false)
	require.NoError(t, err)
	require.Empty(t, results)

	// No database access at all.
	require.Equal(t, 0, store.gets)
}

func TestServerWidthMismatch(t *testing.T) {
	_, err := NewServer[uint64](edb.NewMemEDB(4), Uint64Codec{}, nil)
	require.Error(t, err)

	_, err = NewServer[uint32](edb.NewMemEDB(4), Uint32Codec{}, nil)
	require.NoError(t, err)
}
