//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xsn1210/opensse-schemes/crypto"
	"github.com/xsn1210/opensse-schemes/edb"
)

// MaxThreads bounds the worker count of the parallel searches.
const MaxThreads = 255

// Server implements the DIANA search server over an encrypted
// database storing indices of type T.
type Server[T any] struct {
	edb    edb.EDB
	codec  Codec[T]
	logger *zap.Logger
}

// NewServer creates a new server over the encrypted database store.
// The codec width must match the store's value width. A nil logger
// disables logging.
func NewServer[T any](store edb.EDB, codec Codec[T], logger *zap.Logger) (
	*Server[T], error) {

	if logger == nil {
		logger = zap.NewNop()
	}
	width := codec.Size()
	if width <= 0 || width > MaxIndexWidth {
		return nil, fmt.Errorf("invalid index width %d", width)
	}
	if store.ValueSize() != width {
		return nil, fmt.Errorf("store value width %d, index width %d",
			store.ValueSize(), width)
	}
	return &Server[T]{
		edb:    store,
		codec:  codec,
		logger: logger,
	}, nil
}

// Insert stores the update request verbatim.
func (s *Server[T]) Insert(req UpdateRequest) error {
	s.logger.Debug("received update",
		zap.String("token", crypto.HexString(req.Token[:])),
		zap.String("index", crypto.HexString(req.Index)))

	return s.edb.Put(req.Token, req.Index)
}

// FlushEDB flushes the encrypted database.
func (s *Server[T]) FlushEDB() error {
	return s.edb.Flush()
}

// getUnmask derives the update token and mask from the leaf, fetches
// and unmasks the stored index. A missing entry is logged and
// reported as not found; only store failures are errors.
func (s *Server[T]) getUnmask(leaf crypto.SearchTokenKey, deleteKey bool) (
	index T, found bool, err error) {

	s.logger.Debug("derived leaf token",
		zap.String("leaf", crypto.HexString(leaf[:])))

	ut, mask := deriveTokenMask(leaf, s.codec.Size())

	s.logger.Debug("derived token",
		zap.String("token", crypto.HexString(ut[:])),
		zap.String("mask", crypto.HexString(mask)))

	masked, found, err := s.edb.Get(ut)
	if err != nil {
		return index, false, err
	}
	if !found {
		s.logger.Error("expected an entry for the accessed key",
			zap.String("token", crypto.HexString(ut[:])))
		return index, false, nil
	}
	if deleteKey {
		err = s.edb.Remove(ut)
		if err != nil {
			return index, false, err
		}
	}
	s.logger.Debug("found", zap.String("index", crypto.HexString(masked)))

	crypto.XORMask(masked, masked, mask)
	return s.codec.Decode(masked), true, nil
}

// searchRange runs the per-leaf loop over the inclusive leaf range
// [lo, hi].
func (s *Server[T]) searchRange(req *SearchRequest, deleteResults bool,
	lo, hi uint64, emit func(T)) error {

	for i := lo; i <= hi; i++ {
		leaf := req.RCPRF.Eval(i)
		index, found, err := s.getUnmask(leaf, deleteResults)
		if err != nil {
			return err
		}
		if found {
			emit(index)
		}
	}
	return nil
}

// SearchFunc searches the request, emitting every recovered index in
// increasing leaf order. With deleteResults the search is
// destructive: matched entries are removed from the database.
func (s *Server[T]) SearchFunc(req *SearchRequest, deleteResults bool,
	emit func(T)) error {

	s.logger.Debug("search", zap.Uint64("expected_matches", req.AddCount))

	if req.AddCount == 0 {
		return nil
	}
	return s.searchRange(req, deleteResults, 0, req.RCPRF.MaxLeaf(), emit)
}

// Search searches the request and returns the recovered indices.
func (s *Server[T]) Search(req *SearchRequest, deleteResults bool) (
	[]T, error) {

	var results []T

	err := s.SearchFunc(req, deleteResults, func(index T) {
		results = append(results, index)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// clampThreads limits the worker count to the leaf count and to
// MaxThreads.
func clampThreads(threadsCount int, addCount uint64) int {
	if uint64(threadsCount) > addCount {
		threadsCount = int(addCount)
	}
	if threadsCount > MaxThreads {
		threadsCount = MaxThreads
	}
	return threadsCount
}

// SearchParallelTagged searches the request with threadsCount
// workers, emitting indices tagged with the worker id. The leaf range
// is split into contiguous per-worker ranges; the emit callback is
// called concurrently, but with distinct worker ids, which enables
// lock-free per-worker accumulation.
func (s *Server[T]) SearchParallelTagged(req *SearchRequest,
	threadsCount int, deleteResults bool, emit func(T, int)) error {

	if threadsCount < 1 {
		return fmt.Errorf("at least one search worker required")
	}
	if req.AddCount == 0 {
		return nil
	}
	threadsCount = clampThreads(threadsCount, req.AddCount)

	step := req.AddCount / uint64(threadsCount)
	remaining := req.AddCount % uint64(threadsCount)

	var g errgroup.Group

	min := uint64(0)
	max := step
	for t := 0; t < threadsCount; t++ {
		if uint64(t) < remaining {
			max++
		}
		lo := min
		hi := max
		if hi > req.AddCount {
			hi = req.AddCount
		}
		hi--

		tid := t
		g.Go(func() error {
			return s.searchRange(req, deleteResults, lo, hi, func(index T) {
				emit(index, tid)
			})
		})

		min = max
		max += step
	}
	return g.Wait()
}

// SearchParallelFunc searches the request in parallel, dropping the
// worker tag. The emit callback must be safe for concurrent calls.
func (s *Server[T]) SearchParallelFunc(req *SearchRequest,
	threadsCount int, deleteResults bool, emit func(T)) error {

	return s.SearchParallelTagged(req, threadsCount, deleteResults,
		func(index T, _ int) {
			emit(index)
		})
}

// SearchParallel searches the request in parallel and returns the
// recovered indices. Each worker accumulates into its own list so the
// hot path takes no locks; the lists are merged at the end.
func (s *Server[T]) SearchParallel(req *SearchRequest, threadsCount int,
	deleteResults bool) ([]T, error) {

	if threadsCount < 1 {
		return nil, fmt.Errorf("at least one search worker required")
	}
	lists := make([][]T, clampThreads(threadsCount, req.AddCount))

	err := s.SearchParallelTagged(req, threadsCount, deleteResults,
		func(index T, tid int) {
			lists[tid] = append(lists[tid], index)
		})
	if err != nil {
		return nil, err
	}

	var results []T
	for _, list := range lists {
		results = append(results, list...)
	}
	return results, nil
}

// SearchParallelInto searches the request in parallel into the
// preallocated results slice, which is grown to AddCount elements if
// shorter. Slots are claimed through an atomic cursor, so the
// emission order across workers is unspecified.
func (s *Server[T]) SearchParallelInto(req *SearchRequest, threadsCount int,
	deleteResults bool, results *[]T) error {

	if uint64(len(*results)) < req.AddCount {
		grown := make([]T, req.AddCount)
		copy(grown, *results)
		*results = grown
	}

	var cursor atomic.Uint64

	return s.SearchParallelTagged(req, threadsCount, deleteResults,
		func(index T, _ int) {
			(*results)[cursor.Add(1)-1] = index
		})
}
