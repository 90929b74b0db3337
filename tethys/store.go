//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/markkurossi/tabulate"
	"go.uber.org/zap"

	"github.com/xsn1210/opensse-schemes/crypto"
)

// Store errors.
var (
	ErrOverflow    = errors.New("allocation overflow")
	ErrFormat      = errors.New("malformed page")
	ErrKeyNotFound = errors.New("key not found")
)

// Device implements an I/O device.
type Device interface {
	Close() error
	ReadAt(b []byte, off int64) (n int, err error)
	Sync() error
	WriteAt(b []byte, off int64) (n int, err error)
}

var (
	_ Device = &os.File{}
	_ Device = &MemDevice{}
)

// MemDevice implements memory device.
type MemDevice struct {
	buf []byte
}

// NewMemDevice creates a new memory device with the size capacity.
func NewMemDevice(size int) *MemDevice {
	return &MemDevice{
		buf: make([]byte, size),
	}
}

// Close implements Device.Close.
func (mem *MemDevice) Close() error {
	return nil
}

// ReadAt implements Device.ReadAt.
func (mem *MemDevice) ReadAt(b []byte, off int64) (n int, err error) {
	if int(off)+len(b) > len(mem.buf) {
		return 0, fmt.Errorf("reading %v bytes out of range [0...%v[",
			int(off)+len(b)-len(mem.buf), len(mem.buf))
	}
	return copy(b, mem.buf[off:]), nil
}

// Sync implements Device.Sync.
func (mem *MemDevice) Sync() error {
	return nil
}

// WriteAt implements Device.WriteAt.
func (mem *MemDevice) WriteAt(b []byte, off int64) (n int, err error) {
	if int(off)+len(b) > len(mem.buf) {
		return 0, fmt.Errorf("writing %v bytes out of range [0...%v[",
			int(off)+len(b)-len(mem.buf), len(mem.buf))
	}
	return copy(mem.buf[off:], b), nil
}

// StoreBuilderParams define the store geometry.
type StoreBuilderParams struct {
	// MaxNElements is the maximum total number of values across all
	// lists.
	MaxNElements int

	// PageSize is the bucket page size in bytes.
	PageSize int

	// Epsilon is the free-space fraction: the tables are sized for a
	// load factor of 1-Epsilon.
	Epsilon float64
}

// storeGeometry derives the table geometry shared by the builder and
// the reader.
type storeGeometry struct {
	entrySize      int
	bucketCapacity int
	nBuckets       int
	pageSize       int
}

func newStoreGeometry(params StoreBuilderParams, entrySize int) (
	storeGeometry, error) {

	var geo storeGeometry

	if params.Epsilon <= 0 || params.Epsilon >= 1 {
		return geo, fmt.Errorf("epsilon must be in (0,1), got %v",
			params.Epsilon)
	}
	if params.MaxNElements < 1 {
		return geo, fmt.Errorf("max elements must be positive")
	}
	geo.entrySize = entrySize
	geo.pageSize = params.PageSize
	geo.bucketCapacity = params.PageSize / entrySize
	if geo.bucketCapacity < 1 {
		return geo, fmt.Errorf("page size %d below entry size %d",
			params.PageSize, entrySize)
	}

	// 2*bucketCapacity*nBuckets >= maxN/(1-epsilon).
	target := float64(params.MaxNElements) / (1 - params.Epsilon)
	geo.nBuckets = int(math.Ceil(target /
		float64(2*geo.bucketCapacity)))
	if geo.nBuckets < 1 {
		geo.nBuckets = 1
	}
	return geo, nil
}

// StoreBuilder builds the static two-table store: it collects the
// input lists, solves the bucket assignment with the max-flow
// allocator and materialises the packed page file.
type StoreBuilder[T any] struct {
	geo       storeGeometry
	enc       valueEncoder[T]
	hasher    Hasher
	allocator *Allocator
	lists     []pendingList[T]
	keys      map[Key]bool
	built     bool
	flow      int
	logger    *zap.Logger
}

type pendingList[T any] struct {
	key    Key
	values []T
}

// NewStoreBuilder creates a store builder for the parameters. A nil
// logger disables logging.
func NewStoreBuilder[T any](params StoreBuilderParams, codec ValueCodec[T],
	hasher Hasher, logger *zap.Logger) (*StoreBuilder[T], error) {

	if logger == nil {
		logger = zap.NewNop()
	}
	geo, err := newStoreGeometry(params, codec.Size())
	if err != nil {
		return nil, err
	}
	enc := newValueEncoder(codec)
	if geo.bucketCapacity < enc.controlBlockEntries() {
		return nil, fmt.Errorf("page size %d cannot hold a control block",
			params.PageSize)
	}
	return &StoreBuilder[T]{
		geo:       geo,
		enc:       enc,
		hasher:    hasher,
		allocator: NewAllocator(geo.nBuckets, geo.bucketCapacity),
		keys:      make(map[Key]bool),
		logger:    logger,
	}, nil
}

// InsertList adds the values of key to the store. The all-zero key is
// reserved and every key may be inserted once.
func (b *StoreBuilder[T]) InsertList(key Key, values []T) error {
	if b.built {
		return fmt.Errorf("%w: store already built", ErrInvalidState)
	}
	if key == (Key{}) {
		return fmt.Errorf("the all-zero key is reserved")
	}
	if b.keys[key] {
		return fmt.Errorf("duplicate key %s", crypto.HexString(key[:]))
	}
	b.keys[key] = true

	// A list occupies its values plus one header per candidate
	// bucket.
	err := b.allocator.Insert(b.hasher.Hash(key),
		len(values)+b.enc.controlBlockEntries())
	if err != nil {
		return err
	}
	b.lists = append(b.lists, pendingList[T]{
		key:    key,
		values: values,
	})
	return nil
}

// Build solves the assignment and writes the page file to the
// device: one page per bucket, table 0 first, each exactly PageSize
// bytes, zero-padded. Unassignable entries fail the build with
// ErrOverflow before anything is written.
func (b *StoreBuilder[T]) Build(device Device) error {
	if b.built {
		return fmt.Errorf("%w: store already built", ErrInvalidState)
	}
	b.built = true

	err := b.allocator.Allocate()
	if err != nil {
		return err
	}
	assignments := b.allocator.Assignments()

	var overflowed []string
	for i, list := range b.lists {
		assigned := assignments[i].Table0 + assignments[i].Table1
		if assigned < len(list.values)+b.enc.controlBlockEntries() {
			overflowed = append(overflowed,
				crypto.HexString(list.key[:]))
		}
	}
	if len(overflowed) > 0 {
		return fmt.Errorf("%w: unmapped keys %v", ErrOverflow, overflowed)
	}
	b.flow = b.allocator.Flow()

	b.logger.Info("building store",
		zap.Int("buckets", 2*b.geo.nBuckets),
		zap.Int("lists", len(b.lists)),
		zap.Int("flow", b.flow))

	// Assemble the bucket pages.
	pages := make([][]byte, 2*b.geo.nBuckets)
	for i := range pages {
		pages[i] = make([]byte, b.geo.pageSize)
	}
	offsets := make([]int, 2*b.geo.nBuckets)

	for i, list := range b.lists {
		ak := b.hasher.Hash(list.key)
		h0 := int(ak.H[0] % uint64(b.geo.nBuckets))
		h1 := int(ak.H[1]%uint64(b.geo.nBuckets)) + b.geo.nBuckets

		n := b.enc.encode(pages[h0][offsets[h0]:], list.key, list.values,
			assignmentInfo{
				assigned:     assignments[i].Table0,
				dualAssigned: assignments[i].Table1,
				edge:         outgoingEdge,
			})
		offsets[h0] += n

		n = b.enc.encode(pages[h1][offsets[h1]:], list.key, list.values,
			assignmentInfo{
				assigned:     assignments[i].Table1,
				dualAssigned: assignments[i].Table0,
				edge:         incomingEdge,
			})
		offsets[h1] += n
	}

	for i, page := range pages {
		_, err = device.WriteAt(page, int64(i)*int64(b.geo.pageSize))
		if err != nil {
			return err
		}
	}
	return device.Sync()
}

// Flow returns the number of assigned logical entries. Valid after
// Build.
func (b *StoreBuilder[T]) Flow() int {
	return b.flow
}

// Stats returns the store geometry and allocation statistics.
func (b *StoreBuilder[T]) Stats() string {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Field")
	tab.Header("Value").SetAlign(tabulate.MR)

	row := tab.Row()
	row.Column("PageSize")
	row.Column(fmt.Sprintf("%v", b.geo.pageSize))

	row = tab.Row()
	row.Column("BucketCapacity")
	row.Column(fmt.Sprintf("%v", b.geo.bucketCapacity))

	row = tab.Row()
	row.Column("NBuckets")
	row.Column(fmt.Sprintf("%v", 2*b.geo.nBuckets))

	row = tab.Row()
	row.Column("Lists")
	row.Column(fmt.Sprintf("%v", len(b.lists)))

	row = tab.Row()
	row.Column("Flow")
	row.Column(fmt.Sprintf("%v", b.flow))

	return tab.String()
}

// Store reads lists back from a built page file. It is constructed
// with the same parameters, codec and hasher the builder used.
type Store[T any] struct {
	geo    storeGeometry
	enc    valueEncoder[T]
	hasher Hasher
	device Device
}

// OpenStore opens a built store on the device.
func OpenStore[T any](params StoreBuilderParams, codec ValueCodec[T],
	hasher Hasher, device Device) (*Store[T], error) {

	geo, err := newStoreGeometry(params, codec.Size())
	if err != nil {
		return nil, err
	}
	return &Store[T]{
		geo:    geo,
		enc:    newValueEncoder(codec),
		hasher: hasher,
		device: device,
	}, nil
}

func (s *Store[T]) readPage(table, bucket int) ([]byte, error) {
	page := make([]byte, s.geo.pageSize)
	off := int64(table*s.geo.nBuckets+bucket) * int64(s.geo.pageSize)
	_, err := s.device.ReadAt(page, off)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// findList scans the page's segments for the key and returns its
// values stored in this bucket.
func (s *Store[T]) findList(page []byte, key Key) ([]T, bool, error) {
	entrySize := s.enc.entrySize
	headerBytes := s.enc.headerEntries() * entrySize

	var zero Key

	for ofs := 0; ofs+headerBytes <= len(page); {
		var segKey Key
		copy(segKey[:], page[ofs:])
		if segKey == zero {
			// Zero padding after the last segment.
			break
		}
		for i := ofs + KeySize; i < ofs+s.enc.keyEntries*entrySize; i++ {
			if page[i] != keyPadByte {
				return nil, false, fmt.Errorf("%w: bad key padding at %d",
					ErrFormat, i)
			}
		}
		lenOfs := ofs + s.enc.keyEntries*entrySize
		count := bo.Uint64(page[lenOfs:])
		for i := lenOfs + listLengthSize; i < ofs+headerBytes; i++ {
			if page[i] != lenPadByte {
				return nil, false, fmt.Errorf("%w: bad length padding at %d",
					ErrFormat, i)
			}
		}
		if count > uint64(s.geo.bucketCapacity) {
			return nil, false, fmt.Errorf("%w: list length %d out of page",
				ErrFormat, count)
		}
		valueOfs := ofs + headerBytes
		end := valueOfs + int(count)*entrySize
		if end > len(page) {
			return nil, false, fmt.Errorf("%w: list length %d out of page",
				ErrFormat, count)
		}
		if segKey == key {
			values := make([]T, count)
			for i := range values {
				values[i] = s.enc.codec.Decode(
					page[valueOfs+i*entrySize:])
			}
			return values, true, nil
		}
		ofs = end
	}
	return nil, false, nil
}

// Get returns the list stored under key, concatenating its two bucket
// segments: the table-0 chunk holds the head of the list, the table-1
// chunk the tail.
func (s *Store[T]) Get(key Key) ([]T, error) {
	ak := s.hasher.Hash(key)
	h0 := int(ak.H[0] % uint64(s.geo.nBuckets))
	h1 := int(ak.H[1] % uint64(s.geo.nBuckets))

	page, err := s.readPage(0, h0)
	if err != nil {
		return nil, err
	}
	head, found0, err := s.findList(page, key)
	if err != nil {
		return nil, err
	}

	page, err = s.readPage(1, h1)
	if err != nil {
		return nil, err
	}
	tail, found1, err := s.findList(page, key)
	if err != nil {
		return nil, err
	}

	if !found0 && !found1 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound,
			crypto.HexString(key[:]))
	}
	return append(head, tail...), nil
}
