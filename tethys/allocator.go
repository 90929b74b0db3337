//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

import (
	"fmt"
)

// capacityEdgeIndex marks the per-bucket capacity edges, which do not
// belong to any input list.
const capacityEdgeIndex = -1

// ListAssignment is the allocation of one input list: how many of its
// logical entries each candidate bucket stores.
type ListAssignment struct {
	Table0 int
	Table1 int
}

// allocList tracks the graph edges of one inserted list.
type allocList struct {
	h0     int
	h1     int
	length int
	cross  EdgePtr
}

// Allocator assigns variable-length lists to the two bucket tables by
// solving a max-flow problem. Every list is wired as source→(0,h0),
// a cross edge (0,h0)→(1,h1) and a sink edge from (1,h1), all with
// the list length as capacity; the per-list sink edge is capped at
// the bucket's remaining page budget. Allocate adds one capacity edge
// per table-0 bucket, so both tables can hold entries.
type Allocator struct {
	graph          *Graph
	nBuckets       int
	bucketCapacity int
	remaining      []int
	capEdges       []EdgePtr
	lists          []allocList
	byBucket       [][]int
	assignments    []ListAssignment
	allocated      bool
}

// NewAllocator creates an allocator over nBuckets buckets per table,
// each holding bucketCapacity entries.
func NewAllocator(nBuckets, bucketCapacity int) *Allocator {
	a := &Allocator{
		graph:          NewGraph(nBuckets),
		nBuckets:       nBuckets,
		bucketCapacity: bucketCapacity,
		remaining:      make([]int, nBuckets),
		byBucket:       make([][]int, nBuckets),
	}
	for i := range a.remaining {
		a.remaining[i] = bucketCapacity
	}
	return a
}

// Insert adds a list of listLength logical entries under the hashed
// key.
func (a *Allocator) Insert(key AllocatorKey, listLength int) error {
	if a.allocated {
		return fmt.Errorf("%w: allocation already computed", ErrInvalidState)
	}
	h0 := int(key.H[0] % uint64(a.nBuckets))
	h1 := int(key.H[1] % uint64(a.nBuckets))
	index := len(a.lists)

	_, err := a.graph.AddEdgeFromSource(index, listLength, h0, 0)
	if err != nil {
		return err
	}
	cross, err := a.graph.AddEdge(index, listLength, h0, h1, ForcedRight)
	if err != nil {
		return err
	}
	sinkCap := listLength
	if sinkCap > a.remaining[h1] {
		sinkCap = a.remaining[h1]
	}
	_, err = a.graph.AddEdgeToSink(index, sinkCap, h1, 1)
	if err != nil {
		return err
	}
	a.remaining[h1] -= sinkCap

	a.lists = append(a.lists, allocList{
		h0:     h0,
		h1:     h1,
		length: listLength,
		cross:  cross,
	})
	a.byBucket[h0] = append(a.byBucket[h0], index)
	return nil
}

// Allocate computes the max-flow assignment. Afterwards Assignments
// holds one entry per inserted list, in insertion order.
func (a *Allocator) Allocate() error {
	if a.allocated {
		return fmt.Errorf("%w: allocation already computed", ErrInvalidState)
	}

	// Table-0 buckets store entries through their capacity edge to
	// the sink; without it the flow conservation at a table-0 bucket
	// would force everything into table 1.
	a.capEdges = make([]EdgePtr, a.nBuckets)
	for j := 0; j < a.nBuckets; j++ {
		ptr, err := a.graph.AddEdgeToSink(capacityEdgeIndex,
			a.bucketCapacity, j, 0)
		if err != nil {
			return err
		}
		a.capEdges[j] = ptr
	}

	err := a.graph.ComputeResidualMaxFlow()
	if err != nil {
		return err
	}
	err = a.graph.TransformResidualToFlow()
	if err != nil {
		return err
	}

	// The table-1 share of a list is the realized flow of its own
	// cross edge. The table-0 bucket's total is the flow of its
	// capacity edge, distributed over the bucket's lists in insertion
	// order.
	a.assignments = make([]ListAssignment, len(a.lists))
	for i, list := range a.lists {
		a.assignments[i].Table1 = a.graph.EdgeFlow(list.cross)
	}
	for j := 0; j < a.nBuckets; j++ {
		stored := a.graph.EdgeFlow(a.capEdges[j])
		for _, i := range a.byBucket[j] {
			if stored == 0 {
				break
			}
			take := a.lists[i].length - a.assignments[i].Table1
			if take > stored {
				take = stored
			}
			a.assignments[i].Table0 = take
			stored -= take
		}
	}

	a.allocated = true
	return nil
}

// Assignments returns the per-list assignments in insertion order.
func (a *Allocator) Assignments() []ListAssignment {
	return a.assignments
}

// Flow returns the total number of assigned entries.
func (a *Allocator) Flow() int {
	return a.graph.Flow()
}

// NBuckets returns the number of buckets per table.
func (a *Allocator) NBuckets() int {
	return a.nBuckets
}

// BucketCapacity returns the entry capacity of one bucket.
func (a *Allocator) BucketCapacity() int {
	return a.bucketCapacity
}
