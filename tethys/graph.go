//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package tethys

import (
	"errors"
	"fmt"
)

// Graph errors.
var (
	ErrInvalidState = errors.New("invalid state")
	ErrOutOfRange   = errors.New("index out of range")
)

// EdgeOrientation selects which table holds the start vertex of a
// cross edge.
type EdgeOrientation int

// Cross edge orientations.
const (
	// ForcedRight orients the edge from table 0 to table 1.
	ForcedRight EdgeOrientation = iota
	// ForcedLeft orients the edge from table 1 to table 0.
	ForcedLeft
)

// Graph states. Structural mutations are only allowed while
// Building.
type graphState int

const (
	stateBuilding graphState = iota
	stateResidualComputed
	stateMaxFlowComputed
)

// VertexPtr identifies a vertex: one of the two tables and an index
// within it, or the source or sink sentinel.
type VertexPtr struct {
	Table uint8
	Index uint32
}

// Vertex sentinels.
var (
	SourcePtr = VertexPtr{Table: 0xfe}
	SinkPtr   = VertexPtr{Table: 0xff}
)

// EdgePtr is an opaque edge handle. The reciprocal flag encodes the
// direction of traversal: a reciprocal handle addresses the same
// edge, traversed against its direction.
type EdgePtr struct {
	index      int32
	reciprocal bool
}

// NullEdgePtr is the absent edge handle.
var NullEdgePtr = EdgePtr{index: -1}

// Reciprocal returns the handle for traversing the edge against its
// direction.
func (e EdgePtr) Reciprocal() EdgePtr {
	return EdgePtr{
		index:      e.index,
		reciprocal: !e.reciprocal,
	}
}

// IsReciprocal reports whether the handle traverses the edge against
// its direction.
func (e EdgePtr) IsReciprocal() bool {
	return e.reciprocal
}

// Edge is a directed edge of the assignment graph. ValueIndex refers
// to the input list the edge was created for. While the residual is
// being computed, Capacity is the remaining forward residual and
// RecCapacity the realized flow; after materialisation Capacity is
// the realized flow and RecCapacity is zero.
type Edge struct {
	ValueIndex  int
	Capacity    int
	RecCapacity int
	Start       VertexPtr
	End         VertexPtr
}

// vertex holds the adjacency of one graph vertex. parentEdge is
// transient path-search state, reset before every search.
type vertex struct {
	outEdges   []EdgePtr
	inEdges    []EdgePtr
	parentEdge EdgePtr
}

// Graph is the TETHYS assignment graph: two vertex tables of equal
// size plus a distinguished source and sink. It is not safe for
// concurrent use; in particular no two path searches may run on the
// same graph at once.
type Graph struct {
	graphSize int
	state     graphState
	vertices  [2][]vertex
	source    vertex
	sink      vertex
	edges     []Edge
}

// NewGraph creates an empty graph with graphSize vertices per table.
func NewGraph(graphSize int) *Graph {
	g := &Graph{
		graphSize: graphSize,
	}
	g.vertices[0] = make([]vertex, graphSize)
	g.vertices[1] = make([]vertex, graphSize)
	return g
}

// Size returns the number of vertices per table.
func (g *Graph) Size() int {
	return g.graphSize
}

func (g *Graph) getVertex(ptr VertexPtr) *vertex {
	if ptr == SinkPtr {
		return &g.sink
	}
	if ptr == SourcePtr {
		return &g.source
	}
	return &g.vertices[ptr.Table][ptr.Index]
}

// edgeCapacity returns the residual capacity of the edge in the
// handle's direction of traversal.
func (g *Graph) edgeCapacity(ptr EdgePtr) int {
	if ptr.reciprocal {
		return g.edges[ptr.index].RecCapacity
	}
	return g.edges[ptr.index].Capacity
}

// updateCapacity moves flow units between the forward and reciprocal
// residuals through the possibly-reciprocal handle.
func (g *Graph) updateCapacity(ptr EdgePtr, flow int) {
	e := &g.edges[ptr.index]
	if ptr.reciprocal {
		e.RecCapacity -= flow
		e.Capacity += flow
	} else {
		e.Capacity -= flow
		e.RecCapacity += flow
	}
}

// EdgeAt returns a copy of the edge behind the handle.
func (g *Graph) EdgeAt(ptr EdgePtr) Edge {
	return g.edges[ptr.index]
}

// EdgeFlow returns the realized flow of the edge. Valid after the
// residual has been transformed into the flow.
func (g *Graph) EdgeFlow(ptr EdgePtr) int {
	return g.edges[ptr.index].Capacity
}

func (g *Graph) pushEdge(e Edge) EdgePtr {
	ptr := EdgePtr{
		index: int32(len(g.edges)),
	}
	g.edges = append(g.edges, e)
	g.getVertex(e.Start).outEdges = append(g.getVertex(e.Start).outEdges, ptr)
	g.getVertex(e.End).inEdges = append(g.getVertex(e.End).inEdges, ptr)
	return ptr
}

func (g *Graph) checkBuilding() error {
	if g.state != stateBuilding {
		return fmt.Errorf("%w: state should be Building", ErrInvalidState)
	}
	return nil
}

func (g *Graph) checkVertex(name string, index int) error {
	if index < 0 || index >= g.graphSize {
		return fmt.Errorf("%w: %s index %d", ErrOutOfRange, name, index)
	}
	return nil
}

func checkTable(table int) error {
	if table != 0 && table != 1 {
		return fmt.Errorf("%w: table should be 0 or 1", ErrOutOfRange)
	}
	return nil
}

// AddEdge creates a cross edge between the two tables: with
// ForcedRight from (0,start) to (1,end), with ForcedLeft from
// (1,start) to (0,end).
func (g *Graph) AddEdge(valueIndex, cap, start, end int,
	orientation EdgeOrientation) (EdgePtr, error) {

	if err := g.checkBuilding(); err != nil {
		return NullEdgePtr, err
	}
	if err := g.checkVertex("start", start); err != nil {
		return NullEdgePtr, err
	}
	if err := g.checkVertex("end", end); err != nil {
		return NullEdgePtr, err
	}

	e := Edge{
		ValueIndex: valueIndex,
		Capacity:   cap,
	}
	if orientation == ForcedLeft {
		e.Start = VertexPtr{Table: 1, Index: uint32(start)}
		e.End = VertexPtr{Table: 0, Index: uint32(end)}
	} else {
		e.Start = VertexPtr{Table: 0, Index: uint32(start)}
		e.End = VertexPtr{Table: 1, Index: uint32(end)}
	}
	// Additional orientations such as 'least charged' would slot in
	// here.

	return g.pushEdge(e), nil
}

// AddEdgeFromSource creates an edge from the source to (table, end).
func (g *Graph) AddEdgeFromSource(valueIndex, cap, end, table int) (
	EdgePtr, error) {

	if err := g.checkBuilding(); err != nil {
		return NullEdgePtr, err
	}
	if err := g.checkVertex("end", end); err != nil {
		return NullEdgePtr, err
	}
	if err := checkTable(table); err != nil {
		return NullEdgePtr, err
	}

	return g.pushEdge(Edge{
		ValueIndex: valueIndex,
		Capacity:   cap,
		Start:      SourcePtr,
		End:        VertexPtr{Table: uint8(table), Index: uint32(end)},
	}), nil
}

// AddEdgeToSink creates an edge from (table, start) to the sink.
func (g *Graph) AddEdgeToSink(valueIndex, cap, start, table int) (
	EdgePtr, error) {

	if err := g.checkBuilding(); err != nil {
		return NullEdgePtr, err
	}
	if err := g.checkVertex("start", start); err != nil {
		return NullEdgePtr, err
	}
	if err := checkTable(table); err != nil {
		return NullEdgePtr, err
	}

	return g.pushEdge(Edge{
		ValueIndex: valueIndex,
		Capacity:   cap,
		Start:      VertexPtr{Table: uint8(table), Index: uint32(start)},
		End:        SinkPtr,
	}), nil
}

func (g *Graph) resetParentEdges() {
	g.source.parentEdge = NullEdgePtr
	g.sink.parentEdge = NullEdgePtr

	for table := 0; table < 2; table++ {
		for i := range g.vertices[table] {
			g.vertices[table][i].parentEdge = NullEdgePtr
		}
	}
}

// findSourceSinkPath finds a path from the source to the sink in the
// residual graph and returns it with its residual capacity, or (nil,
// 0) when no path exists. The frontier is a deque pushed and popped
// at the front, giving a depth-first exploration that is
// deterministic for a given edge insertion order.
func (g *Graph) findSourceSinkPath() ([]EdgePtr, int) {
	g.resetParentEdges()

	// TODO: add a flag to choose between DFS and BFS.
	queue := []VertexPtr{SourcePtr}

	foundSink := false

	for !foundSink {
		if len(queue) == 0 {
			break
		}
		// Pop the front of the queue, which is the end of the slice.
		v := g.getVertex(queue[len(queue)-1])
		queue = queue[:len(queue)-1]

		// Forward traversal over the outgoing edges with remaining
		// capacity.
		for _, ePtr := range v.outEdges {
			e := &g.edges[ePtr.index]
			if e.Capacity > 0 {
				destPtr := e.End
				dest := g.getVertex(destPtr)

				if dest.parentEdge == NullEdgePtr && destPtr != SourcePtr {
					queue = append(queue, destPtr)
					dest.parentEdge = ePtr

					if destPtr == SinkPtr {
						foundSink = true
						break
					}
				}
			}
		}

		// Backward traversal over the reciprocal residuals of the
		// incoming edges.
		for _, ePtr := range v.inEdges {
			e := &g.edges[ePtr.index]
			if e.RecCapacity > 0 {
				destPtr := e.Start
				dest := g.getVertex(destPtr)

				if dest.parentEdge == NullEdgePtr && destPtr != SourcePtr {
					queue = append(queue, destPtr)
					// The parent link records that the edge was
					// traversed against its direction.
					dest.parentEdge = ePtr.Reciprocal()

					if destPtr == SinkPtr {
						foundSink = true
						break
					}
				}
			}
		}
	}

	if g.sink.parentEdge == NullEdgePtr {
		return nil, 0
	}

	// Walk back to the source, computing the path length and its
	// residual capacity.
	capacity := int(^uint(0) >> 1)
	size := 0
	cur := &g.sink
	for cur.parentEdge != NullEdgePtr {
		if c := g.edgeCapacity(cur.parentEdge); c < capacity {
			capacity = c
		}
		cur = g.parentVertex(cur)
		size++
	}

	path := make([]EdgePtr, size)
	cur = &g.sink
	for i := 0; cur.parentEdge != NullEdgePtr; i++ {
		path[size-i-1] = cur.parentEdge
		cur = g.parentVertex(cur)
	}
	return path, capacity
}

// parentVertex returns the vertex the parent edge was traversed
// from.
func (g *Graph) parentVertex(v *vertex) *vertex {
	e := &g.edges[v.parentEdge.index]
	if v.parentEdge.reciprocal {
		return g.getVertex(e.End)
	}
	return g.getVertex(e.Start)
}

// ComputeResidualMaxFlow augments source-sink paths until none
// remains. Afterwards every edge's RecCapacity is its realized flow
// and Capacity the remaining residual.
func (g *Graph) ComputeResidualMaxFlow() error {
	if err := g.checkBuilding(); err != nil {
		return err
	}

	for {
		path, pathCapacity := g.findSourceSinkPath()
		if len(path) == 0 {
			break
		}
		for _, ePtr := range path {
			g.updateCapacity(ePtr, pathCapacity)
		}
	}

	g.state = stateResidualComputed
	return nil
}

// TransformResidualToFlow materialises the flow: every edge's
// Capacity becomes its realized flow and RecCapacity drops to zero.
func (g *Graph) TransformResidualToFlow() error {
	if g.state != stateResidualComputed {
		return fmt.Errorf("%w: state should be ResidualComputed",
			ErrInvalidState)
	}
	for i := range g.edges {
		g.edges[i].Capacity = g.edges[i].RecCapacity
		g.edges[i].RecCapacity = 0
	}
	g.state = stateMaxFlowComputed
	return nil
}

// Flow returns the total realized flow: the sum of the sink in-edge
// capacities after materialisation.
func (g *Graph) Flow() int {
	var flow int
	for _, ePtr := range g.sink.inEdges {
		flow += g.edges[ePtr.index].Capacity
	}
	return flow
}
