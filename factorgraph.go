// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gofusion

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
)

// Richest contract a factor type satisfies, detected once per type.
type capability int

const (
	plainCapability capability = iota
	vectorCapability
	linearizableCapability
	affineCapability
)

func (c capability) String() string {
	switch c {
	case vectorCapability:
		return "vector"
	case linearizableCapability:
		return "linearizable"
	case affineCapability:
		return "affine"
	}
	return "plain"
}

// FactorGraph is the nonlinear objective: one contiguous bucket per
// concrete factor type, in insertion order.
type FactorGraph struct {
	storage map[reflect.Type]anyFactorArray
}

func NewFactorGraph() *FactorGraph {
	return &FactorGraph{storage: map[reflect.Type]anyFactorArray{}}
}

type anyFactorArray interface {
	Len() int
	capability() capability
	edgesAt(i int) []VariableID
	snapshot() anyFactorArray
	totalError(x Reader) float64
	errorVectors(x Reader) AnyVectorBuffer
	linearized(x *VariableAssignments) anyGaussianArray
}

// StoreFactor appends f to the bucket of its type.
func StoreFactor[F Factor](g *FactorGraph, f F) int {
	k := typeKey[F]()
	a, ok := g.storage[k]
	if !ok {
		a = newFactorArray[F]()
		g.storage[k] = a
	}
	return a.(*factorArray[F]).buf.Append(f)
}

// Len returns the number of factors.
func (g *FactorGraph) Len() int {
	n := 0
	for _, a := range g.storage {
		n += a.Len()
	}
	return n
}

// Keys returns the factor types in a stable order.
func (g *FactorGraph) Keys() []reflect.Type {
	return sortedKeys(g.storage)
}

// Copy returns a snapshot of the graph.
func (g *FactorGraph) Copy() *FactorGraph {
	c := &FactorGraph{storage: make(map[reflect.Type]anyFactorArray, len(g.storage))}
	for k, a := range g.storage {
		c.storage[k] = a.snapshot()
	}
	return c
}

func (g *FactorGraph) String() string {
	var sb strings.Builder
	for _, k := range g.Keys() {
		a := g.storage[k]
		fmt.Fprintf(&sb, "%v: %d factors (%v)\n", k, a.Len(), a.capability())
	}
	return sb.String()
}

// Error returns the total error at x.
func (g *FactorGraph) Error(x Reader) float64 {
	e := 0.0
	for _, k := range g.Keys() {
		e += g.storage[k].totalError(x)
	}
	return e
}

// ErrorVectors returns the residuals of every vector factor at x, keyed by factor type.
func (g *FactorGraph) ErrorVectors(x Reader) VectorValues {
	v := NewVectorValues()
	for k, a := range g.storage {
		if a.capability() != plainCapability {
			v.buffers[k] = a.errorVectors(x)
		}
	}
	return v
}

// Gradient returns the gradient of Error at x as tangent vectors keyed by
// variable type. Plain factors have no derivative and are skipped.
func (g *FactorGraph) Gradient(x *VariableAssignments) VectorValues {
	grad := x.TangentZeros()
	zeros := grad.Copy()
	for _, k := range g.Keys() {
		a := g.storage[k]
		if a.capability() == plainCapability {
			continue
		}
		// d|r|^2 = 2 Jᵀ r, and the linearized residual at dx = 0 is r.
		lin := a.linearized(x)
		y := lin.errorVectors(VectorValues{}, zeros)
		y.ScaleInPlace(2)
		lin.linearComponentAdjoint(y, zeros, &grad)
	}
	return grad
}

// Linearized returns the linear approximation of the graph at x.
func (g *FactorGraph) Linearized(x *VariableAssignments) *GaussianFactorGraph {
	gfg := NewGaussianFactorGraph(x.TangentZeros())
	for k, a := range g.storage {
		if a.capability() != plainCapability {
			gfg.storage[k] = a.linearized(x)
		}
	}
	return gfg
}

// AdjacentVariables returns, per variable type, the indices of the variables
// that at least one factor depends on.
func (g *FactorGraph) AdjacentVariables() map[reflect.Type]*roaring.Bitmap {
	adj := map[reflect.Type]*roaring.Bitmap{}
	for _, a := range g.storage {
		for i := range a.Len() {
			for _, e := range a.edgesAt(i) {
				bm, ok := adj[e.Type]
				if !ok {
					bm = roaring.New()
					adj[e.Type] = bm
				}
				bm.Add(uint32(e.Index))
			}
		}
	}
	return adj
}

// Unconstrained returns the variables of x that no factor depends on.
func (g *FactorGraph) Unconstrained(x *VariableAssignments) []VariableID {
	adj := g.AdjacentVariables()
	var ids []VariableID
	for _, k := range x.Keys() {
		free := roaring.New()
		free.AddRange(0, uint64(x.Count(k)))
		if bm, ok := adj[k]; ok {
			free.AndNot(bm)
		}
		it := free.Iterator()
		for it.HasNext() {
			ids = append(ids, VariableID{Type: k, Index: int(it.Next())})
		}
	}
	return ids
}

// ------------------------------------
// Buckets
// ------------------------------------

type factorArray[F Factor] struct {
	buf  ArrayBuffer[F]
	caps capability
}

func newFactorArray[F Factor]() *factorArray[F] {
	var zero F
	caps := plainCapability
	switch any(&zero).(type) {
	case AffineFactor:
		caps = affineCapability
	case LinearizableFactor:
		caps = linearizableCapability
	case VectorFactor:
		caps = vectorCapability
	}
	return &factorArray[F]{caps: caps}
}

func (a *factorArray[F]) Len() int                   { return a.buf.Len() }
func (a *factorArray[F]) capability() capability     { return a.caps }
func (a *factorArray[F]) edgesAt(i int) []VariableID { return a.buf.At(i).Edges() }

func (a *factorArray[F]) snapshot() anyFactorArray {
	return &factorArray[F]{buf: a.buf.Snapshot(), caps: a.caps}
}

func (a *factorArray[F]) totalError(x Reader) float64 {
	elems := a.buf.Elements()
	parts := make([]float64, chunkCount(len(elems)))
	parallelFor(len(elems), func(k, lo, hi int) {
		s := 0.0
		for i := lo; i < hi; i++ {
			s += elems[i].Error(x)
		}
		parts[k] = s
	})
	return floats.Sum(parts)
}

func (a *factorArray[F]) errorDims() []int {
	elems := a.buf.Elements()
	dims := make([]int, len(elems))
	for i := range elems {
		dims[i] = any(&elems[i]).(VectorFactor).ErrorDim()
	}
	return dims
}

func (a *factorArray[F]) errorVectors(x Reader) AnyVectorBuffer {
	elems := a.buf.Elements()
	dims := a.errorDims()
	offs, total := offsets(dims)
	flat := make([]float64, total)
	parallelFor(len(elems), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			any(&elems[i]).(VectorFactor).ErrorVector(x, flat[offs[i]:offs[i]+dims[i]])
		}
	})
	return residualBuffer(dims, flat)
}

// linearized picks the row storage from the residual dimension of the bucket.
func (a *factorArray[F]) linearized(x *VariableAssignments) anyGaussianArray {
	d, uniform := uniformDim(a.errorDims())
	if !uniform {
		return linearizeArray[RowsN](a, x)
	}
	switch d {
	case 1:
		return linearizeArray[Rows1](a, x)
	case 2:
		return linearizeArray[Rows2](a, x)
	case 3:
		return linearizeArray[Rows3](a, x)
	case 6:
		return linearizeArray[Rows6](a, x)
	}
	return linearizeArray[RowsN](a, x)
}

// offsets returns the prefix sums of dims and their total.
func offsets(dims []int) ([]int, int) {
	offs := make([]int, len(dims))
	total := 0
	for i, d := range dims {
		offs[i] = total
		total += d
	}
	return offs, total
}
