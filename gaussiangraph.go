// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gofusion

import (
	"math"
	"reflect"

	"golang.org/x/exp/slices"
)

// GaussianFactorGraph is a linear least-squares problem |A·dx - b|^2 made of
// linear factors, plus the zero tangent vectors of the point it was
// linearized at. A is never formed: solvers use the forward map
// LinearComponent and its adjoint LinearComponentAdjoint.
type GaussianFactorGraph struct {
	storage map[reflect.Type]anyGaussianArray
	zeros   VectorValues
}

// NewGaussianFactorGraph returns an empty graph over variables shaped like zeros.
func NewGaussianFactorGraph(zeros VectorValues) *GaussianFactorGraph {
	return &GaussianFactorGraph{
		storage: map[reflect.Type]anyGaussianArray{},
		zeros:   zeros.Copy(),
	}
}

type anyGaussianArray interface {
	Len() int
	snapshot() anyGaussianArray
	edgesAt(i int) []VariableID
	errorVectors(dx, zeros VectorValues) AnyVectorBuffer
	linearComponent(dx, zeros VectorValues) AnyVectorBuffer
	linearComponentAdjoint(y AnyVectorBuffer, zeros VectorValues, into *VectorValues)
}

// StoreGaussianFactor appends f to the bucket of its type.
func StoreGaussianFactor[F GaussianFactor](g *GaussianFactorGraph, f F) int {
	k := typeKey[F]()
	a, ok := g.storage[k]
	if !ok {
		a = newGaussianArray[F](nil)
		g.storage[k] = a
	}
	return a.(*gaussianArray[F]).append(f)
}

// Zeros returns a fresh copy of the zero tangent vectors.
func (g *GaussianFactorGraph) Zeros() VectorValues {
	return g.zeros.Copy()
}

// Len returns the number of factors.
func (g *GaussianFactorGraph) Len() int {
	n := 0
	for _, a := range g.storage {
		n += a.Len()
	}
	return n
}

func (g *GaussianFactorGraph) Keys() []reflect.Type {
	return sortedKeys(g.storage)
}

// Copy returns a snapshot that can be extended without affecting g.
func (g *GaussianFactorGraph) Copy() *GaussianFactorGraph {
	c := &GaussianFactorGraph{
		storage: make(map[reflect.Type]anyGaussianArray, len(g.storage)),
		zeros:   g.zeros.Copy(),
	}
	for k, a := range g.storage {
		c.storage[k] = a.snapshot()
	}
	return c
}

// ErrorVectors returns A·dx - b per factor type.
func (g *GaussianFactorGraph) ErrorVectors(dx VectorValues) VectorValues {
	v := NewVectorValues()
	for k, a := range g.storage {
		v.buffers[k] = a.errorVectors(dx, g.zeros)
	}
	return v
}

// Error returns |A·dx - b|^2.
func (g *GaussianFactorGraph) Error(dx VectorValues) float64 {
	return g.ErrorVectors(dx).SquaredNorm()
}

// LinearComponent returns A·dx per factor type.
func (g *GaussianFactorGraph) LinearComponent(dx VectorValues) VectorValues {
	v := NewVectorValues()
	for k, a := range g.storage {
		v.buffers[k] = a.linearComponent(dx, g.zeros)
	}
	return v
}

// LinearComponentAdjoint returns Aᵀ·y as tangent vectors. y is keyed like
// the result of LinearComponent; missing keys contribute nothing.
func (g *GaussianFactorGraph) LinearComponentAdjoint(y VectorValues) VectorValues {
	acc := g.zeros.Copy()
	for _, k := range g.Keys() {
		g.storage[k].linearComponentAdjoint(y.Buffer(k), g.zeros, &acc)
	}
	return acc
}

// AddScalarJacobians adds, for every variable, a factor scaling it by
// scalar. It is the damping term of Levenberg-Marquardt and may be added once.
func (g *GaussianFactorGraph) AddScalarJacobians(scalar float64) {
	k := typeKey[ScalarJacobianFactor]()
	if _, ok := g.storage[k]; ok {
		fail("scalar jacobians already added")
	}
	if math.IsNaN(scalar) {
		fail("scalar jacobian with NaN scalar")
	}
	var fs []ScalarJacobianFactor
	for _, vk := range g.zeros.Keys() {
		fs = append(fs, g.zeros.Buffer(vk).Jacobians(vk, scalar)...)
	}
	g.storage[k] = newGaussianArray(fs)
}

// ------------------------------------
// Buckets
// ------------------------------------

type gaussianArray[F GaussianFactor] struct {
	buf  ArrayBuffer[F]
	dims []int // ErrorDim of every factor
}

func newGaussianArray[F GaussianFactor](fs []F) *gaussianArray[F] {
	dims := make([]int, len(fs))
	for i := range fs {
		dims[i] = fs[i].ErrorDim()
	}
	return &gaussianArray[F]{buf: arrayBufferOf(fs), dims: dims}
}

func (a *gaussianArray[F]) append(f F) int {
	a.dims = append(a.dims, f.ErrorDim())
	return a.buf.Append(f)
}

func (a *gaussianArray[F]) Len() int                   { return a.buf.Len() }
func (a *gaussianArray[F]) edgesAt(i int) []VariableID { return a.buf.At(i).Edges() }

func (a *gaussianArray[F]) snapshot() anyGaussianArray {
	return &gaussianArray[F]{buf: a.buf.Snapshot(), dims: slices.Clip(a.dims)}
}

func (a *gaussianArray[F]) errorVectors(dx, zeros VectorValues) AnyVectorBuffer {
	return a.forward(dx, zeros, func(f F, local, dst []float64) { f.ErrorVector(local, dst) })
}

func (a *gaussianArray[F]) linearComponent(dx, zeros VectorValues) AnyVectorBuffer {
	return a.forward(dx, zeros, func(f F, local, dst []float64) { f.LinearComponent(local, dst) })
}

// forward evaluates op on every factor with its local slice of dx.
func (a *gaussianArray[F]) forward(dx, zeros VectorValues, op func(f F, local, dst []float64)) AnyVectorBuffer {
	elems := a.buf.Elements()
	offs, total := offsets(a.dims)
	flat := make([]float64, total)
	parallelFor(len(elems), func(_, lo, hi int) {
		var local []float64
		for i := lo; i < hi; i++ {
			local = gather(dx, zeros, elems[i].Edges(), local)
			op(elems[i], local, flat[offs[i]:offs[i]+a.dims[i]])
		}
	})
	return residualBuffer(a.dims, flat)
}

func (a *gaussianArray[F]) linearComponentAdjoint(y AnyVectorBuffer, zeros VectorValues, into *VectorValues) {
	if y.IsEmpty() {
		return
	}
	elems := a.buf.Elements()
	if y.Len() != len(elems) {
		fail("adjoint of %d factors applied to %d residuals", len(elems), y.Len())
	}

	c := chunkCount(len(elems))
	parts := make([]VectorValues, c)
	for k := range parts {
		if c == 1 {
			parts[k] = *into
		} else {
			parts[k] = zeros.Copy()
		}
	}
	parallelFor(len(elems), func(k, lo, hi int) {
		var r, g []float64
		for i := lo; i < hi; i++ {
			d := a.dims[i]
			r = slices.Grow(r[:0], d)[:d]
			y.coordinatesAt(i, r)
			edges := elems[i].Edges()
			g = gather(VectorValues{}, zeros, edges, g)
			elems[i].LinearComponentAdjoint(r, g)
			scatter(&parts[k], edges, g)
		}
	})
	if c == 1 {
		*into = parts[0]
		return
	}
	// Merge in chunk order so the sums do not depend on scheduling.
	for _, p := range parts {
		into.AddInPlace(p)
	}
}

// gather writes the tangent coordinates of edges, read from dx, into buf.
// Variables whose buffer in dx is empty read as zero; zeros gives the shapes.
func gather(dx, zeros VectorValues, edges []VariableID, buf []float64) []float64 {
	buf = buf[:0]
	for _, e := range edges {
		z := zeros.Buffer(e.Type)
		if z.IsEmpty() {
			fail("linear factor refers to %v, which has no tangent space", e)
		}
		d := z.dimAt(e.Index)
		n := len(buf)
		buf = slices.Grow(buf, d)[:n+d]
		if b := dx.Buffer(e.Type); b.IsEmpty() {
			clear(buf[n:])
		} else {
			b.coordinatesAt(e.Index, buf[n:])
		}
	}
	return buf
}

// scatter adds consecutive segments of g to the tangent vectors of edges.
func scatter(into *VectorValues, edges []VariableID, g []float64) {
	off := 0
	for _, e := range edges {
		b := into.Buffer(e.Type)
		d := b.dimAt(e.Index)
		b.addCoordinatesAt(e.Index, g[off:off+d])
		into.SetBuffer(e.Type, b)
		off += d
	}
}
