// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package gofusion

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/mkhts/gofusion/manifold"
)

// Source of store identities. Zero is never issued, so a zero TypedID is
// rejected by every store.
var storeCounter atomic.Uint64

// VariableID identifies a variable without its static type.
type VariableID struct {
	Type  reflect.Type // Concrete variable type
	Index int          // Insertion index among the variables of Type
}

func (id VariableID) String() string {
	return fmt.Sprintf("%v[%d]", id.Type, id.Index)
}

// TypedID is a handle to a variable of type T, valid for the store that issued it.
type TypedID[T any] struct {
	index int
	owner uint64
}

func (id TypedID[T]) Index() int { return id.index }

func (id TypedID[T]) Erased() VariableID {
	return VariableID{Type: typeKey[T](), Index: id.index}
}

func (id TypedID[T]) String() string { return id.Erased().String() }

// Reader gives read access to variable values. It is implemented by
// *VariableAssignments and by the perturbed views used while differentiating.
type Reader interface {
	elements(key reflect.Type) any
	ownerID() uint64
}

type elementReader[T any] interface {
	Len() int
	at(i int) T
}

type elementWriter[T any] interface {
	set(i int, v T)
}

// VariableAssignments holds the current values of all variables, one
// contiguous array per concrete type.
type VariableAssignments struct {
	owner   uint64
	storage map[reflect.Type]anyVariableArray
}

func NewVariableAssignments() *VariableAssignments {
	return &VariableAssignments{
		owner:   storeCounter.Add(1),
		storage: map[reflect.Type]anyVariableArray{},
	}
}

type anyVariableArray interface {
	Len() int
	elementType() reflect.Type
	snapshot() anyVariableArray
	differentiable() bool
	tangentDim(i int) int
	zeroTangents() AnyVectorBuffer
	move(along AnyVectorBuffer)
	// retracted returns a read view in which element i is moved along the
	// tangent coordinates patches[i].
	retracted(patches map[int][]float64) any
}

// StoreVariable appends a differentiable variable and returns its handle.
func StoreVariable[M manifold.Manifold[M, T], T manifold.Vector[T]](x *VariableAssignments, v M) TypedID[M] {
	k := typeKey[M]()
	a, ok := x.storage[k]
	if !ok {
		a = &manifoldArray[M, T]{}
		x.storage[k] = a
	}
	m, ok := a.(*manifoldArray[M, T])
	if !ok {
		fail("variables of type %v are already stored as plain values", k)
	}
	return TypedID[M]{index: m.buf.Append(v), owner: x.owner}
}

// StoreValue appends a value that takes part in factor errors but is never
// optimized, such as a fixed landmark or a label.
func StoreValue[E any](x *VariableAssignments, v E) TypedID[E] {
	k := typeKey[E]()
	a, ok := x.storage[k]
	if !ok {
		a = &valueArray[E]{}
		x.storage[k] = a
	}
	p, ok := a.(*valueArray[E])
	if !ok {
		fail("variables of type %v are already stored as differentiable", k)
	}
	return TypedID[E]{index: p.buf.Append(v), owner: x.owner}
}

// Get returns the value of variable id.
func Get[T any](x Reader, id TypedID[T]) T {
	if id.owner != x.ownerID() {
		fail("handle %v used against a different variable store", id)
	}
	r, ok := x.elements(typeKey[T]()).(elementReader[T])
	if !ok {
		fail("no variables of type %v", typeKey[T]())
	}
	if id.index < 0 || id.index >= r.Len() {
		fail("handle %v out of range (%d variables)", id, r.Len())
	}
	return r.at(id.index)
}

// Set replaces the value of variable id.
func Set[T any](x *VariableAssignments, id TypedID[T], v T) {
	Get(x, id) // validates the handle
	x.storage[typeKey[T]()].(elementWriter[T]).set(id.index, v)
}

func (x *VariableAssignments) elements(key reflect.Type) any {
	a, ok := x.storage[key]
	if !ok {
		return nil
	}
	return a
}

func (x *VariableAssignments) ownerID() uint64 {
	return x.owner
}

// Len returns the number of variables of every type.
func (x *VariableAssignments) Len() int {
	n := 0
	for _, a := range x.storage {
		n += a.Len()
	}
	return n
}

// Count returns the number of variables of type key.
func (x *VariableAssignments) Count(key reflect.Type) int {
	if a, ok := x.storage[key]; ok {
		return a.Len()
	}
	return 0
}

// Keys returns the variable types in a stable order.
func (x *VariableAssignments) Keys() []reflect.Type {
	return sortedKeys(x.storage)
}

// Copy returns a snapshot. Handles issued by x remain valid for the copy.
func (x *VariableAssignments) Copy() *VariableAssignments {
	c := &VariableAssignments{
		owner:   x.owner,
		storage: make(map[reflect.Type]anyVariableArray, len(x.storage)),
	}
	for k, a := range x.storage {
		c.storage[k] = a.snapshot()
	}
	return c
}

// assign restores the values of a snapshot taken from x.
func (x *VariableAssignments) assign(old *VariableAssignments) {
	if old.owner != x.owner {
		fail("assigning variables of a different store")
	}
	x.storage = old.Copy().storage
}

// TangentZeros returns zero tangent vectors for every differentiable
// variable, keyed by variable type.
func (x *VariableAssignments) TangentZeros() VectorValues {
	z := NewVectorValues()
	for k, a := range x.storage {
		if a.differentiable() {
			z.buffers[k] = a.zeroTangents()
		}
	}
	return z
}

// Move retracts every differentiable variable along its tangent vector in
// along. Types whose buffer in along is empty are left unchanged.
func (x *VariableAssignments) Move(along VectorValues) {
	for k, a := range x.storage {
		if a.differentiable() {
			a.move(along.Buffer(k))
		}
	}
}

// Moved returns a copy of x moved along the tangent vectors.
func (x *VariableAssignments) Moved(along VectorValues) *VariableAssignments {
	c := x.Copy()
	c.Move(along)
	return c
}

// perturbed returns a view of x in which the variables edges are retracted
// along consecutive segments of dx, segment k having dims[k] coordinates.
func (x *VariableAssignments) perturbed(edges []VariableID, dims []int, dx []float64) Reader {
	patches := make(map[reflect.Type]map[int][]float64, len(edges))
	off := 0
	for k, e := range edges {
		p, ok := patches[e.Type]
		if !ok {
			p = map[int][]float64{}
			patches[e.Type] = p
		}
		p[e.Index] = dx[off : off+dims[k]]
		off += dims[k]
	}
	o := &overlay{base: x, views: make(map[reflect.Type]any, len(patches))}
	for k, p := range patches {
		o.views[k] = x.storage[k].retracted(p)
	}
	return o
}

type overlay struct {
	base  *VariableAssignments
	views map[reflect.Type]any
}

func (o *overlay) elements(key reflect.Type) any {
	if v, ok := o.views[key]; ok {
		return v
	}
	return o.base.elements(key)
}

func (o *overlay) ownerID() uint64 {
	return o.base.owner
}

// ------------------------------------
// Arrays
// ------------------------------------

type manifoldArray[M manifold.Manifold[M, T], T manifold.Vector[T]] struct {
	buf ArrayBuffer[M]
}

func (a *manifoldArray[M, T]) Len() int                  { return a.buf.Len() }
func (a *manifoldArray[M, T]) elementType() reflect.Type { return typeKey[M]() }
func (a *manifoldArray[M, T]) differentiable() bool      { return true }
func (a *manifoldArray[M, T]) at(i int) M                { return a.buf.At(i) }
func (a *manifoldArray[M, T]) set(i int, v M)            { a.buf.Set(i, v) }

func (a *manifoldArray[M, T]) snapshot() anyVariableArray {
	return &manifoldArray[M, T]{buf: a.buf.Snapshot()}
}

func (a *manifoldArray[M, T]) tangentDim(i int) int {
	return a.buf.At(i).ZeroTangent().Dim()
}

func (a *manifoldArray[M, T]) zeroTangents() AnyVectorBuffer {
	x := a.buf.Elements()
	z := make([]T, len(x))
	for i, v := range x {
		z[i] = v.ZeroTangent()
	}
	return vectorBufferOf(arrayBufferOf(z))
}

func (a *manifoldArray[M, T]) move(along AnyVectorBuffer) {
	if along.IsEmpty() {
		return
	}
	d := typedVectors[T](along)
	if d.Len() != a.buf.Len() {
		fail("moving %d variables of %v along %d tangent vectors", a.buf.Len(), a.elementType(), d.Len())
	}
	x := a.buf.Mutable()
	for i := range x {
		x[i] = x[i].Retract(d.buf.At(i))
	}
}

func (a *manifoldArray[M, T]) retracted(patches map[int][]float64) any {
	p := &patchedArray[M]{base: a, patch: make(map[int]M, len(patches))}
	for i, c := range patches {
		v := a.buf.At(i)
		p.patch[i] = v.Retract(v.ZeroTangent().FromCoordinates(c))
	}
	return p
}

type valueArray[E any] struct {
	buf ArrayBuffer[E]
}

func (a *valueArray[E]) Len() int                      { return a.buf.Len() }
func (a *valueArray[E]) elementType() reflect.Type     { return typeKey[E]() }
func (a *valueArray[E]) differentiable() bool          { return false }
func (a *valueArray[E]) at(i int) E                    { return a.buf.At(i) }
func (a *valueArray[E]) set(i int, v E)                { a.buf.Set(i, v) }
func (a *valueArray[E]) tangentDim(int) int            { return 0 }
func (a *valueArray[E]) zeroTangents() AnyVectorBuffer { return AnyVectorBuffer{} }
func (a *valueArray[E]) move(AnyVectorBuffer)          {}

func (a *valueArray[E]) snapshot() anyVariableArray {
	return &valueArray[E]{buf: a.buf.Snapshot()}
}

func (a *valueArray[E]) retracted(map[int][]float64) any {
	fail("variables of type %v are not differentiable", a.elementType())
	return nil
}

// patchedArray reads through to base except at the patched indices.
type patchedArray[E any] struct {
	base  elementReader[E]
	patch map[int]E
}

func (p *patchedArray[E]) Len() int { return p.base.Len() }

func (p *patchedArray[E]) at(i int) E {
	if v, ok := p.patch[i]; ok {
		return v
	}
	return p.base.at(i)
}
