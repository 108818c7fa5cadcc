// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package gofusion

import (
	"fmt"
	"reflect"

	"github.com/mkhts/gofusion/manifold"
)

// AnyVectorBuffer is a contiguous array of vectors whose element type is only
// known at run time.
//
// The zero AnyVectorBuffer is the empty buffer. It stands for the zero vector
// of whatever shape the other operand has, so sparse collections need not
// materialize zero blocks:
//   - empty + b == b, empty - b == -b, a + empty == a
//   - dot with an empty buffer is 0
//   - empty equals b iff every element of b is zero
//
// Assigning an AnyVectorBuffer aliases its storage. Use Snapshot for an
// independent copy; it is O(1) and copies lazily on the next write.
type AnyVectorBuffer struct {
	impl anyVectorArray
}

// anyVectorArray is implemented only by *vectorArray[V]. Its method set is
// the per-type dispatch of a buffer; the peer of every binary operation must
// have the same concrete type, which is checked before any element is touched.
type anyVectorArray interface {
	Len() int
	elementType() reflect.Type
	totalDim() int
	dimAt(i int) int
	coordinatesAt(i int, dst []float64)
	addCoordinatesAt(i int, c []float64)
	flatten(dst []float64)
	withCoordinates(c []float64) anyVectorArray
	snapshot() anyVectorArray
	add(o anyVectorArray) anyVectorArray
	addInPlace(o anyVectorArray)
	sub(o anyVectorArray) anyVectorArray
	subInPlace(o anyVectorArray)
	negated() anyVectorArray
	scaled(s float64) anyVectorArray
	scaleInPlace(s float64)
	dot(o anyVectorArray) float64
	equal(o anyVectorArray) bool
	isZero() bool
	jacobians(owner reflect.Type, scalar float64) []ScalarJacobianFactor
}

// NewVectorBuffer returns a buffer holding a copy of elems.
func NewVectorBuffer[V manifold.Vector[V]](elems ...V) AnyVectorBuffer {
	return vectorBufferOf(NewArrayBuffer(elems...))
}

func vectorBufferOf[V manifold.Vector[V]](buf ArrayBuffer[V]) AnyVectorBuffer {
	return AnyVectorBuffer{impl: &vectorArray[V]{buf: buf}}
}

// VectorAt returns element i of b, which must hold vectors of type V.
func VectorAt[V manifold.Vector[V]](b AnyVectorBuffer, i int) V {
	return typedVectors[V](b).buf.At(i)
}

// SetVectorAt replaces element i of b, which must hold vectors of type V.
func SetVectorAt[V manifold.Vector[V]](b *AnyVectorBuffer, i int, v V) {
	typedVectors[V](*b).buf.Set(i, v)
}

func typedVectors[V manifold.Vector[V]](b AnyVectorBuffer) *vectorArray[V] {
	a, ok := b.impl.(*vectorArray[V])
	if !ok {
		fail("vector buffer of %v accessed as %v", b.ElementType(), typeKey[V]())
	}
	return a
}

func (b AnyVectorBuffer) Len() int {
	if b.impl == nil {
		return 0
	}
	return b.impl.Len()
}

// IsEmpty reports whether b is the distinguished empty buffer.
func (b AnyVectorBuffer) IsEmpty() bool {
	return b.impl == nil
}

// ElementType returns the vector type of the elements, nil for the empty buffer.
func (b AnyVectorBuffer) ElementType() reflect.Type {
	if b.impl == nil {
		return nil
	}
	return b.impl.elementType()
}

// Dim returns the number of scalar coordinates of all elements.
func (b AnyVectorBuffer) Dim() int {
	if b.impl == nil {
		return 0
	}
	return b.impl.totalDim()
}

func (b AnyVectorBuffer) Snapshot() AnyVectorBuffer {
	if b.impl == nil {
		return b
	}
	return AnyVectorBuffer{impl: b.impl.snapshot()}
}

func (b AnyVectorBuffer) Add(o AnyVectorBuffer) AnyVectorBuffer {
	switch {
	case b.impl == nil:
		return o.Snapshot()
	case o.impl == nil:
		return b.Snapshot()
	}
	return AnyVectorBuffer{impl: b.impl.add(o.impl)}
}

func (b *AnyVectorBuffer) AddInPlace(o AnyVectorBuffer) {
	switch {
	case o.impl == nil:
	case b.impl == nil:
		*b = o.Snapshot()
	default:
		b.impl.addInPlace(o.impl)
	}
}

func (b AnyVectorBuffer) Sub(o AnyVectorBuffer) AnyVectorBuffer {
	switch {
	case o.impl == nil:
		return b.Snapshot()
	case b.impl == nil:
		return AnyVectorBuffer{impl: o.impl.negated()}
	}
	return AnyVectorBuffer{impl: b.impl.sub(o.impl)}
}

func (b *AnyVectorBuffer) SubInPlace(o AnyVectorBuffer) {
	switch {
	case o.impl == nil:
	case b.impl == nil:
		*b = AnyVectorBuffer{impl: o.impl.negated()}
	default:
		b.impl.subInPlace(o.impl)
	}
}

func (b AnyVectorBuffer) Scaled(s float64) AnyVectorBuffer {
	if b.impl == nil {
		return b
	}
	return AnyVectorBuffer{impl: b.impl.scaled(s)}
}

func (b *AnyVectorBuffer) ScaleInPlace(s float64) {
	if b.impl != nil {
		b.impl.scaleInPlace(s)
	}
}

// Dot sums the per-element dot products.
func (b AnyVectorBuffer) Dot(o AnyVectorBuffer) float64 {
	if b.impl == nil || o.impl == nil {
		return 0
	}
	return b.impl.dot(o.impl)
}

func (b AnyVectorBuffer) SquaredNorm() float64 {
	return b.Dot(b)
}

// Equal reports whether b and o hold the same vectors. Buffers of different
// element types or lengths are never equal.
func (b AnyVectorBuffer) Equal(o AnyVectorBuffer) bool {
	switch {
	case b.impl == nil && o.impl == nil:
		return true
	case b.impl == nil:
		return o.impl.isZero()
	case o.impl == nil:
		return b.impl.isZero()
	}
	return b.impl.equal(o.impl)
}

// IsZero reports whether every element is zero. The empty buffer is zero.
func (b AnyVectorBuffer) IsZero() bool {
	return b.impl == nil || b.impl.isZero()
}

// Jacobians returns, for every element i, a linear factor multiplying the
// variable (owner, i) by scalar.
func (b AnyVectorBuffer) Jacobians(owner reflect.Type, scalar float64) []ScalarJacobianFactor {
	if b.impl == nil {
		return nil
	}
	return b.impl.jacobians(owner, scalar)
}

func (b AnyVectorBuffer) String() string {
	if b.impl == nil {
		return "[]"
	}
	return fmt.Sprintf("%v%v", b.impl.elementType(), b.impl)
}

func (b AnyVectorBuffer) dimAt(i int) int {
	return b.impl.dimAt(i)
}

func (b AnyVectorBuffer) coordinatesAt(i int, dst []float64) {
	b.impl.coordinatesAt(i, dst)
}

func (b *AnyVectorBuffer) addCoordinatesAt(i int, c []float64) {
	b.impl.addCoordinatesAt(i, c)
}

// ------------------------------------
// Per-type dispatch
// ------------------------------------

type vectorArray[V manifold.Vector[V]] struct {
	buf ArrayBuffer[V]
}

// peer recovers the concrete type of o.
func (a *vectorArray[V]) peer(o anyVectorArray) *vectorArray[V] {
	p, ok := o.(*vectorArray[V])
	if !ok {
		fail("vector buffer element type mismatch: %v and %v", a.elementType(), o.elementType())
	}
	if p.buf.Len() != a.buf.Len() {
		fail("vector buffer length mismatch: %d and %d", a.buf.Len(), p.buf.Len())
	}
	return p
}

func (a *vectorArray[V]) Len() int { return a.buf.Len() }

func (a *vectorArray[V]) elementType() reflect.Type { return typeKey[V]() }

func (a *vectorArray[V]) totalDim() int {
	n := 0
	for _, v := range a.buf.Elements() {
		n += v.Dim()
	}
	return n
}

func (a *vectorArray[V]) dimAt(i int) int { return a.buf.At(i).Dim() }

func (a *vectorArray[V]) coordinatesAt(i int, dst []float64) {
	a.buf.At(i).Coordinates(dst)
}

func (a *vectorArray[V]) addCoordinatesAt(i int, c []float64) {
	x := a.buf.Mutable()
	x[i] = x[i].Add(x[i].FromCoordinates(c))
}

func (a *vectorArray[V]) flatten(dst []float64) {
	off := 0
	for _, v := range a.buf.Elements() {
		d := v.Dim()
		v.Coordinates(dst[off : off+d])
		off += d
	}
}

// withCoordinates returns an array shaped like a holding the coordinates c.
func (a *vectorArray[V]) withCoordinates(c []float64) anyVectorArray {
	x := a.buf.Elements()
	r := make([]V, len(x))
	off := 0
	for i, v := range x {
		d := v.Dim()
		r[i] = v.FromCoordinates(c[off : off+d])
		off += d
	}
	return &vectorArray[V]{buf: arrayBufferOf(r)}
}

func (a *vectorArray[V]) snapshot() anyVectorArray {
	return &vectorArray[V]{buf: a.buf.Snapshot()}
}

func (a *vectorArray[V]) add(o anyVectorArray) anyVectorArray {
	x, y := a.buf.Elements(), a.peer(o).buf.Elements()
	r := make([]V, len(x))
	for i := range x {
		r[i] = x[i].Add(y[i])
	}
	return &vectorArray[V]{buf: arrayBufferOf(r)}
}

func (a *vectorArray[V]) addInPlace(o anyVectorArray) {
	y := a.peer(o).buf.Elements()
	x := a.buf.Mutable()
	for i := range x {
		x[i] = x[i].Add(y[i])
	}
}

func (a *vectorArray[V]) sub(o anyVectorArray) anyVectorArray {
	x, y := a.buf.Elements(), a.peer(o).buf.Elements()
	r := make([]V, len(x))
	for i := range x {
		r[i] = x[i].Sub(y[i])
	}
	return &vectorArray[V]{buf: arrayBufferOf(r)}
}

func (a *vectorArray[V]) subInPlace(o anyVectorArray) {
	y := a.peer(o).buf.Elements()
	x := a.buf.Mutable()
	for i := range x {
		x[i] = x[i].Sub(y[i])
	}
}

func (a *vectorArray[V]) negated() anyVectorArray {
	return a.scaled(-1)
}

func (a *vectorArray[V]) scaled(s float64) anyVectorArray {
	x := a.buf.Elements()
	r := make([]V, len(x))
	for i := range x {
		r[i] = x[i].Scaled(s)
	}
	return &vectorArray[V]{buf: arrayBufferOf(r)}
}

func (a *vectorArray[V]) scaleInPlace(s float64) {
	x := a.buf.Mutable()
	for i := range x {
		x[i] = x[i].Scaled(s)
	}
}

func (a *vectorArray[V]) dot(o anyVectorArray) float64 {
	x, y := a.buf.Elements(), a.peer(o).buf.Elements()
	s := 0.0
	for i := range x {
		s += x[i].Dot(y[i])
	}
	return s
}

func (a *vectorArray[V]) equal(o anyVectorArray) bool {
	p, ok := o.(*vectorArray[V])
	if !ok || p.buf.Len() != a.buf.Len() {
		return false
	}
	x, y := a.buf.Elements(), p.buf.Elements()
	for i := range x {
		if x[i].Dim() != y[i].Dim() {
			return false
		}
		// Vectors expose no equality, so compare through the difference.
		d := x[i].Sub(y[i])
		if d.Dot(d) != 0 {
			return false
		}
	}
	return true
}

func (a *vectorArray[V]) isZero() bool {
	for _, v := range a.buf.Elements() {
		if v.Dot(v) != 0 {
			return false
		}
	}
	return true
}

func (a *vectorArray[V]) jacobians(owner reflect.Type, scalar float64) []ScalarJacobianFactor {
	x := a.buf.Elements()
	fs := make([]ScalarJacobianFactor, len(x))
	for i, v := range x {
		fs[i] = NewScalarJacobianFactor(VariableID{Type: owner, Index: i}, scalar, v.Dim())
	}
	return fs
}

func (a *vectorArray[V]) String() string {
	return fmt.Sprintf("%v", a.buf.Elements())
}

// ------------------------------------
// Residual buffers
// ------------------------------------

// residualBuffer packs the concatenated residuals flat, of per-factor
// dimensions dims, into a buffer. The element type depends only on dims, so
// residuals and linear components of one bucket always meet with the same type.
func residualBuffer(dims []int, flat []float64) AnyVectorBuffer {
	if len(dims) == 0 {
		return AnyVectorBuffer{}
	}
	d, uniform := uniformDim(dims)
	if !uniform {
		return fillVectorBuffer(manifold.VectorN{}, dims, flat)
	}
	switch d {
	case 1:
		return fillVectorBuffer(manifold.Vector1{}, dims, flat)
	case 2:
		return fillVectorBuffer(manifold.Vector2{}, dims, flat)
	case 3:
		return fillVectorBuffer(manifold.Vector3{}, dims, flat)
	}
	return fillVectorBuffer(manifold.VectorN{}, dims, flat)
}

func fillVectorBuffer[V manifold.Vector[V]](proto V, dims []int, flat []float64) AnyVectorBuffer {
	elems := make([]V, len(dims))
	off := 0
	for i, d := range dims {
		elems[i] = proto.FromCoordinates(flat[off : off+d])
		off += d
	}
	return vectorBufferOf(arrayBufferOf(elems))
}

// uniformDim returns the common value of dims, if there is one.
func uniformDim(dims []int) (int, bool) {
	if len(dims) == 0 {
		return 0, false
	}
	for _, d := range dims[1:] {
		if d != dims[0] {
			return 0, false
		}
	}
	return dims[0], true
}
