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
	"strings"

	"github.com/mkhts/gofusion/manifold"
)

// VectorValues is a collection of vector buffers keyed by type.
// Tangent vectors are keyed by variable type, residuals by factor type.
// A missing key reads as the empty buffer.
type VectorValues struct {
	buffers map[reflect.Type]AnyVectorBuffer
}

func NewVectorValues() VectorValues {
	return VectorValues{buffers: map[reflect.Type]AnyVectorBuffer{}}
}

func (v VectorValues) Buffer(key reflect.Type) AnyVectorBuffer {
	return v.buffers[key]
}

func (v *VectorValues) SetBuffer(key reflect.Type, b AnyVectorBuffer) {
	if v.buffers == nil {
		v.buffers = map[reflect.Type]AnyVectorBuffer{}
	}
	v.buffers[key] = b
}

// Keys returns the keys in a stable order.
func (v VectorValues) Keys() []reflect.Type {
	return sortedKeys(v.buffers)
}

// Dim returns the number of scalar coordinates.
func (v VectorValues) Dim() int {
	n := 0
	for _, b := range v.buffers {
		n += b.Dim()
	}
	return n
}

// Copy returns independent copies of every buffer.
func (v VectorValues) Copy() VectorValues {
	c := VectorValues{buffers: make(map[reflect.Type]AnyVectorBuffer, len(v.buffers))}
	for k, b := range v.buffers {
		c.buffers[k] = b.Snapshot()
	}
	return c
}

func (v VectorValues) Add(o VectorValues) VectorValues {
	c := v.Copy()
	c.AddInPlace(o)
	return c
}

func (v *VectorValues) AddInPlace(o VectorValues) {
	for k, ob := range o.buffers {
		b := v.buffers[k]
		b.AddInPlace(ob)
		v.SetBuffer(k, b)
	}
}

func (v VectorValues) Sub(o VectorValues) VectorValues {
	c := v.Copy()
	c.SubInPlace(o)
	return c
}

func (v *VectorValues) SubInPlace(o VectorValues) {
	for k, ob := range o.buffers {
		b := v.buffers[k]
		b.SubInPlace(ob)
		v.SetBuffer(k, b)
	}
}

func (v VectorValues) Scaled(s float64) VectorValues {
	c := VectorValues{buffers: make(map[reflect.Type]AnyVectorBuffer, len(v.buffers))}
	for k, b := range v.buffers {
		c.buffers[k] = b.Scaled(s)
	}
	return c
}

func (v *VectorValues) ScaleInPlace(s float64) {
	for k, b := range v.buffers {
		b.ScaleInPlace(s)
		v.buffers[k] = b
	}
}

// Dot sums the dot products of matching buffers in key order.
func (v VectorValues) Dot(o VectorValues) float64 {
	s := 0.0
	for _, k := range v.Keys() {
		s += v.buffers[k].Dot(o.buffers[k])
	}
	return s
}

func (v VectorValues) SquaredNorm() float64 {
	return v.Dot(v)
}

// Equal compares key by key, with missing keys read as empty buffers.
func (v VectorValues) Equal(o VectorValues) bool {
	for k, b := range v.buffers {
		if !b.Equal(o.buffers[k]) {
			return false
		}
	}
	for k, b := range o.buffers {
		if _, ok := v.buffers[k]; !ok && !b.IsZero() {
			return false
		}
	}
	return true
}

func (v VectorValues) String() string {
	var sb strings.Builder
	for _, k := range v.Keys() {
		fmt.Fprintf(&sb, "%v: %v\n", k, v.buffers[k])
	}
	return sb.String()
}

// TangentAt returns the vector of variable id. It returns the zero value of V
// when the buffer of id's type is empty.
func TangentAt[V manifold.Vector[V]](v VectorValues, id VariableID) V {
	b := v.Buffer(id.Type)
	if b.IsEmpty() {
		var z V
		return z
	}
	return VectorAt[V](b, id.Index)
}

// SetTangentAt replaces the vector of variable id, which must already be present.
func SetTangentAt[V manifold.Vector[V]](v *VectorValues, id VariableID, t V) {
	b := v.Buffer(id.Type)
	if b.IsEmpty() {
		fail("no vectors for %v", id)
	}
	SetVectorAt(&b, id.Index, t)
	v.SetBuffer(id.Type, b)
}

// ------------------------------------
// Flat coordinates for dense solves
// ------------------------------------

// flatten returns all coordinates, buffers in key order.
func (v VectorValues) flatten() []float64 {
	flat := make([]float64, v.Dim())
	off := 0
	for _, k := range v.Keys() {
		b := v.buffers[k]
		if b.IsEmpty() {
			continue
		}
		b.impl.flatten(flat[off:])
		off += b.Dim()
	}
	return flat
}

// withCoordinates is the inverse of flatten: values shaped like v holding flat.
func (v VectorValues) withCoordinates(flat []float64) VectorValues {
	if len(flat) != v.Dim() {
		fail("coordinate count %d does not match dimension %d", len(flat), v.Dim())
	}
	c := VectorValues{buffers: make(map[reflect.Type]AnyVectorBuffer, len(v.buffers))}
	off := 0
	for _, k := range v.Keys() {
		b := v.buffers[k]
		if b.IsEmpty() {
			c.buffers[k] = b
			continue
		}
		d := b.Dim()
		c.buffers[k] = AnyVectorBuffer{impl: b.impl.withCoordinates(flat[off : off+d])}
		off += d
	}
	return c
}
