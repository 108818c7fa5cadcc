// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gofusion

import (
	"testing"

	"github.com/mkhts/gofusion/manifold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndGet(t *testing.T) {
	x := NewVariableAssignments()
	p0 := StoreVariable(x, manifold.NewPose2(1, 2, 0.5))
	p1 := StoreVariable(x, manifold.NewPose2(3, 4, 0))
	v0 := StoreVariable(x, manifold.Vector2{X: 5, Y: 6})
	l0 := StoreValue(x, "landmark")

	assert.Equal(t, 0, p0.Index())
	assert.Equal(t, 1, p1.Index())
	assert.Equal(t, 0, v0.Index())
	assert.Equal(t, 4, x.Len())
	assert.Equal(t, 2, x.Count(typeKey[manifold.Pose2]()))

	assert.Equal(t, manifold.NewPose2(3, 4, 0), Get(x, p1))
	assert.Equal(t, manifold.Vector2{X: 5, Y: 6}, Get(x, v0))
	assert.Equal(t, "landmark", Get(x, l0))

	Set(x, v0, manifold.Vector2{X: -1})
	assert.Equal(t, manifold.Vector2{X: -1}, Get(x, v0))
	Set(x, l0, "moved")
	assert.Equal(t, "moved", Get(x, l0))

	assert.Equal(t, VariableID{Type: typeKey[manifold.Pose2](), Index: 1}, p1.Erased())
}

func TestHandlePreconditions(t *testing.T) {
	x := NewVariableAssignments()
	y := NewVariableAssignments()
	id := StoreVariable(x, manifold.Vector1{X: 1})
	StoreVariable(y, manifold.Vector1{X: 2})

	assert.Panics(t, func() { Get(y, id) }, "handle from another store")
	assert.Panics(t, func() { Get(x, TypedID[manifold.Vector1]{}) }, "zero handle")
	assert.Panics(t, func() { Get(x, TypedID[manifold.Vector1]{index: 3, owner: x.owner}) }, "out of range")
	assert.Panics(t, func() { Get(x, TypedID[manifold.Vector2]{owner: x.owner}) }, "no such type")

	StoreValue(x, 3)
	assert.Panics(t, func() { StoreValue(x, manifold.Vector1{}) }, "differentiable type stored as value")
}

func TestMoveAndCopy(t *testing.T) {
	x := NewVariableAssignments()
	p := StoreVariable(x, manifold.Pose2{})
	v := StoreVariable(x, manifold.Vector2{X: 1, Y: 1})
	label := StoreValue(x, 7)

	zeros := x.TangentZeros()
	require.Len(t, zeros.Keys(), 2)
	assert.True(t, zeros.Buffer(typeKey[manifold.Pose2]()).IsZero())
	assert.Equal(t, typeKey[manifold.Vector3](), zeros.Buffer(typeKey[manifold.Pose2]()).ElementType())

	dx := zeros.Copy()
	SetTangentAt(&dx, p.Erased(), manifold.Vector3{X: 1, Z: 0.1})
	SetTangentAt(&dx, v.Erased(), manifold.Vector2{X: 2})
	assert.True(t, x.TangentZeros().Equal(zeros), "template is not modified")

	old := x.Copy()
	x.Move(dx)
	assert.True(t, Get(x, p).IsApprox(manifold.Pose2{}.Retract(manifold.Vector3{X: 1, Z: 0.1}), 1e-15))
	assert.Equal(t, manifold.Vector2{X: 3, Y: 1}, Get(x, v))
	assert.Equal(t, 7, Get(x, label))

	// The copy taken before the move is unchanged and handles remain valid for it
	assert.Equal(t, manifold.Pose2{}, Get(old, p))
	assert.Equal(t, manifold.Vector2{X: 1, Y: 1}, Get(old, v))

	x.assign(old)
	assert.Equal(t, manifold.Vector2{X: 1, Y: 1}, Get(x, v))

	// Empty tangent buffers leave their variables alone
	partial := NewVectorValues()
	partial.SetBuffer(typeKey[manifold.Vector2](), NewVectorBuffer(manifold.Vector2{Y: 1}))
	moved := x.Moved(partial)
	assert.Equal(t, manifold.Pose2{}, Get(moved, p))
	assert.Equal(t, manifold.Vector2{X: 1, Y: 2}, Get(moved, v))
	assert.Equal(t, manifold.Vector2{X: 1, Y: 1}, Get(x, v))
}

func TestPerturbedView(t *testing.T) {
	x := NewVariableAssignments()
	a := StoreVariable(x, manifold.Vector2{X: 1})
	b := StoreVariable(x, manifold.Vector2{Y: 1})
	c := StoreVariable(x, manifold.Vector1{X: 5})

	r := x.perturbed([]VariableID{b.Erased(), c.Erased()}, []int{2, 1}, []float64{0.5, 0.5, -1})
	assert.Equal(t, manifold.Vector2{X: 1}, Get(r, a))
	assert.Equal(t, manifold.Vector2{X: 0.5, Y: 1.5}, Get(r, b))
	assert.Equal(t, manifold.Vector1{X: 4}, Get(r, c))
	assert.Equal(t, manifold.Vector2{Y: 1}, Get(x, b))
}

func TestVectorValues(t *testing.T) {
	k2 := typeKey[manifold.Vector2]()
	k3 := typeKey[manifold.Vector3]()
	a := NewVectorValues()
	a.SetBuffer(k2, NewVectorBuffer(manifold.Vector2{X: 1, Y: 2}))
	b := NewVectorValues()
	b.SetBuffer(k2, NewVectorBuffer(manifold.Vector2{X: 3, Y: 4}))
	b.SetBuffer(k3, NewVectorBuffer(manifold.Vector3{Z: 1}))

	// Missing keys read as zero
	assert.Equal(t, 11.0, a.Dot(b))
	s := a.Add(b)
	assert.Equal(t, manifold.Vector3{Z: 1}, TangentAt[manifold.Vector3](s, VariableID{Type: k3}))
	assert.Equal(t, manifold.Vector2{X: 4, Y: 6}, TangentAt[manifold.Vector2](s, VariableID{Type: k2}))
	assert.Equal(t, manifold.Vector3{Z: -1}, TangentAt[manifold.Vector3](a.Sub(b), VariableID{Type: k3}))
	assert.True(t, s.Sub(b).Equal(a))
	assert.Equal(t, manifold.Vector3{}, TangentAt[manifold.Vector3](a, VariableID{Type: k3}))

	assert.Equal(t, 5, s.Dim())
	flat := s.flatten()
	assert.Len(t, flat, 5)
	assert.True(t, s.withCoordinates(flat).Equal(s))
	assert.Panics(t, func() { s.withCoordinates(flat[:2]) })

	c := s.Copy()
	c.ScaleInPlace(0)
	assert.Equal(t, 53.0, s.SquaredNorm())
	assert.True(t, c.Equal(NewVectorValues()))
}
