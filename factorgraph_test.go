// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package gofusion

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/mkhts/gofusion/manifold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	pose2Prior   = PriorFactor[manifold.Pose2, manifold.Vector3]
	pose2Between = BetweenFactor[manifold.Pose2, manifold.Vector3]
)

// labelFactor depends only on a plain value, so it has no derivative.
type labelFactor struct {
	Label TypedID[string]
}

func (f labelFactor) Edges() []VariableID    { return []VariableID{f.Label.Erased()} }
func (f labelFactor) Error(x Reader) float64 { return float64(len(Get(x, f.Label))) }

type anchor struct{ X, Y float64 }

// anchorFactor pulls a point towards a fixed anchor stored as a plain value.
type anchorFactor struct {
	Point  TypedID[manifold.Vector2]
	Anchor TypedID[anchor]
}

func (f anchorFactor) Edges() []VariableID {
	return []VariableID{f.Anchor.Erased(), f.Point.Erased()}
}
func (f anchorFactor) ErrorDim() int          { return 2 }
func (f anchorFactor) Error(x Reader) float64 { return VectorError(f, x) }
func (f anchorFactor) ErrorVector(x Reader, dst []float64) {
	p, a := Get(x, f.Point), Get(x, f.Anchor)
	dst[0], dst[1] = p.X-a.X, p.Y-a.Y
}

// numericRange hides the hand-written Jacobian of RangeFactor.
type numericRange struct {
	f RangeFactor
}

func (n numericRange) Edges() []VariableID                 { return n.f.Edges() }
func (n numericRange) ErrorDim() int                       { return n.f.ErrorDim() }
func (n numericRange) Error(x Reader) float64              { return n.f.Error(x) }
func (n numericRange) ErrorVector(x Reader, dst []float64) { n.f.ErrorVector(x, dst) }

type mixedFixture struct {
	x      *VariableAssignments
	g      *FactorGraph
	p0, p1 TypedID[manifold.Pose2]
	v0, v1 TypedID[manifold.Vector2]
	free   TypedID[manifold.Vector2]
}

// Two poses and two points joined by factors of five types.
func newMixedFixture() *mixedFixture {
	x := NewVariableAssignments()
	f := &mixedFixture{x: x, g: NewFactorGraph()}
	f.p0 = StoreVariable(x, manifold.NewPose2(0.1, -0.2, 0.3))
	f.p1 = StoreVariable(x, manifold.NewPose2(1.2, 0.4, -0.2))
	f.v0 = StoreVariable(x, manifold.Vector2{X: 0.5, Y: 1})
	f.v1 = StoreVariable(x, manifold.Vector2{X: 2, Y: -1})
	f.free = StoreVariable(x, manifold.Vector2{X: 9, Y: 9})
	label := StoreValue(x, "abc")
	a := StoreValue(x, anchor{X: 1, Y: 1})

	StoreFactor(f.g, NewPriorFactor(f.p0, manifold.NewPose2(0, 0, 0)))
	StoreFactor(f.g, NewBetweenFactor(f.p0, f.p1, manifold.NewPose2(1, 0, 0.1)))
	StoreFactor(f.g, RangeFactor{From: f.v0, To: f.v1, Range: 2})
	StoreFactor(f.g, NewVectorPriorFactor(f.v0, manifold.Vector2{X: 0.4, Y: 0.9}))
	StoreFactor(f.g, anchorFactor{Point: f.v1, Anchor: a})
	StoreFactor(f.g, labelFactor{Label: label})
	return f
}

func TestFactorGraphCapabilities(t *testing.T) {
	f := newMixedFixture()
	assert.Equal(t, 6, f.g.Len())
	caps := func(k reflect.Type) capability { return f.g.storage[k].capability() }
	assert.Equal(t, vectorCapability, caps(typeKey[pose2Prior]()))
	assert.Equal(t, vectorCapability, caps(typeKey[pose2Between]()))
	assert.Equal(t, linearizableCapability, caps(typeKey[RangeFactor]()))
	assert.Equal(t, affineCapability, caps(typeKey[VectorPriorFactor[manifold.Vector2]]()))
	assert.Equal(t, vectorCapability, caps(typeKey[anchorFactor]()))
	assert.Equal(t, plainCapability, caps(typeKey[labelFactor]()))
}

func TestFactorGraphError(t *testing.T) {
	f := newMixedFixture()
	ev := f.g.ErrorVectors(f.x)
	assert.True(t, ev.Buffer(typeKey[labelFactor]()).IsEmpty())
	assert.Len(t, ev.Keys(), 5)

	// Vector factors contribute their squared residual, the label factor len("abc")
	assert.InDelta(t, ev.SquaredNorm()+3, f.g.Error(f.x), 1e-12)
	assert.Greater(t, ev.SquaredNorm(), 0.0)

	c := f.g.Copy()
	StoreFactor(c, labelFactor{Label: TypedID[string]{owner: f.x.owner}})
	assert.Equal(t, 7, c.Len())
	assert.Equal(t, 6, f.g.Len())
}

// The gradient must match central differences of the total error.
func TestGradientMatchesFiniteDifferences(t *testing.T) {
	f := newMixedFixture()
	grad := f.g.Gradient(f.x).flatten()
	zeros := f.x.TangentZeros()
	require.Len(t, grad, zeros.Dim())

	const h = 1e-6
	unit := make([]float64, zeros.Dim())
	for j := range unit {
		unit[j] = h
		e := zeros.withCoordinates(unit)
		unit[j] = 0
		fd := (f.g.Error(f.x.Moved(e)) - f.g.Error(f.x.Moved(e.Scaled(-1)))) / (2 * h)
		assert.InDelta(t, fd, grad[j], 1e-6, "coordinate %d", j)
	}

	// The unconstrained point has no gradient
	assert.Equal(t, manifold.Vector2{}, TangentAt[manifold.Vector2](f.g.Gradient(f.x), f.free.Erased()))
}

func TestLinearizationOfAffineFactorIsExact(t *testing.T) {
	x := NewVariableAssignments()
	v := StoreVariable(x, manifold.Vector3{X: 1, Y: -2, Z: 0.5})
	g := NewFactorGraph()
	StoreFactor(g, NewVectorPriorFactor(v, manifold.Vector3{X: 0.3, Y: 0.1, Z: -4}))

	gfg := g.Linearized(x)
	rng := rand.New(rand.NewSource(1))
	for range 5 {
		c := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		dx := x.TangentZeros().withCoordinates(c)
		want := g.ErrorVectors(x.Moved(dx)).flatten()
		got := gfg.ErrorVectors(dx).flatten()
		assert.InDeltaSlice(t, want, got, 1e-12)
	}
}

func TestAdjointMatchesForwardMap(t *testing.T) {
	x := NewVariableAssignments()
	p0 := StoreVariable(x, manifold.NewPose2(0.2, 0.1, 0.4))
	p1 := StoreVariable(x, manifold.NewPose2(1.1, -0.3, 1.0))
	g := NewFactorGraph()
	StoreFactor(g, NewPriorFactor(p0, manifold.NewPose2(0, 0, 0)))
	StoreFactor(g, NewPriorFactor(p1, manifold.NewPose2(1, 0, 0.5)))
	StoreFactor(g, NewBetweenFactor(p0, p1, manifold.NewPose2(1, 0, 0.3)))

	for _, damped := range []bool{false, true} {
		gfg := g.Linearized(x)
		if damped {
			gfg.AddScalarJacobians(0.7)
		}
		zeros := gfg.Zeros()
		residualShape := gfg.LinearComponent(zeros)

		rng := rand.New(rand.NewSource(2))
		for range 10 {
			xv := zeros.withCoordinates(randomCoordinates(rng, zeros.Dim()))
			yv := residualShape.withCoordinates(randomCoordinates(rng, residualShape.Dim()))
			lhs := gfg.LinearComponent(xv).Dot(yv)
			rhs := xv.Dot(gfg.LinearComponentAdjoint(yv))
			assert.InDelta(t, lhs, rhs, 1e-10, "damped=%v", damped)
		}
	}
}

func randomCoordinates(rng *rand.Rand, n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = rng.NormFloat64()
	}
	return c
}

func TestRowStorageFollowsResidualDimension(t *testing.T) {
	x := NewVariableAssignments()
	p := StoreVariable(x, manifold.Pose2{})
	a := StoreVariable(x, manifold.Vector2{})
	b := StoreVariable(x, manifold.Vector2{X: 1})
	n := StoreVariable(x, manifold.NewVectorN(1, 2, 3, 4))
	g := NewFactorGraph()
	StoreFactor(g, NewPriorFactor(p, manifold.Pose2{}))
	StoreFactor(g, RangeFactor{From: a, To: b, Range: 1})
	StoreFactor(g, NewVectorPriorFactor(a, manifold.Vector2{}))
	StoreFactor(g, NewVectorPriorFactor(n, manifold.ZerosN(4)))

	gfg := g.Linearized(x)
	_, ok := gfg.storage[typeKey[pose2Prior]()].(*gaussianArray[JacobianFactor[Rows3]])
	assert.True(t, ok)
	_, ok = gfg.storage[typeKey[RangeFactor]()].(*gaussianArray[JacobianFactor[Rows1]])
	assert.True(t, ok)
	_, ok = gfg.storage[typeKey[VectorPriorFactor[manifold.Vector2]]()].(*gaussianArray[JacobianFactor[Rows2]])
	assert.True(t, ok)
	_, ok = gfg.storage[typeKey[VectorPriorFactor[manifold.VectorN]]()].(*gaussianArray[JacobianFactor[RowsN]])
	assert.True(t, ok)

	assert.Equal(t, 4, gfg.Len())
	assert.Panics(t, func() { newRows[Rows3](2) })
	assert.Len(t, newRows[RowsN](5), 5)
}

func TestHandWrittenJacobianMatchesNumeric(t *testing.T) {
	x := NewVariableAssignments()
	a := StoreVariable(x, manifold.Vector2{X: 0.3, Y: -1})
	b := StoreVariable(x, manifold.Vector2{X: 2, Y: 0.5})
	r := RangeFactor{From: a, To: b, Range: 1.5}

	hand := linearizeFactor[Rows1](&r, x)
	numeric := linearizeFactor[Rows1](&numericRange{f: r}, x)
	assert.Equal(t, hand.Edges(), numeric.Edges())
	assert.InDeltaSlice(t, numeric.Row(0), hand.Row(0), 1e-8)
	assert.InDeltaSlice(t, numeric.Bias(), hand.Bias(), 1e-15)
	assert.Equal(t, 4, hand.Dense().RawMatrix().Cols)
}

func TestPose2JacobiansMatchNumeric(t *testing.T) {
	x := NewVariableAssignments()
	p0 := StoreVariable(x, manifold.NewPose2(0.4, -1.2, 2.8))
	p1 := StoreVariable(x, manifold.NewPose2(-0.9, 0.6, -2.5))
	p2 := StoreVariable(x, manifold.NewPose2(-0.9, 0.6+1e-3, -2.5+5e-5))

	g := NewFactorGraph()
	StoreFactor(g, NewPose2PriorFactor(p0, manifold.Pose2{}))
	assert.Equal(t, linearizableCapability, g.storage[typeKey[Pose2PriorFactor]()].capability())

	for _, prior := range []Pose2PriorFactor{
		NewPose2PriorFactor(p0, manifold.NewPose2(1, 2, -0.3)),
		NewPose2PriorFactor(p0, manifold.NewPose2(0.4, -1.2, 2.8+1e-5)),
	} {
		exact := linearizeFactor[Rows3](&prior, x)
		numeric := linearizeFactor[Rows3](&prior.PriorFactor, x)
		for i := range 3 {
			assert.InDeltaSlice(t, numeric.Row(i), exact.Row(i), 1e-7, "row %d", i)
		}
		assert.Equal(t, numeric.Bias(), exact.Bias())
	}

	for _, between := range []Pose2BetweenFactor{
		NewPose2BetweenFactor(p0, p1, manifold.NewPose2(1, 0, 0.5)),
		// Residual angle in the series range
		NewPose2BetweenFactor(p1, p2, manifold.NewPose2(0, 1e-3, 0)),
		NewPose2BetweenFactor(p2, p0, manifold.NewPose2(-3, 2, 1)),
	} {
		exact := linearizeFactor[Rows3](&between, x)
		numeric := linearizeFactor[Rows3](&between.BetweenFactor, x)
		require.Equal(t, numeric.Edges(), exact.Edges())
		for i := range 3 {
			assert.InDeltaSlice(t, numeric.Row(i), exact.Row(i), 1e-7, "row %d", i)
		}
		assert.Equal(t, numeric.Bias(), exact.Bias())
	}
}

func TestPlainEdgesAreConstants(t *testing.T) {
	x := NewVariableAssignments()
	p := StoreVariable(x, manifold.Vector2{X: 3, Y: 4})
	a := StoreValue(x, anchor{X: 1, Y: 1})
	j := linearizeFactor[Rows2](&anchorFactor{Point: p, Anchor: a}, x)

	assert.Equal(t, []VariableID{p.Erased()}, j.Edges())
	assert.InDeltaSlice(t, []float64{1, 0}, j.Row(0), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1}, j.Row(1), 1e-9)
	assert.Equal(t, []float64{-2, -3}, j.Bias())

	// Factors that bring their own derivative cannot skip edges
	assert.Panics(t, func() {
		linearizeFactor[Rows2](&anchorJacobian{anchorFactor{Point: p, Anchor: a}}, x)
	})
}

// anchorJacobian claims a hand-written Jacobian while depending on a plain value.
type anchorJacobian struct {
	anchorFactor
}

func (f anchorJacobian) Jacobian(x Reader, rows [][]float64) {}

func TestAdjacencyAndUnconstrained(t *testing.T) {
	f := newMixedFixture()
	adj := f.g.AdjacentVariables()
	poses := adj[typeKey[manifold.Pose2]()]
	require.NotNil(t, poses)
	assert.Equal(t, []uint32{0, 1}, poses.ToArray())
	assert.Equal(t, []uint32{0, 1}, adj[typeKey[manifold.Vector2]()].ToArray())
	assert.Equal(t, uint64(1), adj[typeKey[string]()].GetCardinality())

	assert.Equal(t, []VariableID{f.free.Erased()}, f.g.Unconstrained(f.x))
}
