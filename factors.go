// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package gofusion

import (
	"math"

	"github.com/mkhts/gofusion/manifold"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PriorFactor pins a variable to a value.
// Residual: Prior.LocalCoordinates(x)
type PriorFactor[M manifold.Manifold[M, T], T manifold.Vector[T]] struct {
	Edge  TypedID[M]
	Prior M
}

func NewPriorFactor[M manifold.Manifold[M, T], T manifold.Vector[T]](edge TypedID[M], prior M) PriorFactor[M, T] {
	return PriorFactor[M, T]{Edge: edge, Prior: prior}
}

func (f PriorFactor[M, T]) Edges() []VariableID { return []VariableID{f.Edge.Erased()} }
func (f PriorFactor[M, T]) ErrorDim() int       { return f.Prior.ZeroTangent().Dim() }
func (f PriorFactor[M, T]) Error(x Reader) float64 {
	return VectorError(f, x)
}

func (f PriorFactor[M, T]) ErrorVector(x Reader, dst []float64) {
	f.Prior.LocalCoordinates(Get(x, f.Edge)).Coordinates(dst)
}

// BetweenFactor constrains the relative transform between two group elements.
// Residual: Difference.LocalCoordinates(From⁻¹ · To)
type BetweenFactor[G manifold.LieGroup[G, T], T manifold.Vector[T]] struct {
	From, To   TypedID[G]
	Difference G
}

func NewBetweenFactor[G manifold.LieGroup[G, T], T manifold.Vector[T]](from, to TypedID[G], difference G) BetweenFactor[G, T] {
	return BetweenFactor[G, T]{From: from, To: to, Difference: difference}
}

func (f BetweenFactor[G, T]) Edges() []VariableID {
	return []VariableID{f.From.Erased(), f.To.Erased()}
}

func (f BetweenFactor[G, T]) ErrorDim() int { return f.Difference.ZeroTangent().Dim() }
func (f BetweenFactor[G, T]) Error(x Reader) float64 {
	return VectorError(f, x)
}

func (f BetweenFactor[G, T]) ErrorVector(x Reader, dst []float64) {
	a, b := Get(x, f.From), Get(x, f.To)
	f.Difference.LocalCoordinates(a.Between(b)).Coordinates(dst)
}

// Pose2PriorFactor is a PriorFactor on Pose2 with an exact Jacobian.
type Pose2PriorFactor struct {
	PriorFactor[manifold.Pose2, manifold.Vector3]
}

func NewPose2PriorFactor(edge TypedID[manifold.Pose2], prior manifold.Pose2) Pose2PriorFactor {
	return Pose2PriorFactor{NewPriorFactor(edge, prior)}
}

// Jacobian: Jr⁻¹(e)
func (f Pose2PriorFactor) Jacobian(x Reader, rows [][]float64) {
	e := f.Prior.LocalCoordinates(Get(x, f.Edge))
	jr := manifold.Pose2LogmapDerivative(e)
	for i := range 3 {
		mat.Row(rows[i], i, jr)
	}
}

// Pose2BetweenFactor is a BetweenFactor on Pose2 with an exact Jacobian.
type Pose2BetweenFactor struct {
	BetweenFactor[manifold.Pose2, manifold.Vector3]
}

func NewPose2BetweenFactor(from, to TypedID[manifold.Pose2], difference manifold.Pose2) Pose2BetweenFactor {
	return Pose2BetweenFactor{NewBetweenFactor(from, to, difference)}
}

// Jacobian: [-Jr⁻¹(e)·Ad(To⁻¹·From)  Jr⁻¹(e)]
func (f Pose2BetweenFactor) Jacobian(x Reader, rows [][]float64) {
	ab := Get(x, f.From).Between(Get(x, f.To))
	jr := manifold.Pose2LogmapDerivative(f.Difference.LocalCoordinates(ab))

	var jf mat.Dense
	jf.Mul(jr, ab.Inverse().AdjointMap())
	jf.Scale(-1, &jf)
	for i := range 3 {
		mat.Row(rows[i][:3], i, &jf)
		mat.Row(rows[i][3:], i, jr)
	}
}

// VectorPriorFactor pins a vector variable. Its residual x - Prior is affine.
type VectorPriorFactor[V interface {
	manifold.Vector[V]
	manifold.Manifold[V, V]
}] struct {
	Edge  TypedID[V]
	Prior V
}

func NewVectorPriorFactor[V interface {
	manifold.Vector[V]
	manifold.Manifold[V, V]
}](edge TypedID[V], prior V) VectorPriorFactor[V] {
	return VectorPriorFactor[V]{Edge: edge, Prior: prior}
}

func (f VectorPriorFactor[V]) Edges() []VariableID { return []VariableID{f.Edge.Erased()} }
func (f VectorPriorFactor[V]) ErrorDim() int       { return f.Prior.Dim() }
func (f VectorPriorFactor[V]) Error(x Reader) float64 {
	return VectorError(f, x)
}

func (f VectorPriorFactor[V]) ErrorVector(x Reader, dst []float64) {
	Get(x, f.Edge).Sub(f.Prior).Coordinates(dst)
}

func (f VectorPriorFactor[V]) LinearComponent(dx, dst []float64) {
	copy(dst, dx)
}

func (f VectorPriorFactor[V]) LinearComponentAdjoint(y, dx []float64) {
	floats.Add(dx, y)
}

// RangeFactor measures the distance between two points in the plane.
// Residual: |To - From| - Range
type RangeFactor struct {
	From, To TypedID[manifold.Vector2]
	Range    float64
}

func (f RangeFactor) Edges() []VariableID {
	return []VariableID{f.From.Erased(), f.To.Erased()}
}

func (f RangeFactor) ErrorDim() int { return 1 }
func (f RangeFactor) Error(x Reader) float64 {
	return VectorError(f, x)
}

func (f RangeFactor) ErrorVector(x Reader, dst []float64) {
	d := Get(x, f.To).Sub(Get(x, f.From))
	dst[0] = manifold.Norm(d) - f.Range
}

// Jacobian: [-u^t u^t], u = (To - From) / |To - From|, zero when the points coincide
func (f RangeFactor) Jacobian(x Reader, rows [][]float64) {
	d := Get(x, f.To).Sub(Get(x, f.From))
	n := manifold.Norm(d)
	if n == 0 || math.IsInf(n, 0) {
		clear(rows[0])
		return
	}
	u := d.Scaled(1 / n)
	rows[0][0], rows[0][1] = -u.X, -u.Y
	rows[0][2], rows[0][3] = u.X, u.Y
}
