// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package gofusion

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Row storage of a JacobianFactor. Residuals of dimension 1, 2, 3 and 6
// keep their rows in fixed arrays; every other dimension uses RowsN.
type (
	Rows1 [1][]float64
	Rows2 [2][]float64
	Rows3 [3][]float64
	Rows6 [6][]float64
	RowsN [][]float64
)

type Rows interface {
	Rows1 | Rows2 | Rows3 | Rows6 | RowsN
}

// newRows returns row storage for m residuals.
func newRows[R Rows](m int) R {
	var r R
	if p, ok := any(&r).(*RowsN); ok {
		*p = make(RowsN, m)
		return r
	}
	if len(r) != m {
		fail("%T cannot hold %d rows", r, m)
	}
	return r
}

// JacobianFactor is the linearization of a vector factor at a point:
//
//	ErrorVector(dx) = J·dx - b,  b = -r0
//
// where r0 is the residual at the linearization point.
type JacobianFactor[R Rows] struct {
	edges []VariableID
	rows  R
	b     []float64
}

// NewJacobianFactor builds a factor from explicit rows and right-hand side.
func NewJacobianFactor[R Rows](edges []VariableID, rows R, b []float64) JacobianFactor[R] {
	if len(rows) != len(b) {
		fail("jacobian with %d rows and %d right-hand side entries", len(rows), len(b))
	}
	return JacobianFactor[R]{edges: edges, rows: rows, b: b}
}

func (j JacobianFactor[R]) Edges() []VariableID { return j.edges }

func (j JacobianFactor[R]) ErrorDim() int { return len(j.rows) }

// Bias returns b.
func (j JacobianFactor[R]) Bias() []float64 { return j.b }

// Row returns row i of J.
func (j JacobianFactor[R]) Row(i int) []float64 { return j.rows[i] }

func (j JacobianFactor[R]) ErrorVector(dx, dst []float64) {
	j.LinearComponent(dx, dst)
	floats.Sub(dst, j.b)
}

func (j JacobianFactor[R]) LinearComponent(dx, dst []float64) {
	for i := 0; i < len(j.rows); i++ {
		dst[i] = floats.Dot(j.rows[i], dx)
	}
}

func (j JacobianFactor[R]) LinearComponentAdjoint(y, dx []float64) {
	for i := 0; i < len(j.rows); i++ {
		floats.AddScaled(dx, y[i], j.rows[i])
	}
}

// Dense returns J as a matrix.
func (j JacobianFactor[R]) Dense() *mat.Dense {
	m := len(j.rows)
	if m == 0 || len(j.rows[0]) == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m, len(j.rows[0]), nil)
	for i := 0; i < m; i++ {
		d.SetRow(i, j.rows[i])
	}
	return d
}

func (j JacobianFactor[R]) String() string {
	return fmt.Sprintf("J %v %sb %g", j.edges, formatMat(j.Dense()), j.b)
}

// ScalarJacobianFactor multiplies one variable by a scalar. The nonlinear
// solver adds one per variable to damp the normal equations.
type ScalarJacobianFactor struct {
	edges  []VariableID
	scalar float64
	dim    int
}

func NewScalarJacobianFactor(id VariableID, scalar float64, dim int) ScalarJacobianFactor {
	return ScalarJacobianFactor{edges: []VariableID{id}, scalar: scalar, dim: dim}
}

func (f ScalarJacobianFactor) Edges() []VariableID { return f.edges }
func (f ScalarJacobianFactor) ErrorDim() int       { return f.dim }
func (f ScalarJacobianFactor) Scalar() float64     { return f.scalar }

func (f ScalarJacobianFactor) ErrorVector(dx, dst []float64) {
	f.LinearComponent(dx, dst)
}

func (f ScalarJacobianFactor) LinearComponent(dx, dst []float64) {
	floats.ScaleTo(dst, f.scalar, dx)
}

func (f ScalarJacobianFactor) LinearComponentAdjoint(y, dx []float64) {
	floats.AddScaled(dx, f.scalar, y)
}
