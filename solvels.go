// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package gofusion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Solve the observation equation using weighted least squares
// - dx = (G^t W G)^-1 G^t W dr
// - Return the error covariance matrix (G^t W G)^-1 as cov
// - W == nil means unit weights
func SolveLS(G mat.Matrix, dr mat.Vector, W mat.Matrix) (dx *mat.VecDense, cov *mat.Dense, err error) {

	n1, m1 := G.Dims()
	if W == nil {
		W = identity(n1)
	}
	n2, m2 := W.Dims()
	if n1 != n2 {
		return nil, nil, fmt.Errorf("invalid matrix size. G^T(%d x %d), W(%d x %d)", m1, n1, n2, m2)
	}
	l1 := dr.Len()
	if l1 != m2 {
		return nil, nil, fmt.Errorf("invalid matrix size. W(%d x %d), dr(%d x 1)", n2, m2, l1)
	}

	// A (G^t W G)
	var WG mat.Dense
	WG.Mul(W, G)
	var A mat.Dense
	A.Mul(G.T(), &WG)

	// b (G^t W dr)
	var GtW mat.Dense
	GtW.Mul(G.T(), W)
	var b mat.VecDense
	b.MulVec(&GtW, dr)

	// Solve for x (x = A^-1 b)
	var x mat.VecDense
	err = x.SolveVec(&A, &b)
	if err != nil {
		return nil, nil, err
	}
	dx = &x

	// Set (G^T W G)^-1 as the covariance matrix
	var c mat.Dense
	err = c.Inverse(&A)
	if err != nil {
		return nil, nil, err
	}
	cov = &c

	return
}

func identity(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

// SolveDense solves the linear least-squares problem of g directly.
// A is materialized column by column by applying the forward map to unit
// tangent vectors, so this is only meant for small graphs: as a reference
// for the iterative solver, and for the marginal covariance (A^t A)^-1,
// whose rows and columns follow the coordinates of g.Zeros() in key order.
func SolveDense(g *GaussianFactorGraph) (VectorValues, *mat.Dense, error) {
	zeros := g.Zeros()
	n := zeros.Dim()

	// b = -(A·0 - b)
	b := g.ErrorVectors(zeros).flatten()
	m := len(b)
	if m == 0 || n == 0 {
		return zeros, nil, fmt.Errorf("empty linear system (%d x %d)", m, n)
	}
	for i := range b {
		b[i] = -b[i]
	}

	A := mat.NewDense(m, n, nil)
	unit := make([]float64, n)
	for j := range n {
		unit[j] = 1
		A.SetCol(j, g.LinearComponent(zeros.withCoordinates(unit)).flatten())
		unit[j] = 0
	}
	if DBG_ >= 4 {
		PrintD(4, "SolveDense() A=%s", formatMat(A))
	}

	x, cov, err := SolveLS(A, mat.NewVecDense(m, b), nil)
	if err != nil {
		return zeros, nil, fmt.Errorf("SolveLS() failed, err= %w", err)
	}
	return zeros.withCoordinates(x.RawVector().Data), cov, nil
}
