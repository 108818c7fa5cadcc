// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package gofusion

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// linearizeFactor returns the first-order expansion of f at x.
//
// The Jacobian comes from the factor itself when it is affine (one adjoint
// application per residual basis vector) or linearizable, otherwise from
// central differences over the differentiable edges.
func linearizeFactor[R Rows](f VectorFactor, x *VariableAssignments) JacobianFactor[R] {
	_, strict := f.(LinearizableFactor)
	if _, ok := f.(AffineFactor); ok {
		strict = true
	}

	edges := f.Edges()
	diffEdges := make([]VariableID, 0, len(edges))
	dims := make([]int, 0, len(edges))
	cols := 0
	for _, e := range edges {
		a, ok := x.storage[e.Type]
		if !ok {
			fail("factor %T refers to %v, but no variables of that type are stored", f, e)
		}
		if !a.differentiable() {
			if strict {
				fail("factor %T has non-differentiable edge %v", f, e)
			}
			continue
		}
		d := a.tangentDim(e.Index)
		diffEdges = append(diffEdges, e)
		dims = append(dims, d)
		cols += d
	}

	m := f.ErrorDim()
	r0 := make([]float64, m)
	f.ErrorVector(x, r0)

	// Rows share one backing array laid out like a row-major m x cols matrix.
	backing := make([]float64, m*cols)
	rs := make([][]float64, m)
	for i := range m {
		rs[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}

	if m > 0 && cols > 0 {
		switch g := f.(type) {
		case AffineFactor:
			e := make([]float64, m)
			for i := range m {
				e[i] = 1
				g.LinearComponentAdjoint(e, rs[i])
				e[i] = 0
			}
		case LinearizableFactor:
			g.Jacobian(x, rs)
		default:
			fd.Jacobian(mat.NewDense(m, cols, backing), func(y, dx []float64) {
				f.ErrorVector(x.perturbed(diffEdges, dims, dx), y)
			}, make([]float64, cols), &fd.JacobianSettings{
				Formula:     fd.Central,
				OriginValue: r0,
			})
		}
	}

	rows := newRows[R](m)
	for i := range m {
		rows[i] = rs[i]
	}
	floats.Scale(-1, r0)
	return JacobianFactor[R]{edges: diffEdges, rows: rows, b: r0}
}

// linearizeArray linearizes every factor of a bucket, keeping their order.
func linearizeArray[R Rows, F Factor](a *factorArray[F], x *VariableAssignments) anyGaussianArray {
	elems := a.buf.Elements()
	out := make([]JacobianFactor[R], len(elems))
	parallelFor(len(elems), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = linearizeFactor[R](any(&elems[i]).(VectorFactor), x)
		}
	})
	return newGaussianArray(out)
}
