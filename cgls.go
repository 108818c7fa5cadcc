// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gofusion

// CGLSOpt contains the stopping parameters of the CGLS linear solver
type CGLSOpt struct {
	MaxIterations int     // Iteration budget
	Precision     float64 // Stop when |Aᵀr|^2 or the squared step falls below this
}

func NewCGLSOpt() *CGLSOpt {
	return &CGLSOpt{
		MaxIterations: CGLS_MAX_ITERATIONS,
		Precision:     CGLS_PRECISION,
	}
}

// CGLSSol contains the outcome of a CGLS solve
type CGLSSol struct {
	Iterations int     // Iterations performed
	Gamma      float64 // |Aᵀr|^2 at the returned iterate
}

// SolveCGLS minimizes |A·dx - b|^2 by conjugate gradients on the normal
// equations AᵀA·dx = Aᵀb, using only the forward and adjoint maps of g.
// dx holds the initial guess and is updated in place. There is no failure
// mode: the best iterate within the budget is returned.
func SolveCGLS(g *GaussianFactorGraph, dx *VectorValues, opt *CGLSOpt) *CGLSSol {
	if opt == nil {
		opt = NewCGLSOpt()
	}

	r := g.ErrorVectors(*dx) // r = b - A·dx
	r.ScaleInPlace(-1)
	s := g.LinearComponentAdjoint(r) // s = Aᵀr
	p := s.Copy()
	gamma := s.SquaredNorm()

	step := 0
	for step < opt.MaxIterations && gamma > opt.Precision {
		q := g.LinearComponent(p)
		qq := q.SquaredNorm()
		if qq == 0 {
			break
		}
		alpha := gamma / qq
		dx.AddInPlace(p.Scaled(alpha))
		r.SubInPlace(q.Scaled(alpha))
		s = g.LinearComponentAdjoint(r)

		newGamma := s.SquaredNorm()
		beta := newGamma / gamma
		gamma = newGamma

		p.ScaleInPlace(beta)
		p.AddInPlace(s)
		step++

		if alpha*alpha*p.SquaredNorm() < opt.Precision {
			break
		}
	}
	return &CGLSSol{Iterations: step, Gamma: gamma}
}
