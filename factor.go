// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package gofusion

// Factor is a term of the least-squares objective.
// Factors are immutable values; the graph stores them by concrete type.
type Factor interface {
	// Edges returns the variables the factor depends on.
	Edges() []VariableID
	// Error returns the factor's contribution to the total error.
	Error(x Reader) float64
}

// VectorFactor is a factor whose error is the squared norm of a residual vector.
// It is linearized by numerical differentiation over its differentiable
// edges. Edges holding plain values are treated as constants.
type VectorFactor interface {
	Factor
	// ErrorDim returns the length of the residual.
	ErrorDim() int
	// ErrorVector writes the residual at x into dst.
	ErrorVector(x Reader, dst []float64)
}

// LinearizableFactor is a VectorFactor that supplies its own Jacobian.
// All of its edges must be differentiable.
type LinearizableFactor interface {
	VectorFactor
	// Jacobian writes the derivative of the residual at x. rows[i] is the
	// gradient of residual i over the concatenated tangent spaces of Edges.
	Jacobian(x Reader, rows [][]float64)
}

// AffineFactor is a VectorFactor whose residual is affine in the tangent
// coordinates of its edges, so that the residual at x moved along dx is
// ErrorVector(x) + LinearComponent(dx).
type AffineFactor interface {
	VectorFactor
	// LinearComponent writes A·dx into dst.
	LinearComponent(dx, dst []float64)
	// LinearComponentAdjoint adds Aᵀ·y to dx.
	LinearComponentAdjoint(y, dx []float64)
}

// GaussianFactor is a linear factor of a GaussianFactorGraph.
// dx is the concatenation of the tangent coordinates of Edges.
type GaussianFactor interface {
	Edges() []VariableID
	ErrorDim() int
	// ErrorVector writes A·dx - b into dst.
	ErrorVector(dx, dst []float64)
	// LinearComponent writes A·dx into dst.
	LinearComponent(dx, dst []float64)
	// LinearComponentAdjoint adds Aᵀ·y to dx.
	LinearComponentAdjoint(y, dx []float64)
}

// VectorError returns the squared norm of f's residual at x. Vector factors
// use it to implement Error.
func VectorError(f VectorFactor, x Reader) float64 {
	r := make([]float64, f.ErrorDim())
	f.ErrorVector(x, r)
	return SquaredNorm(r)
}
