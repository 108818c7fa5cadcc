// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

// Package manifold provides the vector spaces and manifolds that gofusion
// estimates. The optimizer only relies on the interfaces in this file.
package manifold

import "math"

// Vector is an element of a finite dimensional vector space.
// All values of one concrete type that meet in an operation must have the same shape.
type Vector[V any] interface {
	Dim() int
	Add(V) V
	Sub(V) V
	Scaled(float64) V
	Dot(V) float64
	Zero() V                       // zero vector with the receiver's shape
	Coordinates(dst []float64)     // writes Dim() coordinates into dst
	FromCoordinates(c []float64) V // vector with the receiver's shape and coordinates c
}

// Manifold is a differentiable variable with tangent vectors of type T.
//   - Retract moves the point along a tangent vector
//   - LocalCoordinates is the inverse of Retract: p.Retract(p.LocalCoordinates(q)) == q
type Manifold[M any, T Vector[T]] interface {
	Retract(T) M
	LocalCoordinates(M) T
	ZeroTangent() T
}

// LieGroup is a manifold with a group structure.
type LieGroup[G any, T Vector[T]] interface {
	Manifold[G, T]
	Compose(G) G
	Inverse() G
	Between(G) G // Inverse() composed with the argument
}

// Basis returns the standard basis of the vector space containing like.
func Basis[V Vector[V]](like V) []V {
	n := like.Dim()
	c := make([]float64, n)
	b := make([]V, n)
	for i := range n {
		c[i] = 1
		b[i] = like.FromCoordinates(c)
		c[i] = 0
	}
	return b
}

// Norm returns the euclidean norm of v.
func Norm[V Vector[V]](v V) float64 {
	return math.Sqrt(v.Dot(v))
}
