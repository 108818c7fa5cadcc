// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package manifold

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//-------------------------------------------------------------------
// Vector1
//-------------------------------------------------------------------

type Vector1 struct {
	X float64
}

func (v Vector1) Dim() int                  { return 1 }
func (v Vector1) Add(o Vector1) Vector1     { return Vector1{v.X + o.X} }
func (v Vector1) Sub(o Vector1) Vector1     { return Vector1{v.X - o.X} }
func (v Vector1) Scaled(s float64) Vector1  { return Vector1{s * v.X} }
func (v Vector1) Dot(o Vector1) float64     { return v.X * o.X }
func (v Vector1) Zero() Vector1             { return Vector1{} }
func (v Vector1) Coordinates(dst []float64) { dst[0] = v.X }

func (v Vector1) FromCoordinates(c []float64) Vector1 { return Vector1{c[0]} }

func (v Vector1) Retract(d Vector1) Vector1          { return v.Add(d) }
func (v Vector1) LocalCoordinates(o Vector1) Vector1 { return o.Sub(v) }
func (v Vector1) ZeroTangent() Vector1               { return Vector1{} }

func (v Vector1) String() string {
	return fmt.Sprintf("(%g)", v.X)
}

//-------------------------------------------------------------------
// Vector2
//-------------------------------------------------------------------

type Vector2 struct {
	X float64
	Y float64
}

func (v Vector2) Dim() int                 { return 2 }
func (v Vector2) Add(o Vector2) Vector2    { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2    { return Vector2{v.X - o.X, v.Y - o.Y} }
func (v Vector2) Scaled(s float64) Vector2 { return Vector2{s * v.X, s * v.Y} }
func (v Vector2) Dot(o Vector2) float64    { return v.X*o.X + v.Y*o.Y }
func (v Vector2) Zero() Vector2            { return Vector2{} }

func (v Vector2) Coordinates(dst []float64) {
	dst[0] = v.X
	dst[1] = v.Y
}

func (v Vector2) FromCoordinates(c []float64) Vector2 { return Vector2{c[0], c[1]} }

func (v Vector2) Retract(d Vector2) Vector2          { return v.Add(d) }
func (v Vector2) LocalCoordinates(o Vector2) Vector2 { return o.Sub(v) }
func (v Vector2) ZeroTangent() Vector2               { return Vector2{} }

func (v Vector2) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}

//-------------------------------------------------------------------
// Vector3
//-------------------------------------------------------------------

type Vector3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vector3) Dim() int                 { return 3 }
func (v Vector3) Add(o Vector3) Vector3    { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3    { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scaled(s float64) Vector3 { return Vector3{s * v.X, s * v.Y, s * v.Z} }
func (v Vector3) Dot(o Vector3) float64    { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector3) Zero() Vector3            { return Vector3{} }

func (v Vector3) Coordinates(dst []float64) {
	dst[0] = v.X
	dst[1] = v.Y
	dst[2] = v.Z
}

func (v Vector3) FromCoordinates(c []float64) Vector3 { return Vector3{c[0], c[1], c[2]} }

func (v Vector3) Retract(d Vector3) Vector3          { return v.Add(d) }
func (v Vector3) LocalCoordinates(o Vector3) Vector3 { return o.Sub(v) }
func (v Vector3) ZeroTangent() Vector3               { return Vector3{} }

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

//-------------------------------------------------------------------
// VectorN
//-------------------------------------------------------------------

// VectorN is a vector whose dimension is only known at run time.
// Values are immutable; every operation returns a new vector.
// Operations on vectors of different lengths panic.
type VectorN struct {
	v []float64
}

// NewVectorN returns a vector holding a copy of c.
func NewVectorN(c ...float64) VectorN {
	v := make([]float64, len(c))
	copy(v, c)
	return VectorN{v}
}

// ZerosN returns the zero vector of dimension n.
func ZerosN(n int) VectorN {
	return VectorN{make([]float64, n)}
}

func (v VectorN) Dim() int { return len(v.v) }

func (v VectorN) At(i int) float64 { return v.v[i] }

func (v VectorN) Add(o VectorN) VectorN {
	dst := make([]float64, len(v.v))
	floats.AddTo(dst, v.v, o.v)
	return VectorN{dst}
}

func (v VectorN) Sub(o VectorN) VectorN {
	dst := make([]float64, len(v.v))
	floats.SubTo(dst, v.v, o.v)
	return VectorN{dst}
}

func (v VectorN) Scaled(s float64) VectorN {
	dst := make([]float64, len(v.v))
	floats.ScaleTo(dst, s, v.v)
	return VectorN{dst}
}

func (v VectorN) Dot(o VectorN) float64 { return floats.Dot(v.v, o.v) }

func (v VectorN) Zero() VectorN { return ZerosN(len(v.v)) }

func (v VectorN) Coordinates(dst []float64) { copy(dst, v.v) }

// FromCoordinates takes its shape from c, so the zero VectorN can build vectors of any length.
func (v VectorN) FromCoordinates(c []float64) VectorN { return NewVectorN(c...) }

func (v VectorN) Retract(d VectorN) VectorN          { return v.Add(d) }
func (v VectorN) LocalCoordinates(o VectorN) VectorN { return o.Sub(v) }
func (v VectorN) ZeroTangent() VectorN               { return v.Zero() }

// VecDense returns a copy of v as a gonum vector.
func (v VectorN) VecDense() *mat.VecDense {
	if len(v.v) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(v.v), floats.ScaleTo(make([]float64, len(v.v)), 1, v.v))
}

func (v VectorN) String() string {
	return fmt.Sprintf("%g", v.v)
}
