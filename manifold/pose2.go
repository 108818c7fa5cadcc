// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Angles below this are treated as zero in the exponential and logarithm maps.
const smallAngle = 1e-10

// Below this angle the logmap derivative uses its Taylor expansion.
const seriesAngle = 1e-4

//-------------------------------------------------------------------
// Rot2
//-------------------------------------------------------------------

// Rot2 is a planar rotation stored as its cosine and sine.
type Rot2 struct {
	c float64
	s float64
}

func NewRot2(theta float64) Rot2 {
	s, c := math.Sincos(theta)
	return Rot2{c: c, s: s}
}

// Theta returns the rotation angle in (-pi, pi].
func (r Rot2) Theta() float64 {
	if r.c == 0 && r.s == 0 {
		return 0
	}
	return math.Atan2(r.s, r.c)
}

func (r Rot2) Compose(o Rot2) Rot2 {
	return Rot2{c: r.c*o.c - r.s*o.s, s: r.s*o.c + r.c*o.s}
}

func (r Rot2) Inverse() Rot2 {
	return Rot2{c: r.c, s: -r.s}
}

func (r Rot2) Rotate(v Vector2) Vector2 {
	if r.c == 0 && r.s == 0 {
		return v
	}
	return Vector2{r.c*v.X - r.s*v.Y, r.s*v.X + r.c*v.Y}
}

func (r Rot2) Unrotate(v Vector2) Vector2 {
	return r.Inverse().Rotate(v)
}

//-------------------------------------------------------------------
// Pose2
//-------------------------------------------------------------------

// Pose2 is a rigid transformation of the plane (SE(2)).
// Its tangent vectors are Vector3{X: vx, Y: vy, Z: omega}.
// The zero Pose2 is the identity.
type Pose2 struct {
	Rot Rot2
	T   Vector2
}

func NewPose2(x, y, theta float64) Pose2 {
	return Pose2{Rot: NewRot2(theta), T: Vector2{x, y}}
}

func (p Pose2) Theta() float64 { return p.Rot.Theta() }

func (p Pose2) Compose(o Pose2) Pose2 {
	return Pose2{Rot: p.rot().Compose(o.rot()), T: p.T.Add(p.rot().Rotate(o.T))}
}

func (p Pose2) Inverse() Pose2 {
	inv := p.rot().Inverse()
	return Pose2{Rot: inv, T: inv.Rotate(p.T).Scaled(-1)}
}

func (p Pose2) Between(o Pose2) Pose2 {
	return p.Inverse().Compose(o)
}

func (p Pose2) Retract(v Vector3) Pose2 {
	return p.Compose(Pose2Expmap(v))
}

func (p Pose2) LocalCoordinates(o Pose2) Vector3 {
	return Pose2Logmap(p.Between(o))
}

func (p Pose2) ZeroTangent() Vector3 { return Vector3{} }

// AdjointMap returns Ad(p), which maps v to the tangent of p·Exp(v)·p⁻¹ at the identity.
func (p Pose2) AdjointMap() *mat.Dense {
	r := p.rot()
	return mat.NewDense(3, 3, []float64{
		r.c, -r.s, p.T.Y,
		r.s, r.c, -p.T.X,
		0, 0, 1,
	})
}

// IsApprox reports whether p and o differ by less than tol in translation and angle.
func (p Pose2) IsApprox(o Pose2, tol float64) bool {
	d := p.LocalCoordinates(o)
	return math.Abs(d.X) < tol && math.Abs(d.Y) < tol && math.Abs(d.Z) < tol
}

func (p Pose2) String() string {
	return fmt.Sprintf("Pose2(%g, %g, %g)", p.T.X, p.T.Y, p.Theta())
}

// rot treats the zero Rot2 as the identity, so Pose2{} is usable.
func (p Pose2) rot() Rot2 {
	if p.Rot.c == 0 && p.Rot.s == 0 {
		return Rot2{c: 1}
	}
	return p.Rot
}

// Pose2Expmap maps a tangent vector at the identity to a pose.
func Pose2Expmap(v Vector3) Pose2 {
	w := v.Z
	if math.Abs(w) < smallAngle {
		return Pose2{Rot: NewRot2(w), T: Vector2{v.X, v.Y}}
	}
	s, c := math.Sincos(w)
	return Pose2{
		Rot: Rot2{c: c, s: s},
		T:   Vector2{(s*v.X - (1-c)*v.Y) / w, ((1-c)*v.X + s*v.Y) / w},
	}
}

// Pose2Logmap is the inverse of Pose2Expmap.
func Pose2Logmap(p Pose2) Vector3 {
	w := p.Theta()
	if math.Abs(w) < smallAngle {
		return Vector3{p.T.X, p.T.Y, w}
	}
	s, c := math.Sincos(w)
	k := w / (s*s + (1-c)*(1-c))
	return Vector3{
		k * (s*p.T.X + (1-c)*p.T.Y),
		k * (-(1-c)*p.T.X + s*p.T.Y),
		w,
	}
}

// Pose2LogmapDerivative returns the inverse right Jacobian at v:
//
//	Pose2Logmap(Pose2Expmap(v).Compose(Pose2Expmap(d))) ≈ v + J·d
func Pose2LogmapDerivative(v Vector3) *mat.Dense {
	w := v.Z
	var p, q, b1, b2 float64
	if math.Abs(w) < seriesAngle {
		w2 := w * w
		p = 1 - w2/6
		q = w/2 - w*w2/24
		b1 = v.X*w/6 - v.Y*(0.5-w2/24)
		b2 = v.X*(0.5-w2/24) + v.Y*w/6
	} else {
		s := math.Sin(w)
		h := math.Sin(w / 2)
		omc := 2 * h * h // 1 - cos(w)
		p = s / w
		q = omc / w
		b1 = (v.X*(w-s) - v.Y*omc) / (w * w)
		b2 = (v.X*omc + v.Y*(w-s)) / (w * w)
	}
	// The right Jacobian is [[p, q, b1], [-q, p, b2], [0, 0, 1]].
	d := p*p + q*q
	i11, i12 := p/d, -q/d
	i21, i22 := q/d, p/d
	return mat.NewDense(3, 3, []float64{
		i11, i12, -(i11*b1 + i12*b2),
		i21, i22, -(i21*b1 + i22*b2),
		0, 0, 1,
	})
}
