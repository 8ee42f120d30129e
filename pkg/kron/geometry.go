package kron

import (
	"fmt"
	"math"

	"github.com/abworrall/kronflux/pkg/emath"
)

// A MomentTensor holds the second central moments of an object's light
// distribution, in pixel^2.
type MomentTensor struct {
	Ixx float64 `yaml:"ixx"`
	Ixy float64 `yaml:"ixy"`
	Iyy float64 `yaml:"iyy"`
}

// tensors with a slightly negative determinant are rounding noise
const psdTolerance = 1e-12

func (m MomentTensor) String() string {
	return fmt.Sprintf("I[xx:%.4f xy:%.4f yy:%.4f]", m.Ixx, m.Ixy, m.Iyy)
}

// Validate checks the tensor is finite and positive semi-definite.
func (m MomentTensor) Validate() error {
	if !emath.IsFinite(m.Ixx) || !emath.IsFinite(m.Ixy) || !emath.IsFinite(m.Iyy) {
		return newError(BadShape, "non-finite moments %s", m)
	}
	if m.Ixx < 0 || m.Iyy < 0 {
		return newError(BadShape, "negative moments %s", m)
	}
	det := m.Ixx*m.Iyy - m.Ixy*m.Ixy
	scale := (m.Ixx + m.Iyy) * (m.Ixx + m.Iyy)
	if det < -psdTolerance*math.Max(scale, 1) {
		return newError(BadShape, "moments %s not positive semi-definite", m)
	}
	return nil
}

// EllipseParams is an ellipse with semi-axes A >= B >= 0, its major
// axis at Theta radians from the x-axis.
type EllipseParams struct {
	A     float64 `yaml:"a"`
	B     float64 `yaml:"b"`
	Theta float64 `yaml:"theta"`
}

func (e EllipseParams) String() string {
	return fmt.Sprintf("Ell[a:%.3f b:%.3f th:%.2fdeg]", e.A, e.B, e.Theta*180/math.Pi)
}

// EllipseFromMoments diagonalizes the tensor; the semi-axes are k times
// the rms sizes along the principal axes. A zero-width result comes
// back along with a BadShape error, so callers that can live with it
// (e.g. a circular fallback) still get the major axis.
func EllipseFromMoments(m MomentTensor, k float64) (EllipseParams, error) {
	if err := m.Validate(); err != nil {
		return EllipseParams{}, err
	}

	s := m.Ixx + m.Iyy
	d := math.Sqrt((m.Ixx-m.Iyy)*(m.Ixx-m.Iyy) + 4*m.Ixy*m.Ixy)
	u := (s + d) / 2 // major axis^2
	v := (s - d) / 2 // minor axis^2
	if v < 0 {
		if v < -psdTolerance*math.Max(u, 1) {
			return EllipseParams{}, newError(BadShape, "negative minor eigenvalue %g from %s", v, m)
		}
		v = 0
	}

	e := EllipseParams{
		A:     k * math.Sqrt(u),
		B:     k * math.Sqrt(v),
		Theta: 0.5 * math.Atan2(2*m.Ixy, m.Ixx-m.Iyy),
	}
	if v == 0 {
		return e, newError(BadShape, "degenerate ellipse from %s", m)
	}
	return e, nil
}

// AxisRatio is A/B; infinite for a zero-width ellipse.
func (e EllipseParams) AxisRatio() float64 {
	if e.B == 0 {
		return math.Inf(1)
	}
	return e.A / e.B
}

// WithMajorAxis returns the ellipse resized to semi-major a, keeping its
// shape. A zero-size ellipse becomes a circle.
func (e EllipseParams) WithMajorAxis(a float64) EllipseParams {
	if e.A <= 0 {
		return EllipseParams{A: a, B: a}
	}
	return EllipseParams{A: a, B: e.B * a / e.A, Theta: e.Theta}
}

// Moments is the inverse of EllipseFromMoments.
func (e EllipseParams) Moments(k float64) MomentTensor {
	c, s := math.Cos(e.Theta), math.Sin(e.Theta)
	u := e.A * e.A / (k * k)
	v := e.B * e.B / (k * k)
	return MomentTensor{
		Ixx: u*c*c + v*s*s,
		Ixy: (u - v) * c * s,
		Iyy: u*s*s + v*c*c,
	}
}

// Transform maps the ellipse through the linear part of an affine
// transform (the translation only moves the centre).
func (e EllipseParams) Transform(m emath.Aff3) (EllipseParams, error) {
	q := e.Moments(1)
	a, b, c, d := m.Linear()
	// Q' = L Q L^T
	q2 := MomentTensor{
		Ixx: a*a*q.Ixx + 2*a*b*q.Ixy + b*b*q.Iyy,
		Ixy: a*c*q.Ixx + (a*d+b*c)*q.Ixy + b*d*q.Iyy,
		Iyy: c*c*q.Ixx + 2*c*d*q.Ixy + d*d*q.Iyy,
	}
	return EllipseFromMoments(q2, 1)
}
