package emath

// Affine transformations between pixel frames, used to carry apertures
// from a reference exposure onto another exposure.

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point
)

// Use a local type so we can hang methods off it. Row-major 2x3: the
// first row maps to x', the second to y'.
type Aff3 f64.Aff3

// Cut-n-pasted from image@0.7.0/draw/scale:matMul
func (p Aff3) Mult(q Aff3) Aff3 {
	return Aff3{
		p[3*0+0]*q[3*0+0] + p[3*0+1]*q[3*1+0],
		p[3*0+0]*q[3*0+1] + p[3*0+1]*q[3*1+1],
		p[3*0+0]*q[3*0+2] + p[3*0+1]*q[3*1+2] + p[3*0+2],
		p[3*1+0]*q[3*0+0] + p[3*1+1]*q[3*1+0],
		p[3*1+0]*q[3*0+1] + p[3*1+1]*q[3*1+1],
		p[3*1+0]*q[3*0+2] + p[3*1+1]*q[3*1+2] + p[3*1+2],
	}
}

func Identity() Aff3 {
	return Aff3{1, 0, 0, 0, 1, 0}
}

func (m1 Aff3) Translate(tx, ty float64) Aff3 {
	return m1.Mult(Aff3{1, 0, tx, 0, 1, ty})
}

func (m1 Aff3) Rotate(thetaDeg float64) Aff3 {
	cosTheta := math.Cos(thetaDeg * math.Pi / 180.0)
	sinTheta := math.Sin(thetaDeg * math.Pi / 180.0)
	return m1.Mult(Aff3{cosTheta, -1 * sinTheta, 0, sinTheta, cosTheta, 0})
}

func (m1 Aff3) Scale(sx, sy float64) Aff3 {
	return m1.Mult(Aff3{sx, 0, 0, 0, sy, 0})
}

func RotateAbout(thetaDeg, x, y float64) Aff3 {
	// Remember they compose back to front - rightmost operations performed first
	return Identity().Translate(x, y).Rotate(thetaDeg).Translate(-1*x, -1*y)
}

// Apply maps the point (x,y).
func (m Aff3) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Linear returns the 2x2 part of the transform, as [a b; c d].
func (m Aff3) Linear() (a, b, c, d float64) {
	return m[0], m[1], m[3], m[4]
}

func (m Aff3) Det() float64 { return m[0]*m[4] - m[1]*m[3] }

func (m Aff3) IsIdentity() bool { return m == Identity() }

// Invert returns the inverse transform; singular transforms can't be
// inverted.
func (m Aff3) Invert() (Aff3, error) {
	det := m.Det()
	if det == 0 || math.IsNaN(det) {
		return Aff3{}, fmt.Errorf("aff3 %v is singular", m)
	}
	ia, ib := m[4]/det, -m[1]/det
	ic, id := -m[3]/det, m[0]/det
	return Aff3{
		ia, ib, -(ia*m[2] + ib*m[5]),
		ic, id, -(ic*m[2] + id*m[5]),
	}, nil
}

func (m Aff3) String() string {
	return fmt.Sprintf("[%8.4f %8.4f %8.3f | %8.4f %8.4f %8.3f]", m[0], m[1], m[2], m[3], m[4], m[5])
}
