// Package aperture sums the flux inside elliptical apertures.
//
// Pixels wholly inside the ellipse count fully. Pixels that straddle
// the boundary count by the fraction of their area inside: for small
// apertures (where the boundary pixels carry a lot of the flux) the
// fraction is found by sampling a grid of sub-pixel points, for big
// ones a pixel counts if its centre is inside.
package aperture

import (
	"fmt"
	"image"
	"math"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
)

const DefaultSubPixels = 16

// A LengthError says the aperture doesn't fit on the image.
type LengthError struct {
	Aperture image.Rectangle
	Image    image.Rectangle
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("aperture %v extends beyond image %v", e.Aperture, e.Image)
}

func (e *LengthError) Unwrap() error { return exposure.ErrOutOfRange }

type Integrator struct {
	MaxSincRadius float64 // apertures with semi-major below this get sub-pixel sampling
	SubPixels     int     // samples per pixel side for boundary pixels; 0 means DefaultSubPixels
}

// BBox is the rectangle of pixels the ellipse touches (Max exclusive).
func BBox(x, y, a, b, theta float64) image.Rectangle {
	c, s := math.Cos(theta), math.Sin(theta)
	xm := math.Sqrt(a*a*c*c + b*b*s*s)
	ym := math.Sqrt(a*a*s*s + b*b*c*c)
	return image.Rect(emath.Round(x-xm), emath.Round(y-ym), emath.Round(x+xm)+1, emath.Round(y+ym)+1)
}

// ApertureFlux returns the flux and its error inside the ellipse
// centred at (x,y), with semi-axes a >= b and major axis at theta.
func (in Integrator) ApertureFlux(mi *exposure.MaskedImage, x, y, a, b, theta float64) (float64, float64, error) {
	if !emath.IsFinite(x) || !emath.IsFinite(y) || !(a > 0) || !(b > 0) || !emath.IsFinite(a) || b > a*(1+1e-9) {
		return math.NaN(), math.NaN(), fmt.Errorf("bad aperture at (%.3f,%.3f): a=%g b=%g", x, y, a, b)
	}

	bbox := BBox(x, y, a, b, theta)
	if !mi.Contains(bbox) {
		return math.NaN(), math.NaN(), &LengthError{Aperture: bbox, Image: mi.Bounds()}
	}

	n := in.SubPixels
	if n <= 0 {
		n = DefaultSubPixels
	}
	accurate := a < in.MaxSincRadius

	c, s := math.Cos(theta), math.Sin(theta)
	// rho is the elliptical radius in units of the boundary; it can't
	// change by more than 1/b per pixel of distance
	rho := func(dx, dy float64) float64 {
		du := (dx*c + dy*s) / a
		dv := (-dx*s + dy*c) / b
		return math.Hypot(du, dv)
	}
	slack := math.Sqrt2 / 2 / b

	flux, variance := 0.0, 0.0
	for py := bbox.Min.Y; py < bbox.Max.Y; py++ {
		for px := bbox.Min.X; px < bbox.Max.X; px++ {
			dx, dy := float64(px)-x, float64(py)-y
			r := rho(dx, dy)

			w := 0.0
			switch {
			case r+slack <= 1:
				w = 1
			case r-slack >= 1:
				continue
			case accurate:
				inside := 0
				for j := 0; j < n; j++ {
					sy := dy - 0.5 + (float64(j)+0.5)/float64(n)
					for i := 0; i < n; i++ {
						sx := dx - 0.5 + (float64(i)+0.5)/float64(n)
						if rho(sx, sy) <= 1 {
							inside++
						}
					}
				}
				w = float64(inside) / float64(n*n)
			case r <= 1:
				w = 1
			}

			val, v := mi.Pixel(px, py)
			flux += w * val
			variance += w * w * v
		}
	}

	return flux, math.Sqrt(variance), nil
}
