package kron

import (
	"fmt"
	"iter"
	"math"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
)

// meanPixelRadius is <r> over a unit square, about its centre
const meanPixelRadius = 0.38259771140356325

// RadialMoment holds the running sums for the intensity-weighted
// elliptical radius.
type RadialMoment struct {
	Sum     float64 // sum of I
	SumR    float64 // sum of r*I
	SumRVar float64 // sum of r*r*Var(I)
	N       int
}

// Ir is the intensity-weighted mean radius, <r>.
func (rm RadialMoment) Ir() (float64, error) {
	if !(rm.Sum > 0) {
		return math.NaN(), newError(BadRadius, "sum of intensity %g over %d pixels", rm.Sum, rm.N)
	}
	ir := rm.SumR / rm.Sum
	if !emath.IsFinite(ir) {
		return math.NaN(), newError(BadRadius, "<r> is %g", ir)
	}
	return ir, nil
}

// IrVar is the variance of <r>.
func (rm RadialMoment) IrVar() float64 {
	ir, err := rm.Ir()
	if err != nil {
		return math.NaN()
	}
	return rm.SumRVar/rm.Sum - ir*ir
}

func (rm RadialMoment) String() string {
	return fmt.Sprintf("RadialMoment[n:%d I:%g rI:%g]", rm.N, rm.Sum, rm.SumR)
}

// ellipticalRadius is the distance from the centre in units of the
// major axis, for an ellipse with the given axis ratio (a/b) and angle.
// Within half a pixel of the centre the naive radius is biased low, so
// it is replaced by an estimate of the pixel-averaged radius.
func ellipticalRadius(dx, dy, axisRatio, cosTheta, sinTheta float64) float64 {
	du := dx*cosTheta + dy*sinTheta
	dv := -dx*sinTheta + dy*cosTheta

	if dx*dx+dy*dy < 0.25 {
		return (meanPixelRadius / axisRatio) * (1 + math.Sqrt2*math.Hypot(math.Mod(du, 1), math.Mod(dv, 1)))
	}
	return math.Hypot(du, dv*axisRatio)
}

// AccumulateRadialMoment walks the spans over the image, about the
// (parent-frame) centre x,y. Any span outside the image is an Edge
// failure.
func AccumulateRadialMoment(mi *exposure.MaskedImage, spans iter.Seq[Span], x, y, axisRatio, theta float64) (RadialMoment, error) {
	rm := RadialMoment{}
	bounds := mi.Bounds()
	cosTheta, sinTheta := math.Cos(theta), math.Sin(theta)

	for s := range spans {
		if s.Y < bounds.Min.Y || s.Y >= bounds.Max.Y || s.X0 < bounds.Min.X || s.X1 >= bounds.Max.X {
			return RadialMoment{}, newError(Edge, "span %d:%d--%d doesn't fit in image %v", s.Y, s.X0, s.X1, bounds)
		}

		dy := float64(s.Y) - y
		for px := s.X0; px <= s.X1; px++ {
			val, variance := mi.Pixel(px, s.Y)
			r := ellipticalRadius(float64(px)-x, dy, axisRatio, cosTheta, sinTheta)

			rm.Sum += val
			rm.SumR += r * val
			rm.SumRVar += r * r * variance
			rm.N++
		}
	}

	return rm, nil
}
