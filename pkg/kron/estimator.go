package kron

import (
	"fmt"
	"image"
	"math"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
)

// State is where a radius estimate ended up.
type State int

const (
	StateInit State = iota
	StateEstimating
	StateConverged
	StateMinimumApplied
	StateFallback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateEstimating:
		return "estimating"
	case StateConverged:
		return "converged"
	case StateMinimumApplied:
		return "minimum-applied"
	case StateFallback:
		return "fallback"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EstimateInput is everything the estimator needs about one source.
type EstimateInput struct {
	Image           *exposure.MaskedImage
	X, Y            float64       // centre, parent pixel coords
	Shape           *MomentTensor // nil if no shape is known
	FootprintRadius float64       // equivalent radius of the detection footprint
	PsfRadius       float64       // the PSF's Kron radius; NaN or 0 if there's no PSF
}

type Estimate struct {
	Aperture        KronAperture
	RadiusForRadius float64 // semi-major axis of the last aperture used to measure the radius
	State           State
	Flags           Flags
	Iterations      int
}

// A RadiusEstimator turns a shape into a Kron radius, falling back to
// the minimum or PSF radius when it has to.
type RadiusEstimator struct {
	Control Control
}

func (re RadiusEstimator) Estimate(in EstimateInput) (Estimate, error) {
	ctrl := re.Control
	est := Estimate{
		Aperture:        KronAperture{X: in.X, Y: in.Y, Radius: math.NaN()},
		RadiusForRadius: math.NaN(),
		State:           StateInit,
	}
	psfOK := emath.IsFinite(in.PsfRadius) && in.PsfRadius > 0

	radius := math.NaN()
	shapeOK := false
	var estErr error

	if in.Shape == nil {
		if !psfOK {
			est.Flags.Set(NoShapeNoPSF)
		}
	} else if shape, err := EllipseFromMoments(*in.Shape, 1); err != nil {
		estErr = err
	} else {
		shapeOK = true
		est.State = StateEstimating

		size := shape.A // rms size along the major axis
		for i := 0; i < ctrl.NIterForRadius; i++ {
			a := ctrl.NSigmaForRadius * size
			if i == 0 && ctrl.UseFootprintRadius && in.FootprintRadius > a {
				a = in.FootprintRadius
			}
			ell := shape.WithMajorAxis(a)
			est.Aperture.EllipseParams = ell
			est.RadiusForRadius = a
			est.Iterations++

			r, err := re.measureOnce(in.Image, in.X, in.Y, ell)
			if err != nil {
				estErr = err
				radius = math.NaN()
				break
			}
			radius = r
			size = r
		}
	}
	if estErr != nil {
		est.Flags.Set(FlagOf(estErr))
	}

	threshold := 0.0
	if ctrl.EnforceMinimumRadius {
		if ctrl.MinimumRadius > 0 {
			threshold = ctrl.MinimumRadius
		} else if psfOK {
			threshold = in.PsfRadius
		} else {
			est.Flags.Set(NoMinimumRadius)
		}
	}

	if estErr == nil && shapeOK && emath.IsFinite(radius) && radius <= threshold {
		est.Flags.Set(SmallRadius)
	}

	if estErr != nil || !shapeOK || !(radius > threshold) {
		switch {
		case ctrl.EnforceMinimumRadius && ctrl.MinimumRadius > 0:
			radius = ctrl.MinimumRadius
			est.Flags.Set(UsedMinimumRadius)
			est.State = StateFallback
			if estErr == nil && shapeOK {
				est.State = StateMinimumApplied
			}
		case psfOK:
			radius = in.PsfRadius
			est.Flags.Set(UsedPSFRadius)
			est.State = StateFallback
		default:
			est.Flags.Set(NoFallbackRadius)
			est.State = StateFailed
			if estErr != nil {
				return est, newError(est.Flags, "no radius to fall back on after: %v", estErr)
			}
			return est, newError(est.Flags, "no radius to fall back on (measured %g)", radius)
		}

		if !shapeOK || !(est.Aperture.A > 0) {
			est.Aperture.EllipseParams = EllipseParams{A: radius, B: radius}
		}
	} else {
		est.State = StateConverged
	}

	est.Aperture.Radius = radius
	return est, nil
}

// measureOnce computes <r> inside one elliptical aperture.
func (re RadiusEstimator) measureOnce(mi *exposure.MaskedImage, x, y float64, ell EllipseParams) (float64, error) {
	center := image.Pt(emath.Round(x), emath.Round(y))

	// Check the spans as they come, so an absurd shape hits the edge
	// before a huge footprint gets built.
	b := mi.Bounds()
	for s := range EllipticalSpans(center, ell) {
		if s.Y < b.Min.Y || s.Y >= b.Max.Y || s.X0 < b.Min.X || s.X1 >= b.Max.X {
			return math.NaN(), newError(Edge, "aperture %s at %v doesn't fit in image %v", ell, center, b)
		}
	}
	fp := NewEllipticalFootprint(center, ell)

	src := mi
	if sigma := re.Control.SmoothingSigma; sigma > 0 {
		margin := int(math.Ceil(4 * sigma))
		sub, err := mi.SubImage(fp.BBox().Inset(-margin).Intersect(mi.Bounds()))
		if err != nil {
			return math.NaN(), newError(Edge, "%v", err)
		}
		sub.Image = sub.Image.GaussianSmooth(sigma)
		src = sub
	}

	rm, err := AccumulateRadialMoment(src, fp.All(), x, y, ell.AxisRatio(), ell.Theta)
	if err != nil {
		return math.NaN(), err
	}
	return rm.Ir()
}
