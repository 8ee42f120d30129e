package kron

import (
	"math"

	"github.com/pkg/errors"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
)

// A ShapeEstimator measures adaptive second moments about a starting
// centre, returning the moments and the refined centre.
type ShapeEstimator interface {
	AdaptiveMoments(mi *exposure.MaskedImage, background, x, y, maxShift float64) (MomentTensor, float64, float64, error)
}

// A FluxIntegrator sums the flux inside an ellipse, with care over
// partial pixels. Apertures off the image fail with an error that
// matches exposure.ErrOutOfRange.
type FluxIntegrator interface {
	ApertureFlux(mi *exposure.MaskedImage, x, y, a, b, theta float64) (float64, float64, error)
}

// A FluxAlgorithm measures sources, writing the outcome into each
// source's record.
type FluxAlgorithm interface {
	Measure(rec *Record, exp *exposure.Exposure) error
	MeasureForced(rec *Record, exp *exposure.Exposure, ref *Record, refToExp emath.Aff3) error
	Fail(rec *Record, err error)
}

// Algorithm is Kron photometry.
type Algorithm struct {
	Control Control
	Shapes  ShapeEstimator // may be nil, if every record has a shape
	Flux    FluxIntegrator
}

var _ FluxAlgorithm = (*Algorithm)(nil)

func NewAlgorithm(ctrl Control, shapes ShapeEstimator, flux FluxIntegrator) (*Algorithm, error) {
	if err := ctrl.Validate(); err != nil {
		return nil, errors.Wrap(err, "kron control")
	}
	if flux == nil {
		return nil, errors.New("kron needs a flux integrator")
	}
	return &Algorithm{Control: ctrl, Shapes: shapes, Flux: flux}, nil
}

// Measure fits the Kron radius for the source and measures its flux.
// Nothing is written to the record unless it succeeds.
func (a *Algorithm) Measure(rec *Record, exp *exposure.Exposure) error {
	x, y := rec.X, rec.Y
	res := NewFluxResult()
	res.PsfRadius = a.psfRadius(exp, x, y)

	var shape *MomentTensor
	var prior *KronAperture
	var shapeErr error

	switch {
	case a.Control.Fixed:
		if rec.Shape == nil {
			return newError(BadShape, "source %s has no shape to hold fixed", rec.ID)
		}
		shape = rec.Shape
		if ap := rec.Kron.Aperture; ap != nil && emath.IsFinite(rec.Kron.Radius) && rec.Kron.Radius > 0 {
			p := *ap
			p.Radius = rec.Kron.Radius
			prior = &p
		}

	case rec.Shape != nil:
		shape = rec.Shape

	case a.Shapes != nil:
		m, x2, y2, err := a.Shapes.AdaptiveMoments(exp.MaskedImage, a.Control.Background, x, y, a.Control.MaxCentroidShift)
		if err == nil {
			shape = &m
			x, y = x2, y2
		} else {
			// carry on without a shape, and let the estimator fall back
			shapeErr = err
		}
	}

	var ka KronAperture
	if prior != nil {
		ka = *prior
		res.Flags = rec.Kron.Flags &^ Failure
		res.RadiusForRadius = rec.Kron.RadiusForRadius
	} else {
		est, err := RadiusEstimator{a.Control}.Estimate(EstimateInput{
			Image:           exp.MaskedImage,
			X:               x,
			Y:               y,
			Shape:           shape,
			FootprintRadius: rec.FootprintRadius(),
			PsfRadius:       res.PsfRadius,
		})
		if err != nil {
			if shapeErr != nil {
				return newError(FlagOf(err)|BadShape, "kron radius for source %s: %v (no shape: %v)", rec.ID, err, shapeErr)
			}
			return errors.Wrapf(err, "kron radius for source %s", rec.ID)
		}
		ka = est.Aperture
		res.Flags = est.Flags
		if shapeErr != nil {
			res.Flags.Set(BadShape)
		}
		res.RadiusForRadius = est.RadiusForRadius
	}

	if err := a.measureFlux(&res, exp, ka); err != nil {
		return errors.Wrapf(err, "kron flux for source %s", rec.ID)
	}
	rec.Kron = res
	return nil
}

// MeasureForced carries the reference's aperture into this exposure's
// frame and measures flux in it, with no re-fitting.
func (a *Algorithm) MeasureForced(rec *Record, exp *exposure.Exposure, ref *Record, refToExp emath.Aff3) error {
	if ref.Kron.Aperture == nil || ref.Kron.Failed() || !emath.IsFinite(ref.Kron.Radius) {
		return newError(Failure, "reference source %s has no Kron aperture", ref.ID)
	}

	src := *ref.Kron.Aperture
	src.Radius = ref.Kron.Radius
	ka, err := src.Transform(refToExp)
	if err != nil {
		return errors.Wrapf(err, "forced aperture for source %s", ref.ID)
	}

	res := NewFluxResult()
	res.PsfRadius = a.psfRadius(exp, ka.X, ka.Y)
	res.Flags = ref.Kron.Flags &^ Failure
	res.RadiusForRadius = ka.A

	if err := a.measureFlux(&res, exp, ka); err != nil {
		return errors.Wrapf(err, "forced kron flux for source %s", ref.ID)
	}
	rec.Kron = res
	return nil
}

// Fail records the error as flags, and leaves the numbers as NaN.
func (a *Algorithm) Fail(rec *Record, err error) {
	res := NewFluxResult()
	res.Flags = FlagOf(err) | Failure
	rec.Kron = res
}

// Apply measures a source, recording any failure (including a panic)
// in its flags. The error is returned for logging only.
func (a *Algorithm) Apply(rec *Record, exp *exposure.Exposure) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(Failure, "panic measuring source %s: %v", rec.ID, r)
			a.Fail(rec, err)
		}
	}()

	if err = a.Measure(rec, exp); err != nil {
		a.Fail(rec, err)
	}
	return err
}

func (a *Algorithm) ApplyForced(rec *Record, exp *exposure.Exposure, ref *Record, refToExp emath.Aff3) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(Failure, "panic force-measuring source %s: %v", ref.ID, r)
			a.Fail(rec, err)
		}
	}()

	if err = a.MeasureForced(rec, exp, ref, refToExp); err != nil {
		a.Fail(rec, err)
	}
	return err
}

func (a *Algorithm) psfRadius(exp *exposure.Exposure, x, y float64) float64 {
	if exp.PSF == nil {
		return math.NaN()
	}
	r, err := exp.PSF.KronRadius(x, y)
	if err != nil {
		return math.NaN()
	}
	return r
}

func (a *Algorithm) measureFlux(res *FluxResult, exp *exposure.Exposure, ka KronAperture) error {
	fe := ka.FluxEllipse(a.Control.NRadiusForFlux)
	flux, fluxErr, err := a.Flux.ApertureFlux(exp.MaskedImage, ka.X, ka.Y, fe.A, fe.B, fe.Theta)
	if err != nil {
		flag := Failure
		if errors.Is(err, exposure.ErrOutOfRange) {
			flag = Edge
		}
		return errors.Wrapf(newError(res.Flags|flag, "%v", err),
			"object at (%.3f, %.3f); aperture radius %g theta %g", ka.X, ka.Y, fe.A, fe.Theta*180/math.Pi)
	}

	res.Flux = flux
	res.FluxErr = fluxErr
	res.Radius = ka.Radius
	res.Aperture = &ka
	return nil
}
