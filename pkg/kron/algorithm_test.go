package kron_test

import (
	"image"
	"math"
	"testing"

	"github.com/abworrall/kronflux/pkg/aperture"
	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
	"github.com/abworrall/kronflux/pkg/shape"
)

func gaussianExposure(r image.Rectangle, gs ...exposure.Gaussian) *exposure.Exposure {
	exp := exposure.NewExposure("test", r)
	for _, g := range gs {
		g.Render(exp.MaskedImage)
	}
	exp.Variance.Fill(1.0)
	return exp
}

func newAlgorithm(t *testing.T, ctrl kron.Control) *kron.Algorithm {
	alg, err := kron.NewAlgorithm(ctrl, shape.NewEstimator(), aperture.Integrator{MaxSincRadius: ctrl.MaxSincRadius})
	if err != nil {
		t.Fatal(err)
	}
	return alg
}

func TestMeasureGaussian(t *testing.T) {
	g := exposure.Gaussian{X: 32.3, Y: 32.3, Flux: 1000, SigmaU: 2, SigmaV: 2}
	exp := gaussianExposure(image.Rect(0, 0, 64, 64), g)
	exp.PSF = shape.NewGaussianPSF(1.0, kron.NewControl())

	rec := kron.Record{ID: "g", X: 32, Y: 32}
	if err := newAlgorithm(t, kron.NewControl()).Measure(&rec, exp); err != nil {
		t.Fatal(err)
	}

	expected := 2.0 * math.Sqrt(math.Pi/2)
	if math.Abs(rec.Kron.Radius-expected)/expected > 0.01 {
		t.Errorf("radius: got %v, expected %v", rec.Kron.Radius, expected)
	}
	if rec.Kron.Flux < 0.99*g.Flux || rec.Kron.Flux > g.Flux {
		t.Errorf("flux: got %v, expected just under %v", rec.Kron.Flux, g.Flux)
	}
	if !(rec.Kron.FluxErr > 0) {
		t.Errorf("flux error: got %v", rec.Kron.FluxErr)
	}
	if rec.Kron.Flags != 0 {
		t.Errorf("flags: got %s, expected none", rec.Kron.Flags)
	}
	// A one pixel PSF is coarsely sampled, so only roughly right
	if math.Abs(rec.Kron.PsfRadius-expected/2)/(expected/2) > 0.03 {
		t.Errorf("psf radius: got %v, expected %v", rec.Kron.PsfRadius, expected/2)
	}

	// The aperture is centred on the refined centroid, but the record's
	// own position is left alone
	ap := rec.Kron.Aperture
	if ap == nil || math.Abs(ap.X-g.X) > 1e-3 || math.Abs(ap.Y-g.Y) > 1e-3 {
		t.Errorf("aperture: got %v, expected centre (%v,%v)", ap, g.X, g.Y)
	}
	if rec.X != 32 || rec.Y != 32 || rec.Shape != nil {
		t.Errorf("record was modified: %s", rec)
	}
}

func TestApplyFailures(t *testing.T) {
	ctrl := kron.NewControl()
	ctrl.EnforceMinimumRadius = false
	alg := newAlgorithm(t, ctrl)

	exp := gaussianExposure(image.Rect(0, 0, 64, 64),
		exposure.Gaussian{X: 1, Y: 32, Flux: 1000, SigmaU: 2, SigmaV: 2},
		exposure.Gaussian{X: 32, Y: 32, Flux: 1000, SigmaU: 2, SigmaV: 2},
	)

	recs := []kron.Record{
		{ID: "edge", X: 1, Y: 32, Shape: &kron.MomentTensor{Ixx: 4, Iyy: 4}},
		{ID: "good", X: 32, Y: 32, Shape: &kron.MomentTensor{Ixx: 4, Iyy: 4}},
	}
	errs := []error{}
	for i := range recs {
		errs = append(errs, alg.Apply(&recs[i], exp))
	}

	if errs[0] == nil || !recs[0].Kron.Failed() || !math.IsNaN(recs[0].Kron.Flux) {
		t.Errorf("edge source: got %s, %v", recs[0], errs[0])
	}
	if !recs[0].Kron.Flags.Has(kron.Edge | kron.NoFallbackRadius | kron.Failure) {
		t.Errorf("edge source: got %s, expected EDGE|NO_FALLBACK_RADIUS|FAILURE", recs[0].Kron.Flags)
	}
	if errs[1] != nil || recs[1].Kron.Failed() || math.IsNaN(recs[1].Kron.Flux) {
		t.Errorf("good source: got %s, %v", recs[1], errs[1])
	}
}

func TestApplyFluxEdge(t *testing.T) {
	ctrl := kron.NewControl()
	ctrl.MinimumRadius = 5

	exp := gaussianExposure(image.Rect(0, 0, 64, 64), exposure.Gaussian{X: 8, Y: 32, Flux: 1000, SigmaU: 2, SigmaV: 2})
	rec := kron.Record{ID: "edge", X: 8, Y: 32, Shape: &kron.MomentTensor{Ixx: 4, Iyy: 4}}

	// The radius falls back to the minimum, but the flux aperture still
	// runs off the image
	err := newAlgorithm(t, ctrl).Apply(&rec, exp)
	if kron.FlagOf(err)&kron.Edge == 0 {
		t.Errorf("got %v, expected an edge error", err)
	}
	want := kron.Edge | kron.UsedMinimumRadius | kron.Failure
	if !rec.Kron.Flags.Has(want) {
		t.Errorf("flags: got %s, expected %s", rec.Kron.Flags, want)
	}
}

type panicky struct{}

func (panicky) ApertureFlux(*exposure.MaskedImage, float64, float64, float64, float64, float64) (float64, float64, error) {
	panic("boom")
}

func TestApplyRecoversPanic(t *testing.T) {
	ctrl := kron.NewControl()
	alg, err := kron.NewAlgorithm(ctrl, nil, panicky{})
	if err != nil {
		t.Fatal(err)
	}

	exp := gaussianExposure(image.Rect(0, 0, 64, 64), exposure.Gaussian{X: 32, Y: 32, Flux: 1000, SigmaU: 2, SigmaV: 2})
	exp.PSF = shape.NewGaussianPSF(1.0, ctrl)
	rec := kron.Record{ID: "p", X: 32, Y: 32, Shape: &kron.MomentTensor{Ixx: 4, Iyy: 4}}

	if err := alg.Apply(&rec, exp); err == nil || rec.Kron.Flags != kron.Failure {
		t.Errorf("panic: got %s, %v", rec.Kron.Flags, err)
	}
}

func TestNewAlgorithmValidates(t *testing.T) {
	ctrl := kron.NewControl()
	ctrl.NRadiusForFlux = -1
	if _, err := kron.NewAlgorithm(ctrl, nil, aperture.Integrator{}); err == nil {
		t.Errorf("bad control accepted")
	}
	if _, err := kron.NewAlgorithm(kron.NewControl(), nil, nil); err == nil {
		t.Errorf("missing integrator accepted")
	}
}

func TestMeasureForced(t *testing.T) {
	ctrl := kron.NewControl()
	alg := newAlgorithm(t, ctrl)

	g := exposure.Gaussian{X: 32.3, Y: 32.3, Flux: 1000, SigmaU: 2, SigmaV: 2}
	refExp := gaussianExposure(image.Rect(0, 0, 64, 64), g)
	ref := kron.Record{ID: "ref", X: 32, Y: 32}
	if err := alg.Measure(&ref, refExp); err != nil {
		t.Fatal(err)
	}

	g2 := g
	g2.X, g2.Y = g.X+5, g.Y-3
	exp := gaussianExposure(image.Rect(0, 0, 80, 80), g2)

	rec := kron.Record{ID: "ref", X: 37, Y: 29}
	if err := alg.MeasureForced(&rec, exp, &ref, emath.Identity().Translate(5, -3)); err != nil {
		t.Fatal(err)
	}

	if math.Abs(rec.Kron.Flux-ref.Kron.Flux) > 1e-6*ref.Kron.Flux {
		t.Errorf("forced flux: got %v, expected %v", rec.Kron.Flux, ref.Kron.Flux)
	}
	if math.Abs(rec.Kron.Radius-ref.Kron.Radius) > 1e-9 {
		t.Errorf("forced radius: got %v, expected %v", rec.Kron.Radius, ref.Kron.Radius)
	}
	if rec.Kron.Flags != ref.Kron.Flags {
		t.Errorf("forced flags: got %s, expected %s", rec.Kron.Flags, ref.Kron.Flags)
	}
	if math.Abs(rec.Kron.Aperture.X-g2.X) > 1e-3 || math.Abs(rec.Kron.Aperture.Y-g2.Y) > 1e-3 {
		t.Errorf("forced aperture: got %s", rec.Kron.Aperture)
	}

	// A failed reference can't be forced
	bad := kron.Record{ID: "bad", Kron: kron.NewFluxResult()}
	bad.Kron.Flags = kron.Failure
	if err := alg.ApplyForced(&rec, exp, &bad, emath.Identity()); err == nil || !rec.Kron.Failed() {
		t.Errorf("forced from a failed reference: got %s, %v", rec.Kron, err)
	}
}

func TestMeasureFixed(t *testing.T) {
	g := exposure.Gaussian{X: 32, Y: 32, Flux: 1000, SigmaU: 2, SigmaV: 2}
	rec := kron.Record{ID: "f", X: 32, Y: 32, Shape: &kron.MomentTensor{Ixx: 4, Iyy: 4}}

	if err := newAlgorithm(t, kron.NewControl()).Measure(&rec, gaussianExposure(image.Rect(0, 0, 64, 64), g)); err != nil {
		t.Fatal(err)
	}
	first := rec.Kron

	ctrl := kron.NewControl()
	ctrl.Fixed = true
	g.Flux = 2000
	g.SigmaU, g.SigmaV = 3, 3 // would give a different radius, if it were measured
	if err := newAlgorithm(t, ctrl).Measure(&rec, gaussianExposure(image.Rect(0, 0, 64, 64), g)); err != nil {
		t.Fatal(err)
	}
	if rec.Kron.Radius != first.Radius || rec.Kron.RadiusForRadius != first.RadiusForRadius {
		t.Errorf("fixed radius: got %v, expected %v", rec.Kron.Radius, first.Radius)
	}
	if !(rec.Kron.Flux > 1.5*first.Flux) {
		t.Errorf("fixed flux: got %v, expected about double %v", rec.Kron.Flux, first.Flux)
	}

	noShape := kron.Record{ID: "n", X: 32, Y: 32}
	if err := newAlgorithm(t, ctrl).Measure(&noShape, gaussianExposure(image.Rect(0, 0, 64, 64), g)); kron.FlagOf(err) != kron.BadShape {
		t.Errorf("fixed without a shape: got %v, expected BAD_SHAPE", err)
	}
}

func TestMeasureShapeNotFound(t *testing.T) {
	// Nothing to measure moments of, so the shape fit fails
	exp := gaussianExposure(image.Rect(0, 0, 64, 64))
	exp.PSF = shape.NewGaussianPSF(1.5, kron.NewControl())
	alg := newAlgorithm(t, kron.NewControl())

	rec := kron.Record{ID: "blank", X: 32, Y: 32}
	if err := alg.Apply(&rec, exp); err != nil {
		t.Fatal(err)
	}
	if !rec.Kron.Flags.Has(kron.BadShape|kron.UsedPSFRadius) || rec.Kron.Failed() {
		t.Errorf("flags: got %s, expected BAD_SHAPE|USED_PSF_RADIUS", rec.Kron.Flags)
	}
	if math.Abs(rec.Kron.Radius-rec.Kron.PsfRadius) > 1e-12 {
		t.Errorf("radius: got %v, expected the psf radius %v", rec.Kron.Radius, rec.Kron.PsfRadius)
	}

	// And with no PSF either there's nothing to fall back on
	exp.PSF = nil
	rec = kron.Record{ID: "blank", X: 32, Y: 32}
	if err := alg.Apply(&rec, exp); err == nil {
		t.Errorf("expected an error with no shape and no PSF")
	}
	if !rec.Kron.Flags.Has(kron.BadShape|kron.NoShapeNoPSF|kron.Failure) || !math.IsNaN(rec.Kron.Flux) {
		t.Errorf("no PSF: got %s flux %v", rec.Kron.Flags, rec.Kron.Flux)
	}
}
