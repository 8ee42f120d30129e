package kron

import (
	"fmt"

	"github.com/abworrall/kronflux/pkg/emath"
)

// A KronAperture is the ellipse used to estimate the Kron radius, and
// the radius it gave. Radius is along the major axis, NaN until known.
type KronAperture struct {
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	EllipseParams `yaml:",inline"`
	Radius        float64 `yaml:"radius"`
}

func (ka KronAperture) String() string {
	return fmt.Sprintf("KronAperture[(%.2f,%.2f) %s R:%.3f]", ka.X, ka.Y, ka.EllipseParams, ka.Radius)
}

// FluxEllipse is the ellipse to integrate flux within: nRadius Kron
// radii along the major axis, with the aperture's axis ratio.
func (ka KronAperture) FluxEllipse(nRadius float64) EllipseParams {
	return ka.EllipseParams.WithMajorAxis(nRadius * ka.Radius)
}

// Transform maps the aperture into another pixel frame. The radius
// scales with the major axis.
func (ka KronAperture) Transform(m emath.Aff3) (KronAperture, error) {
	if !(ka.A > 0) {
		return KronAperture{}, newError(BadShape, "can't transform sizeless aperture %s", ka)
	}
	e, err := ka.EllipseParams.Transform(m)
	if err != nil && !(e.A > 0) {
		return KronAperture{}, err
	}

	out := KronAperture{EllipseParams: e, Radius: ka.Radius * e.A / ka.A}
	out.X, out.Y = m.Apply(ka.X, ka.Y)
	return out, nil
}
