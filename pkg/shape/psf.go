package shape

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

// GaussianPSF is a circular gaussian point-spread function. Its Kron
// radius is found by measuring a rendered image of it with the same
// settings as the sources, so it's directly comparable to theirs.
type GaussianPSF struct {
	Sigma   float64
	Control kron.Control

	once   sync.Once
	radius float64
	err    error
}

var _ exposure.PSF = (*GaussianPSF)(nil)

func NewGaussianPSF(sigma float64, ctrl kron.Control) *GaussianPSF {
	return &GaussianPSF{Sigma: sigma, Control: ctrl}
}

// Moments of the PSF.
func (psf *GaussianPSF) Moments() kron.MomentTensor {
	s2 := psf.Sigma * psf.Sigma
	return kron.MomentTensor{Ixx: s2, Iyy: s2}
}

// Image renders a unit-flux PSF centred in a stamp big enough for the
// Kron radius estimate.
func (psf *GaussianPSF) Image() *exposure.MaskedImage {
	half := int(math.Ceil(1.5*psf.Control.NSigmaForRadius*psf.Sigma)) + 3
	if psf.Control.SmoothingSigma > 0 {
		half += int(math.Ceil(4 * psf.Control.SmoothingSigma))
	}
	mi := exposure.NewMaskedImage(image.Rect(-half, -half, half+1, half+1))
	exposure.Gaussian{Flux: 1, SigmaU: psf.Sigma, SigmaV: psf.Sigma}.Render(mi)
	return mi
}

// KronRadius is the same everywhere for this PSF, so it's only worked
// out once.
func (psf *GaussianPSF) KronRadius(x, y float64) (float64, error) {
	psf.once.Do(func() {
		if !(psf.Sigma > 0) {
			psf.radius, psf.err = math.NaN(), fmt.Errorf("gaussian psf with sigma %g", psf.Sigma)
			return
		}
		ctrl := psf.Control
		ctrl.EnforceMinimumRadius = false
		ctrl.UseFootprintRadius = false

		m := psf.Moments()
		est, err := kron.RadiusEstimator{Control: ctrl}.Estimate(kron.EstimateInput{
			Image:     psf.Image(),
			Shape:     &m,
			PsfRadius: math.NaN(),
		})
		psf.radius, psf.err = est.Aperture.Radius, err
	})
	return psf.radius, psf.err
}
