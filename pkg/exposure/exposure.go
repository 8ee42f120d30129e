package exposure

import (
	"fmt"
	"image"
)

// A PSF knows the Kron radius that a point source would have at a
// given position in the exposure.
type PSF interface {
	KronRadius(x, y float64) (float64, error)
}

// An Exposure is one calibrated image of the sky, plus what we know
// about how it was taken.
type Exposure struct {
	Name string
	*MaskedImage
	Info ExposureInfo
	PSF  PSF // may be nil
}

func NewExposure(name string, r image.Rectangle) *Exposure {
	return &Exposure{
		Name:        name,
		MaskedImage: NewMaskedImage(r),
	}
}

func (e *Exposure) String() string {
	str := fmt.Sprintf("Exposure[%s %v", e.Name, e.Bounds())
	if e.Info.ISO != 0 {
		str += fmt.Sprintf(", %s", e.Info)
	}
	if e.PSF != nil {
		str += ", psf"
	}
	return str + "]"
}
