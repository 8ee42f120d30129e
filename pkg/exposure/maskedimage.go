package exposure

import (
	"fmt"
	"image"

	"github.com/pkg/errors"

	"github.com/abworrall/kronflux/pkg/emath"
)

// ErrOutOfRange is returned when a requested region isn't entirely
// inside an image.
var ErrOutOfRange = errors.New("region out of range")

// A MaskedImage is an image plane plus its per-pixel variance, both in
// the parent pixel frame (so pixel (x,y) means the same place in every
// sub-image cut from it).
type MaskedImage struct {
	Image    emath.FloatGrid
	Variance emath.FloatGrid
}

func NewMaskedImage(r image.Rectangle) *MaskedImage {
	return &MaskedImage{
		Image:    emath.NewFloatGridAt(r),
		Variance: emath.NewFloatGridAt(r),
	}
}

func (mi *MaskedImage) Bounds() image.Rectangle { return mi.Image.Bounds() }

// Contains reports whether the whole of r lies inside the image.
func (mi *MaskedImage) Contains(r image.Rectangle) bool {
	return r.In(mi.Bounds())
}

func (mi *MaskedImage) Pixel(x, y int) (float64, float64) {
	return mi.Image.At(x, y), mi.Variance.At(x, y)
}

// SubImage copies out the region r, keeping parent coordinates.
func (mi *MaskedImage) SubImage(r image.Rectangle) (*MaskedImage, error) {
	if !mi.Contains(r) {
		return nil, fmt.Errorf("subimage %v of %v: %w", r, mi.Bounds(), ErrOutOfRange)
	}
	img, err := mi.Image.SubGrid(r)
	if err != nil {
		return nil, err
	}
	variance, err := mi.Variance.SubGrid(r)
	if err != nil {
		return nil, err
	}
	return &MaskedImage{Image: img, Variance: variance}, nil
}

func (mi *MaskedImage) String() string {
	return fmt.Sprintf("MaskedImage%v", mi.Bounds())
}
