package shape

import (
	"image"

	"github.com/pkg/errors"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
)

// Centroid finds the 'centre of mass' of the light above background in
// a (2*halfWidth+1)^2 box about (x,y). Catalog positions that are whole
// pixel peaks can be refined with it before measuring.
func Centroid(mi *exposure.MaskedImage, x, y, background float64, halfWidth int) (float64, float64, error) {
	cx, cy := emath.Round(x), emath.Round(y)
	box := image.Rect(cx-halfWidth, cy-halfWidth, cx+halfWidth+1, cy+halfWidth+1).Intersect(mi.Bounds())

	sumX, sumY, n := 0.0, 0.0, 0.0
	for py := box.Min.Y; py < box.Max.Y; py++ {
		for px := box.Min.X; px < box.Max.X; px++ {
			val, _ := mi.Pixel(px, py)
			if val -= background; val > 0 {
				sumX += val * float64(px)
				sumY += val * float64(py)
				n += val
			}
		}
	}
	if n == 0 {
		return x, y, errors.Wrapf(ErrNotFound, "no light above %g about (%.2f,%.2f)", background, x, y)
	}

	return sumX / n, sumY / n, nil
}
