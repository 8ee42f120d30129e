// Package shape measures the size and orientation of sources: adaptive
// second moments, simple centroids, and a gaussian PSF model.
package shape

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

// ErrNotFound means the moments couldn't be measured.
var ErrNotFound = errors.New("adaptive moments not found")

// Estimator measures adaptive moments: it repeatedly weights the image
// by an elliptical gaussian, and reshapes the gaussian until it matches
// the moments of the source under it. At convergence the weight is the
// source's own second-moment tensor.
type Estimator struct {
	MaxIter      int
	Tolerance    float64 // convergence, relative to the weight's size
	InitialSigma float64 // rms of the first, circular weight
}

var _ kron.ShapeEstimator = (*Estimator)(nil)

func NewEstimator() *Estimator {
	return &Estimator{MaxIter: 100, Tolerance: 1e-6, InitialSigma: 1.5}
}

// pixels further than this (in weight sigma^2) don't count
const maxWeightExponent = 32.0

func sym2(xx, xy, yy float64) *mat.SymDense {
	return mat.NewSymDense(2, []float64{xx, xy, xy, yy})
}

// invertPD inverts a 2x2 symmetric matrix, insisting that it is
// positive definite.
func invertPD(m *mat.SymDense) (*mat.SymDense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, false); !ok {
		return nil, fmt.Errorf("eigen decomposition failed")
	}
	if vals := eig.Values(nil); !(vals[0] > 0) || !(vals[1] > 0) {
		return nil, fmt.Errorf("not positive definite (eigenvalues %v)", vals)
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, err
	}
	xy := 0.5 * (inv.At(0, 1) + inv.At(1, 0))
	return sym2(inv.At(0, 0), xy, inv.At(1, 1)), nil
}

// AdaptiveMoments measures the source near (x,y), returning its
// moments and refined centre. The centre may not wander more than
// maxShift pixels from where it started.
func (est *Estimator) AdaptiveMoments(mi *exposure.MaskedImage, background, x, y, maxShift float64) (kron.MomentTensor, float64, float64, error) {
	fail := func(format string, args ...interface{}) (kron.MomentTensor, float64, float64, error) {
		return kron.MomentTensor{}, x, y, errors.Wrapf(ErrNotFound, format, args...)
	}

	if !mi.Bounds().Overlaps(image.Rect(emath.Round(x), emath.Round(y), emath.Round(x)+1, emath.Round(y)+1)) {
		return fail("(%.2f,%.2f) is not on the image %v", x, y, mi.Bounds())
	}

	x0, y0 := x, y
	s2 := est.InitialSigma * est.InitialSigma
	w := sym2(s2, 0, s2)

	for iter := 0; iter < est.MaxIter; iter++ {
		winv, err := invertPD(w)
		if err != nil {
			return fail("weight at iteration %d: %v", iter, err)
		}
		wixx, wixy, wiyy := winv.At(0, 0), winv.At(0, 1), winv.At(1, 1)

		reach := int(math.Ceil(math.Sqrt(maxWeightExponent*math.Max(w.At(0, 0), w.At(1, 1))))) + 1
		box := image.Rect(emath.Round(x)-reach, emath.Round(y)-reach, emath.Round(x)+reach+1, emath.Round(y)+reach+1)
		box = box.Intersect(mi.Bounds())

		var sum, sx, sy, sxx, sxy, syy float64
		for py := box.Min.Y; py < box.Max.Y; py++ {
			for px := box.Min.X; px < box.Max.X; px++ {
				dx, dy := float64(px)-x, float64(py)-y
				e := wixx*dx*dx + 2*wixy*dx*dy + wiyy*dy*dy
				if e > maxWeightExponent {
					continue
				}
				val, _ := mi.Pixel(px, py)
				wt := math.Exp(-0.5*e) * (val - background)
				sum += wt
				sx += wt * dx
				sy += wt * dy
				sxx += wt * dx * dx
				sxy += wt * dx * dy
				syy += wt * dy * dy
			}
		}
		if !(sum > 0) {
			return fail("no flux under the weight at iteration %d", iter)
		}

		mx, my := sx/sum, sy/sum
		m := sym2(sxx/sum-mx*mx, sxy/sum-mx*my, syy/sum-my*my)
		x += mx
		y += my
		if math.Hypot(x-x0, y-y0) > maxShift {
			return fail("centre moved from (%.2f,%.2f) to (%.2f,%.2f)", x0, y0, x, y)
		}

		// The weighted moments are those of source*weight, so peel the
		// weight back off: W' = inv(inv(M) - inv(W))
		minv, err := invertPD(m)
		if err != nil {
			return fail("weighted moments at iteration %d: %v", iter, err)
		}
		diff := sym2(minv.At(0, 0)-winv.At(0, 0), minv.At(0, 1)-winv.At(0, 1), minv.At(1, 1)-winv.At(1, 1))
		wNew, err := invertPD(diff)
		if err != nil {
			return fail("source unresolved at iteration %d: %v", iter, err)
		}

		change := math.Abs(wNew.At(0, 0)-w.At(0, 0)) + math.Abs(wNew.At(0, 1)-w.At(0, 1)) + math.Abs(wNew.At(1, 1)-w.At(1, 1))
		size := wNew.At(0, 0) + wNew.At(1, 1)
		w = wNew

		if change < est.Tolerance*size && math.Hypot(mx, my) < est.Tolerance {
			mt := kron.MomentTensor{Ixx: w.At(0, 0), Ixy: w.At(0, 1), Iyy: w.At(1, 1)}
			return mt, x, y, nil
		}
	}

	return fail("no convergence after %d iterations", est.MaxIter)
}
