package shape

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

func elongatedSource() (*exposure.MaskedImage, exposure.Gaussian) {
	g := exposure.Gaussian{X: 32.3, Y: 31.8, SigmaU: 3, SigmaV: 1.5, Theta: 30 * math.Pi / 180}
	g.Flux = 500 * 2 * math.Pi * g.SigmaU * g.SigmaV // peak of 500
	mi := exposure.NewMaskedImage(image.Rect(0, 0, 64, 64))
	g.Render(mi)
	return mi, g
}

func TestAdaptiveMoments(t *testing.T) {
	mi, g := elongatedSource()

	m, x, y, err := NewEstimator().AdaptiveMoments(mi, 0, 32, 32, 10)
	if err != nil {
		t.Fatalf("AdaptiveMoments: %v", err)
	}

	c, s := math.Cos(g.Theta), math.Sin(g.Theta)
	u, v := g.SigmaU*g.SigmaU, g.SigmaV*g.SigmaV
	expected := kron.MomentTensor{Ixx: u*c*c + v*s*s, Ixy: (u - v) * c * s, Iyy: u*s*s + v*c*c}

	const eps = 1e-3
	if math.Abs(x-g.X) > eps || math.Abs(y-g.Y) > eps {
		t.Errorf("centre: got (%v,%v), expected (%v,%v)", x, y, g.X, g.Y)
	}
	if math.Abs(m.Ixx-expected.Ixx) > eps*expected.Ixx ||
		math.Abs(m.Ixy-expected.Ixy) > eps*expected.Ixx ||
		math.Abs(m.Iyy-expected.Iyy) > eps*expected.Iyy {
		t.Errorf("moments: got %s, expected %s", m, expected)
	}
}

func TestAdaptiveMomentsBackground(t *testing.T) {
	mi, g := elongatedSource()
	mi.Image.Apply(func(x, y int, v float64) float64 { return v + 100 })

	m, _, _, err := NewEstimator().AdaptiveMoments(mi, 100, 32, 32, 10)
	if err != nil {
		t.Fatalf("AdaptiveMoments: %v", err)
	}
	if e, _ := kron.EllipseFromMoments(m, 1); math.Abs(e.A-g.SigmaU) > 1e-3 || math.Abs(e.B-g.SigmaV) > 1e-3 {
		t.Errorf("background-subtracted ellipse: got %s, expected a=%v b=%v", e, g.SigmaU, g.SigmaV)
	}
}

func TestAdaptiveMomentsNotFound(t *testing.T) {
	empty := exposure.NewMaskedImage(image.Rect(0, 0, 32, 32))
	if _, _, _, err := NewEstimator().AdaptiveMoments(empty, 0, 16, 16, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty image: got %v, expected ErrNotFound", err)
	}

	mi, _ := elongatedSource()
	if _, _, _, err := NewEstimator().AdaptiveMoments(mi, 0, 29, 29, 1.0); !errors.Is(err, ErrNotFound) {
		t.Errorf("max shift exceeded: got %v, expected ErrNotFound", err)
	}

	if _, _, _, err := NewEstimator().AdaptiveMoments(mi, 0, 100, 100, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("off the image: got %v, expected ErrNotFound", err)
	}
}

func TestCentroid(t *testing.T) {
	mi := exposure.NewMaskedImage(image.Rect(0, 0, 32, 32))
	exposure.Gaussian{X: 12.4, Y: 17.7, Flux: 1000, SigmaU: 1.5, SigmaV: 1.5}.Render(mi)

	x, y, err := Centroid(mi, 12, 18, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-12.4) > 0.01 || math.Abs(y-17.7) > 0.01 {
		t.Errorf("centroid: got (%v,%v), expected (12.4,17.7)", x, y)
	}

	if _, _, err := Centroid(mi, 12, 18, 1e9, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("centroid above all light: got %v, expected ErrNotFound", err)
	}
}

func TestGaussianPSFKronRadius(t *testing.T) {
	psf := NewGaussianPSF(2.0, kron.NewControl())
	r, err := psf.KronRadius(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	expected := 2.0 * math.Sqrt(math.Pi/2)
	if math.Abs(r-expected)/expected > 0.01 {
		t.Errorf("psf kron radius: got %v, expected %v", r, expected)
	}

	// Cached, and the same everywhere
	if r2, _ := psf.KronRadius(500, -3); r2 != r {
		t.Errorf("second call: got %v, expected %v", r2, r)
	}

	if _, err := NewGaussianPSF(0, kron.NewControl()).KronRadius(0, 0); err == nil {
		t.Errorf("zero-width psf should fail")
	}
}
