package exposure

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func rampExposure() *Exposure {
	e := NewExposure("ramp", image.Rect(0, 0, 20, 10))
	e.Image.Apply(func(x, y int, _ float64) float64 { return float64(10*x + y) })
	return e
}

func TestSubImage(t *testing.T) {
	e := rampExposure()
	sub, err := e.SubImage(image.Rect(5, 2, 8, 6))
	if err != nil {
		t.Fatalf("SubImage: %v", err)
	}
	if v, _ := sub.Pixel(6, 3); v != 63 {
		t.Errorf("sub pixel (6,3): got %v, expected 63", v)
	}

	_, err = e.SubImage(image.Rect(15, 5, 25, 8))
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SubImage off the edge: got %v, expected ErrOutOfRange", err)
	}
}

func TestVarianceModel(t *testing.T) {
	e := rampExposure()
	e.Image.SetAt(0, 0, -5) // negative pixels contribute no shot noise
	vm := VarianceModel{Gain: 2.0, ReadNoise: 3.0}
	vm.Fill(e.MaskedImage, e.Info)

	if _, v := e.Pixel(4, 1); v != 41.0/2.0+9.0 {
		t.Errorf("variance at (4,1): got %v, expected %v", v, 41.0/2.0+9.0)
	}
	if _, v := e.Pixel(0, 0); v != 9.0 {
		t.Errorf("variance at negative pixel: got %v, expected 9", v)
	}

	if g := (VarianceModel{}).GainFor(ExposureInfo{ISO: 1600}); g != 0.5 {
		t.Errorf("gain at ISO1600: got %v, expected 0.5", g)
	}
	if g := (VarianceModel{}).GainFor(ExposureInfo{}); g != 1.0 {
		t.Errorf("gain with no ISO: got %v, expected 1", g)
	}
}

func TestExposureInfoValidate(t *testing.T) {
	if err := (ExposureInfo{ISO: 800, ExposureTime: rat64{30, 1}}).Validate(); err != nil {
		t.Errorf("ISO800: %v", err)
	}
	if err := (ExposureInfo{ISO: 123}).Validate(); err == nil {
		t.Errorf("ISO123 should not validate")
	}
}

func TestHDRRoundTrip(t *testing.T) {
	e := rampExposure()
	filename := filepath.Join(t.TempDir(), "ramp.hdr")
	if err := e.WriteHDR(filename); err != nil {
		t.Fatalf("WriteHDR: %v", err)
	}

	e2, err := Load(filename, VarianceModel{Gain: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e2.Bounds() != e.Bounds() {
		t.Fatalf("bounds: got %v, expected %v", e2.Bounds(), e.Bounds())
	}
	for _, p := range []image.Point{{1, 1}, {7, 3}, {19, 9}} {
		want := e.Image.At(p.X, p.Y)
		got := e2.Image.At(p.X, p.Y)
		if math.Abs(got-want) > 0.01*want {
			t.Errorf("pixel %v: got %v, expected %v", p, got, want)
		}
		if _, v := e2.Pixel(p.X, p.Y); math.Abs(v-got) > 1e-9 {
			t.Errorf("variance %v: got %v, expected %v", p, v, got)
		}
	}
}

func TestLoadTIFF(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 8, 8))
	img.SetGray16(3, 4, color.Gray16{Y: 1000})

	filename := filepath.Join(t.TempDir(), "star.tif")
	f, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	e, err := Load(filename, VarianceModel{Gain: 4, ReadNoise: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Name != "star" {
		t.Errorf("name: got %q, expected \"star\"", e.Name)
	}
	if v, variance := e.Pixel(3, 4); math.Abs(v-1000) > 1 || math.Abs(variance-(v/4+1)) > 1e-9 {
		t.Errorf("pixel (3,4): got %v (var %v), expected 1000 (var 251)", v, variance)
	}
	if v, _ := e.Pixel(0, 0); v != 0 {
		t.Errorf("pixel (0,0): got %v, expected 0", v)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "x.jpg"), VarianceModel{}); err == nil {
		t.Errorf("loading a .jpg should fail")
	}
}
