package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// A FloatGrid is a grid of floats, anchored at (X0,Y0) in some parent
// pixel frame. Get/Set use grid-local coords, At/SetAt use parent
// coords.
type FloatGrid struct {
	X0, Y0 int
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// NewFloatGridAt returns a zeroed grid covering the rectangle r.
func NewFloatGridAt(r image.Rectangle) FloatGrid {
	fg := NewFloatGrid(r.Dx(), r.Dy())
	fg.X0, fg.Y0 = r.Min.X, r.Min.Y
	return fg
}

func (g1 *FloatGrid) NewFromThis() FloatGrid { return NewFloatGridAt(g1.Bounds()) }
func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }
func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

func (fg *FloatGrid) At(x, y int) float64       { return fg.Get(x-fg.X0, y-fg.Y0) }
func (fg *FloatGrid) SetAt(x, y int, v float64) { fg.Set(x-fg.X0, y-fg.Y0, v) }
func (fg *FloatGrid) AddAt(x, y int, v float64) { fg.values[fg.stride*(y-fg.Y0)+x-fg.X0] += v }

func (fg *FloatGrid) Bounds() image.Rectangle {
	return image.Rect(fg.X0, fg.Y0, fg.X0+fg.Dx(), fg.Y0+fg.Dy())
}

// SubGrid copies out the part of the grid inside r, which must be
// contained in the grid's bounds.
func (g1 *FloatGrid) SubGrid(r image.Rectangle) (FloatGrid, error) {
	if !r.In(g1.Bounds()) {
		return FloatGrid{}, fmt.Errorf("subgrid %v not inside %v", r, g1.Bounds())
	}
	g2 := NewFloatGridAt(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := g1.stride*(y-g1.Y0) + r.Min.X - g1.X0
		copy(g2.values[g2.stride*(y-r.Min.Y):g2.stride*(y-r.Min.Y+1)], g1.values[src:src+r.Dx()])
	}
	return g2, nil
}

// Fill sets every value to v.
func (fg *FloatGrid) Fill(v float64) {
	for i := range fg.values {
		fg.values[i] = v
	}
}

// Apply replaces every value with f(x, y, value), in parent coords.
func (fg *FloatGrid) Apply(f func(x, y int, v float64) float64) {
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			i := fg.stride*y + x
			fg.values[i] = f(x+fg.X0, y+fg.Y0, fg.values[i])
		}
	}
}

func (fg *FloatGrid) Sum() float64 {
	sum := 0.0
	for _, v := range fg.values {
		sum += v
	}
	return sum
}

// gaussianKernel is a normalized 1D kernel, half-width ceil(4 sigma)
func gaussianKernel(sigma float64) []float64 {
	hw := int(math.Ceil(4 * sigma))
	k := make([]float64, 2*hw+1)
	sum := 0.0
	for i := -hw; i <= hw; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+hw] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianSmooth convolves the grid with a circular gaussian of width
// sigma pixels, as two separable passes. Edge pixels are clamped. A
// non-positive sigma returns a copy.
func (g1 FloatGrid) GaussianSmooth(sigma float64) FloatGrid {
	g2 := g1.NewFromThis()
	if sigma <= 0 {
		copy(g2.values, g1.values)
		return g2
	}

	width := g1.Dx()
	height := g1.Dy()
	k := gaussianKernel(sigma)
	hw := len(k) / 2
	clamp := func(i, n int) int {
		if i < 0 {
			return 0
		} else if i >= n {
			return n - 1
		}
		return i
	}

	T := g1.NewFromThis()

	//--- X pass, build up in T
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := 0.0
			for i := -hw; i <= hw; i++ {
				t += k[i+hw] * g1.Get(clamp(x+i, width), y)
			}
			T.Set(x, y, t)
		}
	}

	//--- Y pass, read from T and generate output
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			t := 0.0
			for i := -hw; i <= hw; i++ {
				t += k[i+hw] * T.Get(x, clamp(y+i, height))
			}
			g2.Set(x, y, t)
		}
	}

	return g2
}

func (fg *FloatGrid) MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0 * min
	for i := 0; i < len(fg.values); i++ {
		if fg.values[i] > max {
			max = fg.values[i]
		}
		if fg.values[i] < min {
			min = fg.values[i]
		}
	}
	return min, max
}

func (fg *FloatGrid) Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d@(%d,%d), vals{%f,%f}]", fg.Dx(), fg.Dy(), fg.X0, fg.Y0, min, max)
}

// ToGray renders the grid as a gamma-expanded grayscale, stretched
// over the range of values in the grid.
func (fg *FloatGrid) ToGray() *image.RGBA64 {
	min, max := fg.MinMax()
	if max <= min {
		max = min + 1
	}

	img := image.NewRGBA64(fg.Bounds())
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			lum := (fg.Get(x, y) - min) / (max - min)
			gray := uint16(GammaExpand_F64(lum) * 65535.0)
			img.Set(x+fg.X0, y+fg.Y0, color.RGBA64{gray, gray, gray, 0xFFFF})
		}
	}
	return img
}

// ToImg saves the grid as a grayscale PNG, with a title; handy for
// debugging.
func (fg *FloatGrid) ToImg(title, filename string) error {
	dc := gg.NewContextForImage(fg.ToGray())
	dc.SetRGB(1, 0.3, 0.3)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
