package exposure

import (
	"math"
)

// A Gaussian is an elliptical gaussian source: total Flux, rms widths
// SigmaU (along angle Theta, radians from x-axis) and SigmaV.
type Gaussian struct {
	X, Y           float64
	Flux           float64
	SigmaU, SigmaV float64
	Theta          float64
}

// Value is the surface brightness at (px,py).
func (g Gaussian) Value(px, py float64) float64 {
	c, s := math.Cos(g.Theta), math.Sin(g.Theta)
	dx, dy := px-g.X, py-g.Y
	u := (dx*c + dy*s) / g.SigmaU
	v := (-dx*s + dy*c) / g.SigmaV
	return g.Flux / (2 * math.Pi * g.SigmaU * g.SigmaV) * math.Exp(-0.5*(u*u+v*v))
}

// Render adds the source into the image, sampling at pixel centres out
// to 8 sigma.
func (g Gaussian) Render(mi *MaskedImage) {
	reach := 8 * math.Max(g.SigmaU, g.SigmaV)
	b := mi.Bounds()
	x0 := max(b.Min.X, int(math.Floor(g.X-reach)))
	x1 := min(b.Max.X-1, int(math.Ceil(g.X+reach)))
	y0 := max(b.Min.Y, int(math.Floor(g.Y-reach)))
	y1 := min(b.Max.Y-1, int(math.Ceil(g.Y+reach)))

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			mi.Image.AddAt(x, y, g.Value(float64(x), float64(y)))
		}
	}
}
