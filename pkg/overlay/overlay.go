// Package overlay draws measured Kron apertures over an exposure, for
// eyeballing what the photometry did.
package overlay

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr/tmo"
	"golang.org/x/image/draw"

	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

var Tonemappers = []string{"gray", "linear", "drago03", "reinhard05"}

func ListTonemappers() string {
	return fmt.Sprintf("%v", Tonemappers)
}

type Options struct {
	Tonemapper string  // one of Tonemappers; empty means gray
	Zoom       int     // output pixels per exposure pixel; 0 means 1
	NRadius    float64 // draw the aperture at this many Kron radii; 0 means the radius itself
	Title      string
}

// Background renders the exposure's image plane into an 8-bit image
// with its origin at (0,0).
func Background(exp *exposure.Exposure, tonemapper string) (image.Image, error) {
	view := exposure.HDRView{Grid: &exp.Image}

	var src image.Image
	switch tonemapper {
	case "", "gray":
		src = exp.Image.ToGray()
	case "linear":
		src = tmo.NewLinear(view).Perform()
	case "drago03":
		op := tmo.NewDefaultDrago03(view)
		op.Bias = 1.0 // keeps bright cores from blowing out
		src = op.Perform()
	case "reinhard05":
		src = tmo.NewDefaultReinhard05(view).Perform()
	default:
		return nil, fmt.Errorf("tonemapper %q not recognized, wanted %s", tonemapper, ListTonemappers())
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// StatusColor picks a hue for how the measurement went: green when
// clean, yellow when a fallback radius was used, orange on an edge,
// red on failure.
func StatusColor(fr kron.FluxResult) colorful.Color {
	switch {
	case fr.Failed():
		return colorful.Hsv(0, 0.9, 1)
	case fr.Flags.Has(kron.Edge):
		return colorful.Hsv(30, 0.9, 1)
	case fr.Flags.Has(kron.UsedMinimumRadius), fr.Flags.Has(kron.UsedPSFRadius):
		return colorful.Hsv(60, 0.9, 1)
	}
	return colorful.Hsv(120, 0.9, 0.9)
}

// Render draws each source's aperture over the exposure. Sources with
// no aperture get a cross at their catalog position.
func Render(exp *exposure.Exposure, sources []kron.Record, opt Options) (image.Image, error) {
	bg, err := Background(exp, opt.Tonemapper)
	if err != nil {
		return nil, err
	}

	zoom := opt.Zoom
	if zoom < 1 {
		zoom = 1
	}
	if zoom > 1 {
		b := bg.Bounds()
		big := image.NewRGBA(image.Rect(0, 0, b.Dx()*zoom, b.Dy()*zoom))
		draw.CatmullRom.Scale(big, big.Bounds(), bg, b, draw.Src, nil)
		bg = big
	}
	nRadius := opt.NRadius
	if nRadius <= 0 {
		nRadius = 1
	}

	z := float64(zoom)
	origin := exp.Bounds().Min
	// pixel i covers [i-0.5, i+0.5) in exposure coords
	toCanvas := func(x, y float64) (float64, float64) {
		return (x - float64(origin.X) + 0.5) * z, (y - float64(origin.Y) + 0.5) * z
	}

	dc := gg.NewContextForImage(bg)
	dc.SetLineWidth(math.Max(2, z))

	for _, rec := range sources {
		col := StatusColor(rec.Kron)
		dc.SetRGB(col.R, col.G, col.B)

		if ap := rec.Kron.Aperture; ap != nil && !rec.Kron.Failed() {
			ell := ap.FluxEllipse(nRadius)
			cx, cy := toCanvas(ap.X, ap.Y)
			dc.Push()
			dc.RotateAbout(ell.Theta, cx, cy)
			dc.DrawEllipse(cx, cy, ell.A*z, math.Max(ell.B, 0.5)*z)
			dc.Stroke()
			dc.Pop()
			continue
		}

		cx, cy := toCanvas(rec.X, rec.Y)
		arm := 3 * z
		dc.DrawLine(cx-arm, cy-arm, cx+arm, cy+arm)
		dc.DrawLine(cx-arm, cy+arm, cx+arm, cy-arm)
		dc.Stroke()
	}

	if opt.Title != "" {
		dc.SetRGB(1, 0.3, 0.3)
		dc.DrawString(opt.Title, 10, 20)
	}

	return dc.Image(), nil
}

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}
