package exposure

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/kronflux/pkg/emath"
)

// HDRView presents a FloatGrid as a gray hdr.Image, so it can be
// written out as Radiance RGBE. The view always starts at (0,0), since
// the file format has no origin.
type HDRView struct {
	Grid *emath.FloatGrid
}

// Implement image.Image
func (v HDRView) ColorModel() color.Model { return hdrcolor.RGBModel }
func (v HDRView) Bounds() image.Rectangle { return image.Rect(0, 0, v.Grid.Dx(), v.Grid.Dy()) }
func (v HDRView) At(x, y int) color.Color { return v.HDRAt(x, y) }

// Implement hdr.Image
func (v HDRView) HDRAt(x, y int) hdrcolor.Color {
	val := v.Grid.Get(x, y)
	if val < 0 {
		val = 0 // RGBE can't hold negatives
	}
	return hdrcolor.RGB{R: val, G: val, B: val}
}
func (v HDRView) Size() int { return v.Bounds().Dx() * v.Bounds().Dy() }

// WriteHDR saves the image plane of the exposure as an RGBE file.
func (e *Exposure) WriteHDR(filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("WriteHDR, open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, HDRView{&e.Image}); err != nil {
		return fmt.Errorf("WriteHDR, encoding RGBE file '%s': %v", filename, err)
	}
	return nil
}
