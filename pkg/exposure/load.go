package exposure

import (
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
)

// Load reads an exposure from a .tif or .hdr file, and fills in its
// variance plane from the model.
func Load(filename string, vm VarianceModel) (*Exposure, error) {
	var e *Exposure
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		e, err = LoadTIFF(filename)
	case ".hdr":
		e, err = LoadHDR(filename)
	default:
		return nil, fmt.Errorf("load '%s': unhandled file type", filename)
	}
	if err != nil {
		return nil, err
	}

	vm.Fill(e.MaskedImage, e.Info)
	return e, nil
}

// LoadTIFF reads a (typically 16-bit) TIFF as a single gray plane, in
// ADU. EXIF data is optional; if present it supplies the ISO.
func LoadTIFF(filename string) (*Exposure, error) {
	e := &Exposure{Name: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))}

	if ei, err := loadEXIF(filename); err != nil {
		log.Printf("%s: no usable EXIF (%v), gain from config\n", filename, err)
	} else {
		e.Info = ei
	}

	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %v", filename, err)
	}
	defer reader.Close()

	img, err := tiff.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("tiff loading '%s': %v", filename, err)
	}

	e.MaskedImage = NewMaskedImage(img.Bounds())
	e.Image.Apply(func(x, y int, _ float64) float64 {
		return float64(ColToGrayU16(img.At(x, y)))
	})
	return e, nil
}

func loadEXIF(filename string) (ExposureInfo, error) {
	ei := ExposureInfo{}

	reader, err := os.Open(filename)
	if err != nil {
		return ei, fmt.Errorf("open+r exif '%s': %v", filename, err)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return ei, fmt.Errorf("exif parsing '%s': %v", filename, err)
	}

	if tag, err := ex.Get(exif.ISOSpeedRatings); err != nil {
		return ei, fmt.Errorf("exif ISO '%s': %v", filename, err)
	} else if val, err := tag.Int64(0); err != nil {
		return ei, fmt.Errorf("exif ISO '%s': %v", filename, err)
	} else {
		ei.ISO = val
	}

	// Exposure time is informational; don't fail on it
	if tag, err := ex.Get(exif.ExposureTime); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil {
			ei.ExposureTime = rat64{num, denom}
		}
	}

	if err := ei.Validate(); err != nil {
		return ei, fmt.Errorf("image '%s': %v", filename, err)
	}
	return ei, nil
}

// LoadHDR reads a Radiance RGBE file, taking the luminance of each
// pixel as its value.
func LoadHDR(filename string) (*Exposure, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer reader.Close()

	img, err := rgbe.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("rgbe loading '%s': %v", filename, err)
	}
	himg, ok := img.(hdr.Image)
	if !ok {
		return nil, fmt.Errorf("rgbe loading '%s': decoded %T is not an HDR image", filename, img)
	}

	e := NewExposure(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)), himg.Bounds())
	e.Image.Apply(func(x, y int, _ float64) float64 {
		r, g, b, _ := himg.HDRAt(x, y).HDRRGBA()
		return 0.2126*r + 0.7152*g + 0.0722*b
	})
	return e, nil
}

// ColToGrayU16 maps a color into a gray value in the range [0, 0xFFFF].
func ColToGrayU16(c color.Color) uint16 {
	r, g, b, _ := c.RGBA() // channel values in range [0, 0xFFFF]
	gray := float64(r)*0.2989 + float64(g)*0.5870 + float64(b)*0.1140
	if gray > 0xFFFF {
		gray = 0xFFFF
	}
	return uint16(gray + 0.5)
}
