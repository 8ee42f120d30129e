package pipeline

import (
	"fmt"
	"log"
	"runtime"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

/* Example config file ...

verbosity: 1
workers: 8
psfSigma: 1.8
kron:
  nSigmaForRadius: 6
  nRadiusForFlux: 2.5
  minimumRadius: 3
  enforceMinimumRadius: true
variance:
  gain: 1.6
  readNoise: 4.5
alignment:
  translateByX: -12.5
  translateByY: 3.25
  rotateByDeg: 0.4
  rotationCenterX: 1024
  rotationCenterY: 1024

*/

type Config struct {
	Verbosity int `yaml:"verbosity"`
	Workers   int `yaml:"workers"`

	Kron     kron.Control           `yaml:"kron"`
	Variance exposure.VarianceModel `yaml:"variance"`
	PSFSigma float64                `yaml:"psfSigma"` // gaussian PSF rms in pixels; zero for no PSF

	SubPixels         int  `yaml:"subPixels"`         // boundary pixel sampling for small apertures
	Recentroid        bool `yaml:"recentroid"`        // refine catalog positions before measuring
	CentroidHalfWidth int  `yaml:"centroidHalfWidth"` // box used by Recentroid

	// For forced photometry: maps the reference catalog's frame onto
	// the exposure's.
	Alignment Alignment `yaml:"alignment"`
}

func NewConfig() Config {
	return Config{
		Workers:           runtime.NumCPU(),
		Kron:              kron.NewControl(),
		CentroidHalfWidth: 3,
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func (c Config) Validate() error {
	if err := c.Kron.Validate(); err != nil {
		return fmt.Errorf("kron: %v", err)
	}
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	case c.PSFSigma < 0:
		return fmt.Errorf("psfSigma must be >= 0, got %g", c.PSFSigma)
	case c.Variance.Gain < 0 || c.Variance.ReadNoise < 0:
		return fmt.Errorf("variance model can't be negative: %+v", c.Variance)
	case c.Recentroid && c.CentroidHalfWidth < 1:
		return fmt.Errorf("centroidHalfWidth must be >= 1, got %d", c.CentroidHalfWidth)
	case c.Alignment.ScaleBy < 0:
		return fmt.Errorf("alignment scale must be >= 0, got %g", c.Alignment.ScaleBy)
	}
	return nil
}

// An Alignment maps a pixel location in the reference exposure (where
// the catalog's apertures were fitted) to the pixel location in the
// exposure being measured that sees the same point in the sky.
//
// If you use an equatorial mount and never touch the camera, it's the
// identity.
type Alignment struct {
	TranslateByX    float64 `yaml:"translateByX"`
	TranslateByY    float64 `yaml:"translateByY"`
	RotationCenterX float64 `yaml:"rotationCenterX"`
	RotationCenterY float64 `yaml:"rotationCenterY"`
	RotateByDeg     float64 `yaml:"rotateByDeg"`
	ScaleBy         float64 `yaml:"scaleBy"` // zero is taken as 1
}

func (at Alignment) String() string {
	str := fmt.Sprintf("Align[(%6.2f,%6.2f)", at.TranslateByX, at.TranslateByY)
	if at.RotateByDeg != 0.0 {
		str += fmt.Sprintf(", %5.2fdeg", at.RotateByDeg)
	}
	if at.ScaleBy != 0.0 && at.ScaleBy != 1.0 {
		str += fmt.Sprintf(", x%.4f", at.ScaleBy)
	}
	return str + "]"
}

func (at Alignment) ToMatrix() emath.Aff3 {
	// Step 1: translate so the frames' origins line up
	m := emath.Identity().Translate(at.TranslateByX, at.TranslateByY)

	cx, cy := at.RotationCenterX, at.RotationCenterY

	// Step 2: scale about the center, for a change of plate scale
	if at.ScaleBy != 0 && at.ScaleBy != 1 {
		mS := emath.Identity().Translate(cx, cy).Scale(at.ScaleBy, at.ScaleBy).Translate(-cx, -cy)
		m = mS.Mult(m)
	}

	// Step 3: rotate about the center, for field rotation
	if at.RotateByDeg != 0 {
		mR := emath.RotateAbout(at.RotateByDeg, cx, cy)
		m = mR.Mult(m)
	}

	return m
}
