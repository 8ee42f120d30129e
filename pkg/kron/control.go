package kron

import (
	"fmt"
	"log"

	"gopkg.in/yaml.v2"
)

// Control is the configuration for Kron photometry. It's a plain value;
// nothing modifies it once an Algorithm has been built.
type Control struct {
	Fixed                bool    `yaml:"fixed"`                // use existing shape and centroid instead of fitting
	NSigmaForRadius      float64 `yaml:"nSigmaForRadius"`      // rms sizes in the aperture used to estimate the radius
	NIterForRadius       int     `yaml:"nIterForRadius"`       // times to iterate when setting the radius
	NRadiusForFlux       float64 `yaml:"nRadiusForFlux"`       // Kron radii in the flux aperture
	MaxSincRadius        float64 `yaml:"maxSincRadius"`        // largest aperture for the slow, accurate integrator
	MinimumRadius        float64 `yaml:"minimumRadius"`        // also the fallback radius, if set
	EnforceMinimumRadius bool    `yaml:"enforceMinimumRadius"` // check the radius exceeds the minimum (or the PSF's)
	UseFootprintRadius   bool    `yaml:"useFootprintRadius"`   // footprint size bounds the initial aperture
	SmoothingSigma       float64 `yaml:"smoothingSigma"`       // smooth with N(0, sigma^2) while estimating; <=0 is off

	Background       float64 `yaml:"background"`       // sky level, for the adaptive moments
	MaxCentroidShift float64 `yaml:"maxCentroidShift"` // how far adaptive moments may move the centre
}

func NewControl() Control {
	return Control{
		Fixed:                false,
		NSigmaForRadius:      6.0,
		NIterForRadius:       1,
		NRadiusForFlux:       2.5,
		MaxSincRadius:        10.0,
		MinimumRadius:        0.0,
		EnforceMinimumRadius: true,
		UseFootprintRadius:   false,
		SmoothingSigma:       -1.0,
		Background:           0.0,
		MaxCentroidShift:     10.0,
	}
}

func (c Control) Validate() error {
	switch {
	case !(c.NSigmaForRadius > 0):
		return fmt.Errorf("nSigmaForRadius must be > 0, got %g", c.NSigmaForRadius)
	case c.NIterForRadius < 1:
		return fmt.Errorf("nIterForRadius must be >= 1, got %d", c.NIterForRadius)
	case !(c.NRadiusForFlux > 0):
		return fmt.Errorf("nRadiusForFlux must be > 0, got %g", c.NRadiusForFlux)
	case c.MaxSincRadius < 0:
		return fmt.Errorf("maxSincRadius must be >= 0, got %g", c.MaxSincRadius)
	case c.MinimumRadius < 0:
		return fmt.Errorf("minimumRadius must be >= 0, got %g", c.MinimumRadius)
	case c.MaxCentroidShift < 0:
		return fmt.Errorf("maxCentroidShift must be >= 0, got %g", c.MaxCentroidShift)
	}
	return nil
}

func (c Control) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal control yaml: %v\n", err)
	}
	return string(b)
}
