package kron

import (
	"fmt"
	"math"
)

// FluxResult is the outcome of measuring one source on one exposure.
// When Flags has Failure, the numbers are NaN and shouldn't be used.
type FluxResult struct {
	Flux            float64       `yaml:"flux"`
	FluxErr         float64       `yaml:"fluxErr"`
	Radius          float64       `yaml:"radius"`
	RadiusForRadius float64       `yaml:"radiusForRadius"`
	PsfRadius       float64       `yaml:"psfRadius"`
	Flags           Flags         `yaml:"flags"`
	Aperture        *KronAperture `yaml:"aperture,omitempty"`
}

func NewFluxResult() FluxResult {
	nan := math.NaN()
	return FluxResult{Flux: nan, FluxErr: nan, Radius: nan, RadiusForRadius: nan, PsfRadius: nan}
}

func (fr FluxResult) Failed() bool { return fr.Flags.Has(Failure) }

func (fr FluxResult) String() string {
	return fmt.Sprintf("Kron[flux:%.2f±%.2f R:%.3f %s]", fr.Flux, fr.FluxErr, fr.Radius, fr.Flags)
}

// A Record is one source: where it is, what we know of its shape, and
// its Kron measurement.
type Record struct {
	ID            string        `yaml:"id"`
	X             float64       `yaml:"x"`
	Y             float64       `yaml:"y"`
	Shape         *MomentTensor `yaml:"shape,omitempty"`
	FootprintArea int           `yaml:"footprintArea,omitempty"` // pixels in the detection footprint
	Kron          FluxResult    `yaml:"kron"`
}

func (r Record) String() string {
	return fmt.Sprintf("Source[%s (%.2f,%.2f) %s]", r.ID, r.X, r.Y, r.Kron)
}

// FootprintRadius is the radius of a circle with the footprint's area.
func (r Record) FootprintRadius() float64 {
	return math.Sqrt(float64(r.FootprintArea) / math.Pi)
}
