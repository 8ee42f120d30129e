package kron

import (
	"fmt"
	"strings"
)

// Flags is the set of diagnostic bits recorded with a measurement.
type Flags uint16

const (
	Failure           Flags = 1 << iota // general failure; no flux was produced
	Edge                                // footprint or aperture ran off the image
	NoShapeNoPSF                        // no usable shape, and no PSF to fall back on
	NoMinimumRadius                     // a minimum radius was demanded but none is configured
	NoFallbackRadius                    // radius unusable and nothing to fall back to
	BadShape                            // moments were non-physical or degenerate
	BadRadius                           // no net flux to weight the radius by
	SmallRadius                         // measured radius below the minimum
	UsedMinimumRadius                   // radius replaced by the configured minimum
	UsedPSFRadius                       // radius replaced by the PSF's Kron radius
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{Failure, "FAILURE"},
	{Edge, "EDGE"},
	{NoShapeNoPSF, "NO_SHAPE_NO_PSF"},
	{NoMinimumRadius, "NO_MINIMUM_RADIUS"},
	{NoFallbackRadius, "NO_FALLBACK_RADIUS"},
	{BadShape, "BAD_SHAPE"},
	{BadRadius, "BAD_RADIUS"},
	{SmallRadius, "SMALL_RADIUS"},
	{UsedMinimumRadius, "USED_MINIMUM_RADIUS"},
	{UsedPSFRadius, "USED_PSF_RADIUS"},
}

func (fl Flags) Has(f Flags) bool { return fl&f == f && f != 0 }
func (fl *Flags) Set(f Flags)     { *fl |= f }
func (fl *Flags) Clear(f Flags)   { *fl &^= f }

func (fl Flags) Names() []string {
	names := []string{}
	for _, fn := range flagNames {
		if fl&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

func (fl Flags) String() string {
	if fl == 0 {
		return "OK"
	}
	return strings.Join(fl.Names(), "|")
}

func ParseFlag(name string) (Flags, error) {
	for _, fn := range flagNames {
		if strings.EqualFold(fn.name, name) {
			return fn.f, nil
		}
	}
	return 0, fmt.Errorf("no flag named '%s'", name)
}

// Flags go to yaml as a list of names, so catalogs stay readable.
func (fl Flags) MarshalYAML() (interface{}, error) {
	return fl.Names(), nil
}

func (fl *Flags) UnmarshalYAML(unmarshal func(interface{}) error) error {
	names := []string{}
	if err := unmarshal(&names); err != nil {
		return err
	}
	*fl = 0
	for _, name := range names {
		f, err := ParseFlag(name)
		if err != nil {
			return err
		}
		fl.Set(f)
	}
	return nil
}
