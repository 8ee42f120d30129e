package exposure

import (
	"fmt"
	"math"
)

type rat64 [2]int64

// ExposureInfo is what the camera recorded about how an exposure was
// taken. Only the ISO matters downstream: it sets the detector gain
// when the config doesn't.
type ExposureInfo struct {
	ISO          int64 // 100, 800, etc.
	ExposureTime rat64 // 1/500, 30/1, etc.
}

var (
	// Electrons per ADU at each whole ISO stop, for a sensor that is at
	// unity gain at ISO 800. Astro cameras differ, so config wins.
	gainLookup = map[int64]float64{
		100:   8.0,
		200:   4.0,
		400:   2.0,
		800:   1.0,
		1600:  0.5,
		3200:  0.25,
		6400:  0.125,
		12800: 0.0625,
	}
)

func (ei ExposureInfo) String() string {
	s := fmt.Sprintf("ISO%d", ei.ISO)
	if ei.ExposureTime[1] > 1 {
		s += fmt.Sprintf(", %d/%ds", ei.ExposureTime[0], ei.ExposureTime[1])
	} else if ei.ExposureTime[0] != 0 {
		s += fmt.Sprintf(", %ds", ei.ExposureTime[0])
	}
	return s
}

func (ei ExposureInfo) Seconds() float64 {
	if ei.ExposureTime[1] == 0 {
		return 0
	}
	return float64(ei.ExposureTime[0]) / float64(ei.ExposureTime[1])
}

// Validate checks the ISO is one of the whole stops we know a gain for.
func (ei ExposureInfo) Validate() error {
	if _, exists := gainLookup[ei.ISO]; !exists {
		return fmt.Errorf("(%s) had unhandled ISO", ei)
	}
	if ei.ExposureTime[0] < 0 || ei.ExposureTime[1] < 0 {
		return fmt.Errorf("(%s) had negative exposure time", ei)
	}
	return nil
}

// A VarianceModel builds a variance plane for images that don't come
// with one: Poisson noise from the signal, plus read noise.
type VarianceModel struct {
	Gain      float64 `yaml:"gain"`      // e-/ADU; zero means derive from the ISO
	ReadNoise float64 `yaml:"readNoise"` // ADU rms
}

func (vm VarianceModel) GainFor(ei ExposureInfo) float64 {
	if vm.Gain > 0 {
		return vm.Gain
	}
	if g, exists := gainLookup[ei.ISO]; exists {
		return g
	}
	return 1.0
}

// Fill populates mi.Variance from mi.Image.
func (vm VarianceModel) Fill(mi *MaskedImage, ei ExposureInfo) {
	gain := vm.GainFor(ei)
	rn2 := vm.ReadNoise * vm.ReadNoise
	mi.Variance.Apply(func(x, y int, _ float64) float64 {
		return math.Max(mi.Image.At(x, y), 0)/gain + rn2
	})
}
