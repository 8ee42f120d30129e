package main

// kronsim writes a synthetic star field (as a Radiance .hdr file), a
// catalog of where the stars are (rounded to whole pixels, as a peak
// finder would give them), and the true parameters of each star.

import (
	"flag"
	"fmt"
	"image"
	"log"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/kronflux/pkg/catalog"
	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
)

var (
	fName      string
	fWidth     int
	fHeight    int
	fNStars    int
	fSeed      int64
	fMinSigma  float64
	fMaxSigma  float64
	fMaxFlux   float64
	fNoise     float64
	fWithShape bool
)

func init() {
	flag.StringVar(&fName, "o", "sim", "basename of the output files")
	flag.IntVar(&fWidth, "width", 512, "image width, in pixels")
	flag.IntVar(&fHeight, "height", 512, "image height, in pixels")
	flag.IntVar(&fNStars, "n", 100, "how many stars")
	flag.Int64Var(&fSeed, "seed", 1, "random seed")
	flag.Float64Var(&fMinSigma, "minsigma", 1.0, "smallest star rms, in pixels")
	flag.Float64Var(&fMaxSigma, "maxsigma", 4.0, "biggest star rms, in pixels")
	flag.Float64Var(&fMaxFlux, "maxflux", 1e5, "brightest star, in ADU")
	flag.Float64Var(&fNoise, "noise", 0, "rms of gaussian noise added to each pixel (negative pixels are clipped)")
	flag.BoolVar(&fWithShape, "shapes", false, "put each star's true moments into the catalog")
	flag.Parse()
}

// truth is what was rendered, for comparing with what gets measured
type truth struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Flux   float64 `yaml:"flux"`
	SigmaU float64 `yaml:"sigmaU"`
	SigmaV float64 `yaml:"sigmaV"`
	Theta  float64 `yaml:"theta"`
	Kron   float64 `yaml:"kronRadius"` // along the major axis
}

func main() {
	rng := rand.New(rand.NewSource(fSeed))

	exp := exposure.NewExposure(fName, image.Rect(0, 0, fWidth, fHeight))
	cat := catalog.New()
	cat.Exposure = fName
	truths := []truth{}

	for i := 0; i < fNStars; i++ {
		g := exposure.Gaussian{
			X:      rng.Float64() * float64(fWidth-1),
			Y:      rng.Float64() * float64(fHeight-1),
			Flux:   fMaxFlux * math.Pow(10, -2*rng.Float64()),
			SigmaU: fMinSigma + rng.Float64()*(fMaxSigma-fMinSigma),
			Theta:  (rng.Float64() - 0.5) * math.Pi,
		}
		g.SigmaV = g.SigmaU * (0.5 + 0.5*rng.Float64())
		g.Render(exp.MaskedImage)

		rec := cat.Add(math.Round(g.X), math.Round(g.Y))
		rec.FootprintArea = int(math.Pi * 9 * g.SigmaU * g.SigmaV)
		if fWithShape {
			m := kron.EllipseParams{A: g.SigmaU, B: g.SigmaV, Theta: g.Theta}.Moments(1)
			rec.Shape = &m
		}

		truths = append(truths, truth{rec.ID, g.X, g.Y, g.Flux, g.SigmaU, g.SigmaV, g.Theta, g.SigmaU * math.Sqrt(math.Pi/2)})
	}

	if fNoise > 0 {
		exp.Image.Apply(func(x, y int, v float64) float64 { return v + rng.NormFloat64()*fNoise })
	}

	if err := exp.WriteHDR(fName + ".hdr"); err != nil {
		log.Fatal(err)
	}
	if err := cat.Save(fName + ".cat.yaml"); err != nil {
		log.Fatal(err)
	}

	b, err := yaml.Marshal(truths)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(fName+".truth.yaml", b, 0644); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("wrote %s.hdr, %s.cat.yaml, %s.truth.yaml (%d stars)\n", fName, fName, fName, fNStars)
}
