package main

import (
	"flag"
	"log"

	"github.com/abworrall/kronflux/pkg/catalog"
	"github.com/abworrall/kronflux/pkg/overlay"
	"github.com/abworrall/kronflux/pkg/pipeline"
)

var (
	fVerbosity      int
	fWorkers        int
	fCatalog        string
	fReference      string
	fOutputFilename string
	fOverlay        string
	fTonemapper     string
	fZoom           int
	fMetrics        string
	fPSFSigma       float64
	fMinimumRadius  float64
	fFixed          bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.IntVar(&fWorkers, "workers", 0, "how many sources to measure in parallel (0 leaves the config value)")
	flag.StringVar(&fCatalog, "catalog", "", "catalog of sources to measure (.yaml)")
	flag.StringVar(&fReference, "forced", "", "reference catalog; its apertures are measured on this exposure without refitting")
	flag.StringVar(&fOutputFilename, "o", "kron.cat.yaml", "name of output catalog")
	flag.StringVar(&fOverlay, "overlay", "", "if set, write a PNG of the apertures to this file")
	flag.StringVar(&fTonemapper, "tonemapper", "gray", "how to render the overlay background: "+overlay.ListTonemappers())
	flag.IntVar(&fZoom, "zoom", 2, "overlay pixels per exposure pixel")
	flag.StringVar(&fMetrics, "metrics", "", "if set, write prometheus metrics to this textfile")
	flag.Float64Var(&fPSFSigma, "psfsigma", -1, "gaussian PSF rms, in pixels (<0 leaves the config value); with neither this nor -minradius, every source is flagged NO_MINIMUM_RADIUS")
	flag.Float64Var(&fMinimumRadius, "minradius", -1, "minimum Kron radius, in pixels (<0 leaves the config value); 0 falls back on the PSF radius, or flags NO_MINIMUM_RADIUS if there is no PSF")
	flag.BoolVar(&fFixed, "fixed", false, "reuse the radii already in the catalog, and only measure flux")
	flag.Parse()

	log.Printf("kronflux starting\n")
}

func main() {
	p := pipeline.NewPipeline()
	if err := p.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}

	if fCatalog != "" {
		cat, err := catalog.Load(fCatalog)
		if err != nil {
			log.Fatal(err)
		}
		p.Catalog = cat
	}

	// Override the config file with command line args, if relevant
	p.Config.Verbosity = fVerbosity
	if fWorkers > 0 {
		p.Config.Workers = fWorkers
	}
	if fPSFSigma >= 0 {
		p.Config.PSFSigma = fPSFSigma
	}
	if fMinimumRadius >= 0 {
		p.Config.Kron.MinimumRadius = fMinimumRadius
	}
	if fFixed {
		p.Config.Kron.Fixed = true
	}

	if p.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", p.Config.AsYaml())
	}

	if err := p.Setup(); err != nil {
		log.Fatal(err)
	}

	if fReference != "" {
		ref, err := catalog.Load(fReference)
		if err != nil {
			log.Fatal(err)
		}
		if err := p.RunForced(ref); err != nil {
			log.Fatal(err)
		}
	} else if err := p.Run(); err != nil {
		log.Fatal(err)
	}

	if p.Verbosity > 0 {
		log.Printf("Radius distribution (quarter pixels):\n%s\n", p.Summary.RadiusHistogram())
	}

	if err := p.Catalog.Save(fOutputFilename); err != nil {
		log.Fatal(err)
	}
	log.Printf("catalog written '%s'\n", fOutputFilename)

	if fMetrics != "" {
		if err := p.Metrics.WriteToTextfile(fMetrics); err != nil {
			log.Fatal(err)
		}
	}

	if fOverlay != "" {
		img, err := overlay.Render(p.Exposure, p.Catalog.Sources, overlay.Options{
			Tonemapper: fTonemapper,
			Zoom:       fZoom,
			NRadius:    p.Kron.NRadiusForFlux,
			Title:      p.Exposure.Name,
		})
		if err != nil {
			log.Fatal(err)
		}
		if err := overlay.WritePNG(img, fOverlay); err != nil {
			log.Fatal(err)
		}
		log.Printf("overlay written '%s'\n", fOverlay)
	}
}
