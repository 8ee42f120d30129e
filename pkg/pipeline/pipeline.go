// Package pipeline runs Kron photometry over a catalog of sources on
// one exposure, spreading the sources over a pool of goroutines.
package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/abworrall/kronflux/pkg/aperture"
	"github.com/abworrall/kronflux/pkg/catalog"
	"github.com/abworrall/kronflux/pkg/emath"
	"github.com/abworrall/kronflux/pkg/exposure"
	"github.com/abworrall/kronflux/pkg/kron"
	"github.com/abworrall/kronflux/pkg/shape"
)

type Pipeline struct {
	Config

	ExposureFilename string
	Exposure         *exposure.Exposure
	Catalog          *catalog.Catalog

	Metrics *Metrics
	Summary *Summary

	alg *kron.Algorithm
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		Config:  NewConfig(),
		Metrics: NewMetrics(),
		Summary: NewSummary(),
	}
}

func (p *Pipeline) String() string {
	str := "Pipeline["
	if p.Exposure != nil {
		str += p.Exposure.String()
	} else {
		str += p.ExposureFilename
	}
	if p.Catalog != nil {
		str += ", " + p.Catalog.String()
	}
	return str + "]"
}

// Setup checks the config, loads the exposure (unless one was
// provided directly), and builds the algorithm.
func (p *Pipeline) Setup() error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("config: %v", err)
	}

	if p.Exposure == nil {
		if p.ExposureFilename == "" {
			return fmt.Errorf("no exposure to measure")
		}
		exp, err := exposure.Load(p.ExposureFilename, p.Variance)
		if err != nil {
			return err
		}
		p.Exposure = exp
	}
	if p.PSFSigma > 0 {
		p.Exposure.PSF = shape.NewGaussianPSF(p.PSFSigma, p.Kron)
	}

	if p.Catalog == nil {
		p.Catalog = catalog.New()
	}
	p.Catalog.Exposure = p.Exposure.Name

	alg, err := kron.NewAlgorithm(p.Kron, shape.NewEstimator(), aperture.Integrator{
		MaxSincRadius: p.Kron.MaxSincRadius,
		SubPixels:     p.SubPixels,
	})
	if err != nil {
		return err
	}
	p.alg = alg

	if p.Verbosity > 0 {
		log.Printf("Setup: %s\n", p)
	}
	return nil
}

// Run measures every source in the catalog.
func (p *Pipeline) Run() error {
	if p.alg == nil {
		return fmt.Errorf("run before setup")
	}

	if p.Recentroid {
		p.recentroid()
	}

	jobs := make([]measureJob, len(p.Catalog.Sources))
	for i := range jobs {
		jobs[i] = measureJob{Index: i}
	}
	p.measureConcurrently(jobs, emath.Identity())

	log.Printf("Measured %s\n", p.Summary)
	return nil
}

// RunForced measures the reference catalog's apertures on this
// exposure, without re-fitting them. Sources land in p.Catalog under
// the same IDs, at their transformed positions.
func (p *Pipeline) RunForced(ref *catalog.Catalog) error {
	if p.alg == nil {
		return fmt.Errorf("run before setup")
	}

	xform := p.Alignment.ToMatrix()
	if p.Verbosity > 0 {
		log.Printf("Forced photometry with %s from %s\n", p.Alignment, ref)
	}

	pos := map[string]int{}
	for i, rec := range p.Catalog.Sources {
		pos[rec.ID] = i
	}

	jobs := make([]measureJob, len(ref.Sources))
	for i := range ref.Sources {
		refRec := &ref.Sources[i]
		j, exists := pos[refRec.ID]
		if !exists {
			x, y := xform.Apply(refRec.X, refRec.Y)
			p.Catalog.Sources = append(p.Catalog.Sources, kron.Record{
				ID:            refRec.ID,
				X:             x,
				Y:             y,
				FootprintArea: refRec.FootprintArea,
				Kron:          kron.NewFluxResult(),
			})
			j = len(p.Catalog.Sources) - 1
			pos[refRec.ID] = j
		}
		jobs[i] = measureJob{Index: j, Ref: refRec}
	}

	p.measureConcurrently(jobs, xform)

	log.Printf("Forced %s\n", p.Summary)
	return nil
}

func (p *Pipeline) recentroid() {
	for i := range p.Catalog.Sources {
		rec := &p.Catalog.Sources[i]
		x, y, err := shape.Centroid(p.Exposure.MaskedImage, rec.X, rec.Y, p.Kron.Background, p.CentroidHalfWidth)
		if err != nil {
			if p.Verbosity > 1 {
				log.Printf("recentroid %s: %v\n", rec.ID, err)
			}
			continue
		}
		rec.X, rec.Y = x, y
	}
}

type measureJob struct {
	// Inputs for the job
	Index int          // into p.Catalog.Sources
	Ref   *kron.Record // set for forced measurement

	// Output
	Err      error
	Duration time.Duration
}

// measureConcurrently uses a pool of goroutines to measure the
// sources. Each job writes only to its own record; the summary and
// metrics are updated from the results loop.
func (p *Pipeline) measureConcurrently(jobs []measureJob, xform emath.Aff3) {
	var wg sync.WaitGroup
	jobsChan := make(chan measureJob, len(jobs))
	resultsChan := make(chan measureJob, len(jobs))

	for i := 0; i < p.Workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			for job := range jobsChan {
				rec := &p.Catalog.Sources[job.Index]
				start := time.Now()
				if job.Ref != nil {
					job.Err = p.alg.ApplyForced(rec, p.Exposure, job.Ref, xform)
				} else {
					job.Err = p.alg.Apply(rec, p.Exposure)
				}
				job.Duration = time.Since(start)
				resultsChan <- job
			}
		}()
	}

	for _, job := range jobs {
		jobsChan <- job
	}
	close(jobsChan)
	wg.Wait()
	close(resultsChan)

	for result := range resultsChan {
		rec := p.Catalog.Sources[result.Index]
		p.Summary.Add(rec, result.Duration)
		p.Metrics.Observe(rec, result.Duration)
		if result.Err != nil && p.Verbosity > 1 {
			log.Printf(" -- %s: %v\n", rec.ID, result.Err)
		}
	}
}
