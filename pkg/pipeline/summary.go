package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/skypies/util/histogram"

	"github.com/abworrall/kronflux/pkg/kron"
)

// radii are binned in quarter pixels
const radiusBinsPerPixel = 4

// Summary accumulates the outcome of a run, for the log.
type Summary struct {
	NSources   int
	NFailed    int
	FlagCounts map[string]int

	Radii   histogram.Histogram
	Latency *hdrhistogram.Histogram // microseconds
}

func NewSummary() *Summary {
	return &Summary{
		FlagCounts: map[string]int{},
		Radii:      histogram.Histogram{NumBuckets: 80, ValMin: 0, ValMax: 20 * radiusBinsPerPixel},
		Latency:    hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
	}
}

// Add is not safe for concurrent use; the pipeline calls it from its
// results loop.
func (s *Summary) Add(rec kron.Record, d time.Duration) {
	s.NSources++
	if rec.Kron.Failed() {
		s.NFailed++
	} else {
		s.Radii.Add(histogram.ScalarVal(int(rec.Kron.Radius * radiusBinsPerPixel)))
	}
	for _, name := range rec.Kron.Flags.Names() {
		s.FlagCounts[name]++
	}

	us := d.Microseconds()
	if us < 1 {
		us = 1
	} else if us > s.Latency.HighestTrackableValue() {
		us = s.Latency.HighestTrackableValue()
	}
	s.Latency.RecordValue(us)
}

func (s *Summary) String() string {
	str := fmt.Sprintf("Summary[%d sources, %d failed", s.NSources, s.NFailed)
	if s.Latency.TotalCount() > 0 {
		str += fmt.Sprintf(", latency p50=%dus p99=%dus max=%dus",
			s.Latency.ValueAtQuantile(50), s.Latency.ValueAtQuantile(99), s.Latency.Max())
	}
	str += "]"

	names := []string{}
	for name := range s.FlagCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		str += fmt.Sprintf("\n  %-20s %6d", name, s.FlagCounts[name])
	}
	return str
}

// RadiusHistogram is the distribution of radii, in quarter pixels.
func (s *Summary) RadiusHistogram() string {
	return strings.TrimSpace(fmt.Sprintf("%v", s.Radii))
}
