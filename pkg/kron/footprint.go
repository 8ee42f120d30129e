package kron

import (
	"fmt"
	"image"
	"iter"
	"math"
	"slices"
)

// A Span is the run of pixels X0..X1 (inclusive) on row Y.
type Span struct {
	Y, X0, X1 int
}

func (s Span) Width() int { return s.X1 - s.X0 + 1 }

// A Footprint is a set of spans in increasing row order, at most one
// per row.
type Footprint struct {
	Spans []Span
}

// EllipticalSpans yields, row by row, the pixels that the ellipse
// covers or touches, for an ellipse centred on the given pixel.
//
// Each row's span is the union of the chords at the row's top and
// bottom edges, widened to the ellipse's left/right extreme when that
// falls inside the row. Rows that miss the ellipse entirely become a
// single pixel where the nearer edge's chord would be.
func EllipticalSpans(center image.Point, e EllipseParams) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		xc, yc := center.X, center.Y
		a, b := e.A, e.B

		c := math.Cos(e.Theta)
		s := math.Sin(e.Theta)

		c0 := a*a*s*s + b*b*c*c // y-extent^2
		if c0 <= 0 {
			yield(Span{yc, xc, xc})
			return
		}
		c1 := c * s * (a*a - b*b) / c0
		c2 := a * b / c0

		// The leftmost/rightmost points of the ellipse are at (-xm,-yt)
		// and (xm,yt)
		xm := math.Sqrt(a*a*c*c + b*b*s*s)
		yt := 0.0
		if xm > 0 {
			yt = (a*a - b*b) * c * s / xm
		}

		ymax := math.Sqrt(c0) + 1
		for i := int(-ymax); float64(i) <= ymax; i++ {
			dy := 0.5
			if i > 0 {
				dy = -0.5
			}

			x1, x2 := math.Inf(1), math.Inf(-1)
			for _, y := range [2]float64{float64(i) + dy, float64(i) - dy} {
				if c0 > y*y {
					half := c2 * math.Sqrt(c0-y*y)
					x1 = math.Min(x1, y*c1-half)
					x2 = math.Max(x2, y*c1+half)
				}
			}

			lo, hi := float64(i)-0.5, float64(i)+0.5
			if yt >= lo && yt <= hi {
				x2 = math.Max(x2, xm)
			}
			if -yt >= lo && -yt <= hi {
				x1 = math.Min(x1, -xm)
			}

			if x1 > x2 {
				x1 = (float64(i) + dy) * c1
				x2 = x1
			}

			span := Span{
				Y:  yc + i,
				X0: xc + int(math.Floor(x1+0.5)),
				X1: xc + int(math.Floor(x2+0.5)),
			}
			if !yield(span) {
				return
			}
		}
	}
}

func NewEllipticalFootprint(center image.Point, e EllipseParams) Footprint {
	return Footprint{Spans: slices.Collect(EllipticalSpans(center, e))}
}

func (fp Footprint) All() iter.Seq[Span] { return slices.Values(fp.Spans) }

func (fp Footprint) Area() int {
	n := 0
	for _, s := range fp.Spans {
		n += s.Width()
	}
	return n
}

// BBox is the smallest rectangle holding every pixel (Max exclusive).
func (fp Footprint) BBox() image.Rectangle {
	r := image.Rectangle{}
	for i, s := range fp.Spans {
		sr := image.Rect(s.X0, s.Y, s.X1+1, s.Y+1)
		if i == 0 {
			r = sr
		} else {
			r = r.Union(sr)
		}
	}
	return r
}

func (fp Footprint) Contains(x, y int) bool {
	for _, s := range fp.Spans {
		if s.Y == y && x >= s.X0 && x <= s.X1 {
			return true
		}
	}
	return false
}

// Clip trims the footprint to r; the bool says whether any pixels were
// lost.
func (fp Footprint) Clip(r image.Rectangle) (Footprint, bool) {
	out := Footprint{}
	removed := false
	for _, s := range fp.Spans {
		if s.Y < r.Min.Y || s.Y >= r.Max.Y {
			removed = true
			continue
		}
		cs := s
		if cs.X0 < r.Min.X {
			cs.X0 = r.Min.X
		}
		if cs.X1 >= r.Max.X {
			cs.X1 = r.Max.X - 1
		}
		if cs != s {
			removed = true
		}
		if cs.X0 <= cs.X1 {
			out.Spans = append(out.Spans, cs)
		}
	}
	return out, removed
}

func (fp Footprint) String() string {
	return fmt.Sprintf("Footprint[%d spans, %d px, %v]", len(fp.Spans), fp.Area(), fp.BBox())
}
