package catalog

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/abworrall/kronflux/pkg/kron"
)

const exampleYaml = `
exposure: field-1
sources:
- id: star-1
  x: 10.5
  y: 20
  shape: {ixx: 4, ixy: 0.5, iyy: 3}
- x: 30
  y: 40
  footprintArea: 50
`

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "in.yaml")
	if err := os.WriteFile(filename, []byte(exampleYaml), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if c.Exposure != "field-1" || len(c.Sources) != 2 {
		t.Fatalf("got %s", c)
	}
	if c.Sources[0].ID != "star-1" || c.Sources[0].Shape == nil || c.Sources[0].Shape.Ixy != 0.5 {
		t.Errorf("source 0: got %s", c.Sources[0])
	}
	if c.Sources[1].ID == "" || len(c.Sources[1].ID) != 36 {
		t.Errorf("source 1: got id %q, expected a uuid", c.Sources[1].ID)
	}
	if !math.IsNaN(c.Sources[1].Kron.Flux) {
		t.Errorf("unmeasured source: got flux %v, expected NaN", c.Sources[1].Kron.Flux)
	}
	if math.Abs(c.Sources[1].FootprintRadius()-math.Sqrt(50/math.Pi)) > 1e-9 {
		t.Errorf("footprint radius: got %v", c.Sources[1].FootprintRadius())
	}
}

func TestSaveLoad(t *testing.T) {
	c := New()
	c.Exposure = "field-2"
	rec := c.Add(5, 6)
	rec.Kron.Flux = 123.5
	rec.Kron.Radius = 2.5
	rec.Kron.Flags = kron.UsedPSFRadius
	rec.Kron.Aperture = &kron.KronAperture{X: 5, Y: 6, EllipseParams: kron.EllipseParams{A: 15, B: 10, Theta: 0.2}, Radius: 2.5}
	c.Add(7, 8)

	filename := filepath.Join(t.TempDir(), "out.yaml")
	if err := c.Save(filename); err != nil {
		t.Fatal(err)
	}
	c2, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}

	idx := c2.Index()
	got, exists := idx[c.Sources[0].ID]
	if !exists {
		t.Fatalf("lost source %s", c.Sources[0].ID)
	}
	if got.Kron.Flux != 123.5 || got.Kron.Flags != kron.UsedPSFRadius || got.Kron.Aperture == nil || *got.Kron.Aperture != *rec.Kron.Aperture {
		t.Errorf("round trip: got %s, expected %s", got, c.Sources[0])
	}
	if !math.IsNaN(idx[c.Sources[1].ID].Kron.Flux) {
		t.Errorf("unmeasured source came back with flux %v", idx[c.Sources[1].ID].Kron.Flux)
	}
}

func TestValidate(t *testing.T) {
	c := New()
	c.Sources = []kron.Record{{ID: "a"}, {ID: "a"}}
	if err := c.Validate(); err == nil {
		t.Errorf("duplicate ids accepted")
	}

	c.Sources = []kron.Record{{ID: "a", Shape: &kron.MomentTensor{Ixx: -1, Iyy: 1}}}
	if err := c.Validate(); err == nil {
		t.Errorf("bad shape accepted")
	}

	c.Sources = []kron.Record{{}, {}}
	if n := c.AssignIDs(); n != 2 || c.Validate() != nil {
		t.Errorf("AssignIDs: assigned %d, %v", n, c.Validate())
	}
}
