// Package catalog reads and writes lists of sources as YAML.
package catalog

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/kronflux/pkg/kron"
)

/* Example catalog file ...

exposure: field-0042
sources:
- id: 6f1c2a4e-0b8e-4f51-9a57-1f1dc0a0b1d2
  x: 532.4
  y: 1201.9
  shape: {ixx: 4.1, ixy: 0.3, iyy: 3.8}
  footprintArea: 97
- id: star-2
  x: 88
  y: 61

*/

type Catalog struct {
	Exposure string        `yaml:"exposure,omitempty"` // name of the exposure the sources were measured on
	Sources  []kron.Record `yaml:"sources"`
}

func New() *Catalog {
	return &Catalog{Sources: []kron.Record{}}
}

func (c *Catalog) String() string {
	nFailed := 0
	for _, rec := range c.Sources {
		if rec.Kron.Failed() {
			nFailed++
		}
	}
	return fmt.Sprintf("Catalog[%s, %d sources, %d failed]", c.Exposure, len(c.Sources), nFailed)
}

// Add appends a source at (x,y), giving it a fresh ID.
func (c *Catalog) Add(x, y float64) *kron.Record {
	c.Sources = append(c.Sources, kron.Record{ID: uuid.NewString(), X: x, Y: y, Kron: kron.NewFluxResult()})
	return &c.Sources[len(c.Sources)-1]
}

// AssignIDs gives every source without an ID a random one, and returns
// how many it had to assign.
func (c *Catalog) AssignIDs() int {
	n := 0
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = uuid.NewString()
			n++
		}
	}
	return n
}

// Index maps IDs to sources. The pointers are into c.Sources, so are
// invalidated by Add.
func (c *Catalog) Index() map[string]*kron.Record {
	idx := map[string]*kron.Record{}
	for i := range c.Sources {
		idx[c.Sources[i].ID] = &c.Sources[i]
	}
	return idx
}

func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for i, rec := range c.Sources {
		if rec.ID == "" {
			return fmt.Errorf("source %d has no id", i)
		} else if seen[rec.ID] {
			return fmt.Errorf("source %d: duplicate id '%s'", i, rec.ID)
		}
		seen[rec.ID] = true

		if rec.Shape != nil {
			if err := rec.Shape.Validate(); err != nil {
				return fmt.Errorf("source %s: %v", rec.ID, err)
			}
		}
	}
	return nil
}

func (c *Catalog) AsYaml() (string, error) {
	b, err := yaml.Marshal(c)
	return string(b), err
}

// Load reads a catalog. Sources missing an ID get one, and anything
// never measured starts with NaN results.
func Load(filename string) (*Catalog, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("catalog read %s: %v", filename, err)
	}

	c := New()
	if err := yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("catalog parse %s: %v", filename, err)
	}
	for i := range c.Sources {
		if c.Sources[i].Kron.Aperture == nil && c.Sources[i].Kron.Flags == 0 && c.Sources[i].Kron.Flux == 0 {
			c.Sources[i].Kron = kron.NewFluxResult()
		}
	}
	c.AssignIDs()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %v", filename, err)
	}
	return c, nil
}

func (c *Catalog) Save(filename string) error {
	str, err := c.AsYaml()
	if err != nil {
		return fmt.Errorf("catalog marshal: %v", err)
	}
	if err := os.WriteFile(filename, []byte(str), 0644); err != nil {
		return fmt.Errorf("catalog write %s: %v", filename, err)
	}
	return nil
}
