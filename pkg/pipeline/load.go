package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abworrall/kronflux/pkg/catalog"
)

// LoadFilesAndDirs sorts out the command line args: an exposure,
// catalogs (*.cat.yaml) and config (*.yaml). Directories are walked.
// The exposure itself is only read by Setup, once the config is known.
func (p *Pipeline) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				if err := p.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		default:
			if err := p.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (p *Pipeline) loadFile(filename string) error {
	lower := strings.ToLower(filename)

	switch {

	case strings.HasSuffix(lower, ".cat.yaml"):
		cat, err := catalog.Load(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as catalog failed: %v", filename, err)
		}
		p.Catalog = cat
		if p.Verbosity > 0 {
			log.Printf("Loaded %s from %s\n", cat, filename)
		}

	case strings.HasSuffix(lower, ".yaml"):
		cfg, err := loadConfig(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %v", filename, err)
		}
		p.Config = cfg
		log.Printf("Loaded base configuration from %s\n", filename)

	case strings.HasSuffix(lower, ".tif"), strings.HasSuffix(lower, ".tiff"), strings.HasSuffix(lower, ".hdr"):
		if p.ExposureFilename != "" && p.ExposureFilename != filename {
			return fmt.Errorf("already have an exposure (%s)", p.ExposureFilename)
		}
		p.ExposureFilename = filename

	default:
		if p.Verbosity > 1 {
			log.Printf("Ignoring %s\n", filename)
		}
	}

	return nil
}

func loadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}

	return newConfigFromYaml(contents)
}
