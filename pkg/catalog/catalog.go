package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/climatekit/ascraster/pkg/domain"
	exporterrors "github.com/climatekit/ascraster/pkg/errors"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Catalog provides O(1) lookups of the datasets, experiments and grids
// that can be exported. All lookups are read-only and thread-safe.
type Catalog interface {
	// Dataset retrieves an observational dataset by name.
	// Returns nil if the dataset does not exist.
	Dataset(name string) *domain.Dataset

	// Datasets returns all observational datasets in catalog order.
	Datasets() []*domain.Dataset

	// Experiment retrieves a model experiment of a family by name.
	// Returns nil if the experiment does not exist.
	Experiment(family domain.Family, name string) *domain.Experiment

	// ExperimentsFor returns the experiments of a family in catalog order,
	// restricted to one project unless project is empty.
	ExperimentsFor(family domain.Family, project string) []*domain.Experiment

	// Grid retrieves a target grid definition by name and resolution code.
	// Returns nil if the grid does not exist.
	Grid(name, resolution string) *domain.GridDefinition

	// Reload rebuilds the catalog from its source file.
	Reload() error
}

// File is the on-disk catalog document.
type File struct {
	Datasets    []*domain.Dataset        `yaml:"datasets"`
	Experiments []*domain.Experiment     `yaml:"experiments"`
	Grids       []*domain.GridDefinition `yaml:"grids"`
}

// Default returns the catalog compiled into the binary.
func Default() (*File, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*File, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", exporterrors.ErrConfigNotFound(path, err))
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a catalog document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	f := &File{}
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, exporterrors.ErrConfigMalformed(err)
	}
	if err := f.Validate(); err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrCodeConfigInvalid, "invalid catalog", err)
	}
	return f, nil
}

// Validate checks names are unique and grids are usable as raster targets.
func (f *File) Validate() error {
	datasets := make(map[string]bool, len(f.Datasets))
	for _, d := range f.Datasets {
		if d.Name == "" {
			return errors.New("dataset name cannot be empty")
		}
		if datasets[d.Name] {
			return fmt.Errorf("duplicate dataset '%s'", d.Name)
		}
		datasets[d.Name] = true
		if d.BeginYear <= 0 {
			return fmt.Errorf("dataset '%s': begin_year must be positive", d.Name)
		}
	}

	experiments := make(map[string]bool, len(f.Experiments))
	for _, e := range f.Experiments {
		if e.Name == "" {
			return errors.New("experiment name cannot be empty")
		}
		if e.Family != domain.FamilyCESM && e.Family != domain.FamilyWRF {
			return fmt.Errorf("experiment '%s': family must be '%s' or '%s'", e.Name, domain.FamilyCESM, domain.FamilyWRF)
		}
		key := experimentKey(e.Family, e.Name)
		if experiments[key] {
			return fmt.Errorf("duplicate %s experiment '%s'", e.Family, e.Name)
		}
		experiments[key] = true
		if e.BeginYear <= 0 {
			return fmt.Errorf("experiment '%s': begin_year must be positive", e.Name)
		}
		if e.Family == domain.FamilyWRF && len(e.Domains) == 0 {
			return fmt.Errorf("WRF experiment '%s' must list its domains", e.Name)
		}
	}

	grids := make(map[string]bool, len(f.Grids))
	for _, g := range f.Grids {
		if g.Name == "" || g.Resolution == "" {
			return errors.New("grid name and resolution cannot be empty")
		}
		if grids[g.FullName()] {
			return fmt.Errorf("duplicate grid '%s'", g.FullName())
		}
		grids[g.FullName()] = true
		if g.Size[0] <= 0 || g.Size[1] <= 0 {
			return fmt.Errorf("grid '%s': size must be positive", g.FullName())
		}
		// ArcInfo rasters carry a single cell size.
		if g.GeoTransform[1] <= 0 || g.GeoTransform[1] != g.GeoTransform[5] {
			return fmt.Errorf("grid '%s': cells must be square with positive size", g.FullName())
		}
	}

	return nil
}

func experimentKey(family domain.Family, name string) string {
	return string(family) + "/" + name
}
