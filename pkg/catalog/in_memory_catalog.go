package catalog

import (
	"log/slog"
	"sync"

	"github.com/climatekit/ascraster/pkg/domain"
)

var _ Catalog = (*InMemoryCatalog)(nil)

// InMemoryCatalog provides O(1) in-memory lookups of catalog entries.
// All maps are built at construction and provide thread-safe read access.
type InMemoryCatalog struct {
	datasetsByName   map[string]*domain.Dataset        // "GPCC" -> Dataset
	experimentsByKey map[string]*domain.Experiment     // "WRF/max-ctrl" -> Experiment
	gridsByName      map[string]*domain.GridDefinition // "glb1_d02" -> GridDefinition
	datasets         []*domain.Dataset                 // All datasets (ordered)
	experiments      []*domain.Experiment              // All experiments (ordered)
	catalogPath      string                            // Path to catalog file, empty for the built-in one
	mu               sync.RWMutex                      // Protects all maps
	logger           *slog.Logger
}

// NewInMemoryCatalog creates a new catalog from a validated catalog file.
//
// Parameters:
//   - f: Validated catalog document
//   - catalogPath: Path the document was loaded from (used by Reload)
//   - logger: Structured logger for operational logging
func NewInMemoryCatalog(f *File, catalogPath string, logger *slog.Logger) *InMemoryCatalog {
	c := &InMemoryCatalog{
		catalogPath: catalogPath,
		logger:      logger,
	}

	c.build(f)

	return c
}

// build replaces all indexes with the contents of f.
func (c *InMemoryCatalog) build(f *File) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.datasetsByName = make(map[string]*domain.Dataset, len(f.Datasets))
	c.experimentsByKey = make(map[string]*domain.Experiment, len(f.Experiments))
	c.gridsByName = make(map[string]*domain.GridDefinition, len(f.Grids))
	c.datasets = make([]*domain.Dataset, 0, len(f.Datasets))
	c.experiments = make([]*domain.Experiment, 0, len(f.Experiments))

	for _, d := range f.Datasets {
		c.datasetsByName[d.Name] = d
		c.datasets = append(c.datasets, d)
	}
	for _, e := range f.Experiments {
		c.experimentsByKey[experimentKey(e.Family, e.Name)] = e
		c.experiments = append(c.experiments, e)
	}
	for _, g := range f.Grids {
		c.gridsByName[g.FullName()] = g
	}

	c.logger.Info("Catalog built successfully",
		"datasets", len(c.datasets),
		"experiments", len(c.experiments),
		"grids", len(c.gridsByName),
	)
}

// Dataset retrieves an observational dataset by name.
func (c *InMemoryCatalog) Dataset(name string) *domain.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.datasetsByName[name]
}

// Datasets returns all observational datasets in catalog order.
func (c *InMemoryCatalog) Datasets() []*domain.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]*domain.Dataset(nil), c.datasets...)
}

// Experiment retrieves a model experiment of a family by name.
func (c *InMemoryCatalog) Experiment(family domain.Family, name string) *domain.Experiment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.experimentsByKey[experimentKey(family, name)]
}

// ExperimentsFor returns the experiments of a family, optionally restricted
// to a project. Time complexity: O(n) in the number of experiments.
func (c *InMemoryCatalog) ExperimentsFor(family domain.Family, project string) []*domain.Experiment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Experiment, 0, len(c.experiments))
	for _, e := range c.experiments {
		if e.Family != family {
			continue
		}
		if project != "" && e.Project != project {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Grid retrieves a target grid definition by name and resolution code.
func (c *InMemoryCatalog) Grid(name, resolution string) *domain.GridDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.gridsByName[domain.GridName(name, resolution)]
}

// Reload rebuilds the catalog from its source file, or from the built-in
// catalog when it was not loaded from disk. On error the current contents are kept.
func (c *InMemoryCatalog) Reload() error {
	f, err := Load(c.catalogPath)
	if err != nil {
		return err
	}

	c.build(f)

	c.logger.Info("Catalog reloaded successfully", "catalog_path", c.catalogPath)

	return nil
}
