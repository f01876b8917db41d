package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climatekit/ascraster/pkg/domain"
	exporterrors "github.com/climatekit/ascraster/pkg/errors"
)

const testCatalog = `
datasets:
  - {name: GPCC, begin_year: 1979, ltm_resolutions: ['025', '05'], ts_resolutions: ['05']}
  - {name: PRISM, begin_year: 1979, ltm_resolutions: ['4km'], ts_resolutions: []}
experiments:
  - {name: ens-ctrl, family: CESM, project: CESM, grid: cesm1x1, begin_year: 1979}
  - {name: max-ctrl, family: WRF, project: WesternCanada, grid: arb2, begin_year: 1979, domains: [1, 2]}
  - {name: g-ctrl, family: WRF, project: GreatLakes, grid: glb1, begin_year: 1979, domains: [1, 2]}
grids:
  - {name: glb1, resolution: d02, projection: '+proj=lcc', size: [4, 3], geotransform: [0, 10, 0, 0, 0, 10]}
`

func newTestCatalog(t *testing.T) *InMemoryCatalog {
	t.Helper()
	f, err := Parse([]byte(testCatalog))
	require.NoError(t, err)
	return NewInMemoryCatalog(f, "", slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestDefault(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, f.Datasets)
	assert.NotEmpty(t, f.Experiments)
	assert.NotEmpty(t, f.Grids)

	c := NewInMemoryCatalog(f, "", slog.New(slog.NewTextHandler(os.Stdout, nil)))
	g := c.Grid("glb1", "d02")
	require.NotNil(t, g, "reference grid glb1_d02 must be built in")
	assert.Equal(t, "glb1_d02", g.FullName())
	assert.NotNil(t, c.Dataset("GPCC"))
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses built-in catalog", func(t *testing.T) {
		f, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, f.Grids)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0600))

		f, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, f.Datasets, 2)
		assert.Len(t, f.Experiments, 3)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/catalog.yaml")
		require.Error(t, err)
		assert.True(t, exporterrors.HasCode(err, exporterrors.ErrCodeConfigNotFound))
	})
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{
			name:   "unknown field",
			doc:    "datasets:\n  - {name: GPCC, begin_year: 1979, colour: red}\n",
			errMsg: "colour",
		},
		{
			name:   "duplicate dataset",
			doc:    "datasets:\n  - {name: GPCC, begin_year: 1979}\n  - {name: GPCC, begin_year: 1979}\n",
			errMsg: "duplicate dataset 'GPCC'",
		},
		{
			name:   "observational family for experiment",
			doc:    "experiments:\n  - {name: x, family: OBS, begin_year: 1979}\n",
			errMsg: "family must be",
		},
		{
			name:   "WRF experiment without domains",
			doc:    "experiments:\n  - {name: x, family: WRF, begin_year: 1979}\n",
			errMsg: "must list its domains",
		},
		{
			name:   "duplicate experiment",
			doc:    "experiments:\n  - {name: x, family: CESM, begin_year: 1979}\n  - {name: x, family: CESM, begin_year: 1980}\n",
			errMsg: "duplicate CESM experiment 'x'",
		},
		{
			name:   "non-square cells",
			doc:    "grids:\n  - {name: g, resolution: r, size: [2, 2], geotransform: [0, 1, 0, 0, 0, 2]}\n",
			errMsg: "cells must be square",
		},
		{
			name:   "empty grid size",
			doc:    "grids:\n  - {name: g, resolution: r, size: [0, 2], geotransform: [0, 1, 0, 0, 0, 1]}\n",
			errMsg: "size must be positive",
		},
		{
			name:   "wrong geotransform length",
			doc:    "grids:\n  - {name: g, resolution: r, size: [2, 2], geotransform: [0, 1, 0]}\n",
			errMsg: "array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Parse() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestInMemoryCatalog_Lookups(t *testing.T) {
	c := newTestCatalog(t)

	t.Run("dataset", func(t *testing.T) {
		d := c.Dataset("GPCC")
		require.NotNil(t, d)
		assert.Equal(t, []string{"025", "05"}, d.LTMResolutions)
		assert.Nil(t, c.Dataset("nonexistent"))
	})

	t.Run("datasets keep catalog order", func(t *testing.T) {
		names := []string{}
		for _, d := range c.Datasets() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"GPCC", "PRISM"}, names)
	})

	t.Run("experiment is family scoped", func(t *testing.T) {
		assert.NotNil(t, c.Experiment(domain.FamilyWRF, "max-ctrl"))
		assert.Nil(t, c.Experiment(domain.FamilyCESM, "max-ctrl"))
	})

	t.Run("experiments by project", func(t *testing.T) {
		assert.Len(t, c.ExperimentsFor(domain.FamilyWRF, ""), 2)

		glb := c.ExperimentsFor(domain.FamilyWRF, "GreatLakes")
		require.Len(t, glb, 1)
		assert.Equal(t, "g-ctrl", glb[0].Name)

		assert.Empty(t, c.ExperimentsFor(domain.FamilyCESM, "GreatLakes"))
	})

	t.Run("grid", func(t *testing.T) {
		g := c.Grid("glb1", "d02")
		require.NotNil(t, g)
		assert.Equal(t, [2]int{4, 3}, g.Size)
		assert.Nil(t, c.Grid("glb1", "d01"))
	})
}

func TestInMemoryCatalog_Reload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0600))

	f, err := Load(path)
	require.NoError(t, err)
	c := NewInMemoryCatalog(f, path, logger)
	require.Nil(t, c.Dataset("CRU"))

	updated := testCatalog + "  - {name: glb1, resolution: d01, size: [2, 2], geotransform: [0, 30, 0, 0, 0, 30]}\n"
	updated = strings.Replace(updated, "datasets:\n", "datasets:\n  - {name: CRU, begin_year: 1979, ts_resolutions: ['05']}\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	require.NoError(t, c.Reload())
	assert.NotNil(t, c.Dataset("CRU"))
	assert.NotNil(t, c.Grid("glb1", "d01"))

	t.Run("invalid file keeps current contents", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("datasets: {broken"), 0600))
		assert.Error(t, c.Reload())
		assert.NotNil(t, c.Dataset("CRU"))
	})
}

func TestInMemoryCatalog_ConcurrentReads(t *testing.T) {
	c := newTestCatalog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Dataset("GPCC")
			_ = c.ExperimentsFor(domain.FamilyWRF, "")
			_ = c.Grid("glb1", "d02")
		}()
	}
	wg.Wait()
}
