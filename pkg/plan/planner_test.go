package plan

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climatekit/ascraster/pkg/catalog"
	"github.com/climatekit/ascraster/pkg/config"
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
  - {name: g-ctrl, family: WRF, project: GreatLakes, grid: glb1, begin_year: 1985, domains: [1, 2, 3]}
grids:
  - {name: glb1, resolution: d01, size: [4, 3], geotransform: [0, 30, 0, 0, 0, 30]}
  - {name: glb1, resolution: d02, size: [4, 3], geotransform: [0, 10, 0, 0, 0, 10]}
`

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	f, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return NewPlanner(catalog.NewInMemoryCatalog(f, "", logger), logger)
}

func settingsFor(t *testing.T, doc string) *config.Settings {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, config.NewValidator().Validate(cfg))
	return config.Resolve(cfg, nil)
}

func keys(jobs []*domain.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Key())
	}
	return out
}

func TestPlanner_ReferenceDocument(t *testing.T) {
	p := newTestPlanner(t)
	s := settingsFor(t, `
NP: 3
modes: [climatology,]
varlist: Null
periods: [15,]
datasets: []
resolutions: Null
lLTM: true
CESM_project: Null
CESM_experiments: Null
load3D: false
CESM_filetypes: [atm, lnd]
WRF_project: Null
WRF_experiments: Null
domains: 2
WRF_filetypes: [srfc, xtrm, hydro, lsm]
grids:
  glb1: [d02,]
formats:
  ASCII_raster: Null
`)

	jobs, err := p.Plan(s)
	require.NoError(t, err)

	want := []string{
		// GPCC: one 15-year period from the time-series product, then the LTM products
		"OBS/GPCC/05/climatology/1979-1994/glb1_d02",
		"OBS/GPCC/025/climatology/ltm/glb1_d02",
		"OBS/GPCC/05/climatology/ltm/glb1_d02",
		// PRISM has no time-series, only the LTM product
		"OBS/PRISM/4km/climatology/ltm/glb1_d02",
		"CESM/ens-ctrl/atm/climatology/1979-1994/glb1_d02",
		"CESM/ens-ctrl/lnd/climatology/1979-1994/glb1_d02",
	}
	for _, ft := range []string{"srfc", "xtrm", "hydro", "lsm"} {
		want = append(want, "WRF/max-ctrl/"+ft+"/d02/climatology/1979-1994/glb1_d02")
	}
	for _, ft := range []string{"srfc", "xtrm", "hydro", "lsm"} {
		want = append(want, "WRF/g-ctrl/"+ft+"/d02/climatology/1985-2000/glb1_d02")
	}

	assert.Equal(t, want, keys(jobs))

	for _, j := range jobs {
		assert.Nil(t, j.Variables, "varlist: Null selects all variables")
		assert.False(t, j.Load3D)
	}
}

func TestPlanner_GridOrder(t *testing.T) {
	p := newTestPlanner(t)
	s := settingsFor(t, `
datasets: [PRISM]
CESM_experiments: []
WRF_experiments: [max-ctrl]
WRF_filetypes: srfc
domains: [1]
grids:
  glb1: [d02, d01]
`)
	// CESM_experiments: [] selects all CESM experiments, so restrict by file type instead.
	s.CESMFileTypes = []domain.FileType{"atm"}

	jobs, err := p.Plan(s)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"OBS/PRISM/4km/climatology/ltm/glb1_d02",
		"CESM/ens-ctrl/atm/climatology/ltm/glb1_d02",
		"WRF/max-ctrl/srfc/d01/climatology/ltm/glb1_d02",
		"OBS/PRISM/4km/climatology/ltm/glb1_d01",
		"CESM/ens-ctrl/atm/climatology/ltm/glb1_d01",
		"WRF/max-ctrl/srfc/d01/climatology/ltm/glb1_d01",
	}, keys(jobs))
}

func TestPlanner_NoPeriodsWithoutLTM(t *testing.T) {
	p := newTestPlanner(t)
	s := settingsFor(t, `
lLTM: false
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_experiments: [max-ctrl]
WRF_filetypes: [srfc]
domains: [1]
grids:
  glb1: [d02]
`)

	jobs, err := p.Plan(s)
	require.NoError(t, err)

	// no observational product applies; model climatologies cover the full record
	assert.Equal(t, []string{
		"CESM/ens-ctrl/atm/climatology/ltm/glb1_d02",
		"WRF/max-ctrl/srfc/d01/climatology/ltm/glb1_d02",
	}, keys(jobs))
}

func TestPlanner_TimeSeries(t *testing.T) {
	p := newTestPlanner(t)
	s := settingsFor(t, `
modes: [time-series]
periods: [5, 10]
datasets: [GPCC]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_experiments: [max-ctrl]
WRF_filetypes: [srfc]
domains: [2]
grids:
  glb1: [d02]
`)

	jobs, err := p.Plan(s)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"OBS/GPCC/05/time-series/all/glb1_d02",
		"CESM/ens-ctrl/atm/time-series/all/glb1_d02",
		"WRF/max-ctrl/srfc/d02/time-series/all/glb1_d02",
	}, keys(jobs))
	for _, j := range jobs {
		assert.Nil(t, j.Period, "time-series jobs have no period")
	}
}

func TestPlanner_Filters(t *testing.T) {
	p := newTestPlanner(t)

	t.Run("resolutions restrict observational sources", func(t *testing.T) {
		s := settingsFor(t, `
datasets: [GPCC]
resolutions: ['025']
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_experiments: [max-ctrl]
WRF_filetypes: [srfc]
domains: [1]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		assert.Contains(t, keys(jobs), "OBS/GPCC/025/climatology/ltm/glb1_d02")
		assert.NotContains(t, keys(jobs), "OBS/GPCC/05/climatology/ltm/glb1_d02")
	})

	t.Run("project restricts experiments", func(t *testing.T) {
		s := settingsFor(t, `
datasets: [PRISM]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_project: GreatLakes
WRF_filetypes: [srfc]
domains: [3]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		assert.Contains(t, keys(jobs), "WRF/g-ctrl/srfc/d03/climatology/ltm/glb1_d02")
		for _, j := range jobs {
			assert.NotEqual(t, "max-ctrl", j.Dataset)
		}
	})

	t.Run("missing domains are skipped", func(t *testing.T) {
		s := settingsFor(t, `
datasets: [PRISM]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_filetypes: [srfc]
domains: [3]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		for _, j := range jobs {
			if j.Family == domain.FamilyWRF {
				assert.Equal(t, "g-ctrl", j.Dataset, "only g-ctrl has a third domain")
			}
		}
	})

	t.Run("default domains stop at d02", func(t *testing.T) {
		s := settingsFor(t, `
datasets: [PRISM]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_experiments: [g-ctrl]
WRF_filetypes: [srfc]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		assert.Contains(t, keys(jobs), "WRF/g-ctrl/srfc/d01/climatology/ltm/glb1_d02")
		assert.Contains(t, keys(jobs), "WRF/g-ctrl/srfc/d02/climatology/ltm/glb1_d02")
		assert.NotContains(t, keys(jobs), "WRF/g-ctrl/srfc/d03/climatology/ltm/glb1_d02")
	})

	t.Run("3-D file types need load3D", func(t *testing.T) {
		s := settingsFor(t, `
datasets: [PRISM]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm, plev3d]
WRF_experiments: [max-ctrl]
WRF_filetypes: [srfc]
domains: [1]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		assert.NotContains(t, keys(jobs), "CESM/ens-ctrl/plev3d/climatology/ltm/glb1_d02")

		s.Load3D = true
		jobs, err = p.Plan(s)
		require.NoError(t, err)
		assert.Contains(t, keys(jobs), "CESM/ens-ctrl/plev3d/climatology/ltm/glb1_d02")
	})

	t.Run("varlist is copied into every job", func(t *testing.T) {
		s := settingsFor(t, `
varlist: [precip, T2]
datasets: [PRISM]
CESM_experiments: [ens-ctrl]
CESM_filetypes: [atm]
WRF_experiments: [max-ctrl]
WRF_filetypes: [srfc]
domains: [1]
grids:
  glb1: [d02]
`)
		jobs, err := p.Plan(s)
		require.NoError(t, err)
		require.NotEmpty(t, jobs)
		for _, j := range jobs {
			assert.Equal(t, []string{"precip", "T2"}, j.Variables)
		}
		jobs[0].Variables[0] = "changed"
		assert.Equal(t, "precip", jobs[1].Variables[0])
	})
}

func TestPlanner_Errors(t *testing.T) {
	p := newTestPlanner(t)

	tests := []struct {
		name string
		doc  string
		code string
	}{
		{
			name: "unknown grid resolution",
			doc:  "grids:\n  glb1: [d03]\n",
			code: exporterrors.ErrCodeGridNotFound,
		},
		{
			name: "unknown grid",
			doc:  "grids:\n  arb9: [d01]\n",
			code: exporterrors.ErrCodeGridNotFound,
		},
		{
			name: "unknown dataset",
			doc:  "datasets: [NOAA]\ngrids:\n  glb1: [d01]\n",
			code: exporterrors.ErrCodeDatasetNotFound,
		},
		{
			name: "unknown WRF experiment",
			doc:  "WRF_experiments: [max-2100]\ngrids:\n  glb1: [d01]\n",
			code: exporterrors.ErrCodeExperimentNotFound,
		},
		{
			name: "experiment outside project",
			doc:  "WRF_project: GreatLakes\nWRF_experiments: [max-ctrl]\ngrids:\n  glb1: [d01]\n",
			code: exporterrors.ErrCodeValidationFailed,
		},
		{
			name: "unknown resolution",
			doc:  "resolutions: ['10']\ngrids:\n  glb1: [d01]\n",
			code: exporterrors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(settingsFor(t, tt.doc))
			require.Error(t, err)
			assert.True(t, exporterrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestPlanner_NoGrids(t *testing.T) {
	p := newTestPlanner(t)
	jobs, err := p.Plan(settingsFor(t, ""))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
