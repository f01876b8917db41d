// Package plan expands resolved export settings into the list of jobs to run.
package plan

import (
	"fmt"
	"log/slog"

	"github.com/climatekit/ascraster/pkg/catalog"
	"github.com/climatekit/ascraster/pkg/config"
	"github.com/climatekit/ascraster/pkg/domain"
	exporterrors "github.com/climatekit/ascraster/pkg/errors"
)

// Planner turns settings into jobs using the catalog of available sources.
type Planner struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewPlanner creates a new Planner instance.
func NewPlanner(c catalog.Catalog, logger *slog.Logger) *Planner {
	return &Planner{catalog: c, logger: logger}
}

// Plan expands settings into jobs. Jobs are ordered by target grid and
// resolution (document order), then mode, then observational datasets, CESM
// experiments and WRF experiments. Names that are not in the catalog are errors.
func (p *Planner) Plan(s *config.Settings) ([]*domain.Job, error) {
	datasets, err := p.datasets(s)
	if err != nil {
		return nil, err
	}
	cesm, err := p.experiments(domain.FamilyCESM, s.CESMProject, s.CESMExperiments)
	if err != nil {
		return nil, err
	}
	wrf, err := p.experiments(domain.FamilyWRF, s.WRFProject, s.WRFExperiments)
	if err != nil {
		return nil, err
	}
	if err := p.checkResolutions(datasets, s.Resolutions); err != nil {
		return nil, err
	}

	cesmTypes := fileTypes(domain.FamilyCESM, s.CESMFileTypes, s.Load3D)
	wrfTypes := fileTypes(domain.FamilyWRF, s.WRFFileTypes, s.Load3D)

	var jobs []*domain.Job
	for _, g := range s.Grids {
		for _, res := range g.Resolutions.Items() {
			if p.catalog.Grid(g.Name, res) == nil {
				return nil, exporterrors.ErrGridNotFound(g.Name, res)
			}
			target := target{grid: g.Name, resolution: res, variables: s.Variables, load3D: s.Load3D}

			for _, mode := range s.Modes {
				jobs = append(jobs, observationJobs(target, mode, datasets, s)...)
				for _, e := range cesm {
					jobs = append(jobs, modelJobs(target, mode, e, cesmTypes, []int{0}, s)...)
				}
				for _, e := range wrf {
					jobs = append(jobs, modelJobs(target, mode, e, wrfTypes, p.domains(e, s.Domains), s)...)
				}
			}
		}
	}

	p.logger.Info("Jobs planned",
		"jobs", len(jobs),
		"grids", len(s.Grids),
		"datasets", len(datasets),
		"cesm_experiments", len(cesm),
		"wrf_experiments", len(wrf),
	)

	return jobs, nil
}

type target struct {
	grid       string
	resolution string
	variables  []string
	load3D     bool
}

func (t target) job(family domain.Family, mode domain.Mode) *domain.Job {
	var vars []string
	if t.variables != nil {
		vars = append([]string(nil), t.variables...)
	}
	return &domain.Job{
		Family:         family,
		Mode:           mode,
		Grid:           t.grid,
		GridResolution: t.resolution,
		Variables:      vars,
		Load3D:         t.load3D,
	}
}

// observationJobs expands datasets x periods x source resolutions. Fixed-length
// periods and time-series use the time-series products; the LTM pass uses the
// long-term-mean products.
func observationJobs(t target, mode domain.Mode, datasets []*domain.Dataset, s *config.Settings) []*domain.Job {
	var jobs []*domain.Job
	for _, d := range datasets {
		tsRes := filter(d.TSResolutions, s.Resolutions)
		switch mode {
		case domain.ModeTimeSeries:
			for _, r := range tsRes {
				j := t.job(domain.FamilyObs, mode)
				j.Dataset, j.Resolution = d.Name, r
				jobs = append(jobs, j)
			}
		case domain.ModeClimatology:
			for _, years := range s.Periods {
				period := domain.PeriodFromLength(d.BeginYear, years)
				for _, r := range tsRes {
					j := t.job(domain.FamilyObs, mode)
					j.Dataset, j.Resolution, j.Period = d.Name, r, &period
					jobs = append(jobs, j)
				}
			}
			if s.LTM {
				for _, r := range filter(d.LTMResolutions, s.Resolutions) {
					j := t.job(domain.FamilyObs, mode)
					j.Dataset, j.Resolution, j.LTM = d.Name, r, true
					jobs = append(jobs, j)
				}
			}
		}
	}
	return jobs
}

// modelJobs expands one experiment over file types, domains and periods.
// Without fixed-length periods a climatology covers the full record.
func modelJobs(t target, mode domain.Mode, e *domain.Experiment, types []domain.FileType, domains []int, s *config.Settings) []*domain.Job {
	var periods []*domain.Period
	if mode == domain.ModeClimatology {
		for _, years := range s.Periods {
			period := domain.PeriodFromLength(e.BeginYear, years)
			periods = append(periods, &period)
		}
	}
	fullRecord := mode == domain.ModeTimeSeries || len(periods) == 0

	var jobs []*domain.Job
	for _, ft := range types {
		for _, dom := range domains {
			newJob := func(period *domain.Period) *domain.Job {
				j := t.job(e.Family, mode)
				j.Dataset, j.Project, j.FileType, j.Domain, j.Period = e.Name, e.Project, ft, dom, period
				j.LTM = period == nil && mode == domain.ModeClimatology
				return j
			}
			for _, period := range periods {
				jobs = append(jobs, newJob(period))
			}
			if fullRecord {
				jobs = append(jobs, newJob(nil))
			}
		}
	}
	return jobs
}

func (p *Planner) datasets(s *config.Settings) ([]*domain.Dataset, error) {
	if s.Datasets == nil {
		return p.usable(p.catalog.Datasets(), s, false), nil
	}
	out := make([]*domain.Dataset, 0, len(s.Datasets))
	for _, name := range s.Datasets {
		d := p.catalog.Dataset(name)
		if d == nil {
			return nil, exporterrors.ErrDatasetNotFound(name)
		}
		out = append(out, d)
	}
	return p.usable(out, s, true), nil
}

// usable drops datasets without a product for any requested mode.
func (p *Planner) usable(datasets []*domain.Dataset, s *config.Settings, explicit bool) []*domain.Dataset {
	wantTS := len(s.Periods) > 0
	wantLTM := false
	for _, m := range s.Modes {
		switch m {
		case domain.ModeTimeSeries:
			wantTS = true
		case domain.ModeClimatology:
			wantLTM = wantLTM || s.LTM
		}
	}

	out := make([]*domain.Dataset, 0, len(datasets))
	for _, d := range datasets {
		if (wantTS && d.HasTimeSeries()) || (wantLTM && d.HasLTM()) {
			out = append(out, d)
			continue
		}
		if explicit {
			p.logger.Warn("Skipping dataset without a matching product",
				"dataset", d.Name,
				"periods", s.Periods,
				"ltm", s.LTM,
			)
		}
	}
	return out
}

func (p *Planner) experiments(family domain.Family, project string, names []string) ([]*domain.Experiment, error) {
	if names == nil {
		return p.catalog.ExperimentsFor(family, project), nil
	}
	out := make([]*domain.Experiment, 0, len(names))
	for _, name := range names {
		e := p.catalog.Experiment(family, name)
		if e == nil {
			return nil, exporterrors.ErrExperimentNotFound(string(family), name)
		}
		if project != "" && e.Project != project {
			return nil, exporterrors.ErrValidationFailed(
				fmt.Sprintf("%s_experiments", family),
				fmt.Sprintf("experiment '%s' belongs to project '%s', not '%s'", name, e.Project, project),
			)
		}
		out = append(out, e)
	}
	return out, nil
}

// domains returns the requested domains the experiment has output for.
func (p *Planner) domains(e *domain.Experiment, requested []int) []int {
	if requested == nil {
		return append([]int(nil), e.Domains...)
	}
	out := make([]int, 0, len(requested))
	for _, d := range requested {
		if !e.HasDomain(d) {
			p.logger.Debug("Experiment has no such domain", "experiment", e.Name, "domain", d)
			continue
		}
		out = append(out, d)
	}
	return out
}

// checkResolutions rejects requested resolutions that no selected dataset provides.
func (p *Planner) checkResolutions(datasets []*domain.Dataset, requested []string) error {
	known := map[string]bool{}
	for _, d := range datasets {
		for _, r := range d.LTMResolutions {
			known[r] = true
		}
		for _, r := range d.TSResolutions {
			known[r] = true
		}
	}
	for _, r := range requested {
		if !known[r] {
			return exporterrors.ErrValidationFailed("resolutions", fmt.Sprintf("no selected dataset provides resolution '%s'", r))
		}
	}
	return nil
}

// fileTypes returns the selected file types, or all known ones, without 3-D
// types unless load3D is set.
func fileTypes(family domain.Family, selected []domain.FileType, load3D bool) []domain.FileType {
	if selected == nil {
		selected = domain.FileTypes(family)
	}
	out := make([]domain.FileType, 0, len(selected))
	for _, t := range selected {
		if t.Is3D() && !load3D {
			continue
		}
		out = append(out, t)
	}
	return out
}

// filter keeps the available values that are selected; nil selects all.
func filter(available, selected []string) []string {
	if selected == nil {
		return available
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	var out []string
	for _, a := range available {
		if want[a] {
			out = append(out, a)
		}
	}
	return out
}
