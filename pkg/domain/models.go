package domain

import (
	"fmt"
	"strings"
	"time"
)

// Family identifies the source of a dataset: a model family or observations.
type Family string

const (
	// FamilyCESM covers CESM (Community Earth System Model) experiments.
	FamilyCESM Family = "CESM"

	// FamilyWRF covers WRF (Weather Research and Forecasting) experiments.
	// WRF output is organised in nested domains (d01, d02, ...).
	FamilyWRF Family = "WRF"

	// FamilyObs covers gridded observational datasets (PRISM, GPCC, CRU, ...).
	FamilyObs Family = "OBS"
)

// IsValid returns true if the family is known.
func (f Family) IsValid() bool {
	switch f {
	case FamilyCESM, FamilyWRF, FamilyObs:
		return true
	default:
		return false
	}
}

// Mode selects which product of a dataset is exported.
type Mode string

const (
	// ModeClimatology exports monthly climatologies averaged over a period.
	ModeClimatology Mode = "climatology"

	// ModeTimeSeries exports the monthly time-series product; no period applies.
	ModeTimeSeries Mode = "time-series"
)

// IsValid returns true if the mode is a valid processing mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeClimatology, ModeTimeSeries:
		return true
	default:
		return false
	}
}

// FileType is a category of source files inside a model experiment
// (e.g. "srfc" for WRF surface fields, "atm" for CESM atmosphere).
type FileType string

// FileType3D is the only category holding 3-D fields; it is excluded unless load3D is set.
const FileType3D FileType = "plev3d"

var knownFileTypes = map[Family][]FileType{
	FamilyCESM: {"atm", "lnd", "ice", "ocn", FileType3D},
	FamilyWRF:  {"const", "srfc", "hydro", "lsm", "rad", "xtrm", FileType3D},
}

// FileTypes returns the known source file categories of a model family, in canonical order.
func FileTypes(f Family) []FileType {
	return append([]FileType(nil), knownFileTypes[f]...)
}

// IsValidFor returns true if the file type is known for the given family.
func (t FileType) IsValidFor(f Family) bool {
	for _, known := range knownFileTypes[f] {
		if t == known {
			return true
		}
	}
	return false
}

// Is3D returns true if the file type holds 3-D (pressure level) fields.
func (t FileType) Is3D() bool {
	return t == FileType3D
}

// Period is a closed-open span of years [Begin, End) used for climatologies.
type Period struct {
	Begin int `json:"begin" yaml:"begin"`
	End   int `json:"end" yaml:"end"`
}

// PeriodFromLength builds the climatology period of the given length starting at beginYear.
func PeriodFromLength(beginYear, years int) Period {
	return Period{Begin: beginYear, End: beginYear + years}
}

// Years returns the length of the period in years.
func (p Period) Years() int {
	return p.End - p.Begin
}

// String formats the period the way output folders are named, e.g. "1979-1994".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%04d", p.Begin, p.End)
}

// Dataset describes an observational dataset available for export.
// Observational records all begin in 1979 unless the catalog says otherwise.
type Dataset struct {
	Name           string   `json:"name" yaml:"name"`
	BeginYear      int      `json:"begin_year" yaml:"begin_year"`
	LTMResolutions []string `json:"ltm_resolutions" yaml:"ltm_resolutions"` // resolutions with a long-term-mean product
	TSResolutions  []string `json:"ts_resolutions" yaml:"ts_resolutions"`   // resolutions with a monthly time-series
}

// HasLTM returns true if the dataset provides any long-term-mean product.
func (d *Dataset) HasLTM() bool {
	return len(d.LTMResolutions) > 0
}

// HasTimeSeries returns true if the dataset provides any time-series product.
func (d *Dataset) HasTimeSeries() bool {
	return len(d.TSResolutions) > 0
}

// Experiment describes a model simulation (CESM or WRF).
type Experiment struct {
	Name      string `json:"name" yaml:"name"`
	Family    Family `json:"family" yaml:"family"`
	Project   string `json:"project" yaml:"project"`
	Grid      string `json:"grid" yaml:"grid"` // native grid name
	BeginYear int    `json:"begin_year" yaml:"begin_year"`
	Domains   []int  `json:"domains,omitempty" yaml:"domains,omitempty"` // WRF only
}

// HasDomain returns true if the experiment produced output for the given nested domain.
// CESM experiments have no domains and accept any request.
func (e *Experiment) HasDomain(domain int) bool {
	if e.Family != FamilyWRF {
		return true
	}
	for _, d := range e.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// GridDefinition is a target raster grid: a projection plus an affine geotransform.
// GeoTransform follows the GDAL convention (x0, dx, 0, y0, 0, dy) with y0 at the
// lower-left corner and dy positive.
type GridDefinition struct {
	Name         string     `json:"name" yaml:"name"`
	Resolution   string     `json:"resolution" yaml:"resolution"`
	Projection   string     `json:"projection" yaml:"projection"`
	Size         [2]int     `json:"size" yaml:"size,flow"` // (nx, ny)
	GeoTransform [6]float64 `json:"geotransform" yaml:"geotransform,flow"`
}

// FullName returns the grid name qualified with its resolution, e.g. "arb2_d02".
func (g *GridDefinition) FullName() string {
	return GridName(g.Name, g.Resolution)
}

// GridName joins a grid name and resolution code.
func GridName(grid, resolution string) string {
	if resolution == "" {
		return grid
	}
	return grid + "_" + resolution
}

// Job is one export unit: a single source product remapped to one target grid.
type Job struct {
	Family         Family   `json:"family"`
	Dataset        string   `json:"dataset"`         // observational dataset or experiment name
	Project        string   `json:"project"`         // model project, empty for observations
	FileType       FileType `json:"filetype"`        // model file category, empty for observations
	Domain         int      `json:"domain"`          // WRF nested domain, 0 otherwise
	Mode           Mode     `json:"mode"`
	Period         *Period  `json:"period"`          // nil for LTM and time-series products
	LTM            bool     `json:"ltm"`             // long-term-mean product of an observational dataset
	Resolution     string   `json:"resolution"`      // source resolution of an observational dataset
	Grid           string   `json:"grid"`            // target grid name
	GridResolution string   `json:"grid_resolution"` // target grid resolution code
	Variables      []string `json:"variables"`       // nil means all variables
	Load3D         bool     `json:"load3d"`
}

// Key returns a stable identifier for the job, used by the ledger and the cache.
func (j *Job) Key() string {
	parts := []string{string(j.Family), j.Dataset}
	if j.FileType != "" {
		parts = append(parts, string(j.FileType))
	}
	if j.Domain > 0 {
		parts = append(parts, fmt.Sprintf("d%02d", j.Domain))
	}
	if j.Resolution != "" {
		parts = append(parts, j.Resolution)
	}
	parts = append(parts, string(j.Mode), j.PeriodLabel(), GridName(j.Grid, j.GridResolution))
	return strings.Join(parts, "/")
}

// PeriodLabel returns the period component used in keys and output folders.
func (j *Job) PeriodLabel() string {
	switch {
	case j.Period != nil:
		return j.Period.String()
	case j.LTM:
		return "ltm"
	default:
		return "all"
	}
}

// SourceName returns the dataset name as it appears in output folders,
// e.g. "max_d02_srfc" for a WRF experiment or "GPCC_025" for observations.
func (j *Job) SourceName() string {
	name := j.Dataset
	if j.Domain > 0 {
		name = fmt.Sprintf("%s_d%02d", name, j.Domain)
	}
	if j.FileType != "" {
		name += "_" + string(j.FileType)
	}
	if j.Resolution != "" {
		name += "_" + j.Resolution
	}
	return name
}

// JobStatus represents the outcome of a job in a run.
type JobStatus string

const (
	// JobStatusPending indicates the job was planned but not yet processed.
	JobStatusPending JobStatus = "pending"

	// JobStatusDone indicates outputs were (re)written.
	JobStatusDone JobStatus = "done"

	// JobStatusSkipped indicates existing outputs were newer than the sources.
	JobStatusSkipped JobStatus = "skipped"

	// JobStatusFailed indicates the converter or a writer failed.
	JobStatusFailed JobStatus = "failed"
)

// IsValid returns true if the status is a valid job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusDone, JobStatusSkipped, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a job will not be processed again in this run.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusSkipped || s == JobStatusFailed
}

// JobRecord is the ledger entry of one job within one run.
type JobRecord struct {
	RunID      string     `json:"run_id" db:"run_id"`
	JobKey     string     `json:"job_key" db:"job_key"`
	Family     Family     `json:"family" db:"family"`
	Dataset    string     `json:"dataset" db:"dataset"`
	Grid       string     `json:"grid" db:"grid"`
	Status     JobStatus  `json:"status" db:"status"`
	Attempts   int        `json:"attempts" db:"attempts"`
	Outputs    []string   `json:"outputs" db:"outputs"`
	Error      string     `json:"error,omitempty" db:"error"`
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// NewJobRecord creates a pending ledger entry for a job.
func NewJobRecord(runID string, job *Job) *JobRecord {
	return &JobRecord{
		RunID:   runID,
		JobKey:  job.Key(),
		Family:  job.Family,
		Dataset: job.Dataset,
		Grid:    GridName(job.Grid, job.GridResolution),
		Status:  JobStatusPending,
	}
}

// Duration returns how long the job ran, or zero if it has not finished.
func (r *JobRecord) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}
