package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"

	"github.com/climatekit/ascraster/pkg/domain"
)

// DefaultNP is the worker count used when neither PYAVG_THREADS nor NP is set.
const DefaultNP = 4

// DefaultDomains are the WRF domains exported when the document selects none.
var DefaultDomains = []int{1, 2}

// Environment holds the process environment consulted by Resolve.
// PYAVG_* variables take precedence over the document.
type Environment struct {
	Threads   *int    `env:"PYAVG_THREADS"`
	Debug     *string `env:"PYAVG_DEBUG"`     // "DEBUG" enables debug mode
	Overwrite *string `env:"PYAVG_OVERWRITE"` // "OVERWRITE" forces recomputation

	OutputDir   string `env:"ASCRASTER_OUTPUT_DIR" envDefault:"ascii_raster"`
	CacheDir    string `env:"ASCRASTER_CACHE_DIR" envDefault:".ascraster-cache"`
	CatalogPath string `env:"ASCRASTER_CATALOG"`
}

// LoadEnvironment reads the Environment from the process environment.
func LoadEnvironment() (*Environment, error) {
	e := &Environment{}
	if err := env.Parse(e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}

// ParseEnvironment reads the Environment from an explicit variable map.
func ParseEnvironment(vars map[string]string) (*Environment, error) {
	e := &Environment{}
	if err := env.ParseWithOptions(e, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}

// Settings are the effective values of a Config after defaults and
// environment overrides. Selector fields stay nil when they select everything.
type Settings struct {
	NP          int
	Debug       bool
	Overwrite   bool
	Modes       []domain.Mode
	Variables   []string // nil: all variables
	Periods     []int    // nil: no fixed-length climatologies
	Datasets    []string // nil: all observational datasets
	Resolutions []string // nil: all observational source resolutions
	LTM         bool
	Load3D      bool
	Pickle      bool

	CESMProject     string // empty: all projects
	CESMExperiments []string
	CESMFileTypes   []domain.FileType
	WRFProject      string
	WRFExperiments  []string
	WRFFileTypes    []domain.FileType
	Domains         []int // DefaultDomains when the document selects none

	Grids   []GridEntry
	Formats []FormatEntry

	OutputDir   string
	CacheDir    string
	CatalogPath string
}

// Resolve computes effective settings. cfg is not modified.
//
// Precedence for NP is PYAVG_THREADS, then the document, then DefaultNP.
// Overwrite follows PYAVG_OVERWRITE when it is present, then the document,
// and finally falls back to debug mode.
func Resolve(cfg *Config, e *Environment) *Settings {
	if e == nil {
		e = &Environment{OutputDir: "ascii_raster", CacheDir: ".ascraster-cache"}
	}

	s := &Settings{
		NP:          cfg.NP.Or(DefaultNP),
		LTM:         cfg.LTM.Or(true),
		Load3D:      cfg.Load3D.Or(false),
		Pickle:      cfg.Pickle.Or(true),
		CESMProject: cfg.CESMProject.Or(""),
		WRFProject:  cfg.WRFProject.Or(""),
		OutputDir:   e.OutputDir,
		CacheDir:    e.CacheDir,
		CatalogPath: e.CatalogPath,
	}

	if e.Threads != nil && *e.Threads > 0 {
		s.NP = *e.Threads
	}
	if e.Debug != nil {
		s.Debug = *e.Debug == "DEBUG"
	}
	switch {
	case e.Overwrite != nil:
		s.Overwrite = *e.Overwrite == "OVERWRITE"
	case cfg.Overwrite.IsSet():
		s.Overwrite = cfg.Overwrite.Or(false)
	default:
		s.Overwrite = s.Debug
	}

	s.Modes = cfg.Modes.Items()
	if cfg.Modes.IsAll() {
		s.Modes = []domain.Mode{domain.ModeClimatology}
	}

	s.Variables = selection(cfg.Variables)
	s.Periods = selection(cfg.Periods)
	s.Datasets = selection(cfg.Datasets)
	s.Resolutions = selection(cfg.Resolutions)
	s.CESMExperiments = selection(cfg.CESMExperiments)
	s.CESMFileTypes = selection(cfg.CESMFileTypes)
	s.WRFExperiments = selection(cfg.WRFExperiments)
	s.WRFFileTypes = selection(cfg.WRFFileTypes)
	s.Domains = selection(cfg.Domains)
	if s.Domains == nil {
		s.Domains = append([]int(nil), DefaultDomains...)
	}

	s.Grids = cfg.Grids.Entries()

	s.Formats = cfg.Formats.Entries()
	if len(s.Formats) == 0 {
		s.Formats = []FormatEntry{{Name: DefaultFormat}}
	}

	return s
}

// selection returns nil for a selector that selects everything.
func selection[T any](l List[T]) []T {
	if l.IsAll() {
		return nil
	}
	return l.Items()
}
