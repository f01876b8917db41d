package config

import (
	"errors"
	"fmt"

	"github.com/climatekit/ascraster/pkg/domain"
)

// Validator validates export configuration documents.
// It ensures all values are usable before any job is planned.
type Validator struct {
	knownFormats map[string]bool
}

// NewValidator creates a new Validator instance accepting the given output
// formats. With no formats, only DefaultFormat is accepted.
func NewValidator(formats ...string) *Validator {
	if len(formats) == 0 {
		formats = []string{DefaultFormat}
	}
	known := make(map[string]bool, len(formats))
	for _, f := range formats {
		known[f] = true
	}
	return &Validator{knownFormats: known}
}

// Validate performs comprehensive validation of the configuration.
// It checks for:
// - NP at least 1 when set
// - Known processing modes
// - Positive, unique climatology periods and domain indices
// - Non-empty, unique names in every string selector
// - File types known to their model family
// - Grids with at least one unique resolution code
// - Output formats with a registered writer
//
// Returns an error describing the first validation failure encountered.
func (v *Validator) Validate(cfg *Config) error {
	if np, ok := cfg.NP.Get(); ok && np < 1 {
		return fmt.Errorf("NP must be at least 1 (got %d)", np)
	}

	for _, m := range cfg.Modes.Items() {
		if !m.IsValid() {
			return fmt.Errorf("invalid mode '%s' (must be '%s' or '%s')", m, domain.ModeClimatology, domain.ModeTimeSeries)
		}
	}
	if err := unique("modes", cfg.Modes.Items()); err != nil {
		return err
	}

	if err := positiveUnique("periods", cfg.Periods.Items()); err != nil {
		return err
	}
	if err := positiveUnique("domains", cfg.Domains.Items()); err != nil {
		return err
	}

	for _, sel := range []struct {
		field string
		list  List[string]
	}{
		{"varlist", cfg.Variables},
		{"datasets", cfg.Datasets},
		{"resolutions", cfg.Resolutions},
		{"CESM_experiments", cfg.CESMExperiments},
		{"WRF_experiments", cfg.WRFExperiments},
	} {
		if err := nonEmptyUnique(sel.field, sel.list.Items()); err != nil {
			return err
		}
	}

	if p, ok := cfg.CESMProject.Get(); ok && p == "" {
		return errors.New("CESM_project cannot be an empty string (use null for all projects)")
	}
	if p, ok := cfg.WRFProject.Get(); ok && p == "" {
		return errors.New("WRF_project cannot be an empty string (use null for all projects)")
	}

	if err := v.validateFileTypes("CESM_filetypes", domain.FamilyCESM, cfg.CESMFileTypes.Items()); err != nil {
		return err
	}
	if err := v.validateFileTypes("WRF_filetypes", domain.FamilyWRF, cfg.WRFFileTypes.Items()); err != nil {
		return err
	}

	for _, g := range cfg.Grids.Entries() {
		if err := v.validateGrid(g); err != nil {
			return fmt.Errorf("invalid grid '%s': %w", g.Name, err)
		}
	}

	for _, f := range cfg.Formats.Entries() {
		if f.Name == "" {
			return errors.New("format name cannot be empty")
		}
		if !v.knownFormats[f.Name] {
			return fmt.Errorf("unsupported output format '%s'", f.Name)
		}
	}

	return nil
}

// validateFileTypes checks that every file type belongs to the family.
func (v *Validator) validateFileTypes(field string, family domain.Family, types []domain.FileType) error {
	for _, t := range types {
		if !t.IsValidFor(family) {
			return fmt.Errorf("invalid %s entry '%s' (must be one of %v)", field, t, domain.FileTypes(family))
		}
	}
	return unique(field, types)
}

// validateGrid validates a single grid entry.
func (v *Validator) validateGrid(g GridEntry) error {
	if g.Name == "" {
		return errors.New("grid name cannot be empty")
	}
	if g.Resolutions.IsAll() {
		return errors.New("grid must list at least one resolution")
	}
	return nonEmptyUnique("resolutions", g.Resolutions.Items())
}

func positiveUnique(field string, values []int) error {
	for _, n := range values {
		if n <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", field, n)
		}
	}
	return unique(field, values)
}

func nonEmptyUnique(field string, values []string) error {
	for _, s := range values {
		if s == "" {
			return fmt.Errorf("%s cannot contain empty names", field)
		}
	}
	return unique(field, values)
}

func unique[T comparable](field string, values []T) error {
	seen := make(map[T]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return fmt.Errorf("duplicate %s entry: %v", field, v)
		}
		seen[v] = true
	}
	return nil
}
