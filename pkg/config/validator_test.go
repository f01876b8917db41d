package config

import (
	"strings"
	"testing"

	"github.com/climatekit/ascraster/pkg/domain"
)

func TestValidator_Validate(t *testing.T) {
	validGrids := GridsOf(GridEntry{Name: "glb1", Resolutions: ListOf("d02")})

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: &Config{
				NP:            Some(3),
				Overwrite:     Some(false),
				Modes:         ListOf(domain.ModeClimatology),
				Variables:     NullList[string](),
				Periods:       ListOf(15),
				Datasets:      ListOf[string](),
				LTM:           Some(true),
				CESMFileTypes: ListOf[domain.FileType]("atm", "lnd"),
				Domains:       ListOf(2),
				WRFFileTypes:  ListOf[domain.FileType]("srfc", "xtrm", "hydro", "lsm"),
				Grids:         validGrids,
				Formats:       FormatsOf(FormatEntry{Name: DefaultFormat}),
			},
			wantErr: false,
		},
		{
			name:    "empty config",
			config:  &Config{},
			wantErr: false,
		},
		{
			name:    "zero NP",
			config:  &Config{NP: Some(0)},
			wantErr: true,
			errMsg:  "NP must be at least 1",
		},
		{
			name:    "null NP falls back to default",
			config:  &Config{NP: Null[int]()},
			wantErr: false,
		},
		{
			name:    "invalid mode",
			config:  &Config{Modes: ListOf[domain.Mode]("daily")},
			wantErr: true,
			errMsg:  "invalid mode 'daily'",
		},
		{
			name:    "duplicate mode",
			config:  &Config{Modes: ListOf(domain.ModeClimatology, domain.ModeClimatology)},
			wantErr: true,
			errMsg:  "duplicate modes entry",
		},
		{
			name:    "negative period",
			config:  &Config{Periods: ListOf(15, -5)},
			wantErr: true,
			errMsg:  "periods must be positive",
		},
		{
			name:    "duplicate period",
			config:  &Config{Periods: ListOf(15, 15)},
			wantErr: true,
			errMsg:  "duplicate periods entry: 15",
		},
		{
			name:    "zero domain",
			config:  &Config{Domains: ListOf(0)},
			wantErr: true,
			errMsg:  "domains must be positive",
		},
		{
			name:    "empty variable name",
			config:  &Config{Variables: ListOf("precip", "")},
			wantErr: true,
			errMsg:  "varlist cannot contain empty names",
		},
		{
			name:    "duplicate dataset",
			config:  &Config{Datasets: ListOf("PRISM", "PRISM")},
			wantErr: true,
			errMsg:  "duplicate datasets entry: PRISM",
		},
		{
			name:    "duplicate WRF experiment",
			config:  &Config{WRFExperiments: ListOf("max-ctrl", "max-ctrl")},
			wantErr: true,
			errMsg:  "duplicate WRF_experiments entry",
		},
		{
			name:    "empty CESM project",
			config:  &Config{CESMProject: Some("")},
			wantErr: true,
			errMsg:  "CESM_project cannot be an empty string",
		},
		{
			name:    "empty WRF project",
			config:  &Config{WRFProject: Some("")},
			wantErr: true,
			errMsg:  "WRF_project cannot be an empty string",
		},
		{
			name:    "WRF file type in CESM list",
			config:  &Config{CESMFileTypes: ListOf[domain.FileType]("atm", "srfc")},
			wantErr: true,
			errMsg:  "invalid CESM_filetypes entry 'srfc'",
		},
		{
			name:    "CESM file type in WRF list",
			config:  &Config{WRFFileTypes: ListOf[domain.FileType]("lnd")},
			wantErr: true,
			errMsg:  "invalid WRF_filetypes entry 'lnd'",
		},
		{
			name:    "3-D file type accepted",
			config:  &Config{WRFFileTypes: ListOf[domain.FileType]("srfc", domain.FileType3D), Load3D: Some(true)},
			wantErr: false,
		},
		{
			name:    "grid without resolutions",
			config:  &Config{Grids: GridsOf(GridEntry{Name: "glb1", Resolutions: NullList[string]()})},
			wantErr: true,
			errMsg:  "invalid grid 'glb1': grid must list at least one resolution",
		},
		{
			name:    "grid with empty resolution list",
			config:  &Config{Grids: GridsOf(GridEntry{Name: "glb1", Resolutions: ListOf[string]()})},
			wantErr: true,
			errMsg:  "grid must list at least one resolution",
		},
		{
			name:    "grid with duplicate resolutions",
			config:  &Config{Grids: GridsOf(GridEntry{Name: "arb3", Resolutions: ListOf("d01", "d01")})},
			wantErr: true,
			errMsg:  "duplicate resolutions entry: d01",
		},
		{
			name:    "grid with empty name",
			config:  &Config{Grids: GridsOf(GridEntry{Name: "", Resolutions: ListOf("d01")})},
			wantErr: true,
			errMsg:  "grid name cannot be empty",
		},
		{
			name:    "unsupported format",
			config:  &Config{Grids: validGrids, Formats: FormatsOf(FormatEntry{Name: "NetCDF"})},
			wantErr: true,
			errMsg:  "unsupported output format 'NetCDF'",
		},
		{
			name:    "empty format name",
			config:  &Config{Formats: FormatsOf(FormatEntry{Name: ""})},
			wantErr: true,
			errMsg:  "format name cannot be empty",
		},
		{
			name: "first failure wins",
			config: &Config{
				NP:      Some(-1),
				Periods: ListOf(0),
			},
			wantErr: true,
			errMsg:  "NP must be at least 1",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.config)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.errMsg)
					return
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestValidator_KnownFormats(t *testing.T) {
	cfg := &Config{Formats: FormatsOf(FormatEntry{Name: "NetCDF"}, FormatEntry{Name: DefaultFormat})}

	if err := NewValidator().Validate(cfg); err == nil {
		t.Error("default validator should reject NetCDF")
	}

	if err := NewValidator(DefaultFormat, "NetCDF").Validate(cfg); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
}

func TestValidator_ReferenceDocument(t *testing.T) {
	cfg, err := Parse(readFixture(t))
	if err != nil {
		t.Fatalf("Parse() unexpected error = %v", err)
	}

	if err := NewValidator().Validate(cfg); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
}
