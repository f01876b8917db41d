package config

import (
	"bytes"
	"fmt"

	"github.com/climatekit/ascraster/pkg/domain"

	"gopkg.in/yaml.v3"
)

// DefaultFormat is the output format used when the document selects none.
const DefaultFormat = "ASCII_raster"

// Config is the export configuration document (e.g. ascii_raster.yaml).
// Fields mirror the document keys one to one and keep their literal form:
// defaults and environment overrides are applied by Resolve, never here.
type Config struct {
	NP              Optional[int]         `yaml:"NP,omitempty"`         // degree of parallelism
	Overwrite       Optional[bool]        `yaml:"loverwrite,omitempty"` // false: recompute only if source is newer
	Modes           List[domain.Mode]     `yaml:"modes,omitempty"`
	Variables       List[string]          `yaml:"varlist,omitempty"`
	Periods         List[int]             `yaml:"periods,omitempty"` // climatology lengths in years
	Datasets        List[string]          `yaml:"datasets,omitempty"`
	Resolutions     List[string]          `yaml:"resolutions,omitempty"`
	LTM             Optional[bool]        `yaml:"lLTM,omitempty"`
	CESMProject     Optional[string]      `yaml:"CESM_project,omitempty"`
	CESMExperiments List[string]          `yaml:"CESM_experiments,omitempty"`
	Load3D          Optional[bool]        `yaml:"load3D,omitempty"`
	CESMFileTypes   List[domain.FileType] `yaml:"CESM_filetypes,omitempty"`
	WRFProject      Optional[string]      `yaml:"WRF_project,omitempty"`
	WRFExperiments  List[string]          `yaml:"WRF_experiments,omitempty"`
	Domains         List[int]             `yaml:"domains,omitempty"`
	WRFFileTypes    List[domain.FileType] `yaml:"WRF_filetypes,omitempty"`
	Pickle          Optional[bool]        `yaml:"lpickle,omitempty"`
	Grids           Grids                 `yaml:"grids,omitempty"`
	Formats         Formats               `yaml:"formats,omitempty"`

	unknownKeys []string
}

// knownKeys lists the top-level document keys in canonical order.
var knownKeys = []string{
	"NP", "loverwrite", "modes", "varlist", "periods", "datasets", "resolutions",
	"lLTM", "CESM_project", "CESM_experiments", "load3D", "CESM_filetypes",
	"WRF_project", "WRF_experiments", "domains", "WRF_filetypes", "lpickle",
	"grids", "formats",
}

// KnownKeys returns the recognised top-level keys in canonical order.
func KnownKeys() []string {
	return append([]string(nil), knownKeys...)
}

// UnknownKeys returns top-level keys that were present but not recognised,
// in document order. They are ignored by Parse.
func (c *Config) UnknownKeys() []string {
	return append([]string(nil), c.unknownKeys...)
}

// Parse decodes a configuration document. Unknown top-level keys are ignored
// and reported through UnknownKeys. An empty document yields an all-absent Config.
func Parse(data []byte) (*Config, error) {
	return parse(data, false)
}

// ParseStrict is Parse, but unknown top-level keys are an error.
func ParseStrict(data []byte) (*Config, error) {
	return parse(data, true)
}

func parse(data []byte, strict bool) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == nullTag {
		return cfg, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: configuration must be a mapping", root.Line)
	}

	pairs, err := mappingPairs(root)
	if err != nil {
		return nil, err
	}
	fields := cfg.fields()
	for _, p := range pairs {
		if _, ok := fields[p.key]; !ok {
			cfg.unknownKeys = append(cfg.unknownKeys, p.key)
		}
	}
	if strict && len(cfg.unknownKeys) > 0 {
		return nil, fmt.Errorf("unknown configuration keys: %v", cfg.unknownKeys)
	}

	// Fields are decoded one by one: yaml.v3 skips custom unmarshalers for
	// null values, which would lose the null/absent distinction.
	for _, p := range pairs {
		u, ok := fields[p.key]
		if !ok {
			continue
		}
		if err := u.UnmarshalYAML(p.value); err != nil {
			return nil, fmt.Errorf("%s: %w", p.key, err)
		}
	}
	return cfg, nil
}

// fields maps document keys to the Config field that decodes them.
func (c *Config) fields() map[string]yaml.Unmarshaler {
	return map[string]yaml.Unmarshaler{
		"NP":               &c.NP,
		"loverwrite":       &c.Overwrite,
		"modes":            &c.Modes,
		"varlist":          &c.Variables,
		"periods":          &c.Periods,
		"datasets":         &c.Datasets,
		"resolutions":      &c.Resolutions,
		"lLTM":             &c.LTM,
		"CESM_project":     &c.CESMProject,
		"CESM_experiments": &c.CESMExperiments,
		"load3D":           &c.Load3D,
		"CESM_filetypes":   &c.CESMFileTypes,
		"WRF_project":      &c.WRFProject,
		"WRF_experiments":  &c.WRFExperiments,
		"domains":          &c.Domains,
		"WRF_filetypes":    &c.WRFFileTypes,
		"lpickle":          &c.Pickle,
		"grids":            &c.Grids,
		"formats":          &c.Formats,
	}
}

// Marshal serializes the configuration in canonical key order. Absent keys are
// omitted; null and empty values, and scalar versus sequence form, are preserved,
// so Parse(Marshal(cfg)) reproduces cfg.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
