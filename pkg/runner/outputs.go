package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/climatekit/ascraster/pkg/config"
	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/format"
)

// DebugPrefix is prepended to every output file name in debug mode.
const DebugPrefix = "test_"

// OutputDir returns the folder holding a job's rasters in one format:
//
//	<root>/<format>/<dataset>_<grid>/<mode>[_<period>]
//
// e.g. ascii_raster/ASCII_raster/max-ctrl_d02_srfc_glb1_d02/climatology_1979-1994.
func OutputDir(root string, w format.Writer, job *domain.Job) string {
	mode := string(job.Mode)
	if job.Period != nil {
		mode += "_" + job.Period.String()
	}
	dataset := job.SourceName() + "_" + domain.GridName(job.Grid, job.GridResolution)
	return filepath.Join(root, w.Name(), dataset, mode)
}

// BuildWriters creates one writer per configured format, in document order.
func BuildWriters(reg *format.Registry, entries []config.FormatEntry) ([]format.Writer, error) {
	writers := make([]format.Writer, 0, len(entries))
	for _, e := range entries {
		w, err := reg.New(e.Name, e.Params)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	return writers, nil
}

// manifest records the outputs of one job in one format. It is written
// only after every raster of the job has been written.
type manifest struct {
	JobKey    string    `json:"job_key"`
	Variables []string  `json:"variables"` // nil: all variables
	Outputs   []string  `json:"outputs"`   // file names relative to the manifest
	WrittenAt time.Time `json:"written_at"`
}

// manifestPath returns the manifest location of job in the folder of w.
// Debug and release runs keep separate manifests.
func (r *Runner) manifestPath(w format.Writer, job *domain.Job) string {
	name := manifestName
	if r.opts.Debug {
		name = DebugPrefix + manifestName
	}
	return filepath.Join(OutputDir(r.opts.OutputDir, w, job), "."+name)
}

const manifestName = "manifest.json"

// writeManifests records outputs per writer once the whole job is written.
func (r *Runner) writeManifests(job *domain.Job, outputs []string) error {
	for _, w := range r.writers {
		path := r.manifestPath(w, job)
		dir := filepath.Dir(path)

		m := manifest{JobKey: job.Key(), Variables: job.Variables, WrittenAt: r.now().UTC()}
		for _, out := range outputs {
			if filepath.Dir(out) == dir {
				m.Outputs = append(m.Outputs, filepath.Base(out))
			}
		}

		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode manifest %s: %w", path, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write manifest %s: %w", path, err)
		}
	}
	return nil
}

// removeManifests invalidates the previous outputs of job before they are rewritten.
func (r *Runner) removeManifests(job *domain.Job) error {
	for _, w := range r.writers {
		path := r.manifestPath(w, job)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove manifest %s: %w", path, err)
		}
	}
	return nil
}

// existingOutputs returns the outputs a previous complete run recorded for
// job in every format, and the manifests that list them. ok is false when a
// format has no manifest, or its manifest lacks a selected variable.
func (r *Runner) existingOutputs(job *domain.Job) (outputs, manifests []string, ok bool, err error) {
	for _, w := range r.writers {
		path := r.manifestPath(w, job)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, false, nil
		}
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}

		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, nil, false, fmt.Errorf("failed to decode manifest %s: %w", path, err)
		}
		if m.JobKey != job.Key() || len(m.Outputs) == 0 || !selects(m.Variables, job.Variables) {
			return nil, nil, false, nil
		}

		prefix := r.filePrefix(w)
		suffix := "." + w.Extension()
		names := make([]string, 0, len(m.Outputs))
		for _, name := range m.Outputs {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
			outputs = append(outputs, filepath.Join(filepath.Dir(path), name))
		}
		if !coversVariables(names, job.Variables) {
			return nil, nil, false, nil
		}
		manifests = append(manifests, path)
	}
	sort.Strings(outputs)
	return outputs, manifests, true, nil
}

// filePrefix is the full file name prefix of a writer's outputs.
func (r *Runner) filePrefix(w format.Writer) string {
	if r.opts.Debug {
		return DebugPrefix + w.Prefix()
	}
	return w.Prefix()
}

// selects reports whether a run that selected written produced every
// variable of wanted. nil selects all variables.
func selects(written, wanted []string) bool {
	if written == nil {
		return true
	}
	if wanted == nil {
		return false
	}
	have := make(map[string]bool, len(written))
	for _, v := range written {
		have[v] = true
	}
	for _, v := range wanted {
		if !have[v] {
			return false
		}
	}
	return true
}

// coversVariables reports whether every variable has a raster named
// "<variable>" or "<variable>_<label>" among names.
func coversVariables(names, variables []string) bool {
	for _, v := range variables {
		found := false
		for _, n := range names {
			if n == v || strings.HasPrefix(n, v+"_") {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
