// Package format maps output format names to raster writers.
package format

import (
	"fmt"
	"sort"
	"sync"

	exporterrors "github.com/climatekit/ascraster/pkg/errors"
	"github.com/climatekit/ascraster/pkg/raster"
)

// Writer writes rasters in one output format.
type Writer interface {
	// Name returns the format name as used in configuration documents.
	Name() string

	// Extension returns the file extension without the dot.
	Extension() string

	// Prefix returns the file name prefix configured for the format.
	Prefix() string

	// FileName returns the file name of a raster, including any prefix.
	FileName(r *raster.Raster) string

	// Write stores the raster at path, replacing any existing file atomically.
	Write(path string, r *raster.Raster) error
}

// Factory builds a writer from the parameter object of a format entry.
// params is nil when the entry was null.
type Factory func(params map[string]interface{}) (Writer, error)

// Registry holds the known output formats. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in formats registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ASCIIRasterName, NewASCIIRasterWriter)
	return r
}

// Register adds or replaces a format.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered format names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the writer of a format from its parameters.
func (r *Registry) New(name string, params map[string]interface{}) (Writer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, exporterrors.ErrFormatUnsupported(name)
	}
	w, err := f(params)
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrCodeFormatUnsupported,
			fmt.Sprintf("invalid parameters for format '%s'", name), err)
	}
	return w, nil
}
