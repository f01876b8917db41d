package format

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	exporterrors "github.com/climatekit/ascraster/pkg/errors"
	"github.com/climatekit/ascraster/pkg/raster"
)

// ASCIIRasterName is the configuration name of the ArcInfo ASCII grid format.
const ASCIIRasterName = "ASCII_raster"

// ASCIIRasterWriter writes ArcInfo ASCII grids (.asc).
type ASCIIRasterWriter struct {
	opts   raster.EncodeOptions
	prefix string
}

// NewASCIIRasterWriter builds a writer from its parameters:
//   - precision: decimal digits per value (default 6, -1 for shortest exact form)
//   - nodata: value written for missing cells (default -9999)
//   - prefix: file name prefix (default none)
func NewASCIIRasterWriter(params map[string]interface{}) (Writer, error) {
	w := &ASCIIRasterWriter{opts: raster.DefaultEncodeOptions()}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := params[k]
		switch k {
		case "precision":
			n, ok := v.(int)
			if !ok || n < -1 {
				return nil, fmt.Errorf("precision must be an integer >= -1 (got %v)", v)
			}
			w.opts.Precision = n
		case "nodata":
			switch x := v.(type) {
			case int:
				w.opts.NoData = float64(x)
			case float64:
				w.opts.NoData = x
			default:
				return nil, fmt.Errorf("nodata must be a number (got %v)", v)
			}
		case "prefix":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("prefix must be a string (got %v)", v)
			}
			w.prefix = s
		default:
			return nil, fmt.Errorf("unknown parameter '%s'", k)
		}
	}
	return w, nil
}

// Name returns ASCIIRasterName.
func (w *ASCIIRasterWriter) Name() string { return ASCIIRasterName }

// Extension returns "asc".
func (w *ASCIIRasterWriter) Extension() string { return "asc" }

// Prefix returns the configured file name prefix.
func (w *ASCIIRasterWriter) Prefix() string { return w.prefix }

// FileName returns e.g. "prefix_precip_jan.asc".
func (w *ASCIIRasterWriter) FileName(r *raster.Raster) string {
	return w.prefix + r.Name() + "." + w.Extension()
}

// Write encodes r to path through a pending file that replaces path only once
// fully written and synced.
func (w *ASCIIRasterWriter) Write(path string, r *raster.Raster) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return exporterrors.ErrOutputWriteFailed(path, err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return exporterrors.ErrOutputWriteFailed(path, err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if err := raster.EncodeASCII(pendingFile, r, w.opts); err != nil {
		return exporterrors.ErrOutputWriteFailed(path, err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return exporterrors.ErrOutputWriteFailed(path, err)
	}
	return nil
}
