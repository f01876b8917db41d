package client

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/raster"
)

// FileConverter reads pre-computed source grids in ArcInfo ASCII form and
// resamples them onto the target grid by nearest neighbour. Sources are
// expected in the target projection.
//
// Layout: <root>/<source name>/<mode>_<period label>/<variable>[_<label>].asc
type FileConverter struct {
	root   string
	logger *slog.Logger
}

// NewFileConverter creates a converter reading sources below root.
func NewFileConverter(root string, logger *slog.Logger) *FileConverter {
	return &FileConverter{root: root, logger: logger}
}

// SourceDir returns the folder holding the source grids of a job.
func (c *FileConverter) SourceDir(job *domain.Job) string {
	return filepath.Join(c.root, job.SourceName(), string(job.Mode)+"_"+job.PeriodLabel())
}

// Sources lists the source grids of the job, restricted to its variables.
func (c *FileConverter) Sources(ctx context.Context, job *domain.Job) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := c.SourceDir(job)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SourceNotFoundError{Source: dir}
		}
		return nil, &TransientError{Err: err}
	}

	var want map[string]bool
	if job.Variables != nil {
		want = make(map[string]bool, len(job.Variables))
		for _, v := range job.Variables {
			want[v] = true
		}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".asc" {
			continue
		}
		variable, _ := splitName(e.Name())
		if want != nil && !want[variable] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, &SourceNotFoundError{Source: dir}
	}
	sort.Strings(paths)
	return paths, nil
}

// Convert reads every source grid of the job and resamples it onto grid.
func (c *FileConverter) Convert(ctx context.Context, job *domain.Job, grid *domain.GridDefinition) ([]*raster.Raster, error) {
	paths, err := c.Sources(ctx, job)
	if err != nil {
		return nil, err
	}

	out := make([]*raster.Raster, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := readGrid(path)
		if err != nil {
			return nil, err
		}
		variable, label := splitName(filepath.Base(path))
		dst := raster.New(variable, label, grid)
		if err := dst.Validate(); err != nil {
			return nil, &InvalidSourceError{Path: "target grid " + grid.FullName(), Message: err.Error()}
		}
		resample(src, dst)
		out = append(out, dst)
	}

	c.logger.Debug("Sources converted",
		"job", job.Key(),
		"rasters", len(out),
		"grid", grid.FullName(),
	)

	return out, nil
}

func readGrid(path string) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SourceNotFoundError{Source: path}
		}
		return nil, &TransientError{Err: err}
	}
	defer func() { _ = f.Close() }()

	r, err := raster.DecodeASCII(f)
	if err != nil {
		return nil, &InvalidSourceError{Path: path, Message: err.Error()}
	}
	return r, nil
}

// splitName splits "precip_01.asc" into ("precip", "01"). Only an all-digit
// suffix counts as a label, so variable names may contain underscores.
func splitName(name string) (variable, label string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndexByte(base, '_')
	if i <= 0 || i == len(base)-1 {
		return base, ""
	}
	suffix := base[i+1:]
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			return base, ""
		}
	}
	return base[:i], suffix
}

// resample fills dst from src by nearest neighbour on cell centers.
// Target cells outside src stay missing.
func resample(src, dst *raster.Raster) {
	for row := 0; row < dst.NRows; row++ {
		y := dst.YLLCorner + (float64(dst.NRows-row)-0.5)*dst.CellSize
		srow := src.NRows - 1 - int(math.Floor((y-src.YLLCorner)/src.CellSize))
		if srow < 0 || srow >= src.NRows {
			continue
		}
		for col := 0; col < dst.NCols; col++ {
			x := dst.XLLCorner + (float64(col)+0.5)*dst.CellSize
			scol := int(math.Floor((x - src.XLLCorner) / src.CellSize))
			if scol < 0 || scol >= src.NCols {
				continue
			}
			dst.Set(row, col, src.At(srow, scol))
		}
	}
}
