package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/raster"
)

// DevVariables are the variables produced by DevConverter when a job selects all.
var DevVariables = []string{"precip", "Tmin", "Tmax"}

// DevConverter is a simple converter for local development and dry runs.
// Unlike MockConverter (testify/mock), it needs no setup: every job has one
// virtual source and converts to twelve monthly all-NODATA rasters per variable.
//
// For tests, use MockConverter instead.
type DevConverter struct {
	logger *slog.Logger
}

// NewDevConverter creates a new development converter.
func NewDevConverter(logger *slog.Logger) *DevConverter {
	return &DevConverter{logger: logger}
}

// Sources returns a single virtual source path that never exists on disk,
// so existing outputs are never considered stale by it.
func (d *DevConverter) Sources(ctx context.Context, job *domain.Job) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{"dev://" + job.Key()}, nil
}

// Convert logs the job and returns empty monthly rasters on grid.
func (d *DevConverter) Convert(ctx context.Context, job *domain.Job, grid *domain.GridDefinition) ([]*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	variables := job.Variables
	if variables == nil {
		variables = DevVariables
	}

	d.logger.Info("[DevConverter] Convert",
		"job", job.Key(),
		"grid", grid.FullName(),
		"variables", variables,
	)

	out := make([]*raster.Raster, 0, len(variables)*12)
	for _, v := range variables {
		for month := 1; month <= 12; month++ {
			out = append(out, raster.New(v, fmt.Sprintf("%02d", month), grid))
		}
	}
	return out, nil
}
