// Package raster holds 2-D fields on a regular grid and the ArcInfo ASCII
// grid encoding used to export them.
package raster

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/climatekit/ascraster/pkg/domain"
)

// DefaultNoData is the NODATA_value written when a writer sets none.
const DefaultNoData = -9999.0

// Raster is one exported field. Values are row-major with the northernmost
// row first; missing cells are NaN.
type Raster struct {
	Variable  string    `json:"variable"`
	Label     string    `json:"label,omitempty"` // e.g. month or statistic, becomes a filename suffix
	NCols     int       `json:"ncols"`
	NRows     int       `json:"nrows"`
	XLLCorner float64   `json:"xllcorner"`
	YLLCorner float64   `json:"yllcorner"`
	CellSize  float64   `json:"cellsize"`
	NoData    float64   `json:"nodata"`
	Values    []float64 `json:"-"`
}

// New returns a raster covering grid with every cell missing.
func New(variable, label string, grid *domain.GridDefinition) *Raster {
	nx, ny := grid.Size[0], grid.Size[1]
	values := make([]float64, nx*ny)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Raster{
		Variable:  variable,
		Label:     label,
		NCols:     nx,
		NRows:     ny,
		XLLCorner: grid.GeoTransform[0],
		YLLCorner: grid.GeoTransform[3],
		CellSize:  grid.GeoTransform[1],
		NoData:    DefaultNoData,
		Values:    values,
	}
}

// At returns the value at row (from the north) and column.
func (r *Raster) At(row, col int) float64 {
	return r.Values[row*r.NCols+col]
}

// Set stores a value at row (from the north) and column.
func (r *Raster) Set(row, col int, v float64) {
	r.Values[row*r.NCols+col] = v
}

// Name returns the base file name of the raster without prefix or extension.
func (r *Raster) Name() string {
	if r.Label == "" {
		return r.Variable
	}
	return r.Variable + "_" + r.Label
}

// Validate checks the raster header against its values.
func (r *Raster) Validate() error {
	if r.NCols <= 0 || r.NRows <= 0 {
		return fmt.Errorf("raster %s: dimensions must be positive (got %dx%d)", r.Name(), r.NCols, r.NRows)
	}
	if !(r.CellSize > 0) {
		return fmt.Errorf("raster %s: cellsize must be positive", r.Name())
	}
	if len(r.Values) != r.NCols*r.NRows {
		return fmt.Errorf("raster %s: expected %d values, got %d", r.Name(), r.NCols*r.NRows, len(r.Values))
	}
	return nil
}

type rasterJSON struct {
	*alias
	Values []*float64 `json:"values"`
}

type alias Raster

// MarshalJSON encodes missing cells as null, since JSON has no NaN.
func (r *Raster) MarshalJSON() ([]byte, error) {
	values := make([]*float64, len(r.Values))
	for i := range r.Values {
		if !math.IsNaN(r.Values[i]) {
			values[i] = &r.Values[i]
		}
	}
	return json.Marshal(rasterJSON{alias: (*alias)(r), Values: values})
}

// UnmarshalJSON decodes null cells as NaN.
func (r *Raster) UnmarshalJSON(data []byte) error {
	aux := rasterJSON{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Values = make([]float64, len(aux.Values))
	for i, v := range aux.Values {
		if v == nil {
			r.Values[i] = math.NaN()
			continue
		}
		r.Values[i] = *v
	}
	return nil
}
