// Package cache keeps converted rasters between runs so unchanged jobs can be
// re-exported without converting their sources again.
package cache

import (
	"context"
	"time"

	"github.com/climatekit/ascraster/pkg/raster"
)

// Entry is one cached conversion result.
type Entry struct {
	Rasters  []*raster.Raster `json:"rasters"`
	StoredAt time.Time        `json:"stored_at"`
}

// FieldCache stores converted rasters by job key.
// Implementations are safe for concurrent use.
type FieldCache interface {
	// Get returns the entry stored under key, or nil if there is none.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores rasters under key, replacing any previous entry.
	Put(ctx context.Context, key string, rasters []*raster.Raster) error

	// Close releases the cache's resources.
	Close() error
}
