package cache

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/raster"
)

var testGrid = &domain.GridDefinition{
	Name:         "glb1",
	Resolution:   "d02",
	Size:         [2]int{2, 2},
	GeoTransform: [6]float64{0, 10, 0, 0, 0, 10},
}

func testRasters() []*raster.Raster {
	r := raster.New("precip", "01", testGrid)
	r.Set(0, 0, 2.5)
	return []*raster.Raster{r, raster.New("T2", "01", testGrid)}
}

// runFieldCacheTests exercises the FieldCache contract against one implementation.
func runFieldCacheTests(t *testing.T, c FieldCache) {
	ctx := context.Background()
	key := "WRF/max-ctrl/srfc/d02/climatology/1979-1994/glb1_d02"

	t.Run("miss", func(t *testing.T) {
		e, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("put then get", func(t *testing.T) {
		before := time.Now().Add(-time.Second)
		require.NoError(t, c.Put(ctx, key, testRasters()))

		e, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, e)
		require.Len(t, e.Rasters, 2)
		assert.True(t, e.StoredAt.After(before))

		got := e.Rasters[0]
		assert.Equal(t, "precip", got.Variable)
		assert.Equal(t, "01", got.Label)
		assert.Equal(t, 2.5, got.At(0, 0))
		assert.True(t, math.IsNaN(got.At(1, 1)), "missing cells survive the cache")
	})

	t.Run("put replaces", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, key, testRasters()[1:]))
		e, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.Len(t, e.Rasters, 1)
		assert.Equal(t, "T2", e.Rasters[0].Variable)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Get(cctx, key)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, c.Put(cctx, key, nil), context.Canceled)
	})

	t.Run("concurrent access", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				k := key + string(rune('a'+i))
				assert.NoError(t, c.Put(ctx, k, testRasters()))
				_, err := c.Get(ctx, k)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	})
}

func TestInMemoryFieldCache(t *testing.T) {
	c := NewInMemoryFieldCache()
	runFieldCacheTests(t, c)

	assert.Equal(t, 11, c.Len())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}

func TestBadgerFieldCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	dir := t.TempDir()

	c, err := OpenBadgerFieldCache(dir, logger)
	require.NoError(t, err)
	runFieldCacheTests(t, c)
	require.NoError(t, c.Close())

	t.Run("entries persist across reopen", func(t *testing.T) {
		reopened, err := OpenBadgerFieldCache(dir, logger)
		require.NoError(t, err)
		defer func() { _ = reopened.Close() }()

		e, err := reopened.Get(context.Background(), "WRF/max-ctrl/srfc/d02/climatology/1979-1994/glb1_d02")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "T2", e.Rasters[0].Variable)
	})
}
