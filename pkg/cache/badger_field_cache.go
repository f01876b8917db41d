package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	exporterrors "github.com/climatekit/ascraster/pkg/errors"
	"github.com/climatekit/ascraster/pkg/raster"
)

const keyPrefix = "field:"

// BadgerFieldCache persists entries in a badger database as JSON values.
type BadgerFieldCache struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenBadgerFieldCache opens or creates the cache database in dir.
func OpenBadgerFieldCache(dir string, logger *slog.Logger) (*BadgerFieldCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, exporterrors.ErrCacheError("open", err)
	}
	logger.Info("Field cache opened", "dir", dir)
	return &BadgerFieldCache{db: db, logger: logger, now: time.Now}, nil
}

// Get returns the entry stored under key, or nil if there is none.
func (c *BadgerFieldCache) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, exporterrors.ErrCacheError("get", err)
	}
	return &out, nil
}

// Put stores rasters under key, replacing any previous entry.
func (c *BadgerFieldCache) Put(ctx context.Context, key string, rasters []*raster.Raster) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf, err := json.Marshal(Entry{Rasters: rasters, StoredAt: c.now().UTC()})
	if err != nil {
		return exporterrors.ErrCacheError("encode", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), buf)
	})
	if err != nil {
		return exporterrors.ErrCacheError("put", err)
	}

	c.logger.Debug("Field cache entry stored", "key", key, "rasters", len(rasters), "bytes", len(buf))
	return nil
}

// Close closes the database.
func (c *BadgerFieldCache) Close() error {
	if err := c.db.Close(); err != nil {
		return exporterrors.ErrCacheError("close", err)
	}
	return nil
}
