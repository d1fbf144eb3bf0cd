package grid

import (
	"context"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

//*******************************************
// cell cache
//*******************************************

// CellCache memoizes built cell sets by GridSpec.Key. Callers get their own
// copies of the cells, so labeling one result does not leak into another.
type CellCache struct {
	cache   *ristretto.Cache[string, []*Cell]
	workers int
	builds  atomic.Int64
}

// NewCellCache creates a cache holding up to max_cells cells in total.
func NewCellCache(max_cells int64, workers int) (*CellCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []*Cell]{
		NumCounters: 1000,
		MaxCost:     max_cells,
		BufferItems: 64,
		// cost is the cell count
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create cell cache")
	}
	return &CellCache{
		cache:   cache,
		workers: workers,
	}, nil
}

// Get returns the cells of spec, building them on a miss.
func (self *CellCache) Get(ctx context.Context, spec GridSpec) ([]*Cell, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	key := spec.Key()
	cells, ok := self.cache.Get(key)
	if !ok {
		var err error
		cells, err = BuildCellsParallel(ctx, spec, self.workers)
		if err != nil {
			return nil, err
		}
		self.builds.Add(1)
		self.cache.Set(key, cells, int64(len(cells))+1)
		self.cache.Wait()
	}
	copies := make([]*Cell, len(cells))
	for i, c := range cells {
		copies[i] = c.Clone()
	}
	return copies, nil
}

// Builds returns the number of cache misses.
func (self *CellCache) Builds() int64 {
	return self.builds.Load()
}

func (self *CellCache) Close() {
	self.cache.Close()
}
