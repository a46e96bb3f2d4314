package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ACCRUAL CACHE
// =============================================================================

// CacheKey identifies a cached accrual. The policy version is part of the
// key so editing thresholds implicitly retires every previous entry.
type CacheKey struct {
	WorkerID      generic.WorkerID
	Month         generic.Month
	PolicyVersion int
}

func (k CacheKey) String() string {
	return fmt.Sprintf("accrual:%s:%s:v%d", k.WorkerID, k.Month, k.PolicyVersion)
}

type AccrualCache interface {
	Get(ctx context.Context, key CacheKey) (MonthlyAccrual, bool, error)
	Set(ctx context.Context, key CacheKey, a MonthlyAccrual) error

	// InvalidateWorkerMonth drops the worker's entries for month under
	// every policy version.
	InvalidateWorkerMonth(ctx context.Context, workerID generic.WorkerID, month generic.Month) error
	InvalidateWorker(ctx context.Context, workerID generic.WorkerID) error
}

// MemoryCache is an in-process AccrualCache on top of generic.TTLCache.
type MemoryCache struct {
	cache *generic.TTLCache[CacheKey, MonthlyAccrual]
}

func NewMemoryCache(clock generic.Clock, ttl time.Duration) *MemoryCache {
	return &MemoryCache{cache: generic.NewTTLCache[CacheKey, MonthlyAccrual](clock, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key CacheKey) (MonthlyAccrual, bool, error) {
	a, ok := c.cache.Get(key)
	if !ok {
		return MonthlyAccrual{}, false, nil
	}
	return a.clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key CacheKey, a MonthlyAccrual) error {
	c.cache.Set(key, a.clone())
	return nil
}

func (c *MemoryCache) InvalidateWorkerMonth(_ context.Context, workerID generic.WorkerID, month generic.Month) error {
	c.cache.InvalidateFunc(func(k CacheKey) bool {
		return k.WorkerID == workerID && k.Month == month
	})
	return nil
}

func (c *MemoryCache) InvalidateWorker(_ context.Context, workerID generic.WorkerID) error {
	c.cache.InvalidateFunc(func(k CacheKey) bool { return k.WorkerID == workerID })
	return nil
}

func (c *MemoryCache) Len() int { return c.cache.Len() }

func (a MonthlyAccrual) clone() MonthlyAccrual {
	counts := make(map[attendance.Status]int, len(a.StatusCounts))
	for k, v := range a.StatusCounts {
		counts[k] = v
	}
	a.StatusCounts = counts
	return a
}
