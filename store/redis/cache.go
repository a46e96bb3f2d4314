// Package redis provides a Redis-backed payroll.AccrualCache, shared by
// every engine instance pointing at the same Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

const keyPrefix = "accrual"

// Cache stores accruals as JSON under accrual:{worker}:{month}:v{version}.
type Cache struct {
	Client *goredis.Client
	TTL    time.Duration
}

// NewClient connects to redis with short timeouts.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

func NewCache(client *goredis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key payroll.CacheKey) (payroll.MonthlyAccrual, bool, error) {
	raw, err := c.Client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return payroll.MonthlyAccrual{}, false, nil
	}
	if err != nil {
		return payroll.MonthlyAccrual{}, false, fmt.Errorf("%w: redis get: %v", generic.ErrStoreUnavailable, err)
	}
	var a payroll.MonthlyAccrual
	if err := json.Unmarshal(raw, &a); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.Client.Del(ctx, key.String())
		return payroll.MonthlyAccrual{}, false, nil
	}
	return a, true, nil
}

func (c *Cache) Set(ctx context.Context, key payroll.CacheKey, a payroll.MonthlyAccrual) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode accrual: %w", err)
	}
	ttl := c.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := c.Client.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Cache) InvalidateWorkerMonth(ctx context.Context, workerID generic.WorkerID, month generic.Month) error {
	return c.deleteMatching(ctx, monthPattern(workerID, month.String()))
}

func (c *Cache) InvalidateWorker(ctx context.Context, workerID generic.WorkerID) error {
	return c.deleteMatching(ctx, monthPattern(workerID, "[0-9][0-9][0-9][0-9]-[0-9][0-9]"))
}

// monthPattern matches every policy version of the worker's keys for month,
// which is itself a glob. The worker ID is matched literally, and the month
// shape keeps an ID like "w1" from matching "w1:x".
func monthPattern(workerID generic.WorkerID, month string) string {
	return fmt.Sprintf("%s:%s:%s:v*", keyPrefix, escapeGlob(string(workerID)), month)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// deleteMatching walks the keyspace with SCAN and deletes what matches.
func (c *Cache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.Client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: redis scan: %v", generic.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

var _ payroll.AccrualCache = (*Cache)(nil)
