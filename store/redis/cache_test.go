package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

const testRedisEnv = "ATTENDANCE_TEST_REDIS_ADDR"

var march = generic.NewMonth(2024, time.March)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv(testRedisEnv)
	if addr == "" {
		t.Skipf("%s not set", testRedisEnv)
	}
	client := NewClient(addr)
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()
	require.NoError(t, client.FlushDB(ctx).Err())
	return NewCache(client, time.Minute)
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := payroll.CacheKey{WorkerID: "w1", Month: march, PolicyVersion: 2}

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	a := payroll.ComputeAccrual(payroll.AccrualInput{
		WorkerID:      "w1",
		Month:         march,
		MonthlySalary: decimal.NewFromInt(3100),
		DaysInMonth:   31,
		Sessions:      []attendance.Session{{Status: attendance.StatusOvertime}, {Status: attendance.StatusHalfDay}},
	})
	require.NoError(t, c.Set(ctx, key, a))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.EarnedSalary.Equal(a.EarnedSalary))
	assert.Equal(t, march, got.Month)
	assert.Equal(t, 1, got.StatusCounts[attendance.StatusOvertime])
}

func TestCache_Invalidation(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	for v := 1; v <= 2; v++ {
		require.NoError(t, c.Set(ctx, payroll.CacheKey{WorkerID: "w1", Month: march, PolicyVersion: v}, payroll.MonthlyAccrual{}))
	}
	aprilKey := payroll.CacheKey{WorkerID: "w1", Month: march.AddMonths(1), PolicyVersion: 1}
	otherKey := payroll.CacheKey{WorkerID: "w2", Month: march, PolicyVersion: 1}
	require.NoError(t, c.Set(ctx, aprilKey, payroll.MonthlyAccrual{}))
	require.NoError(t, c.Set(ctx, otherKey, payroll.MonthlyAccrual{}))

	require.NoError(t, c.InvalidateWorkerMonth(ctx, "w1", march))
	_, ok, _ := c.Get(ctx, payroll.CacheKey{WorkerID: "w1", Month: march, PolicyVersion: 2})
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, aprilKey)
	assert.True(t, ok)

	require.NoError(t, c.InvalidateWorker(ctx, "w1"))
	_, ok, _ = c.Get(ctx, aprilKey)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, otherKey)
	assert.True(t, ok)
}

func TestCache_InvalidationMatchesWorkerLiterally(t *testing.T) {
	// GIVEN: Worker IDs carrying glob syntax and a colon-extended lookalike
	c := newTestCache(t)
	ctx := context.Background()
	keys := map[generic.WorkerID]payroll.CacheKey{}
	for _, id := range []generic.WorkerID{"w[1]*", "w1", "w1:x"} {
		keys[id] = payroll.CacheKey{WorkerID: id, Month: march, PolicyVersion: 1}
		require.NoError(t, c.Set(ctx, keys[id], payroll.MonthlyAccrual{}))
	}

	// WHEN: Invalidating the glob-looking worker, then "w1"
	require.NoError(t, c.InvalidateWorkerMonth(ctx, "w[1]*", march))
	_, ok, _ := c.Get(ctx, keys["w[1]*"])
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, keys["w1"])
	assert.True(t, ok)

	require.NoError(t, c.InvalidateWorker(ctx, "w1"))
	_, ok, _ = c.Get(ctx, keys["w1"])
	assert.False(t, ok)

	// THEN: The lookalike survives
	_, ok, _ = c.Get(ctx, keys["w1:x"])
	assert.True(t, ok)
}

func TestMonthPattern_EscapesGlobSyntax(t *testing.T) {
	assert.Equal(t, `accrual:w1:2024-03:v*`, monthPattern("w1", "2024-03"))
	assert.Equal(t, `accrual:w\[1\]\*\?\\:2024-03:v*`, monthPattern(`w[1]*?\`, "2024-03"))
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := payroll.CacheKey{WorkerID: "w1", Month: march, PolicyVersion: 1}
	require.NoError(t, c.Client.Set(ctx, key.String(), "{not json", 0).Err())

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_UnreachableIsRetryable(t *testing.T) {
	client := NewClient("127.0.0.1:1")
	defer client.Close()
	c := NewCache(client, time.Minute)
	ctx := context.Background()

	assert.True(t, generic.IsRetryable(c.Ping(ctx)))

	_, _, err := c.Get(ctx, payroll.CacheKey{WorkerID: "w1", Month: march})
	assert.True(t, generic.IsRetryable(err))
}
