package payroll

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ENGINE - Loads inputs, computes, caches
// =============================================================================

type SessionLister interface {
	ListSessions(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]attendance.Session, error)
	ListSessionsInPeriod(ctx context.Context, period generic.Period) ([]attendance.Session, error)
}

type PolicyVersioner interface {
	PolicyVersion(ctx context.Context) (int, error)
}

// Engine is the single entry point reporting code uses to obtain accruals.
// It never does arithmetic of its own; everything goes through
// ComputeAccrual.
type Engine struct {
	Sessions SessionLister
	Workers  attendance.WorkerReader
	Policies PolicyVersioner

	// Cache is optional. Keys include the policy version, so a policy edit
	// never serves stale figures even without explicit invalidation.
	Cache AccrualCache

	// Observe, when set, is called once per accrual served, with cached
	// reporting whether it came from the cache.
	Observe func(cached bool)

	// generation counts invalidations. A computation only writes to the
	// cache if no invalidation happened since it started reading inputs.
	mu         sync.Mutex
	generation uint64
}

func NewEngine(store attendance.Store, cache AccrualCache) *Engine {
	return &Engine{Sessions: store, Workers: store, Policies: store, Cache: cache}
}

// WorkerAccrual computes one worker's accrual for month.
func (e *Engine) WorkerAccrual(ctx context.Context, workerID generic.WorkerID, month generic.Month) (MonthlyAccrual, error) {
	gen := e.currentGeneration()
	worker, err := e.Workers.GetWorker(ctx, workerID)
	if err != nil {
		return MonthlyAccrual{}, fmt.Errorf("failed to load worker: %w", err)
	}
	if worker == nil {
		return MonthlyAccrual{}, &attendance.WorkerNotFoundError{WorkerID: workerID}
	}

	version, err := e.Policies.PolicyVersion(ctx)
	if err != nil {
		return MonthlyAccrual{}, fmt.Errorf("failed to load policy version: %w", err)
	}

	key := CacheKey{WorkerID: workerID, Month: month, PolicyVersion: version}
	if a, ok := e.cached(ctx, key); ok {
		return a, nil
	}

	sessions, err := e.Sessions.ListSessions(ctx, workerID, month.Period())
	if err != nil {
		return MonthlyAccrual{}, fmt.Errorf("failed to load sessions: %w", err)
	}
	return e.compute(ctx, key, gen, *worker, sessions), nil
}

// TeamAccruals computes every worker's accrual for month, ordered by worker
// ID, plus the team summary.
func (e *Engine) TeamAccruals(ctx context.Context, month generic.Month) ([]MonthlyAccrual, TeamSummary, error) {
	gen := e.currentGeneration()
	workers, err := e.Workers.ListWorkers(ctx)
	if err != nil {
		return nil, TeamSummary{}, fmt.Errorf("failed to list workers: %w", err)
	}
	version, err := e.Policies.PolicyVersion(ctx)
	if err != nil {
		return nil, TeamSummary{}, fmt.Errorf("failed to load policy version: %w", err)
	}

	var byWorker map[generic.WorkerID][]attendance.Session
	accruals := make([]MonthlyAccrual, 0, len(workers))
	for _, w := range workers {
		key := CacheKey{WorkerID: w.ID, Month: month, PolicyVersion: version}
		if a, ok := e.cached(ctx, key); ok {
			accruals = append(accruals, a)
			continue
		}
		// Load the whole month once, on the first miss.
		if byWorker == nil {
			sessions, err := e.Sessions.ListSessionsInPeriod(ctx, month.Period())
			if err != nil {
				return nil, TeamSummary{}, fmt.Errorf("failed to load sessions: %w", err)
			}
			byWorker = make(map[generic.WorkerID][]attendance.Session)
			for _, s := range sessions {
				byWorker[s.WorkerID] = append(byWorker[s.WorkerID], s)
			}
		}
		accruals = append(accruals, e.compute(ctx, key, gen, w, byWorker[w.ID]))
	}

	return accruals, Summarize(month, accruals), nil
}

// InvalidateWorkerMonth implements attendance.AccrualInvalidator.
func (e *Engine) InvalidateWorkerMonth(ctx context.Context, workerID generic.WorkerID, month generic.Month) error {
	e.bumpGeneration()
	if e.Cache == nil {
		return nil
	}
	return e.Cache.InvalidateWorkerMonth(ctx, workerID, month)
}

// InvalidateWorker drops every cached month for a worker (salary change).
func (e *Engine) InvalidateWorker(ctx context.Context, workerID generic.WorkerID) error {
	e.bumpGeneration()
	if e.Cache == nil {
		return nil
	}
	return e.Cache.InvalidateWorker(ctx, workerID)
}

func (e *Engine) compute(ctx context.Context, key CacheKey, gen uint64, w attendance.Worker, sessions []attendance.Session) MonthlyAccrual {
	a := ComputeAccrual(AccrualInput{
		WorkerID:      w.ID,
		Month:         key.Month,
		MonthlySalary: w.MonthlySalary,
		DaysInMonth:   key.Month.Days(),
		Sessions:      sessions,
	})
	if e.Observe != nil {
		e.Observe(false)
	}
	e.store(ctx, key, gen, a)
	return a
}

// store writes a under key unless an invalidation raced the computation.
// The lock is held across Set so an invalidation either sees the entry and
// drops it, or bumps the generation first and the write is skipped.
func (e *Engine) store(ctx context.Context, key CacheKey, gen uint64, a MonthlyAccrual) {
	if e.Cache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		log.Printf("[Payroll] Skipping cache write for %s: inputs changed during computation", key)
		return
	}
	if err := e.Cache.Set(ctx, key, a); err != nil {
		log.Printf("[Payroll] Cache write failed for %s: %v", key, err)
	}
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *Engine) bumpGeneration() {
	e.mu.Lock()
	e.generation++
	e.mu.Unlock()
}

func (e *Engine) cached(ctx context.Context, key CacheKey) (MonthlyAccrual, bool) {
	if e.Cache == nil {
		return MonthlyAccrual{}, false
	}
	a, ok, err := e.Cache.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to recomputation.
		log.Printf("[Payroll] Cache read failed for %s: %v", key, err)
		return MonthlyAccrual{}, false
	}
	if ok && e.Observe != nil {
		e.Observe(true)
	}
	return a, ok
}

var _ attendance.AccrualInvalidator = (*Engine)(nil)
