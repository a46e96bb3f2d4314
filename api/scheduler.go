/*
scheduler.go - Automated payroll month close

PURPOSE:
  Periodically checks whether the previous month has been closed and, if
  not, computes its team accruals and records a payroll run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only ever closes the month before the current one
  - Skips months that already have a completed run
  - A failed run is retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - reports.go: ClosePayrollMonth endpoint (manual close)
  - payroll/runs.go: Engine.CloseMonth
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/attendance-engine/payroll"
)

// PayrollScheduler closes finished months automatically.
type PayrollScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(handler *Handler) *PayrollScheduler {
	return &PayrollScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. It is a no-op while already running, and
// may be called again after Stop.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan bool)
	ps.wg.Add(1)

	go ps.run(ps.ticker.C, ps.stop)

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PayrollScheduler) run(tick <-chan time.Time, stop <-chan bool) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.CheckAndClose(context.Background())

	for {
		select {
		case <-tick:
			ps.CheckAndClose(context.Background())
		case <-stop:
			return
		}
	}
}

// Running reports whether the background loop is active.
func (ps *PayrollScheduler) Running() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.ticker != nil
}

// CheckAndClose closes the previous month unless it already has a
// completed run. It returns the run it produced or found, if any.
func (ps *PayrollScheduler) CheckAndClose(ctx context.Context) *payroll.PayrollRun {
	h := ps.Handler
	month := h.today().MonthOf().AddMonths(-1)

	existing, err := h.Store.GetPayrollRun(ctx, month)
	if err != nil {
		log.Printf("[Scheduler] Failed to load payroll run for %s: %v", month, err)
		return nil
	}
	if existing != nil && existing.Status == payroll.RunCompleted {
		return existing
	}

	log.Printf("[Scheduler] Closing payroll month %s", month)
	run, err := h.closeMonth(ctx, month)
	if err != nil {
		log.Printf("[Scheduler] Failed to close %s: %v", month, err)
		return run
	}
	log.Printf("[Scheduler] Closed %s: %d workers, earned %s of %s (%s%%)",
		month, run.Workers, run.TotalEarned, run.TotalBudget, run.Percentage.StringFixed(2))
	return run
}
