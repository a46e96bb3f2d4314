package payroll

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/generic"
)

// MemoryRuns is an in-memory RunStore (for testing/dev).
type MemoryRuns struct {
	mu   sync.RWMutex
	runs map[generic.Month]PayrollRun
}

func NewMemoryRuns() *MemoryRuns {
	return &MemoryRuns{runs: make(map[generic.Month]PayrollRun)}
}

func (m *MemoryRuns) SavePayrollRun(_ context.Context, r PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.Month] = r
	return nil
}

func (m *MemoryRuns) GetPayrollRun(_ context.Context, month generic.Month) (*PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[month]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryRuns) ListPayrollRuns(_ context.Context) ([]PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]PayrollRun, 0, len(m.runs))
	for _, r := range m.runs {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month.Before(result[j].Month) })
	return result, nil
}

// Clear drops every recorded run.
func (m *MemoryRuns) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make(map[generic.Month]PayrollRun)
}

var _ RunStore = (*MemoryRuns)(nil)
