// Package store provides an in-memory attendance.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	sessions map[generic.SessionID]attendance.Session
	byKey    map[key]generic.SessionID
	workers  map[generic.WorkerID]attendance.Worker
	schedule attendance.Schedule
}

type key struct {
	WorkerID generic.WorkerID
	Date     generic.Date
}

// NewMemory returns a store seeded with the default schedule.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[generic.SessionID]attendance.Session),
		byKey:    make(map[key]generic.SessionID),
		workers:  make(map[generic.WorkerID]attendance.Worker),
		schedule: attendance.DefaultSchedule(),
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) FindSession(_ context.Context, workerID generic.WorkerID, date generic.Date) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[key{WorkerID: workerID, Date: date}]
	if !ok {
		return nil, nil
	}
	s := m.sessions[id]
	return &s, nil
}

func (m *Memory) FindOpenSession(_ context.Context, workerID generic.WorkerID) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *attendance.Session
	for _, s := range m.sessions {
		if s.WorkerID != workerID || !s.IsOpen() {
			continue
		}
		if found == nil || s.Date.Before(found.Date) {
			c := s
			found = &c
		}
	}
	return found, nil
}

func (m *Memory) GetSession(_ context.Context, id generic.SessionID) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// InsertSession enforces the (worker, date) uniqueness constraint.
func (m *Memory) InsertSession(_ context.Context, s attendance.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{WorkerID: s.WorkerID, Date: s.Date}
	if _, exists := m.byKey[k]; exists {
		return generic.ErrDuplicateSession
	}
	m.sessions[s.ID] = s
	m.byKey[k] = s.ID
	return nil
}

func (m *Memory) UpdateSession(_ context.Context, s attendance.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[s.ID]
	if !ok {
		return generic.ErrSessionNotFound
	}
	if old.WorkerID != s.WorkerID || old.Date != s.Date {
		k := key{WorkerID: s.WorkerID, Date: s.Date}
		if _, exists := m.byKey[k]; exists {
			return generic.ErrDuplicateSession
		}
		delete(m.byKey, key{WorkerID: old.WorkerID, Date: old.Date})
		m.byKey[k] = s.ID
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, id generic.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return generic.ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.byKey, key{WorkerID: s.WorkerID, Date: s.Date})
	return nil
}

func (m *Memory) ListSessions(_ context.Context, workerID generic.WorkerID, period generic.Period) ([]attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.Session
	for _, s := range m.sessions {
		if s.WorkerID == workerID && period.Contains(s.Date) {
			result = append(result, s)
		}
	}
	sortSessions(result)
	return result, nil
}

func (m *Memory) ListSessionsInPeriod(_ context.Context, period generic.Period) ([]attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.Session
	for _, s := range m.sessions {
		if period.Contains(s.Date) {
			result = append(result, s)
		}
	}
	sortSessions(result)
	return result, nil
}

func sortSessions(ss []attendance.Session) {
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Date != ss[j].Date {
			return ss[i].Date.Before(ss[j].Date)
		}
		return ss[i].WorkerID < ss[j].WorkerID
	})
}

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) GetWeekdayPolicy(_ context.Context, wd time.Weekday) (*attendance.WeekdayPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.schedule.For(wd)
	return &p, nil
}

func (m *Memory) Schedule(_ context.Context) (attendance.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedule, nil
}

func (m *Memory) PolicyVersion(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedule.Version, nil
}

func (m *Memory) SaveWeekdayPolicy(_ context.Context, p attendance.WeekdayPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule.Policies[p.Weekday] = p
	m.schedule.Version++
	return nil
}

// =============================================================================
// WORKERS
// =============================================================================

func (m *Memory) GetWorker(_ context.Context, id generic.WorkerID) (*attendance.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]attendance.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]attendance.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveWorker(_ context.Context, w attendance.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.CreatedAt.IsZero() {
		if old, ok := m.workers[w.ID]; ok {
			w.CreatedAt = old.CreatedAt
		} else {
			w.CreatedAt = time.Now().UTC()
		}
	}
	m.workers[w.ID] = w
	return nil
}

// Reset drops all sessions and workers and restores the default schedule
// under a new version.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := m.schedule.Version
	m.sessions = make(map[generic.SessionID]attendance.Session)
	m.byKey = make(map[key]generic.SessionID)
	m.workers = make(map[generic.WorkerID]attendance.Worker)
	m.schedule = attendance.DefaultSchedule()
	m.schedule.Version = version + 1
	return nil
}

var _ attendance.Store = (*Memory)(nil)
