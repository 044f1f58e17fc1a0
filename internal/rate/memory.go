package rate

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemory returns an empty limiter. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]*entry),
		now:     now,
	}
}

func (m *Memory) Check(_ context.Context, key string, max int, window time.Duration) (Result, error) {
	if err := validate(max, window); err != nil {
		return Result{}, err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		m.entries[key] = e
		return Result{Allowed: true, Remaining: max - 1, ResetAt: e.resetAt}, nil
	}

	if e.count >= max {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}, nil
	}

	e.count++
	return Result{Allowed: true, Remaining: max - e.count, ResetAt: e.resetAt}, nil
}

// Sweep deletes entries whose window has closed and returns how many
// were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
