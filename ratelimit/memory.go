package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many increments happen between scans for expired windows.
const sweepEvery = 1024

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in process. Use it for single instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	calls   int
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, d time.Duration, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		s.windows[key] = &window{count: 1, resetAt: now.Add(d)}
		return true, nil
	}
	if w.count < max {
		w.count++
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, k)
		}
	}
}
