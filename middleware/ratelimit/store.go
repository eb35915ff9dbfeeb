package ratelimit

import (
	"sync"
	"time"
)

// Store counts hits per key in fixed windows.
type Store interface {
	// Hit records one request and returns the count in the current window
	// along with the time the window resets.
	Hit(key string, window time.Duration, now time.Time) (count int, resetTime time.Time)
	Reset(key string)
}

type MemoryStore struct {
	mu        sync.Mutex
	data      map[string]*entry
	nextSweep time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

const sweepInterval = time.Minute

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
	}
}

func (s *MemoryStore) Hit(key string, window time.Duration, now time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(sweepInterval)
	}

	if e, ok := s.data[key]; ok && now.Before(e.resetTime) {
		e.count++
		return e.count, e.resetTime
	}

	e := &entry{count: 1, resetTime: now.Add(window)}
	s.data[key] = e
	return e.count, e.resetTime
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// sweep drops expired windows. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for key, e := range s.data {
		if !now.Before(e.resetTime) {
			delete(s.data, key)
		}
	}
}
