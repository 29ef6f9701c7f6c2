package events

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 256

// MemoryStore keeps the most recent events in a fixed-size ring.
type MemoryStore struct {
	mu     sync.Mutex
	buf    []Event
	next   int
	filled bool
}

// NewMemoryStore returns a ring holding up to capacity events.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{buf: make([]Event, capacity)}
}

// Append implements EventStore, overwriting the oldest event when full.
func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = event
	s.next = (s.next + 1) % len(s.buf)
	if s.next == 0 {
		s.filled = true
	}
	return nil
}

// Recent returns up to n events, newest first.
func (s *MemoryStore) Recent(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.filled {
		size = len(s.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.buf)) % len(s.buf)
		out = append(out, s.buf[idx])
	}
	return out
}
