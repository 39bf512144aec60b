package devices

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process device list for tests and local dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	cap     int
	entries []RememberedDevice
}

func NewInMemoryStore(cap int) *InMemoryStore {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &InMemoryStore{cap: cap}
}

func (s *InMemoryStore) Load(_ context.Context) ([]RememberedDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RememberedDevice, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, device RememberedDevice) error {
	if device.LastConnectedAt.IsZero() {
		device.LastConnectedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]RememberedDevice, 0, len(s.entries)+1)
	next = append(next, device)
	for _, e := range s.entries {
		if e.ID != device.ID {
			next = append(next, e)
		}
	}
	if len(next) > s.cap {
		next = next[:s.cap]
	}
	s.entries = next
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	s.entries = next
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
