package memory

import (
	"context"
	"sync"
)

// InMemorySubstrate keeps records in process memory. Nothing survives a
// restart; it backs tests and STORE_BACKEND=memory.
type InMemorySubstrate struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewInMemorySubstrate() *InMemorySubstrate {
	return &InMemorySubstrate{records: make(map[string]string)}
}

func (s *InMemorySubstrate) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key], nil
}

func (s *InMemorySubstrate) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
	return nil
}

func (s *InMemorySubstrate) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *InMemorySubstrate) Ping(context.Context) error { return nil }

func (s *InMemorySubstrate) Close() error { return nil }
