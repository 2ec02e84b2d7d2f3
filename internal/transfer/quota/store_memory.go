package quota

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// InMemoryStore implements Store with a per-account window. Suitable for a
// single instance; use the redis store when instances share quota state.
type InMemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*window
}

type window struct {
	day   string
	spent *big.Int
}

// NewInMemoryStore creates an empty in-memory quota store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*window)}
}

func (s *InMemoryStore) Spent(_ context.Context, account string, now time.Time) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[account]
	if !ok || w.day != dayKey(now) {
		return new(big.Int), nil
	}
	return new(big.Int).Set(w.spent), nil
}

func (s *InMemoryStore) Add(_ context.Context, account string, amount *big.Int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := dayKey(now)
	w, ok := s.windows[account]
	if !ok || w.day != day {
		w = &window{day: day, spent: new(big.Int)}
		s.windows[account] = w
	}
	w.spent.Add(w.spent, amount)
	return nil
}
