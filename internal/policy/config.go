package policy

import (
	"context"
	"math/big"
	"sync"
)

// DefaultLargeTransferBps is the default compliance-heuristic threshold:
// transfers above this fraction of MaxTransferAmount (in basis points) to a
// zero-balance recipient are flagged. Kept configurable because the
// fraction is a policy choice, not a law of nature.
const DefaultLargeTransferBps = 7500

// Configuration is the global transfer policy. It is a single versioned
// value handed to the engine so evaluation stays testable in isolation;
// mutation goes through the ConfigStore, never through shared globals.
type Configuration struct {
	KYCRequired                   bool
	RecipientValidationRequired   bool
	TransferAuthorizationRequired bool
	RegionRestrictionsEnabled     bool
	Paused                        bool

	// MaxTransferAmount / MinTransferAmount bound single transfers;
	// nil means unbounded on that side.
	MaxTransferAmount *big.Int
	MinTransferAmount *big.Int

	// MaxHolderCount caps distinct non-zero-balance accounts; zero means
	// uncapped.
	MaxHolderCount int

	// AllowedRegions is the region allow-list consulted when
	// RegionRestrictionsEnabled is set.
	AllowedRegions map[int]bool

	// LargeTransferBps is the compliance-heuristic threshold in basis
	// points of MaxTransferAmount.
	LargeTransferBps int

	// Version increments on every mutation.
	Version uint64
}

// Clone deep-copies the configuration so readers never alias store state.
func (c Configuration) Clone() Configuration {
	out := c
	if c.MaxTransferAmount != nil {
		out.MaxTransferAmount = new(big.Int).Set(c.MaxTransferAmount)
	}
	if c.MinTransferAmount != nil {
		out.MinTransferAmount = new(big.Int).Set(c.MinTransferAmount)
	}
	out.AllowedRegions = make(map[int]bool, len(c.AllowedRegions))
	for region, allowed := range c.AllowedRegions {
		out.AllowedRegions[region] = allowed
	}
	return out
}

// RegionAllowed reports whether a region code passes the allow-list.
func (c Configuration) RegionAllowed(code int) bool {
	return c.AllowedRegions[code]
}

// ConfigStore owns the mutable policy configuration.
type ConfigStore interface {
	Current(ctx context.Context) (Configuration, error)
	// Update applies fn to the current configuration under the store's
	// write exclusion and bumps the version.
	Update(ctx context.Context, fn func(*Configuration)) (Configuration, error)
}

// MemoryConfigStore is the in-process ConfigStore.
type MemoryConfigStore struct {
	mu  sync.RWMutex
	cfg Configuration
}

// NewMemoryConfigStore seeds a store with defaults: no toggles enabled, no
// bounds, heuristic at the default fraction.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		cfg: Configuration{
			AllowedRegions:   make(map[int]bool),
			LargeTransferBps: DefaultLargeTransferBps,
		},
	}
}

func (s *MemoryConfigStore) Current(_ context.Context) (Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone(), nil
}

func (s *MemoryConfigStore) Update(_ context.Context, fn func(*Configuration)) (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	fn(&next)
	next.Version = s.cfg.Version + 1
	s.cfg = next
	return next.Clone(), nil
}
