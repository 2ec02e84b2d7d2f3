package capability

import (
	"context"
	"sort"
	"sync"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// MemoryRegistry is the in-memory capability registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	members map[Kind]map[id.AccountID]bool
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{members: make(map[Kind]map[id.AccountID]bool)}
}

func (r *MemoryRegistry) Has(_ context.Context, kind Kind, account id.AccountID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[kind][account], nil
}

func (r *MemoryRegistry) Grant(_ context.Context, kind Kind, account id.AccountID) error {
	if !kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability %q", kind)
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "cannot grant to the null identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[kind] == nil {
		r.members[kind] = make(map[id.AccountID]bool)
	}
	r.members[kind][account] = true
	return nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, kind Kind, account id.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[kind], account)
	return nil
}

func (r *MemoryRegistry) Accounts(_ context.Context, kind Kind) ([]id.AccountID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]id.AccountID, 0, len(r.members[kind]))
	for account := range r.members[kind] {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out, nil
}
