package events

import (
	"context"
	"sync"
)

// MemoryPublisher collects events in memory. Test sink and the default
// publisher when kafka is not configured.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error {
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Event{}, p.events...)
}

// ByKind filters emitted events by kind.
func (p *MemoryPublisher) ByKind(kind Kind) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
