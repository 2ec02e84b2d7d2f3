// Package events defines the observable state-change notifications emitted
// by every mutating operation. Publishing is fail-open: events feed external
// monitoring, they are not ledger state, so a publish failure is logged and
// counted but never rolls back the operation that produced it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names one observable state change.
type Kind string

const (
	KindTransfer          Kind = "transfer"
	KindMint              Kind = "mint"
	KindBurn              Kind = "burn"
	KindFlagChanged       Kind = "flag_changed"
	KindRegionChanged     Kind = "region_changed"
	KindDailyLimitChanged Kind = "daily_limit_changed"
	KindConfigChanged     Kind = "config_changed"
	KindPaused            Kind = "paused"
	KindUnpaused          Kind = "unpaused"
	KindProposalCreated   Kind = "proposal_created"
	KindProposalVoted     Kind = "proposal_voted"
	KindProposalExecuted  Kind = "proposal_executed"
	KindProposalCancelled Kind = "proposal_cancelled"
	KindGovernorAdded     Kind = "governor_added"
	KindGovernorRemoved   Kind = "governor_removed"
	KindCapabilityGranted Kind = "capability_granted"
	KindCapabilityRevoked Kind = "capability_revoked"
)

// Event is one notification. Attrs hold the change-specific fields as
// strings so every sink serializes them the same way.
type Event struct {
	ID    string            `json:"id"`
	Kind  Kind              `json:"kind"`
	At    time.Time         `json:"at"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// New builds an event stamped with a fresh ID.
func New(kind Kind, at time.Time, attrs map[string]string) Event {
	return Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		At:    at,
		Attrs: attrs,
	}
}

// Publisher delivers events to whatever is watching.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
