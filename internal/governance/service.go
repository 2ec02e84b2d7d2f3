// Package governance implements the multi-party proposal state machine:
// governors propose a privileged call, vote on it, and once quorum and the
// timelock clear, anyone can execute it. Execution dispatches through a
// single registry of named targets with the executed flag persisted before
// the call, so a downstream re-entry into the same proposal cannot run it
// twice.
package governance

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"covenant/internal/capability"
	"covenant/internal/events"
	"covenant/internal/governance/metrics"
	"covenant/internal/governance/models"
	"covenant/internal/governance/store"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

var tracer = otel.Tracer("covenant/internal/governance")

// Target is one dispatchable component. Execute hands it the proposal's
// stored call with the governance module account as the ambient caller, so
// targets run their usual capability checks against that account.
type Target interface {
	Dispatch(ctx context.Context, call models.Call) error
}

// Params are the mutable governance knobs. They apply to proposals at
// creation time: changing the voting period never moves an existing
// proposal's deadline.
type Params struct {
	VotingPeriod   time.Duration
	ExecutionDelay time.Duration
	RequiredVotes  int
}

// Service is the governance state machine. The commit lock realizes the
// sequential single-writer execution model shared with the transfer
// executor.
type Service struct {
	mu           sync.Mutex
	store        store.Store
	capabilities capability.Registry
	targets      map[string]Target
	params       Params
	module       id.AccountID
	inProgress   map[id.ProposalID]bool
	publisher    events.Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics sets the governance metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the governance service. The module account is the identity
// executed proposals dispatch as; grant it the capabilities the targets
// require.
func New(proposalStore store.Store, capabilities capability.Registry, module id.AccountID, params Params, opts ...Option) (*Service, error) {
	if proposalStore == nil || capabilities == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "proposal store and capability registry are required")
	}
	if module.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddressTarget, "governance module account must be non-null")
	}
	if params.RequiredVotes < 1 {
		return nil, dErrors.New(dErrors.CodeQuorumInvariant, "required votes must be at least 1")
	}
	if params.VotingPeriod <= 0 || params.ExecutionDelay < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "voting period must be positive and execution delay non-negative")
	}

	svc := &Service{
		store:        proposalStore,
		capabilities: capabilities,
		targets:      make(map[string]Target),
		params:       params,
		module:       module,
		inProgress:   make(map[id.ProposalID]bool),
		publisher:    events.NewMemoryPublisher(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterTarget makes a component addressable by proposals. Call during
// wiring, before the service receives traffic.
func (s *Service) RegisterTarget(name string, target Target) {
	s.targets[name] = target
}

// Propose creates a proposal. Requires the Governor capability, a
// registered target, and a non-empty description.
func (s *Service) Propose(ctx context.Context, call models.Call, description string) (id.ProposalID, error) {
	ctx, span := tracer.Start(ctx, "governance.Propose")
	defer span.End()

	if err := s.require(ctx, capability.Governor); err != nil {
		return 0, err
	}
	if call.Target == "" {
		return 0, dErrors.New(dErrors.CodeZeroAddressTarget, "proposal target must be named")
	}
	if _, ok := s.targets[call.Target]; !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown dispatch target %q", call.Target)
	}
	if description == "" {
		return 0, dErrors.New(dErrors.CodeEmptyDescription, "proposal description must not be empty")
	}
	if call.Value != nil && call.Value.Sign() < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "proposal value cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	proposal := models.Proposal{
		Proposer:       requestcontext.CallerID(ctx),
		Call:           call,
		Description:    description,
		CreatedAt:      now,
		VotingDeadline: now.Add(s.params.VotingPeriod),
		ETA:            now.Add(s.params.VotingPeriod + s.params.ExecutionDelay),
	}

	proposalID, err := s.store.Create(ctx, proposal)
	if err != nil {
		return 0, err
	}

	s.metrics.ObserveProposal()
	s.emit(ctx, events.KindProposalCreated, map[string]string{
		"proposal": proposalString(proposalID),
		"proposer": proposal.Proposer.String(),
		"target":   call.Target,
		"method":   call.Method,
	})
	return proposalID, nil
}

// CastVote records the caller's choice. One vote per governor per proposal,
// no withdrawal or change once cast.
func (s *Service) CastVote(ctx context.Context, proposalID id.ProposalID, support bool) error {
	ctx, span := tracer.Start(ctx, "governance.CastVote")
	defer span.End()

	if err := s.require(ctx, capability.Governor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, err := s.store.Get(ctx, proposalID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	if proposal.Cancelled {
		return dErrors.New(dErrors.CodeVotingClosed, "proposal is cancelled")
	}
	if now.After(proposal.VotingDeadline) {
		return dErrors.New(dErrors.CodeVotingClosed, "voting deadline has passed")
	}

	voter := requestcontext.CallerID(ctx)
	if err := s.store.RecordVote(ctx, proposalID, voter, support); err != nil {
		return err
	}

	s.metrics.ObserveVote(support)
	s.emit(ctx, events.KindProposalVoted, map[string]string{
		"proposal": proposalString(proposalID),
		"voter":    voter.String(),
		"support":  boolString(support),
	})
	return nil
}

// Execute dispatches an eligible proposal exactly once. Callable by anyone:
// eligibility is a property of the proposal, not the caller. The executed
// flag is persisted before the dispatch; a failed dispatch clears it again,
// so the proposal stays retryable, never half-done.
func (s *Service) Execute(ctx context.Context, proposalID id.ProposalID) error {
	ctx, span := tracer.Start(ctx, "governance.Execute")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeLocked(ctx, proposalID)
}

func (s *Service) executeLocked(ctx context.Context, proposalID id.ProposalID) error {
	if s.inProgress[proposalID] {
		return dErrors.Newf(dErrors.CodeNotEligibleForExecution, "proposal %d is already being executed", proposalID)
	}

	proposal, err := s.store.Get(ctx, proposalID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	switch {
	case proposal.Cancelled:
		return dErrors.New(dErrors.CodeAlreadyCancelled, "proposal is cancelled")
	case proposal.Executed:
		return dErrors.New(dErrors.CodeAlreadyExecuted, "proposal already executed")
	case !proposal.Executable(now, s.params.RequiredVotes):
		s.metrics.ObserveExecution("not_eligible")
		return dErrors.Newf(dErrors.CodeNotEligibleForExecution, "proposal %d is %s", proposalID, proposal.StateAt(now, s.params.RequiredVotes))
	}

	target, ok := s.targets[proposal.Call.Target]
	if !ok {
		return dErrors.Newf(dErrors.CodeExecutionDispatchFailed, "dispatch target %q is no longer registered", proposal.Call.Target)
	}

	proposal.Executed = true
	if err := s.store.Update(ctx, proposal); err != nil {
		return err
	}

	s.inProgress[proposalID] = true
	dispatchCtx := requestcontext.WithCallerID(ctx, s.module)
	dispatchErr := target.Dispatch(dispatchCtx, proposal.Call)
	delete(s.inProgress, proposalID)

	if dispatchErr != nil {
		proposal.Executed = false
		if err := s.store.Update(ctx, proposal); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear executed flag after dispatch failure",
				"proposal", proposalID, "error", err)
		}
		s.metrics.ObserveExecution("dispatch_failed")
		return dErrors.Wrap(dispatchErr, dErrors.CodeExecutionDispatchFailed, "proposal dispatch failed")
	}

	s.metrics.ObserveExecution("success")
	s.emit(ctx, events.KindProposalExecuted, map[string]string{
		"proposal": proposalString(proposalID),
		"target":   proposal.Call.Target,
		"method":   proposal.Call.Method,
	})
	return nil
}

// Cancel marks a proposal cancelled. Only the proposer or an Administrator
// may cancel, and never after execution.
func (s *Service) Cancel(ctx context.Context, proposalID id.ProposalID) error {
	ctx, span := tracer.Start(ctx, "governance.Cancel")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, err := s.store.Get(ctx, proposalID)
	if err != nil {
		return err
	}

	caller := requestcontext.CallerID(ctx)
	if caller != proposal.Proposer {
		isAdmin, err := s.capabilities.Has(ctx, capability.Administrator, caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
		}
		if !isAdmin {
			return dErrors.New(dErrors.CodeCapabilityRequired, "only the proposer or an administrator may cancel")
		}
	}
	if proposal.Executed {
		return dErrors.New(dErrors.CodeAlreadyExecuted, "proposal already executed")
	}
	if proposal.Cancelled {
		return dErrors.New(dErrors.CodeAlreadyCancelled, "proposal already cancelled")
	}

	proposal.Cancelled = true
	if err := s.store.Update(ctx, proposal); err != nil {
		return err
	}

	s.emit(ctx, events.KindProposalCancelled, map[string]string{
		"proposal": proposalString(proposalID),
	})
	return nil
}

// AddGovernor grants the Governor capability. Requires Administrator.
func (s *Service) AddGovernor(ctx context.Context, account id.AccountID) error {
	if err := s.require(ctx, capability.Administrator); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "governor must be a non-null account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addGovernorLocked(ctx, account)
}

func (s *Service) addGovernorLocked(ctx context.Context, account id.AccountID) error {
	isGovernor, err := s.capabilities.Has(ctx, capability.Governor, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	if isGovernor {
		return dErrors.New(dErrors.CodeGovernorSetInvariant, "account is already a governor")
	}
	if err := s.capabilities.Grant(ctx, capability.Governor, account); err != nil {
		return err
	}

	s.emit(ctx, events.KindGovernorAdded, map[string]string{
		"account": account.String(),
	})
	return nil
}

// RemoveGovernor revokes the Governor capability. The set never shrinks
// below one member.
func (s *Service) RemoveGovernor(ctx context.Context, account id.AccountID) error {
	if err := s.require(ctx, capability.Administrator); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeGovernorLocked(ctx, account)
}

func (s *Service) removeGovernorLocked(ctx context.Context, account id.AccountID) error {
	governors, err := s.capabilities.Accounts(ctx, capability.Governor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	isGovernor := false
	for _, g := range governors {
		if g == account {
			isGovernor = true
			break
		}
	}
	if !isGovernor {
		return dErrors.New(dErrors.CodeGovernorSetInvariant, "account is not a governor")
	}
	if len(governors) <= 1 {
		return dErrors.New(dErrors.CodeGovernorSetInvariant, "governor set cannot become empty")
	}
	if err := s.capabilities.Revoke(ctx, capability.Governor, account); err != nil {
		return err
	}

	s.emit(ctx, events.KindGovernorRemoved, map[string]string{
		"account": account.String(),
	})
	return nil
}

// SetRequiredVotes changes the quorum. It must stay between 1 and the
// current governor count.
func (s *Service) SetRequiredVotes(ctx context.Context, votes int) error {
	if err := s.require(ctx, capability.Administrator); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRequiredVotesLocked(ctx, votes)
}

func (s *Service) setRequiredVotesLocked(ctx context.Context, votes int) error {
	governors, err := s.capabilities.Accounts(ctx, capability.Governor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	if votes == 0 || votes > len(governors) {
		return dErrors.Newf(dErrors.CodeQuorumInvariant, "required votes must be between 1 and %d", len(governors))
	}

	s.params.RequiredVotes = votes
	s.emit(ctx, events.KindConfigChanged, map[string]string{
		"setting": "required_votes",
		"value":   strconv.Itoa(votes),
	})
	return nil
}

// SetVotingPeriod changes the voting window for future proposals.
func (s *Service) SetVotingPeriod(ctx context.Context, period time.Duration) error {
	if err := s.require(ctx, capability.Administrator); err != nil {
		return err
	}
	if period <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "voting period must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVotingPeriodLocked(ctx, period)
}

func (s *Service) setVotingPeriodLocked(ctx context.Context, period time.Duration) error {
	s.params.VotingPeriod = period
	s.emit(ctx, events.KindConfigChanged, map[string]string{
		"setting": "voting_period",
		"value":   period.String(),
	})
	return nil
}

// SetExecutionDelay changes the timelock for future proposals.
func (s *Service) SetExecutionDelay(ctx context.Context, delay time.Duration) error {
	if err := s.require(ctx, capability.Administrator); err != nil {
		return err
	}
	if delay < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "execution delay cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setExecutionDelayLocked(ctx, delay)
}

func (s *Service) setExecutionDelayLocked(ctx context.Context, delay time.Duration) error {
	s.params.ExecutionDelay = delay
	s.emit(ctx, events.KindConfigChanged, map[string]string{
		"setting": "execution_delay",
		"value":   delay.String(),
	})
	return nil
}

// GetProposal returns the stored proposal.
func (s *Service) GetProposal(ctx context.Context, proposalID id.ProposalID) (models.Proposal, error) {
	return s.store.Get(ctx, proposalID)
}

// StateOf derives the proposal's state at the ambient request time.
func (s *Service) StateOf(ctx context.Context, proposalID id.ProposalID) (models.State, error) {
	proposal, err := s.store.Get(ctx, proposalID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	required := s.params.RequiredVotes
	s.mu.Unlock()

	return proposal.StateAt(requestcontext.Now(ctx), required), nil
}

// Governors lists the current governor set.
func (s *Service) Governors(ctx context.Context) ([]id.AccountID, error) {
	return s.capabilities.Accounts(ctx, capability.Governor)
}

// IsGovernor reports whether the account holds the Governor capability.
func (s *Service) IsGovernor(ctx context.Context, account id.AccountID) (bool, error) {
	return s.capabilities.Has(ctx, capability.Governor, account)
}

// HasVoted reports whether the account voted on the proposal.
func (s *Service) HasVoted(ctx context.Context, proposalID id.ProposalID, account id.AccountID) (bool, error) {
	return s.store.HasVoted(ctx, proposalID, account)
}

// VoteChoice returns the account's recorded choice. The caller should check
// HasVoted first; the result is false for a voter with no record.
func (s *Service) VoteChoice(ctx context.Context, proposalID id.ProposalID, account id.AccountID) (bool, error) {
	return s.store.VoteChoice(ctx, proposalID, account)
}

// CurrentParams returns the governance knobs in force.
func (s *Service) CurrentParams() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Service) require(ctx context.Context, kind capability.Kind) error {
	caller := requestcontext.CallerID(ctx)
	has, err := s.capabilities.Has(ctx, kind, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	if !has {
		return dErrors.Newf(dErrors.CodeCapabilityRequired, "caller lacks the %s capability", kind)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind events.Kind, attrs map[string]string) {
	event := events.New(kind, requestcontext.Now(ctx), attrs)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emit failed", "kind", kind, "error", err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func proposalString(proposalID id.ProposalID) string {
	return strconv.FormatUint(uint64(proposalID), 10)
}
