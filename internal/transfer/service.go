// Package transfer implements the transfer executor: policy evaluation
// wrapped around the actual balance mutation, holder-count maintenance, and
// daily-quota bookkeeping, shared by transfer, mint, and burn.
package transfer

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"go.opentelemetry.io/otel"

	"covenant/internal/capability"
	"covenant/internal/events"
	"covenant/internal/ledger/store"
	"covenant/internal/policy"
	"covenant/internal/transfer/quota"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

var tracer = otel.Tracer("covenant/internal/transfer")

// Service is the transfer executor. A single commit lock realizes the
// sequential single-writer execution model: no operation observes another's
// partially applied effect.
type Service struct {
	mu           sync.Mutex
	ledger       store.Store
	quota        quota.Store
	engine       *policy.Engine
	capabilities capability.Registry
	publisher    events.Publisher
	logger       *slog.Logger
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

// New constructs the executor.
func New(ledger store.Store, quotaStore quota.Store, engine *policy.Engine, capabilities capability.Registry, opts ...Option) (*Service, error) {
	if ledger == nil || quotaStore == nil || engine == nil || capabilities == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ledger, quota store, engine, and capability registry are required")
	}

	svc := &Service{
		ledger:       ledger,
		quota:        quotaStore,
		engine:       engine,
		capabilities: capabilities,
		publisher:    events.NewMemoryPublisher(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Evaluate is the public pre-flight simulation: same engine, no mutation,
// callable by anyone.
func (s *Service) Evaluate(ctx context.Context, from, to id.AccountID, amount *big.Int) (policy.Code, error) {
	return s.engine.Evaluate(ctx, from, to, amount)
}

// Transfer moves amount between peers. The caller may only move its own
// funds; policy denials surface as *policy.Error with no mutation.
func (s *Service) Transfer(ctx context.Context, from, to id.AccountID, amount *big.Int) error {
	ctx, span := tracer.Start(ctx, "transfer.Transfer")
	defer span.End()

	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "transfer endpoints must be non-null accounts")
	}
	if caller := requestcontext.CallerID(ctx); caller != from {
		return dErrors.New(dErrors.CodeUnauthorized, "caller may only transfer its own funds")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.engine.Evaluate(ctx, from, to, amount)
	if err != nil {
		return err
	}
	if code != policy.CodeSuccess {
		s.logger.InfoContext(ctx, "transfer restricted",
			"from", from.String(), "to", to.String(), "amount", amount.String(),
			"code", uint8(code),
		)
		return policy.NewError(code)
	}

	if err := s.ledger.ApplyTransfer(ctx, from, to, amount); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	if err := s.quota.Add(ctx, from.String(), amount, now); err != nil {
		// The balance has moved; quota lag only loosens the daily cap
		// until the next window.
		s.logger.ErrorContext(ctx, "daily quota bookkeeping failed",
			"from", from.String(), "error", err,
		)
	}

	s.emit(ctx, events.New(events.KindTransfer, now, map[string]string{
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}))
	return nil
}

// Mint issues new units to a non-null account. Requires the Minter
// capability.
func (s *Service) Mint(ctx context.Context, to id.AccountID, amount *big.Int) error {
	ctx, span := tracer.Start(ctx, "transfer.Mint")
	defer span.End()

	if to.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "cannot mint to the null identifier")
	}
	if err := s.requireCapability(ctx, capability.Minter); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.engine.Evaluate(ctx, id.ZeroAccount, to, amount)
	if err != nil {
		return err
	}
	if code != policy.CodeSuccess {
		return policy.NewError(code)
	}

	if err := s.ledger.Mint(ctx, to, amount); err != nil {
		return err
	}

	s.emit(ctx, events.New(events.KindMint, requestcontext.Now(ctx), map[string]string{
		"to":     to.String(),
		"amount": amount.String(),
	}))
	return nil
}

// Burn destroys units from the caller's own balance.
func (s *Service) Burn(ctx context.Context, amount *big.Int) error {
	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "burn requires an authenticated caller")
	}
	return s.burn(ctx, caller, amount)
}

// BurnFrom destroys units from another account. Requires the Burner
// capability.
func (s *Service) BurnFrom(ctx context.Context, from id.AccountID, amount *big.Int) error {
	if err := s.requireCapability(ctx, capability.Burner); err != nil {
		return err
	}
	if from.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "cannot burn from the null identifier")
	}
	return s.burn(ctx, from, amount)
}

func (s *Service) burn(ctx context.Context, from id.AccountID, amount *big.Int) error {
	ctx, span := tracer.Start(ctx, "transfer.Burn")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.engine.Evaluate(ctx, from, id.ZeroAccount, amount)
	if err != nil {
		return err
	}
	if code == policy.CodeInsufficientBalance {
		// Burn advertises the structural error, not a policy denial.
		return dErrors.New(dErrors.CodeInsufficientBalance, "burn amount exceeds balance")
	}
	if code != policy.CodeSuccess {
		return policy.NewError(code)
	}

	if err := s.ledger.Burn(ctx, from, amount); err != nil {
		return err
	}

	s.emit(ctx, events.New(events.KindBurn, requestcontext.Now(ctx), map[string]string{
		"from":   from.String(),
		"amount": amount.String(),
	}))
	return nil
}

// BalanceOf reads one balance.
func (s *Service) BalanceOf(ctx context.Context, account id.AccountID) (*big.Int, error) {
	acct, err := s.ledger.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	return acct.EffectiveBalance(), nil
}

// TotalSupply reads the current supply.
func (s *Service) TotalSupply(ctx context.Context) (*big.Int, error) {
	return s.ledger.TotalSupply(ctx)
}

// HolderCount reads the number of non-zero-balance accounts.
func (s *Service) HolderCount(ctx context.Context) (int, error) {
	return s.ledger.HolderCount(ctx)
}

func (s *Service) requireCapability(ctx context.Context, kind capability.Kind) error {
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

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emit failed", "kind", event.Kind, "error", err)
	}
}
