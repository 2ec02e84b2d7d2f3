package policy

import (
	"context"
	"math/big"
	"time"

	"covenant/internal/ledger/models"
	"covenant/internal/policy/metrics"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

// View is the engine's read-only window onto ledger state. Evaluation
// performs no writes through it.
type View interface {
	Account(ctx context.Context, account id.AccountID) (models.Account, error)
	HolderCount(ctx context.Context) (int, error)
	// DailySpent returns the sender's cumulative transfer volume for the
	// day containing now. A new day reads as zero (lazy window reset).
	DailySpent(ctx context.Context, account id.AccountID, now time.Time) (*big.Int, error)
}

// Engine evaluates transfer restrictions. Rules are an explicit ordered
// list evaluated top to bottom with early return: the first applicable rule
// wins, so adding rules later cannot disturb existing precedence.
type Engine struct {
	view    View
	config  ConfigStore
	rules   []rule
	metrics *metrics.Metrics
}

type rule struct {
	code    Code
	applies func(*evalInput) bool
}

// evalInput carries everything a rule may consult, gathered once per
// evaluation so every rule sees the same snapshot.
type evalInput struct {
	from, to    id.AccountID
	fromAcct    models.Account
	toAcct      models.Account
	amount      *big.Int
	cfg         Configuration
	holderCount int
	dailySpent  *big.Int
}

// Option configures the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine builds the engine over a ledger view and a config store.
func NewEngine(view View, config ConfigStore, opts ...Option) *Engine {
	e := &Engine{view: view, config: config}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = orderedRules()
	return e
}

// Evaluate maps a proposed movement (from, to, amount) onto a restriction
// code. A null from denotes a mint, a null to denotes a burn; identity,
// authorization, region, and lock rules skip the null side. Pure: identical
// state and arguments always produce the identical code.
func (e *Engine) Evaluate(ctx context.Context, from, to id.AccountID, amount *big.Int) (Code, error) {
	start := time.Now()

	in, err := e.gather(ctx, from, to, amount)
	if err != nil {
		return CodeSuccess, err
	}

	code := CodeSuccess
	for _, r := range e.rules {
		if r.applies(in) {
			code = r.code
			break
		}
	}

	e.metrics.ObserveEvaluation(uint8(code), time.Since(start))
	return code, nil
}

func (e *Engine) gather(ctx context.Context, from, to id.AccountID, amount *big.Int) (*evalInput, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be non-negative")
	}

	cfg, err := e.config.Current(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load policy configuration")
	}

	in := &evalInput{from: from, to: to, amount: amount, cfg: cfg, dailySpent: new(big.Int)}

	if !from.IsZero() {
		if in.fromAcct, err = e.view.Account(ctx, from); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load sender account")
		}
	}
	if !to.IsZero() {
		if in.toAcct, err = e.view.Account(ctx, to); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load recipient account")
		}
	}
	if in.holderCount, err = e.view.HolderCount(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load holder count")
	}

	// Daily accounting applies to peer transfers only; mint and burn are
	// administrative issuance and bypass it.
	if !from.IsZero() && !to.IsZero() && in.fromAcct.DailyLimit != nil {
		spent, err := e.view.DailySpent(ctx, from, requestcontext.Now(ctx))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load daily spend")
		}
		in.dailySpent = spent
	}
	return in, nil
}

// orderedRules is the canonical precedence: identity and eligibility
// prohibitions first, then authorization and geography, then liquidity and
// arithmetic bounds, with the advisory compliance heuristic last so it never
// masks a harder violation. A disallowed counterparty therefore learns
// nothing about balance sufficiency.
func orderedRules() []rule {
	return []rule{
		{CodeSenderBlacklisted, func(in *evalInput) bool {
			return !in.from.IsZero() && in.fromAcct.Blacklisted
		}},
		{CodeReceiverBlacklisted, func(in *evalInput) bool {
			return !in.to.IsZero() && in.toAcct.Blacklisted
		}},
		{CodeSanctioned, func(in *evalInput) bool {
			return (!in.from.IsZero() && in.fromAcct.Sanctioned) ||
				(!in.to.IsZero() && in.toAcct.Sanctioned)
		}},
		{CodeSenderKYCInvalid, func(in *evalInput) bool {
			return in.cfg.KYCRequired && !in.from.IsZero() && !in.fromAcct.KYCVerified
		}},
		{CodeReceiverKYCInvalid, func(in *evalInput) bool {
			return in.cfg.KYCRequired && !in.to.IsZero() && !in.toAcct.KYCVerified
		}},
		{CodeInvalidRecipient, func(in *evalInput) bool {
			return in.cfg.RecipientValidationRequired && !in.to.IsZero() && !in.toAcct.ValidRecipient
		}},
		{CodeUnauthorizedTransfer, func(in *evalInput) bool {
			return in.cfg.TransferAuthorizationRequired && !in.from.IsZero() && !in.fromAcct.AuthorizedSender
		}},
		{CodeRegionRestriction, func(in *evalInput) bool {
			if !in.cfg.RegionRestrictionsEnabled || in.from.IsZero() || in.to.IsZero() {
				return false
			}
			return !in.cfg.RegionAllowed(in.fromAcct.RegionCode) ||
				!in.cfg.RegionAllowed(in.toAcct.RegionCode)
		}},
		{CodeTransferLocked, func(in *evalInput) bool {
			return (!in.from.IsZero() && in.fromAcct.TransferLocked) ||
				(!in.to.IsZero() && in.toAcct.TransferLocked)
		}},
		{CodeInsufficientBalance, func(in *evalInput) bool {
			return !in.from.IsZero() && in.amount.Cmp(in.fromAcct.EffectiveBalance()) > 0
		}},
		{CodePaused, func(in *evalInput) bool {
			return in.cfg.Paused
		}},
		{CodeAmountOutOfRange, func(in *evalInput) bool {
			if in.cfg.MaxTransferAmount != nil && in.amount.Cmp(in.cfg.MaxTransferAmount) > 0 {
				return true
			}
			// Mint and burn are exempt from the minimum: administrative
			// issuance may move dust the policy forbids between peers.
			peer := !in.from.IsZero() && !in.to.IsZero()
			if peer && in.cfg.MinTransferAmount != nil && in.amount.Cmp(in.cfg.MinTransferAmount) < 0 {
				return true
			}
			if peer && in.fromAcct.DailyLimit != nil {
				projected := new(big.Int).Add(in.dailySpent, in.amount)
				if projected.Cmp(in.fromAcct.DailyLimit) > 0 {
					return true
				}
			}
			return false
		}},
		{CodeHolderLimitExceeded, func(in *evalInput) bool {
			if in.to.IsZero() || in.cfg.MaxHolderCount == 0 {
				return false
			}
			newHolder := in.toAcct.EffectiveBalance().Sign() == 0 && in.amount.Sign() > 0
			return newHolder && in.holderCount+1 > in.cfg.MaxHolderCount
		}},
		{CodeComplianceViolation, func(in *evalInput) bool {
			// Heuristic: a large first-time credit. Large means above the
			// configured fraction of the max transfer bound; first-time
			// means the recipient currently holds nothing.
			if in.to.IsZero() || in.cfg.MaxTransferAmount == nil || in.cfg.LargeTransferBps <= 0 {
				return false
			}
			if in.toAcct.EffectiveBalance().Sign() != 0 {
				return false
			}
			threshold := new(big.Int).Mul(in.cfg.MaxTransferAmount, big.NewInt(int64(in.cfg.LargeTransferBps)))
			threshold.Quo(threshold, big.NewInt(10000))
			return in.amount.Cmp(threshold) > 0
		}},
	}
}
