// Package compliance is the mutation surface for the transfer policy:
// per-account flags, policy configuration, and the pause switch. Every
// setter is a total overwrite gated on a capability, and every successful
// mutation emits an event.
package compliance

import (
	"context"
	"log/slog"
	"math/big"
	"strconv"

	"covenant/internal/capability"
	"covenant/internal/events"
	"covenant/internal/ledger/models"
	"covenant/internal/ledger/store"
	"covenant/internal/policy"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

// Service mutates policy state. Reads go through the policy engine and the
// ledger store directly; this service only writes.
type Service struct {
	ledger       store.Store
	config       policy.ConfigStore
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

// New constructs the compliance service.
func New(ledger store.Store, config policy.ConfigStore, capabilities capability.Registry, opts ...Option) (*Service, error) {
	if ledger == nil || config == nil || capabilities == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ledger store, config store, and capability registry are required")
	}

	svc := &Service{
		ledger:       ledger,
		config:       config,
		capabilities: capabilities,
		publisher:    events.NewMemoryPublisher(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Configuration returns the current policy configuration.
func (s *Service) Configuration(ctx context.Context) (policy.Configuration, error) {
	return s.config.Current(ctx)
}

// SetFlag overwrites one compliance flag on an account.
func (s *Service) SetFlag(ctx context.Context, account id.AccountID, flag models.Flag, value bool) error {
	if err := s.require(ctx, capability.Compliance); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "flag subject must be a non-null account")
	}
	if !flag.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown flag %q", flag)
	}

	if err := s.ledger.SetFlag(ctx, account, flag, value); err != nil {
		return err
	}
	s.emit(ctx, events.KindFlagChanged, map[string]string{
		"account": account.String(),
		"flag":    string(flag),
		"value":   strconv.FormatBool(value),
	})
	return nil
}

// SetRegionCode overwrites an account's region code.
func (s *Service) SetRegionCode(ctx context.Context, account id.AccountID, code int) error {
	if err := s.require(ctx, capability.Compliance); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "region subject must be a non-null account")
	}

	if err := s.ledger.SetRegionCode(ctx, account, code); err != nil {
		return err
	}
	s.emit(ctx, events.KindRegionChanged, map[string]string{
		"account": account.String(),
		"region":  strconv.Itoa(code),
	})
	return nil
}

// SetDailyTransferLimit overwrites an account's daily limit; nil clears it.
func (s *Service) SetDailyTransferLimit(ctx context.Context, account id.AccountID, limit *big.Int) error {
	if err := s.require(ctx, capability.Compliance); err != nil {
		return err
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "limit subject must be a non-null account")
	}
	if limit != nil && limit.Sign() < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "daily limit cannot be negative")
	}

	if err := s.ledger.SetDailyLimit(ctx, account, limit); err != nil {
		return err
	}

	attrs := map[string]string{"account": account.String()}
	if limit != nil {
		attrs["limit"] = limit.String()
	}
	s.emit(ctx, events.KindDailyLimitChanged, attrs)
	return nil
}

// SetKYCRequired toggles the global KYC requirement.
func (s *Service) SetKYCRequired(ctx context.Context, required bool) error {
	return s.updateConfig(ctx, "kyc_required", strconv.FormatBool(required), func(c *policy.Configuration) {
		c.KYCRequired = required
	})
}

// SetRecipientValidationRequired toggles the recipient allow-list.
func (s *Service) SetRecipientValidationRequired(ctx context.Context, required bool) error {
	return s.updateConfig(ctx, "recipient_validation_required", strconv.FormatBool(required), func(c *policy.Configuration) {
		c.RecipientValidationRequired = required
	})
}

// SetTransferAuthorizationRequired toggles the sender authorization list.
func (s *Service) SetTransferAuthorizationRequired(ctx context.Context, required bool) error {
	return s.updateConfig(ctx, "transfer_authorization_required", strconv.FormatBool(required), func(c *policy.Configuration) {
		c.TransferAuthorizationRequired = required
	})
}

// SetRegionRestrictionsEnabled toggles geographic restrictions.
func (s *Service) SetRegionRestrictionsEnabled(ctx context.Context, enabled bool) error {
	return s.updateConfig(ctx, "region_restrictions_enabled", strconv.FormatBool(enabled), func(c *policy.Configuration) {
		c.RegionRestrictionsEnabled = enabled
	})
}

// SetAllowedRegion adds or removes one region from the allow-list.
func (s *Service) SetAllowedRegion(ctx context.Context, region int, allowed bool) error {
	return s.updateConfig(ctx, "allowed_region", strconv.Itoa(region)+"="+strconv.FormatBool(allowed), func(c *policy.Configuration) {
		if allowed {
			c.AllowedRegions[region] = true
		} else {
			delete(c.AllowedRegions, region)
		}
	})
}

// SetTransferLimits overwrites the global amount bounds; nil means
// unbounded on that side.
func (s *Service) SetTransferLimits(ctx context.Context, max, min *big.Int) error {
	if max != nil && min != nil && max.Cmp(min) < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max transfer amount below min")
	}

	bound := func(v *big.Int) string {
		if v == nil {
			return "unbounded"
		}
		return v.String()
	}
	return s.updateConfig(ctx, "transfer_limits", "max="+bound(max)+" min="+bound(min), func(c *policy.Configuration) {
		c.MaxTransferAmount = nil
		c.MinTransferAmount = nil
		if max != nil {
			c.MaxTransferAmount = new(big.Int).Set(max)
		}
		if min != nil {
			c.MinTransferAmount = new(big.Int).Set(min)
		}
	})
}

// SetMaxHolderCount overwrites the holder cap; zero removes it.
func (s *Service) SetMaxHolderCount(ctx context.Context, max int) error {
	if max < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max holder count cannot be negative")
	}
	return s.updateConfig(ctx, "max_holder_count", strconv.Itoa(max), func(c *policy.Configuration) {
		c.MaxHolderCount = max
	})
}

// SetLargeTransferBps overwrites the compliance-heuristic threshold.
func (s *Service) SetLargeTransferBps(ctx context.Context, bps int) error {
	if bps < 0 || bps > 10000 {
		return dErrors.New(dErrors.CodeInvalidInput, "threshold must be between 0 and 10000 basis points")
	}
	return s.updateConfig(ctx, "large_transfer_bps", strconv.Itoa(bps), func(c *policy.Configuration) {
		c.LargeTransferBps = bps
	})
}

// Pause halts all value movement. Requires the Pauser capability.
func (s *Service) Pause(ctx context.Context) error {
	if err := s.require(ctx, capability.Pauser); err != nil {
		return err
	}
	if _, err := s.config.Update(ctx, func(c *policy.Configuration) {
		c.Paused = true
	}); err != nil {
		return err
	}
	s.emit(ctx, events.KindPaused, nil)
	return nil
}

// Unpause resumes value movement. Requires the Pauser capability.
func (s *Service) Unpause(ctx context.Context) error {
	if err := s.require(ctx, capability.Pauser); err != nil {
		return err
	}
	if _, err := s.config.Update(ctx, func(c *policy.Configuration) {
		c.Paused = false
	}); err != nil {
		return err
	}
	s.emit(ctx, events.KindUnpaused, nil)
	return nil
}

func (s *Service) updateConfig(ctx context.Context, setting, value string, fn func(*policy.Configuration)) error {
	if err := s.require(ctx, capability.Compliance); err != nil {
		return err
	}
	if _, err := s.config.Update(ctx, fn); err != nil {
		return err
	}
	s.emit(ctx, events.KindConfigChanged, map[string]string{
		"setting": setting,
		"value":   value,
	})
	return nil
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
