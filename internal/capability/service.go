package capability

import (
	"context"
	"log/slog"

	"covenant/internal/events"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

// Service is the administrative surface over the registry: grants and
// revocations require the Administrator capability and emit events; reads
// pass straight through.
type Service struct {
	registry  Registry
	publisher events.Publisher
	logger    *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(publisher events.Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// NewService wraps a registry.
func NewService(registry Registry, opts ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "capability registry is required")
	}
	svc := &Service{
		registry:  registry,
		publisher: events.NewMemoryPublisher(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Grant gives the account the capability. Requires Administrator. Governor
// membership is owned by the governance service, which enforces the set
// invariants; it cannot be granted here.
func (s *Service) Grant(ctx context.Context, kind Kind, account id.AccountID) error {
	if err := s.checkMutable(kind); err != nil {
		return err
	}
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.registry.Grant(ctx, kind, account); err != nil {
		return err
	}
	s.emit(ctx, events.KindCapabilityGranted, kind, account)
	return nil
}

// Revoke removes the capability from the account. Requires Administrator.
// Governor revocations go through governance.RemoveGovernor, which refuses
// to shrink the set below its minimum.
func (s *Service) Revoke(ctx context.Context, kind Kind, account id.AccountID) error {
	if err := s.checkMutable(kind); err != nil {
		return err
	}
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.registry.Revoke(ctx, kind, account); err != nil {
		return err
	}
	s.emit(ctx, events.KindCapabilityRevoked, kind, account)
	return nil
}

func (s *Service) checkMutable(kind Kind) error {
	if !kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability %q", kind)
	}
	if kind == Governor {
		return dErrors.New(dErrors.CodeGovernorSetInvariant, "governor membership is managed through governance")
	}
	return nil
}

// Has reports membership.
func (s *Service) Has(ctx context.Context, kind Kind, account id.AccountID) (bool, error) {
	if !kind.IsValid() {
		return false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability %q", kind)
	}
	return s.registry.Has(ctx, kind, account)
}

// Accounts lists members of the capability.
func (s *Service) Accounts(ctx context.Context, kind Kind) ([]id.AccountID, error) {
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability %q", kind)
	}
	return s.registry.Accounts(ctx, kind)
}

func (s *Service) requireAdmin(ctx context.Context) error {
	caller := requestcontext.CallerID(ctx)
	isAdmin, err := s.registry.Has(ctx, Administrator, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	if !isAdmin {
		return dErrors.New(dErrors.CodeCapabilityRequired, "caller lacks the administrator capability")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind events.Kind, capability Kind, account id.AccountID) {
	event := events.New(kind, requestcontext.Now(ctx), map[string]string{
		"capability": string(capability),
		"account":    account.String(),
	})
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emit failed", "kind", kind, "error", err)
	}
}
