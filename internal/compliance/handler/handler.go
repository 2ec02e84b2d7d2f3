// Package handler exposes the compliance surface over HTTP: per-account
// flags, policy configuration, the pause switch, and the account detail
// read accessor.
package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"covenant/internal/ledger/models"
	"covenant/internal/policy"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Service is the compliance surface the handler needs.
type Service interface {
	Configuration(ctx context.Context) (policy.Configuration, error)
	SetFlag(ctx context.Context, account id.AccountID, flag models.Flag, value bool) error
	SetRegionCode(ctx context.Context, account id.AccountID, code int) error
	SetDailyTransferLimit(ctx context.Context, account id.AccountID, limit *big.Int) error
	SetKYCRequired(ctx context.Context, required bool) error
	SetRecipientValidationRequired(ctx context.Context, required bool) error
	SetTransferAuthorizationRequired(ctx context.Context, required bool) error
	SetRegionRestrictionsEnabled(ctx context.Context, enabled bool) error
	SetAllowedRegion(ctx context.Context, region int, allowed bool) error
	SetTransferLimits(ctx context.Context, max, min *big.Int) error
	SetMaxHolderCount(ctx context.Context, max int) error
	SetLargeTransferBps(ctx context.Context, bps int) error
	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
}

// AccountReader serves the account detail accessor.
type AccountReader interface {
	Get(ctx context.Context, account id.AccountID) (models.Account, error)
}

// Handler handles compliance endpoints.
type Handler struct {
	service  Service
	accounts AccountReader
	logger   *slog.Logger
}

// New creates a compliance Handler.
func New(service Service, accounts AccountReader, logger *slog.Logger) *Handler {
	return &Handler{service: service, accounts: accounts, logger: logger}
}

// RegisterProtected mounts the mutating routes; callers go through auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Put("/accounts/{account}/flags/{flag}", h.handleSetFlag)
	r.Put("/accounts/{account}/region", h.handleSetRegionCode)
	r.Put("/accounts/{account}/daily-limit", h.handleSetDailyLimit)
	r.Put("/policy/kyc-required", h.toggle(h.service.SetKYCRequired))
	r.Put("/policy/recipient-validation", h.toggle(h.service.SetRecipientValidationRequired))
	r.Put("/policy/transfer-authorization", h.toggle(h.service.SetTransferAuthorizationRequired))
	r.Put("/policy/region-restrictions", h.toggle(h.service.SetRegionRestrictionsEnabled))
	r.Put("/policy/allowed-regions", h.handleSetAllowedRegion)
	r.Put("/policy/transfer-limits", h.handleSetTransferLimits)
	r.Put("/policy/max-holder-count", h.handleSetMaxHolderCount)
	r.Put("/policy/large-transfer-bps", h.handleSetLargeTransferBps)
	r.Post("/pause", h.handlePause)
	r.Post("/unpause", h.handleUnpause)
}

// RegisterPublic mounts the read accessors.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/policy", h.handleGetConfiguration)
	r.Get("/accounts/{account}", h.handleGetAccount)
}

func (h *Handler) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}
	req, ok := httputil.Decode[struct {
		Value bool `json:"value"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	flag := models.Flag(chi.URLParam(r, "flag"))
	if err := h.service.SetFlag(ctx, account, flag, req.Value); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetRegionCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}
	req, ok := httputil.Decode[struct {
		Region int `json:"region"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	if err := h.service.SetRegionCode(ctx, account, req.Region); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetDailyLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}
	req, ok := httputil.Decode[struct {
		Limit *string `json:"limit"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	var limit *big.Int
	if req.Limit != nil {
		limit, err = httputil.ParseAmount(*req.Limit)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if err := h.service.SetDailyTransferLimit(ctx, account, limit); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) toggle(set func(context.Context, bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, ok := httputil.Decode[struct {
			Enabled bool `json:"enabled"`
		}](w, r, h.logger, ctx)
		if !ok {
			return
		}
		if err := set(ctx, req.Enabled); err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
	}
}

func (h *Handler) handleSetAllowedRegion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Region  int  `json:"region"`
		Allowed bool `json:"allowed"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	if err := h.service.SetAllowedRegion(ctx, req.Region, req.Allowed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetTransferLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Max *string `json:"max"`
		Min *string `json:"min"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	var max, min *big.Int
	var err error
	if req.Max != nil {
		if max, err = httputil.ParseAmount(*req.Max); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if req.Min != nil {
		if min, err = httputil.ParseAmount(*req.Min); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if err := h.service.SetTransferLimits(ctx, max, min); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetMaxHolderCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Max int `json:"max"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	if err := h.service.SetMaxHolderCount(ctx, req.Max); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetLargeTransferBps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Bps int `json:"bps"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	if err := h.service.SetLargeTransferBps(ctx, req.Bps); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Pause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unpause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "unpaused"})
}

type configurationResponse struct {
	KYCRequired                   bool    `json:"kyc_required"`
	RecipientValidationRequired   bool    `json:"recipient_validation_required"`
	TransferAuthorizationRequired bool    `json:"transfer_authorization_required"`
	RegionRestrictionsEnabled     bool    `json:"region_restrictions_enabled"`
	Paused                        bool    `json:"paused"`
	MaxTransferAmount             *string `json:"max_transfer_amount"`
	MinTransferAmount             *string `json:"min_transfer_amount"`
	MaxHolderCount                int     `json:"max_holder_count"`
	AllowedRegions                []int   `json:"allowed_regions"`
	LargeTransferBps              int     `json:"large_transfer_bps"`
	Version                       uint64  `json:"version"`
}

func (h *Handler) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Configuration(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := configurationResponse{
		KYCRequired:                   cfg.KYCRequired,
		RecipientValidationRequired:   cfg.RecipientValidationRequired,
		TransferAuthorizationRequired: cfg.TransferAuthorizationRequired,
		RegionRestrictionsEnabled:     cfg.RegionRestrictionsEnabled,
		Paused:                        cfg.Paused,
		MaxHolderCount:                cfg.MaxHolderCount,
		LargeTransferBps:              cfg.LargeTransferBps,
		Version:                       cfg.Version,
		AllowedRegions:                []int{},
	}
	if cfg.MaxTransferAmount != nil {
		v := cfg.MaxTransferAmount.String()
		resp.MaxTransferAmount = &v
	}
	if cfg.MinTransferAmount != nil {
		v := cfg.MinTransferAmount.String()
		resp.MinTransferAmount = &v
	}
	for region, allowed := range cfg.AllowedRegions {
		if allowed {
			resp.AllowedRegions = append(resp.AllowedRegions, region)
		}
	}
	sort.Ints(resp.AllowedRegions)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type accountResponse struct {
	ID               string  `json:"id"`
	Balance          string  `json:"balance"`
	KYCVerified      bool    `json:"kyc_verified"`
	Blacklisted      bool    `json:"blacklisted"`
	Sanctioned       bool    `json:"sanctioned"`
	TransferLocked   bool    `json:"transfer_locked"`
	AuthorizedSender bool    `json:"authorized_sender"`
	ValidRecipient   bool    `json:"valid_recipient"`
	RegionCode       int     `json:"region_code"`
	DailyLimit       *string `json:"daily_limit"`
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}

	acct, err := h.accounts.Get(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := accountResponse{
		ID:               account.String(),
		Balance:          acct.EffectiveBalance().String(),
		KYCVerified:      acct.KYCVerified,
		Blacklisted:      acct.Blacklisted,
		Sanctioned:       acct.Sanctioned,
		TransferLocked:   acct.TransferLocked,
		AuthorizedSender: acct.AuthorizedSender,
		ValidRecipient:   acct.ValidRecipient,
		RegionCode:       acct.RegionCode,
	}
	if acct.DailyLimit != nil {
		v := acct.DailyLimit.String()
		resp.DailyLimit = &v
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
