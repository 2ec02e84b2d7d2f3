// Package handler exposes capability administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"covenant/internal/capability"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Service is the capability surface the handler needs.
type Service interface {
	Grant(ctx context.Context, kind capability.Kind, account id.AccountID) error
	Revoke(ctx context.Context, kind capability.Kind, account id.AccountID) error
	Has(ctx context.Context, kind capability.Kind, account id.AccountID) (bool, error)
	Accounts(ctx context.Context, kind capability.Kind) ([]id.AccountID, error)
}

// Handler handles capability endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a capability Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterProtected mounts the mutating routes; callers go through auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/capabilities/{kind}", h.handleGrant)
	r.Delete("/capabilities/{kind}/{account}", h.handleRevoke)
}

// RegisterPublic mounts the read accessors.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/capabilities/{kind}", h.handleAccounts)
	r.Get("/capabilities/{kind}/{account}", h.handleHas)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Account id.AccountID `json:"account"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}

	kind := capability.Kind(chi.URLParam(r, "kind"))
	if err := h.service.Grant(ctx, kind, req.Account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}

	kind := capability.Kind(chi.URLParam(r, "kind"))
	if err := h.service.Revoke(r.Context(), kind, account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	kind := capability.Kind(chi.URLParam(r, "kind"))
	accounts, err := h.service.Accounts(r.Context(), kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.String())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"accounts": out})
}

func (h *Handler) handleHas(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}

	kind := capability.Kind(chi.URLParam(r, "kind"))
	has, err := h.service.Has(r.Context(), kind, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"has_capability": has})
}
