// Package handler exposes the transfer executor over HTTP: value movement,
// pre-flight restriction evaluation, and the ledger read accessors.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"covenant/internal/policy"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Service is the transfer surface the handler needs.
type Service interface {
	Transfer(ctx context.Context, from, to id.AccountID, amount *big.Int) error
	Mint(ctx context.Context, to id.AccountID, amount *big.Int) error
	Burn(ctx context.Context, amount *big.Int) error
	BurnFrom(ctx context.Context, from id.AccountID, amount *big.Int) error
	Evaluate(ctx context.Context, from, to id.AccountID, amount *big.Int) (policy.Code, error)
	BalanceOf(ctx context.Context, account id.AccountID) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	HolderCount(ctx context.Context) (int, error)
}

// Handler handles transfer endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a transfer Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterProtected mounts the mutating routes; callers go through auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/transfers", h.handleTransfer)
	r.Post("/mint", h.handleMint)
	r.Post("/burn", h.handleBurn)
	r.Post("/burn-from", h.handleBurnFrom)
}

// RegisterPublic mounts the read-only routes: anyone may simulate a
// transfer or inspect balances.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/transfers/evaluate", h.handleEvaluate)
	r.Get("/restrictions/{code}", h.handleRestrictionMessage)
	r.Get("/accounts/{account}/balance", h.handleBalance)
	r.Get("/supply", h.handleSupply)
	r.Get("/holders", h.handleHolders)
}

type movementRequest struct {
	From   id.AccountID `json:"from"`
	To     id.AccountID `json:"to"`
	Amount string       `json:"amount"`
}

type restrictionResponse struct {
	Code    uint8  `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[movementRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	amount, err := httputil.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Transfer(ctx, req.From, req.To, amount); err != nil {
		h.writeTransferError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[movementRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	amount, err := httputil.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Mint(ctx, req.To, amount); err != nil {
		h.writeTransferError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[movementRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	amount, err := httputil.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Burn(ctx, amount); err != nil {
		h.writeTransferError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleBurnFrom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[movementRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	amount, err := httputil.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.BurnFrom(ctx, req.From, amount); err != nil {
		h.writeTransferError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[movementRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	amount, err := httputil.ParseAmount(req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	code, err := h.service.Evaluate(ctx, req.From, req.To, amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, restrictionResponse{
		Code:    uint8(code),
		Message: policy.Message(code),
	})
}

func (h *Handler) handleRestrictionMessage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")
	code, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "malformed restriction code %q", raw))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, restrictionResponse{
		Code:    uint8(code),
		Message: policy.Message(policy.Code(code)),
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}

	balance, err := h.service.BalanceOf(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"account": account.String(),
		"balance": balance.String(),
	})
}

func (h *Handler) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.service.TotalSupply(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"total_supply": supply.String()})
}

func (h *Handler) handleHolders(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.HolderCount(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"holder_count": count})
}

// writeTransferError renders policy denials with their restriction code and
// falls back to the domain error envelope for everything else.
func (h *Handler) writeTransferError(w http.ResponseWriter, err error) {
	var restricted *policy.Error
	if errors.As(err, &restricted) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "transfer_restricted",
			"code":    uint8(restricted.Code),
			"message": restricted.Message,
		})
		return
	}
	httputil.WriteError(w, err)
}
