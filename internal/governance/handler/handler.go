// Package handler exposes the governance state machine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"covenant/internal/governance"
	"covenant/internal/governance/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/httputil"
)

// Service is the governance surface the handler needs.
type Service interface {
	Propose(ctx context.Context, call models.Call, description string) (id.ProposalID, error)
	CastVote(ctx context.Context, proposalID id.ProposalID, support bool) error
	Execute(ctx context.Context, proposalID id.ProposalID) error
	Cancel(ctx context.Context, proposalID id.ProposalID) error
	AddGovernor(ctx context.Context, account id.AccountID) error
	RemoveGovernor(ctx context.Context, account id.AccountID) error
	SetRequiredVotes(ctx context.Context, votes int) error
	SetVotingPeriod(ctx context.Context, period time.Duration) error
	SetExecutionDelay(ctx context.Context, delay time.Duration) error
	GetProposal(ctx context.Context, proposalID id.ProposalID) (models.Proposal, error)
	StateOf(ctx context.Context, proposalID id.ProposalID) (models.State, error)
	Governors(ctx context.Context) ([]id.AccountID, error)
	IsGovernor(ctx context.Context, account id.AccountID) (bool, error)
	HasVoted(ctx context.Context, proposalID id.ProposalID, account id.AccountID) (bool, error)
	VoteChoice(ctx context.Context, proposalID id.ProposalID, account id.AccountID) (bool, error)
	CurrentParams() governance.Params
}

// Handler handles governance endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a governance Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterProtected mounts the mutating routes; callers go through auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/governance/proposals", h.handlePropose)
	r.Post("/governance/proposals/{id}/votes", h.handleCastVote)
	r.Post("/governance/proposals/{id}/execute", h.handleExecute)
	r.Post("/governance/proposals/{id}/cancel", h.handleCancel)
	r.Post("/governance/governors", h.handleAddGovernor)
	r.Delete("/governance/governors/{account}", h.handleRemoveGovernor)
	r.Put("/governance/required-votes", h.handleSetRequiredVotes)
	r.Put("/governance/voting-period", h.handleSetVotingPeriod)
	r.Put("/governance/execution-delay", h.handleSetExecutionDelay)
}

// RegisterPublic mounts the read accessors.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/governance/proposals/{id}", h.handleGetProposal)
	r.Get("/governance/proposals/{id}/votes/{account}", h.handleGetVote)
	r.Get("/governance/governors", h.handleGetGovernors)
	r.Get("/governance/governors/{account}", h.handleIsGovernor)
	r.Get("/governance/params", h.handleGetParams)
}

type proposeRequest struct {
	Target      string          `json:"target"`
	Method      string          `json:"method"`
	Params      json.RawMessage `json:"params,omitempty"`
	Value       *string         `json:"value,omitempty"`
	Description string          `json:"description"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[proposeRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	var value *big.Int
	if req.Value != nil {
		parsed, err := httputil.ParseAmount(*req.Value)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		value = parsed
	}

	proposalID, err := h.service.Propose(ctx, models.Call{
		Target: req.Target,
		Method: req.Method,
		Params: req.Params,
		Value:  value,
	}, req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uint64{"id": uint64(proposalID)})
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	req, decoded := httputil.Decode[struct {
		Support bool `json:"support"`
	}](w, r, h.logger, ctx)
	if !decoded {
		return
	}

	if err := h.service.CastVote(ctx, proposalID, req.Support); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	if err := h.service.Execute(r.Context(), proposalID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), proposalID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleAddGovernor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Account id.AccountID `json:"account"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if err := h.service.AddGovernor(ctx, req.Account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *Handler) handleRemoveGovernor(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}
	if err := h.service.RemoveGovernor(r.Context(), account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) handleSetRequiredVotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Votes int `json:"votes"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if err := h.service.SetRequiredVotes(ctx, req.Votes); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) handleSetVotingPeriod(w http.ResponseWriter, r *http.Request) {
	h.setSeconds(w, r, h.service.SetVotingPeriod)
}

func (h *Handler) handleSetExecutionDelay(w http.ResponseWriter, r *http.Request) {
	h.setSeconds(w, r, h.service.SetExecutionDelay)
}

func (h *Handler) setSeconds(w http.ResponseWriter, r *http.Request, set func(context.Context, time.Duration) error) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Seconds int64 `json:"seconds"`
	}](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if err := set(ctx, time.Duration(req.Seconds)*time.Second); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

type proposalResponse struct {
	ID             uint64          `json:"id"`
	Proposer       string          `json:"proposer"`
	Target         string          `json:"target"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	Value          *string         `json:"value,omitempty"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
	VotingDeadline time.Time       `json:"voting_deadline"`
	ETA            time.Time       `json:"eta"`
	ForVotes       int             `json:"for_votes"`
	AgainstVotes   int             `json:"against_votes"`
	State          string          `json:"state"`
}

func (h *Handler) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, ok := h.proposalID(w, r)
	if !ok {
		return
	}

	proposal, err := h.service.GetProposal(ctx, proposalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := h.service.StateOf(ctx, proposalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := proposalResponse{
		ID:             uint64(proposal.ID),
		Proposer:       proposal.Proposer.String(),
		Target:         proposal.Call.Target,
		Method:         proposal.Call.Method,
		Params:         proposal.Call.Params,
		Description:    proposal.Description,
		CreatedAt:      proposal.CreatedAt,
		VotingDeadline: proposal.VotingDeadline,
		ETA:            proposal.ETA,
		ForVotes:       proposal.ForVotes,
		AgainstVotes:   proposal.AgainstVotes,
		State:          string(state),
	}
	if proposal.Call.Value != nil {
		v := proposal.Call.Value.String()
		resp.Value = &v
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}

	voted, err := h.service.HasVoted(ctx, proposalID, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]any{"has_voted": voted}
	if voted {
		choice, err := h.service.VoteChoice(ctx, proposalID, account)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp["support"] = choice
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetGovernors(w http.ResponseWriter, r *http.Request) {
	governors, err := h.service.Governors(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]string, 0, len(governors))
	for _, g := range governors {
		out = append(out, g.String())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"governors": out})
}

func (h *Handler) handleIsGovernor(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed account identifier"))
		return
	}
	isGovernor, err := h.service.IsGovernor(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"is_governor": isGovernor})
}

func (h *Handler) handleGetParams(w http.ResponseWriter, r *http.Request) {
	params := h.service.CurrentParams()
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{
		"voting_period_seconds":   int64(params.VotingPeriod / time.Second),
		"execution_delay_seconds": int64(params.ExecutionDelay / time.Second),
		"required_votes":          int64(params.RequiredVotes),
	})
}

func (h *Handler) proposalID(w http.ResponseWriter, r *http.Request) (id.ProposalID, bool) {
	raw := chi.URLParam(r, "id")
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "malformed proposal id %q", raw))
		return 0, false
	}
	return id.ProposalID(parsed), true
}
