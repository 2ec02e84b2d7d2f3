package governance

import (
	"context"
	"encoding/json"
	"time"

	"covenant/internal/capability"
	"covenant/internal/governance/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// SelfTarget lets proposals administer governance itself: the governor
// set, the quorum, and the timing knobs. Dispatch runs inside Execute's
// commit lock, so it goes through the unlocked method bodies directly.
func (s *Service) SelfTarget() Target {
	return selfTarget{svc: s}
}

type selfTarget struct {
	svc *Service
}

func (t selfTarget) Dispatch(ctx context.Context, call models.Call) error {
	if err := t.svc.require(ctx, capability.Administrator); err != nil {
		return err
	}

	switch call.Method {
	case "addGovernor":
		account, err := accountParam(call.Params)
		if err != nil {
			return err
		}
		if account.IsZero() {
			return dErrors.New(dErrors.CodeZeroAddressTarget, "governor must be a non-null account")
		}
		return t.svc.addGovernorLocked(ctx, account)

	case "removeGovernor":
		account, err := accountParam(call.Params)
		if err != nil {
			return err
		}
		return t.svc.removeGovernorLocked(ctx, account)

	case "setRequiredVotes":
		var params struct {
			Votes int `json:"votes"`
		}
		if err := decodeParams(call.Params, &params); err != nil {
			return err
		}
		return t.svc.setRequiredVotesLocked(ctx, params.Votes)

	case "setVotingPeriod":
		seconds, err := secondsParam(call.Params)
		if err != nil {
			return err
		}
		if seconds <= 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "voting period must be positive")
		}
		return t.svc.setVotingPeriodLocked(ctx, time.Duration(seconds)*time.Second)

	case "setExecutionDelay":
		seconds, err := secondsParam(call.Params)
		if err != nil {
			return err
		}
		if seconds < 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "execution delay cannot be negative")
		}
		return t.svc.setExecutionDelayLocked(ctx, time.Duration(seconds)*time.Second)
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "unknown governance method %q", call.Method)
}

func accountParam(raw json.RawMessage) (id.AccountID, error) {
	var params struct {
		Account id.AccountID `json:"account"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return id.ZeroAccount, err
	}
	return params.Account, nil
}

func secondsParam(raw json.RawMessage) (int64, error) {
	var params struct {
		Seconds int64 `json:"seconds"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return 0, err
	}
	return params.Seconds, nil
}

func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "call params are required")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed call params")
	}
	return nil
}
