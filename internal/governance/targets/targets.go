// Package targets adapts the ledger executor and the compliance surface
// into governance dispatch targets. Each target is a method switch over the
// proposal's stored call; capability checks stay inside the wrapped
// services, exercised against the governance module account.
package targets

import (
	"context"
	"encoding/json"
	"math/big"

	"covenant/internal/compliance"
	"covenant/internal/governance/models"
	ledgermodels "covenant/internal/ledger/models"
	"covenant/internal/transfer"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Ledger dispatches value-moving proposals to the transfer executor.
type Ledger struct {
	transfers *transfer.Service
}

// NewLedger wraps the transfer executor.
func NewLedger(transfers *transfer.Service) *Ledger {
	return &Ledger{transfers: transfers}
}

func (t *Ledger) Dispatch(ctx context.Context, call models.Call) error {
	switch call.Method {
	case "mint":
		var params struct {
			To id.AccountID `json:"to"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		amount, err := callAmount(call)
		if err != nil {
			return err
		}
		return t.transfers.Mint(ctx, params.To, amount)

	case "burnFrom":
		var params struct {
			From id.AccountID `json:"from"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		amount, err := callAmount(call)
		if err != nil {
			return err
		}
		return t.transfers.BurnFrom(ctx, params.From, amount)
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "unknown ledger method %q", call.Method)
}

// Policy dispatches configuration and flag proposals to the compliance
// surface.
type Policy struct {
	compliance *compliance.Service
}

// NewPolicy wraps the compliance service.
func NewPolicy(service *compliance.Service) *Policy {
	return &Policy{compliance: service}
}

func (t *Policy) Dispatch(ctx context.Context, call models.Call) error {
	switch call.Method {
	case "setFlag":
		var params struct {
			Account id.AccountID `json:"account"`
			Flag    string       `json:"flag"`
			Value   bool         `json:"value"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		return t.compliance.SetFlag(ctx, params.Account, ledgermodels.Flag(params.Flag), params.Value)

	case "setRegionCode":
		var params struct {
			Account id.AccountID `json:"account"`
			Region  int          `json:"region"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		return t.compliance.SetRegionCode(ctx, params.Account, params.Region)

	case "setDailyTransferLimit":
		var params struct {
			Account id.AccountID `json:"account"`
			Limit   *string      `json:"limit"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		limit, err := optionalAmount(params.Limit)
		if err != nil {
			return err
		}
		return t.compliance.SetDailyTransferLimit(ctx, params.Account, limit)

	case "setAllowedRegion":
		var params struct {
			Region  int  `json:"region"`
			Allowed bool `json:"allowed"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		return t.compliance.SetAllowedRegion(ctx, params.Region, params.Allowed)

	case "setKYCRequired":
		enabled, err := enabledParam(call.Params)
		if err != nil {
			return err
		}
		return t.compliance.SetKYCRequired(ctx, enabled)

	case "setRecipientValidationRequired":
		enabled, err := enabledParam(call.Params)
		if err != nil {
			return err
		}
		return t.compliance.SetRecipientValidationRequired(ctx, enabled)

	case "setTransferAuthorizationRequired":
		enabled, err := enabledParam(call.Params)
		if err != nil {
			return err
		}
		return t.compliance.SetTransferAuthorizationRequired(ctx, enabled)

	case "setRegionRestrictionsEnabled":
		enabled, err := enabledParam(call.Params)
		if err != nil {
			return err
		}
		return t.compliance.SetRegionRestrictionsEnabled(ctx, enabled)

	case "setTransferLimits":
		var params struct {
			Max *string `json:"max"`
			Min *string `json:"min"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		max, err := optionalAmount(params.Max)
		if err != nil {
			return err
		}
		min, err := optionalAmount(params.Min)
		if err != nil {
			return err
		}
		return t.compliance.SetTransferLimits(ctx, max, min)

	case "setMaxHolderCount":
		var params struct {
			Max int `json:"max"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		return t.compliance.SetMaxHolderCount(ctx, params.Max)

	case "setLargeTransferBps":
		var params struct {
			Bps int `json:"bps"`
		}
		if err := decode(call.Params, &params); err != nil {
			return err
		}
		return t.compliance.SetLargeTransferBps(ctx, params.Bps)

	case "pause":
		return t.compliance.Pause(ctx)

	case "unpause":
		return t.compliance.Unpause(ctx)
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy method %q", call.Method)
}

func callAmount(call models.Call) (*big.Int, error) {
	if call.Value == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "call value is required")
	}
	return call.Value, nil
}

func optionalAmount(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "malformed amount %q", *s)
	}
	return v, nil
}

func enabledParam(raw json.RawMessage) (bool, error) {
	var params struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(raw, &params); err != nil {
		return false, err
	}
	return params.Enabled, nil
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "call params are required")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed call params")
	}
	return nil
}
