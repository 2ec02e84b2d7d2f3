// Package httputil centralizes JSON request decoding and domain error
// translation so handlers stay thin and the error envelope stays uniform.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	dErrors "covenant/pkg/domain-errors"
)

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput,
		dErrors.CodeZeroAddressTarget, dErrors.CodeEmptyDescription:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeCapabilityRequired:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeProposalNotFound:
		return http.StatusNotFound
	case dErrors.CodeInsufficientBalance,
		dErrors.CodeGovernorSetInvariant, dErrors.CodeQuorumInvariant,
		dErrors.CodeVotingClosed, dErrors.CodeAlreadyVoted,
		dErrors.CodeNotEligibleForExecution, dErrors.CodeAlreadyExecuted,
		dErrors.CodeAlreadyCancelled:
		return http.StatusConflict
	case dErrors.CodeExecutionDispatchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a domain error as the standard JSON envelope. Internal
// errors omit the description so store failures never leak detail to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ParseAmount parses a decimal-string amount from the wire. Amounts travel
// as strings because they exceed what JSON numbers can carry losslessly.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "malformed amount %q", s)
	}
	return v, nil
}

// Decode parses the request body into T and writes a bad_request envelope on
// failure. The bool result tells the handler whether to continue.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request decode failed", "error", err)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return req, false
	}
	return req, true
}
