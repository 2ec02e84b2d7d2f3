package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "covenant/pkg/domain"
	"covenant/pkg/requestcontext"
)

// TokenValidator checks a bearer token and returns the account it speaks
// for.
type TokenValidator interface {
	ValidateToken(token string) (id.AccountID, error)
}

// HMACValidator validates HS256 tokens whose subject claim is the caller's
// account identifier.
type HMACValidator struct {
	key []byte
}

// NewHMACValidator builds a validator over a shared signing key.
func NewHMACValidator(key []byte) *HMACValidator {
	return &HMACValidator{key: key}
}

func (v *HMACValidator) ValidateToken(token string) (id.AccountID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	})
	if err != nil {
		return id.ZeroAccount, err
	}
	if !parsed.Valid {
		return id.ZeroAccount, jwt.ErrTokenUnverifiable
	}
	return id.ParseAccountID(claims.Subject)
}

// IssueToken signs an HS256 token for the account. Used by tests and by
// operator tooling that provisions credentials out of band.
func IssueToken(key []byte, account id.AccountID, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   account.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// RequireAuth rejects requests without a valid bearer token and puts the
// authenticated account on the context as the caller.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeUnauthorized(w, "missing or malformed Authorization header")
				return
			}

			account, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := requestcontext.WithCallerID(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "unauthorized",
		"error_description": description,
	})
}
